package service

import (
	"errors"

	"github.com/sispromo/sispromo/internal/domain"
)

func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}
