package service

import (
	"github.com/sispromo/sispromo/internal/domain/user"
)

// privileged reports whether the actor sees every promoter's data.
// Managers and analysts do; promoters see only their own.
func privileged(actor *user.User) bool {
	return actor != nil && (actor.Role == user.RoleManager || actor.Role == user.RoleAnalyst)
}
