package postgres

import (
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sispromo/sispromo/internal/domain"
	"github.com/sispromo/sispromo/internal/domain/visit"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidText         = "22P02"
)

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

// nullIfEmpty returns nil for empty strings (for nullable columns).
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// orEmpty returns items unchanged if non-nil, or an empty slice if nil.
// Useful to ensure JSON serialization produces [] instead of null.
func orEmpty[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

// wrapErr translates driver errors into domain sentinels:
// no rows and malformed UUIDs become ErrNotFound, unique and foreign key
// violations become ErrConflict.
func wrapErr(err error, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%s: %w: %s", msg, domain.ErrConflict, constraintMessage(pgErr))
		case pgForeignKeyViolation:
			return fmt.Errorf("%s: %w: record is still referenced", msg, domain.ErrConflict)
		case pgInvalidText:
			return fmt.Errorf("%s: %w", msg, domain.ErrNotFound)
		}
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// constraintMessage names the duplicated field for a unique violation.
func constraintMessage(pgErr *pgconn.PgError) string {
	switch pgErr.ConstraintName {
	case "users_username_key":
		return "username already exists"
	case "users_email_key":
		return "email already exists"
	case "users_cpf_key":
		return "cpf already exists"
	case "stores_cnpj_key":
		return "cnpj already exists"
	case "brands_name_key":
		return "brand name already exists"
	case "promoter_brands_promoter_id_brand_id_key":
		return "promoter already assigned to brand"
	case "visit_prices_store_id_brand_id_key":
		return "visit price already exists for store and brand"
	default:
		return "duplicate record"
	}
}

// execExpectOne verifies that an Exec affected exactly one row. If not
// (and err is nil), it returns domain.ErrNotFound with the given message.
func execExpectOne(tag pgconn.CommandTag, err error, format string, args ...any) error {
	if err != nil {
		return wrapErr(err, format, args...)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf(fmt.Sprintf(format, args...)+": %w", domain.ErrNotFound)
	}
	return nil
}

// formatDate renders a DATE column as YYYY-MM-DD.
func formatDate(t time.Time) string {
	return t.Format(visit.DateLayout)
}

// whereBuilder accumulates AND-ed conditions with positional arguments.
type whereBuilder struct {
	conds []string
	args  []any
}

func (w *whereBuilder) add(cond string, arg any) {
	w.args = append(w.args, arg)
	w.conds = append(w.conds, fmt.Sprintf(cond, len(w.args)))
}

func (w *whereBuilder) sql() string {
	if len(w.conds) == 0 {
		return ""
	}
	out := " WHERE " + w.conds[0]
	for _, c := range w.conds[1:] {
		out += " AND " + c
	}
	return out
}
