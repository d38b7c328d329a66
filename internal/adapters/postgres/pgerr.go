package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sremani/Artifortress-sub001/internal/platform/merrors"
)

// Postgres error codes this adapter translates into domain errors.
// https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	sqlstateUniqueViolation     = "23505"
	sqlstateForeignKeyViolation = "23503"
)

// translatePGError maps a low-level pgconn error into the domain error
// taxonomy: unique-constraint violations become Conflict, foreign-key
// violations become NotFound (the referenced row doesn't exist), anything
// else is wrapped as an internal error.
func translatePGError(entityType string, err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return merrors.AsInternal(err)
	}

	switch pgErr.Code {
	case sqlstateUniqueViolation:
		return merrors.NewConflictError("already_exists", entityType+" already exists")
	case sqlstateForeignKeyViolation:
		return merrors.NewEntityNotFoundError(entityType, "referenced "+entityType+" does not exist")
	default:
		return merrors.AsInternal(err)
	}
}
