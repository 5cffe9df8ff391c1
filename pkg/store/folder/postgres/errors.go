package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	folderrors "github.com/arborhq/arbor/pkg/folder/errors"
)

// mapPgError maps PostgreSQL errors to typed folder errors.
func mapPgError(err error, operation string, folderID int64) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return folderrors.NewNotFound(folderID)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// PostgreSQL error codes:
		// https://www.postgresql.org/docs/current/errcodes-appendix.html
		switch pgErr.Code {
		// 23505: unique_violation. Reservation claims depend on this
		// surfacing as DuplicateName.
		case "23505":
			return folderrors.NewNameReserved(folderID)

		// 23503: foreign_key_violation
		case "23503":
			return folderrors.NewNotFound(folderID)

		// 40001: serialization_failure, 40P01: deadlock_detected
		case "40001", "40P01":
			return folderrors.NewTransient(operation, err)
		}
	}

	return folderrors.NewTransient(operation, err)
}
