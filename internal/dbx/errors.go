package dbx

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrijs2005/contentkeeper/internal/common"
)

// MapError converts driver errors into the common error taxonomy and adds
// the entity and id as context. Context cancellation passes through.
func MapError(err error, entity, id string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s %s: %w", entity, id, err)
	}

	if errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s %s: %w", entity, id, common.ErrorNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return fmt.Errorf("%s %s: %w", entity, id, common.ErrAlreadyExists)
		case "22P02": // invalid_text_representation, e.g. a malformed uuid
			return fmt.Errorf("%s %s: %w", entity, id, common.NewValidationError("id", "malformed identifier"))
		}
	}

	return fmt.Errorf("%s %s: %w", entity, id, err)
}
