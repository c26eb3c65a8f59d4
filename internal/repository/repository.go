package repository

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// invalidTextRepresentation is raised by Postgres when an id is not a valid uuid.
const invalidTextRepresentation = "22P02"

// noRowsOnMalformedID reports a lookup by a malformed id as a missing row.
func noRowsOnMalformedID(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == invalidTextRepresentation {
		return pgx.ErrNoRows
	}
	return err
}

// pageClause renders LIMIT/OFFSET, defaulting limit to def when unset.
func pageClause(limit, offset, def int) string {
	if limit <= 0 {
		limit = def
	}
	if offset < 0 {
		offset = 0
	}
	return fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
}
