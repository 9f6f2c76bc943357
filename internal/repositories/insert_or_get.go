package repositories

import (
	"context"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InsertOrGetExisting inserts row and reports created=true. When a unique
// constraint already holds a conflicting row, nothing is written and lookup
// loads the stored winner, which then replaces *row. Concurrent writers of
// the same key therefore all converge on one stored value.
//
// The insert uses ON CONFLICT DO NOTHING so that, on PostgreSQL, losing the
// race does not abort an enclosing transaction.
func InsertOrGetExisting[T any](ctx context.Context, db *gorm.DB, row *T, lookup func(tx *gorm.DB, dest *T) error) (bool, error) {
	tx := db.WithContext(ctx)
	res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(row)
	if res.Error != nil {
		return false, errors.Wrap(res.Error, "insert")
	}
	if res.RowsAffected > 0 {
		return true, nil
	}

	var existing T
	if err := lookup(tx, &existing); err != nil {
		return false, errors.Wrap(err, "load existing row")
	}
	*row = existing
	return false, nil
}
