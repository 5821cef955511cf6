package db

import (
	"context"

	"kwrec/internal/models"
)

// IncrementContextLookup upserts a recommend lookup count by outcome.
func (d *DB) IncrementContextLookup(ctx context.Context, keyword, outcome string) error {
	_, err := d.Pool.Exec(ctx, `
		INSERT INTO context_lookups (keyword, outcome, count, last_seen_at)
		VALUES ($1, $2, 1, NOW())
		ON CONFLICT (keyword, outcome) DO UPDATE
		SET count = context_lookups.count + 1, last_seen_at = NOW()
	`, keyword, outcome)
	return err
}

// GetAllContextLookups returns all lookup rows for metrics export.
func (d *DB) GetAllContextLookups(ctx context.Context) ([]models.ContextLookup, error) {
	rows, err := d.Pool.Query(ctx, `SELECT keyword, outcome, count, last_seen_at FROM context_lookups`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lookups []models.ContextLookup
	for rows.Next() {
		var l models.ContextLookup
		if err := rows.Scan(&l.Keyword, &l.Outcome, &l.Count, &l.LastSeenAt); err != nil {
			return nil, err
		}
		lookups = append(lookups, l)
	}
	return lookups, rows.Err()
}
