package postgres

import (
	"context"
	"database/sql"

	activity "receivables-cloud/internal/activity/domain"
)

// Feed reads the recent-activity stream from postgres.
type Feed struct {
	db *sql.DB
}

// NewFeed constructs an activity feed reader.
func NewFeed(db *sql.DB) *Feed {
	return &Feed{db: db}
}

// ListRecentActivities returns the newest activity records first.
func (f *Feed) ListRecentActivities(ctx context.Context, limit int) ([]activity.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := f.db.QueryContext(ctx, `
SELECT id, kind, account_id, detail, occurred_at
FROM activities
ORDER BY occurred_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []activity.Record
	for rows.Next() {
		var record activity.Record
		if err := rows.Scan(&record.ID, &record.Kind, &record.AccountID, &record.Detail, &record.OccurredAt); err != nil {
			return nil, err
		}
		record.OccurredAt = record.OccurredAt.UTC()
		result = append(result, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
