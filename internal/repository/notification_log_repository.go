package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"clinic-notify/internal/domain"
)

type NotificationLogRepository interface {
	Create(ctx context.Context, entry *domain.NotificationLog) error
	CountsSince(ctx context.Context, since time.Time) (map[domain.LogEvent]int64, error)
}

type notificationLogRepository struct {
	db *sqlx.DB
}

func NewNotificationLogRepository(db *sqlx.DB) NotificationLogRepository {
	return &notificationLogRepository{db: db}
}

func (r *notificationLogRepository) Create(ctx context.Context, entry *domain.NotificationLog) error {
	query := `
		INSERT INTO notification_logs (id, notification_id, event, metadata)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query,
		entry.ID, entry.NotificationID, entry.Event, entry.Metadata,
	).Scan(&entry.CreatedAt)
}

func (r *notificationLogRepository) CountsSince(ctx context.Context, since time.Time) (map[domain.LogEvent]int64, error) {
	rows := []struct {
		Event domain.LogEvent `db:"event"`
		Total int64           `db:"total"`
	}{}

	query := `
		SELECT event, COUNT(*) AS total
		FROM notification_logs
		WHERE created_at >= $1
		GROUP BY event`
	if err := r.db.SelectContext(ctx, &rows, query, since); err != nil {
		return nil, err
	}

	counts := make(map[domain.LogEvent]int64, len(rows))
	for _, row := range rows {
		counts[row.Event] = row.Total
	}
	return counts, nil
}
