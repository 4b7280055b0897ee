package repository

import (
	"context"
	"database/sql"
	"errors"
	"strconv"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"clinic-notify/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, notif *domain.Notification) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error)
	GetByEventID(ctx context.Context, eventID string) (*domain.Notification, error)
	ListByUser(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]domain.Notification, int64, error)
	ListUndelivered(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error)
	MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error)
	MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	Acknowledge(ctx context.Context, id, userID uuid.UUID) (bool, error)
	IncrementRetry(ctx context.Context, id uuid.UUID) (int, bool, error)
	MarkEscalated(ctx context.Context, id uuid.UUID) (bool, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int64, error)
}

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) NotificationRepository {
	return &notificationRepository{db: db}
}

// IsUniqueViolation reports whether err is a postgres duplicate-key error,
// used to resolve concurrent sends racing on the same event_id.
func IsUniqueViolation(err error) bool {
	if pqErr, ok := err.(*pq.Error); ok {
		return pqErr.Code == "23505"
	}
	return false
}

func (r *notificationRepository) Create(ctx context.Context, notif *domain.Notification) error {
	query := `
		INSERT INTO notifications (id, event_id, user_id, type, priority, title, message, data, action_url, requires_ack, max_retries)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	return r.db.QueryRowxContext(ctx, query,
		notif.ID, notif.EventID, notif.UserID, notif.Type, notif.Priority,
		notif.Title, notif.Message, notif.Data, notif.ActionURL,
		notif.RequiresAck, notif.MaxRetries,
	).Scan(&notif.CreatedAt)
}

func (r *notificationRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Notification, error) {
	var notif domain.Notification
	query := `SELECT * FROM notifications WHERE id = $1`
	err := r.db.GetContext(ctx, &notif, query, id)
	return &notif, err
}

func (r *notificationRepository) GetByEventID(ctx context.Context, eventID string) (*domain.Notification, error) {
	var notif domain.Notification
	query := `SELECT * FROM notifications WHERE event_id = $1`
	err := r.db.GetContext(ctx, &notif, query, eventID)
	return &notif, err
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, filter domain.NotificationFilter) ([]domain.Notification, int64, error) {
	filter.Normalize()

	where := `WHERE user_id = $1`
	args := []interface{}{userID}

	if filter.Read != nil {
		args = append(args, *filter.Read)
		where += ` AND is_read = $` + strconv.Itoa(len(args))
	}
	if filter.Priority != nil {
		args = append(args, *filter.Priority)
		where += ` AND priority = $` + strconv.Itoa(len(args))
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM notifications `+where, args...); err != nil {
		return nil, 0, err
	}

	args = append(args, filter.Limit, filter.Offset)
	query := `SELECT * FROM notifications ` + where +
		` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(len(args)-1) +
		` OFFSET $` + strconv.Itoa(len(args))

	var notifications []domain.Notification
	err := r.db.SelectContext(ctx, &notifications, query, args...)
	return notifications, total, err
}

func (r *notificationRepository) ListUndelivered(ctx context.Context, userID uuid.UUID) ([]domain.Notification, error) {
	var notifications []domain.Notification
	query := `
		SELECT * FROM notifications
		WHERE user_id = $1 AND delivered = false
		ORDER BY created_at ASC`
	err := r.db.SelectContext(ctx, &notifications, query, userID)
	return notifications, err
}

// MarkDelivered flips delivered exactly once; repeated pushes of the same
// row report false so delivery metrics are not double counted.
func (r *notificationRepository) MarkDelivered(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET delivered = true, delivered_at = NOW()
		WHERE id = $1 AND delivered = false`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = NOW()
		WHERE id = $1 AND user_id = $2 AND is_read = false`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	query := `
		UPDATE notifications
		SET is_read = true, read_at = NOW()
		WHERE user_id = $1 AND is_read = false`
	res, err := r.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// Acknowledge is guarded so a racing escalation timer and an acknowledging
// user resolve in store order: whoever writes first wins.
func (r *notificationRepository) Acknowledge(ctx context.Context, id, userID uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET acknowledged = true, acknowledged_at = NOW()
		WHERE id = $1 AND user_id = $2 AND acknowledged = false`
	res, err := r.db.ExecContext(ctx, query, id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IncrementRetry bumps the counter only while retries remain and the row is
// still unacknowledged. ok=false means the notification is no longer
// eligible for a retry.
func (r *notificationRepository) IncrementRetry(ctx context.Context, id uuid.UUID) (int, bool, error) {
	var count int
	query := `
		UPDATE notifications
		SET retry_count = retry_count + 1
		WHERE id = $1 AND acknowledged = false AND retry_count < max_retries
		RETURNING retry_count`
	err := r.db.QueryRowxContext(ctx, query, id).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return count, true, nil
}

func (r *notificationRepository) MarkEscalated(ctx context.Context, id uuid.UUID) (bool, error) {
	query := `
		UPDATE notifications
		SET escalated = true
		WHERE id = $1 AND acknowledged = false AND escalated = false`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	query := `SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND is_read = false`
	err := r.db.GetContext(ctx, &count, query, userID)
	return count, err
}
