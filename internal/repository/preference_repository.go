package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"clinic-notify/internal/domain"
)

type PreferenceRepository interface {
	Get(ctx context.Context, userID uuid.UUID, t domain.NotificationType) (*domain.NotificationPreference, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.NotificationPreference, error)
	Upsert(ctx context.Context, pref *domain.NotificationPreference) error
}

type preferenceRepository struct {
	db *sqlx.DB
}

func NewPreferenceRepository(db *sqlx.DB) PreferenceRepository {
	return &preferenceRepository{db: db}
}

func (r *preferenceRepository) Get(ctx context.Context, userID uuid.UUID, t domain.NotificationType) (*domain.NotificationPreference, error) {
	var pref domain.NotificationPreference
	query := `SELECT * FROM notification_preferences WHERE user_id = $1 AND type = $2`
	err := r.db.GetContext(ctx, &pref, query, userID, t)
	return &pref, err
}

func (r *preferenceRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]domain.NotificationPreference, error) {
	var prefs []domain.NotificationPreference
	query := `SELECT * FROM notification_preferences WHERE user_id = $1 ORDER BY type`
	err := r.db.SelectContext(ctx, &prefs, query, userID)
	return prefs, err
}

func (r *preferenceRepository) Upsert(ctx context.Context, pref *domain.NotificationPreference) error {
	query := `
		INSERT INTO notification_preferences
			(user_id, type, enabled, sound_enabled, toast_enabled, do_not_disturb, work_hours_start, work_hours_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW())
		ON CONFLICT (user_id, type) DO UPDATE SET
			enabled = EXCLUDED.enabled,
			sound_enabled = EXCLUDED.sound_enabled,
			toast_enabled = EXCLUDED.toast_enabled,
			do_not_disturb = EXCLUDED.do_not_disturb,
			work_hours_start = EXCLUDED.work_hours_start,
			work_hours_end = EXCLUDED.work_hours_end,
			updated_at = NOW()
		RETURNING updated_at`

	return r.db.QueryRowxContext(ctx, query,
		pref.UserID, pref.Type, pref.Enabled, pref.SoundEnabled, pref.ToastEnabled,
		pref.DoNotDisturb, pref.WorkHoursStart, pref.WorkHoursEnd,
	).Scan(&pref.UpdatedAt)
}
