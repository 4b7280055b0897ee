package domain

import (
	"time"

	"github.com/google/uuid"
)

// NotificationPreference is keyed by (user, type). A missing row means
// "enabled, no restrictions".
type NotificationPreference struct {
	UserID         uuid.UUID        `json:"user_id" db:"user_id"`
	Type           NotificationType `json:"type" db:"type"`
	Enabled        bool             `json:"enabled" db:"enabled"`
	SoundEnabled   bool             `json:"sound_enabled" db:"sound_enabled"`
	ToastEnabled   bool             `json:"toast_enabled" db:"toast_enabled"`
	DoNotDisturb   bool             `json:"do_not_disturb" db:"do_not_disturb"`
	WorkHoursStart *string          `json:"work_hours_start,omitempty" db:"work_hours_start"`
	WorkHoursEnd   *string          `json:"work_hours_end,omitempty" db:"work_hours_end"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

func DefaultPreference(userID uuid.UUID, t NotificationType) *NotificationPreference {
	return &NotificationPreference{
		UserID:       userID,
		Type:         t,
		Enabled:      true,
		SoundEnabled: true,
		ToastEnabled: true,
	}
}

// AllowsAt reports whether delivery is permitted at the given local time.
// Do-not-disturb with no work window suppresses everything; with a window,
// delivery is allowed inside [start, end) only. Windows may wrap midnight.
func (p *NotificationPreference) AllowsAt(t time.Time) bool {
	if !p.Enabled {
		return false
	}
	if !p.DoNotDisturb {
		return true
	}
	if p.WorkHoursStart == nil || p.WorkHoursEnd == nil {
		return false
	}
	start, err := parseClock(*p.WorkHoursStart)
	if err != nil {
		return false
	}
	end, err := parseClock(*p.WorkHoursEnd)
	if err != nil {
		return false
	}
	now := t.Hour()*60 + t.Minute()
	if start <= end {
		return now >= start && now < end
	}
	return now >= start || now < end
}

func parseClock(hhmm string) (int, error) {
	t, err := time.Parse("15:04", hhmm)
	if err != nil {
		return 0, err
	}
	return t.Hour()*60 + t.Minute(), nil
}

type PreferenceInput struct {
	Type           NotificationType `json:"type"`
	Enabled        *bool            `json:"enabled,omitempty"`
	SoundEnabled   *bool            `json:"sound_enabled,omitempty"`
	ToastEnabled   *bool            `json:"toast_enabled,omitempty"`
	DoNotDisturb   *bool            `json:"do_not_disturb,omitempty"`
	WorkHoursStart *string          `json:"work_hours_start,omitempty"`
	WorkHoursEnd   *string          `json:"work_hours_end,omitempty"`
}

func (in *PreferenceInput) Validate() error {
	if in.Type == "" {
		return Validation("notification type is required")
	}
	if !in.Type.Valid() {
		return Validation("unknown notification type")
	}
	if in.WorkHoursStart != nil {
		if _, err := parseClock(*in.WorkHoursStart); err != nil {
			return Validation("work_hours_start must be HH:MM")
		}
	}
	if in.WorkHoursEnd != nil {
		if _, err := parseClock(*in.WorkHoursEnd); err != nil {
			return Validation("work_hours_end must be HH:MM")
		}
	}
	return nil
}
