package repository

import (
	"github.com/jmoiron/sqlx"
)

type Repositories struct {
	Notification    NotificationRepository
	NotificationLog NotificationLogRepository
	Preference      PreferenceRepository
	User            UserRepository
}

func NewRepositories(db *sqlx.DB) *Repositories {
	return &Repositories{
		Notification:    NewNotificationRepository(db),
		NotificationLog: NewNotificationLogRepository(db),
		Preference:      NewPreferenceRepository(db),
		User:            NewUserRepository(db),
	}
}
