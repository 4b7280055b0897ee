package mocks

import (
	"context"

	"clinic-notify/internal/domain"

	"github.com/stretchr/testify/mock"
)

type EmailService struct {
	mock.Mock
}

func (m *EmailService) SendEscalationEmail(ctx context.Context, toEmail, adminName, staffName string, notif *domain.Notification) error {
	args := m.Called(ctx, toEmail, adminName, staffName, notif)
	return args.Error(0)
}
