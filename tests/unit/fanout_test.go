package unit_test

import (
	"context"
	"database/sql"
	"testing"

	"clinic-notify/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestNotifyRole(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("DeliversToEveryDoctor", func(t *testing.T) {
		f := newFixture()
		f.allowAllPrefs()

		doctors := []domain.User{
			{ID: uuid.New(), Role: domain.RoleDoctor},
			{ID: uuid.New(), Role: domain.RoleDoctor},
		}
		f.users.On("ListByRole", ctx, domain.RoleDoctor, (*uuid.UUID)(nil)).
			Return(doctors, nil).Once()

		count, err := f.svc.NotifyRole(ctx, admin, domain.RoleDoctor, nil, domain.SendRequest{
			Type:    domain.NotifXrayReady,
			Message: "New film awaiting review",
		})

		assert.NoError(t, err)
		assert.Equal(t, 2, count)
		for _, doctor := range doctors {
			rows := f.store.ForUser(doctor.ID)
			if assert.Len(t, rows, 1) {
				assert.Equal(t, domain.NotifXrayReady, rows[0].Type)
			}
		}
		f.users.AssertExpectations(t)
	})

	t.Run("PerRecipientEventIDs", func(t *testing.T) {
		f := newFixture()
		f.allowAllPrefs()

		a, b := uuid.New(), uuid.New()
		f.users.On("ListByRole", ctx, domain.RoleDoctor, (*uuid.UUID)(nil)).
			Return([]domain.User{{ID: a}, {ID: b}}, nil).Once()

		_, err := f.svc.NotifyRole(ctx, admin, domain.RoleDoctor, nil, domain.SendRequest{
			Type:    domain.NotifAppointmentCreated,
			Message: "schedule changed",
		})
		assert.NoError(t, err)

		rowsA, rowsB := f.store.ForUser(a), f.store.ForUser(b)
		if assert.Len(t, rowsA, 1) && assert.Len(t, rowsB, 1) {
			assert.NotEqual(t, rowsA[0].EventID, rowsB[0].EventID)
		}
	})

	t.Run("PinnedEventIDCollapses", func(t *testing.T) {
		f := newFixture()
		f.allowAllPrefs()

		a, b := uuid.New(), uuid.New()
		f.users.On("ListByRole", ctx, domain.RoleDoctor, (*uuid.UUID)(nil)).
			Return([]domain.User{{ID: a}, {ID: b}}, nil).Once()

		count, err := f.svc.NotifyRole(ctx, admin, domain.RoleDoctor, nil, domain.SendRequest{
			Type:    domain.NotifAppointmentCreated,
			Message: "schedule changed",
			EventID: "shared-key",
		})
		assert.NoError(t, err)
		// the shared idempotency key lets exactly one copy through
		assert.Equal(t, 1, count)
		assert.Equal(t, 1, len(f.store.ForUser(a))+len(f.store.ForUser(b)))
	})

	t.Run("SuppressedRecipientDoesNotAbortTheRest", func(t *testing.T) {
		f := newFixture()

		a, b := uuid.New(), uuid.New()
		muted := domain.DefaultPreference(a, domain.NotifPaymentCreated)
		muted.Enabled = false
		f.prefs.On("Get", mock.Anything, a, domain.NotifPaymentCreated).
			Return(muted, nil).Once()
		f.prefs.On("Get", mock.Anything, b, domain.NotifPaymentCreated).
			Return(nil, sql.ErrNoRows).Once()

		f.users.On("ListByRole", ctx, domain.RoleReceptionist, (*uuid.UUID)(nil)).
			Return([]domain.User{{ID: a}, {ID: b}}, nil).Once()

		count, err := f.svc.NotifyRole(ctx, admin, domain.RoleReceptionist, nil, domain.SendRequest{
			Type:    domain.NotifPaymentCreated,
			Message: "cash drawer reconciled",
		})
		assert.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Empty(t, f.store.ForUser(a))
		assert.Len(t, f.store.ForUser(b), 1)
	})

	t.Run("RequiresPrivilegedCaller", func(t *testing.T) {
		f := newFixture()

		doctor := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}
		_, err := f.svc.NotifyRole(ctx, doctor, domain.RoleAssistant, nil, domain.SendRequest{
			Type:    domain.NotifPaymentCreated,
			Message: "hello",
		})
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("RequiresRole", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.NotifyRole(ctx, admin, "", nil, domain.SendRequest{
			Type:    domain.NotifPaymentCreated,
			Message: "hello",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestNotifyBranch(t *testing.T) {
	ctx := context.Background()
	admin := domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}

	t.Run("DeliversToBranchStaff", func(t *testing.T) {
		f := newFixture()
		f.allowAllPrefs()

		branchID := uuid.New()
		staff := []domain.User{
			{ID: uuid.New(), Role: domain.RoleDoctor},
			{ID: uuid.New(), Role: domain.RoleAssistant},
			{ID: uuid.New(), Role: domain.RoleReceptionist},
		}
		f.users.On("ListByBranch", ctx, branchID).Return(staff, nil).Once()

		count, err := f.svc.NotifyBranch(ctx, admin, branchID, domain.SendRequest{
			Type:    domain.NotifDetailedBillingEnabled,
			Message: "Itemized billing is now active",
		})

		assert.NoError(t, err)
		assert.Equal(t, 3, count)
		f.users.AssertExpectations(t)
	})

	t.Run("RequiresBranch", func(t *testing.T) {
		f := newFixture()

		_, err := f.svc.NotifyBranch(ctx, admin, uuid.Nil, domain.SendRequest{
			Type:    domain.NotifPaymentCreated,
			Message: "hello",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
