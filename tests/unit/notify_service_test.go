package unit_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"clinic-notify/internal/config"
	"clinic-notify/internal/domain"
	"clinic-notify/internal/repository"
	"clinic-notify/internal/service/notify"
	"clinic-notify/tests/mocks"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
)

type fixture struct {
	svc      notify.Service
	store    *mocks.NotificationStore
	logs     *mocks.NotificationLogStore
	prefs    *mocks.PreferenceRepository
	users    *mocks.UserRepository
	registry *mocks.Registry
	clock    *mocks.Clock
	email    *mocks.EmailService
}

func newFixture() *fixture {
	return newFixtureWithRepo(nil)
}

// newFixtureWithRepo lets a test wrap or replace the in-memory notification
// store, for interleaving writes mid-flow or for pure call-sequence mocks.
func newFixtureWithRepo(repo func(store *mocks.NotificationStore) repository.NotificationRepository) *fixture {
	f := &fixture{
		store:    mocks.NewNotificationStore(),
		logs:     mocks.NewNotificationLogStore(),
		prefs:    new(mocks.PreferenceRepository),
		users:    new(mocks.UserRepository),
		registry: mocks.NewRegistry(),
		clock:    mocks.NewClock(time.Now()),
		email:    new(mocks.EmailService),
	}

	cfg := &config.Config{
		AckTimeoutCritical: 30 * time.Second,
		AckTimeoutHigh:     60 * time.Second,
		MaxRetries:         3,
		MetricsWindow:      64,
		PushWriteTimeout:   time.Second,
		StoreTimeout:       time.Second,
	}
	var notifRepo repository.NotificationRepository = f.store
	if repo != nil {
		notifRepo = repo(f.store)
	}
	repos := &repository.Repositories{
		Notification:    notifRepo,
		NotificationLog: f.logs,
		Preference:      f.prefs,
		User:            f.users,
	}

	f.svc = notify.NewService(repos, f.registry, f.email, nil, nil, cfg, zap.NewNop())
	f.svc.SetClock(f.clock)
	f.svc.SetDispatcher(notify.SyncDispatcher())
	return f
}

// allowAllPrefs makes every preference lookup miss, which the router treats
// as default-allow.
func (f *fixture) allowAllPrefs() {
	f.prefs.On("Get", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, sql.ErrNoRows).Maybe()
}

func TestSend_DeliversToOnlineUser(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	f.registry.SetOnline(userID, true)

	result, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifPaymentCreated,
		Message: "Payment of Rp500.000 received",
		Data:    map[string]any{"payment_id": "pay-42"},
	})

	assert.NoError(t, err)
	assert.True(t, result.Delivered)
	assert.NotEqual(t, uuid.Nil, result.NotificationID)
	assert.NotEmpty(t, result.EventID)

	pushed := f.registry.Pushed(userID)
	if assert.Len(t, pushed, 1) {
		assert.Equal(t, domain.NotifPaymentCreated, pushed[0].Type)
		assert.Equal(t, domain.PriorityNormal, pushed[0].Priority)
		assert.Equal(t, "Payment received", pushed[0].Title)
		assert.Equal(t, "/payments/pay-42", pushed[0].ActionURL)
		assert.Equal(t, domain.PayloadVersion, pushed[0].Version)
		assert.False(t, pushed[0].RequiresAck)
	}

	stored, ok := f.store.Snapshot(result.NotificationID)
	assert.True(t, ok)
	assert.True(t, stored.Delivered)
	assert.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, 1, f.logs.CountEvent(domain.LogSent))
	assert.Equal(t, 1, f.logs.CountEvent(domain.LogDelivered))
	// Normal priority never arms an acknowledgement timer
	assert.Equal(t, 0, f.clock.PendingTimers())
}

func TestSend_QueuesForOfflineUser(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	userID := uuid.New()
	result, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifXrayReady,
		Message: "Panoramic ready for patient Sari",
	})

	assert.NoError(t, err)
	assert.False(t, result.Delivered)
	assert.Equal(t, 0, f.registry.PushCount(userID))
	// no timer until the first successful delivery
	assert.Equal(t, 0, f.clock.PendingTimers())

	stored, ok := f.store.Snapshot(result.NotificationID)
	assert.True(t, ok)
	assert.False(t, stored.Delivered)
	assert.Equal(t, domain.PriorityCritical, stored.Priority)
	assert.True(t, stored.RequiresAck)
	assert.Equal(t, 0, f.logs.CountEvent(domain.LogDelivered))
}

func TestSend_FailedPushFallsBackToQueue(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	userID := uuid.New()
	f.registry.SetOnline(userID, true)
	f.registry.Reject = true

	result, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifTreatmentCompleted,
		Message: "Scaling completed",
	})

	assert.NoError(t, err)
	assert.False(t, result.Delivered)

	stored, _ := f.store.Snapshot(result.NotificationID)
	assert.False(t, stored.Delivered)
}

func TestSend_DuplicateEventID(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	f.registry.SetOnline(userID, true)

	req := domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifAppointmentCreated,
		Message: "Appointment on Friday 09:00",
		EventID: "appt-created-7f3a",
	}

	first, err := f.svc.Send(ctx, domain.SystemActor, req)
	assert.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := f.svc.Send(ctx, domain.SystemActor, req)
	assert.NoError(t, err)
	assert.True(t, second.Duplicate)
	assert.Equal(t, first.NotificationID, second.NotificationID)

	assert.Len(t, f.store.ForUser(userID), 1)
	assert.Equal(t, 1, f.registry.PushCount(userID))
	assert.Equal(t, 1, f.logs.CountEvent(domain.LogSent))
}

func TestSend_PreferenceSuppression(t *testing.T) {
	f := newFixture()

	userID := uuid.New()
	f.registry.SetOnline(userID, true)

	disabled := domain.DefaultPreference(userID, domain.NotifPaymentUpdated)
	disabled.Enabled = false
	f.prefs.On("Get", mock.Anything, userID, domain.NotifPaymentUpdated).
		Return(disabled, nil).Once()

	result, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifPaymentUpdated,
		Message: "Payment adjusted",
	})

	assert.NoError(t, err)
	assert.True(t, result.Skipped)
	assert.Empty(t, f.store.ForUser(userID))
	assert.Equal(t, 0, f.registry.PushCount(userID))
	f.prefs.AssertExpectations(t)
}

func TestSend_Authorization(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	target := uuid.New()
	req := domain.SendRequest{
		UserID:  target,
		Type:    domain.NotifPaymentCreated,
		Message: "Payment received",
	}

	t.Run("ReceptionistCannotNotifyOthers", func(t *testing.T) {
		actor := domain.Actor{ID: uuid.New(), Role: domain.RoleReceptionist}
		_, err := f.svc.Send(context.Background(), actor, req)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("SelfNotifyAllowed", func(t *testing.T) {
		actor := domain.Actor{ID: target, Role: domain.RoleDoctor}
		result, err := f.svc.Send(context.Background(), actor, req)
		assert.NoError(t, err)
		assert.False(t, result.Skipped)
	})

	t.Run("AdminAllowed", func(t *testing.T) {
		actor := domain.Actor{ID: uuid.New(), Role: domain.RoleAdmin}
		other := req
		other.EventID = "admin-send-1"
		_, err := f.svc.Send(context.Background(), actor, other)
		assert.NoError(t, err)
	})
}

func TestSend_Validation(t *testing.T) {
	f := newFixture()

	t.Run("MissingMessage", func(t *testing.T) {
		_, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
			UserID: uuid.New(),
			Type:   domain.NotifXrayReady,
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
			UserID:  uuid.New(),
			Type:    "SOMETHING_ELSE",
			Message: "hello",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})

	t.Run("MissingUser", func(t *testing.T) {
		_, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
			Type:    domain.NotifXrayReady,
			Message: "hello",
		})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}

func TestSend_CallerOverrides(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	userID := uuid.New()
	low := domain.PriorityLow
	noAck := false
	result, err := f.svc.Send(context.Background(), domain.SystemActor, domain.SendRequest{
		UserID:      userID,
		Type:        domain.NotifXrayReady,
		Message:     "FYI only",
		Priority:    &low,
		RequiresAck: &noAck,
		Title:       "Archived film",
	})

	assert.NoError(t, err)
	stored, _ := f.store.Snapshot(result.NotificationID)
	assert.Equal(t, domain.PriorityLow, stored.Priority)
	assert.False(t, stored.RequiresAck)
	assert.Equal(t, "Archived film", stored.Title)
}

func TestFlushPending_DeliversQueueOnReconnect(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()

	for _, msg := range []string{"first", "second", "third"} {
		_, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
			UserID:  userID,
			Type:    domain.NotifAppointmentCreated,
			Message: msg,
		})
		assert.NoError(t, err)
	}
	assert.Equal(t, 0, f.registry.PushCount(userID))

	f.registry.SetOnline(userID, true)
	assert.NoError(t, f.svc.FlushPending(ctx, userID))

	pushed := f.registry.Pushed(userID)
	if assert.Len(t, pushed, 3) {
		assert.Equal(t, "first", pushed[0].Message)
		assert.Equal(t, "third", pushed[2].Message)
	}
	for _, n := range f.store.ForUser(userID) {
		assert.True(t, n.Delivered)
	}
	assert.Equal(t, 3, f.logs.CountEvent(domain.LogDelivered))

	// second flush finds nothing pending
	assert.NoError(t, f.svc.FlushPending(ctx, userID))
	assert.Equal(t, 3, f.registry.PushCount(userID))
}

func TestAcknowledge(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	f.registry.SetOnline(userID, true)

	result, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifXrayReady,
		Message: "Bitewing ready",
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, f.clock.PendingTimers())

	t.Run("WrongOwner", func(t *testing.T) {
		stranger := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}
		err := f.svc.Acknowledge(ctx, stranger, result.NotificationID)
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("NotFound", func(t *testing.T) {
		owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}
		err := f.svc.Acknowledge(ctx, owner, uuid.New())
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("Success", func(t *testing.T) {
		owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}
		assert.NoError(t, f.svc.Acknowledge(ctx, owner, result.NotificationID))

		stored, _ := f.store.Snapshot(result.NotificationID)
		assert.True(t, stored.Acknowledged)
		assert.NotNil(t, stored.AcknowledgedAt)
		assert.Equal(t, 0, f.clock.PendingTimers())
		assert.Equal(t, 1, f.logs.CountEvent(domain.LogAcknowledged))
	})

	t.Run("Idempotent", func(t *testing.T) {
		owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}
		assert.NoError(t, f.svc.Acknowledge(ctx, owner, result.NotificationID))
		assert.Equal(t, 1, f.logs.CountEvent(domain.LogAcknowledged))
	})
}

func TestAcknowledge_UndeliveredRow(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}

	result, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifXrayReady,
		Message: "Film ready",
	})
	assert.NoError(t, err)
	assert.False(t, result.Delivered)

	// the user found it in the list view and acked without ever being pushed
	assert.NoError(t, f.svc.Acknowledge(ctx, owner, result.NotificationID))

	stored, _ := f.store.Snapshot(result.NotificationID)
	assert.True(t, stored.Acknowledged)
	assert.True(t, stored.Delivered)
	assert.NotNil(t, stored.DeliveredAt)
	assert.Equal(t, 1, f.logs.CountEvent(domain.LogDelivered))

	report, err := f.svc.Metrics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), report.Live.TotalDelivered)
	assert.Equal(t, uint64(1), report.Live.TotalAcknowledged)

	// reconnecting later must not re-push the acknowledged row
	f.registry.SetOnline(userID, true)
	assert.NoError(t, f.svc.FlushPending(ctx, userID))
	assert.Equal(t, 0, f.registry.PushCount(userID))
}

func TestSend_PersistenceFailure(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	f.registry.SetOnline(userID, true)
	f.store.CreateErr = errors.New("connection refused")

	_, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifPaymentCreated,
		Message: "Payment received",
	})

	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, f.registry.PushCount(userID))
	assert.Empty(t, f.store.ForUser(userID))

	entries := f.logs.Entries()
	var failed []domain.NotificationLog
	for _, e := range entries {
		if e.Event == domain.LogFailed {
			failed = append(failed, e)
		}
	}
	if assert.Len(t, failed, 1) {
		assert.Nil(t, failed[0].NotificationID)
		var meta map[string]any
		assert.NoError(t, json.Unmarshal(failed[0].Metadata, &meta))
		assert.Contains(t, meta["error"], "connection refused")
	}

	report, err := f.svc.Metrics(ctx)
	assert.NoError(t, err)
	assert.Equal(t, uint64(1), report.Live.TotalFailed)
	assert.Equal(t, uint64(0), report.Live.TotalSent)
}

func TestList_StoreErrorPropagates(t *testing.T) {
	mockRepo := new(mocks.NotificationRepository)
	f := newFixtureWithRepo(func(*mocks.NotificationStore) repository.NotificationRepository {
		return mockRepo
	})

	ctx := context.Background()
	owner := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}

	mockRepo.On("ListByUser", ctx, owner.ID, mock.Anything).
		Return(nil, int64(0), errors.New("query timeout")).Once()
	_, _, err := f.svc.List(ctx, owner, domain.NotificationFilter{})
	assert.Error(t, err)

	mockRepo.On("CountUnread", ctx, owner.ID).
		Return(int64(0), errors.New("query timeout")).Once()
	_, err = f.svc.UnreadCount(ctx, owner)
	assert.Error(t, err)

	mockRepo.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	owner := domain.Actor{ID: userID, Role: domain.RoleAssistant}

	result, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifPaymentCreated,
		Message: "Payment received",
	})
	assert.NoError(t, err)

	assert.NoError(t, f.svc.MarkRead(ctx, owner, result.NotificationID))
	stored, _ := f.store.Snapshot(result.NotificationID)
	assert.True(t, stored.IsRead)

	// repeated reads stay silent
	assert.NoError(t, f.svc.MarkRead(ctx, owner, result.NotificationID))
	assert.Equal(t, 1, f.logs.CountEvent(domain.LogRead))

	stranger := domain.Actor{ID: uuid.New(), Role: domain.RoleDoctor}
	assert.ErrorIs(t, f.svc.MarkRead(ctx, stranger, result.NotificationID), domain.ErrUnauthorized)
}

func TestMarkAllReadAndUnreadCount(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}

	for i := 0; i < 3; i++ {
		_, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
			UserID:  userID,
			Type:    domain.NotifTreatmentCompleted,
			Message: "done",
		})
		assert.NoError(t, err)
	}

	count, err := f.svc.UnreadCount(ctx, owner)
	assert.NoError(t, err)
	assert.Equal(t, int64(3), count)

	assert.NoError(t, f.svc.MarkAllRead(ctx, owner))

	count, err = f.svc.UnreadCount(ctx, owner)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), count)

	// the bulk entry has no notification id
	entries := f.logs.Entries()
	var bulk int
	for _, e := range entries {
		if e.Event == domain.LogRead && e.NotificationID == nil {
			bulk++
		}
	}
	assert.Equal(t, 1, bulk)
}

func TestList_FiltersAndPayloadShape(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}

	critical, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifXrayReady,
		Message: "ready",
	})
	assert.NoError(t, err)
	_, err = f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifPaymentCreated,
		Message: "paid",
	})
	assert.NoError(t, err)

	all, total, err := f.svc.List(ctx, owner, domain.NotificationFilter{})
	assert.NoError(t, err)
	assert.Equal(t, int64(2), total)
	assert.Len(t, all, 2)

	prio := domain.PriorityCritical
	filtered, total, err := f.svc.List(ctx, owner, domain.NotificationFilter{Priority: &prio})
	assert.NoError(t, err)
	assert.Equal(t, int64(1), total)
	if assert.Len(t, filtered, 1) {
		assert.Equal(t, critical.NotificationID, filtered[0].ID)
		assert.Equal(t, domain.PayloadVersion, filtered[0].Version)
	}
}

func TestMetricsReport(t *testing.T) {
	f := newFixture()
	f.allowAllPrefs()

	ctx := context.Background()
	userID := uuid.New()
	owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}
	f.registry.SetOnline(userID, true)

	result, err := f.svc.Send(ctx, domain.SystemActor, domain.SendRequest{
		UserID:  userID,
		Type:    domain.NotifPaymentCreated,
		Message: "paid",
	})
	assert.NoError(t, err)
	assert.NoError(t, f.svc.MarkRead(ctx, owner, result.NotificationID))

	report, err := f.svc.Metrics(ctx)
	assert.NoError(t, err)

	assert.Equal(t, uint64(1), report.Live.TotalSent)
	assert.Equal(t, uint64(1), report.Live.TotalDelivered)
	assert.Equal(t, uint64(1), report.Live.TotalRead)
	assert.Equal(t, float64(100), report.Live.DeliveredRate)

	assert.Equal(t, int64(1), report.Last24h.Counts[domain.LogSent])
	assert.Equal(t, int64(1), report.Last24h.Counts[domain.LogDelivered])
	assert.Equal(t, int64(1), report.Last24h.Counts[domain.LogRead])
	assert.Equal(t, float64(100), report.Last24h.DeliveredRate)
}

func TestPreferences(t *testing.T) {
	f := newFixture()

	userID := uuid.New()
	owner := domain.Actor{ID: userID, Role: domain.RoleDoctor}
	ctx := context.Background()

	t.Run("ListFillsDefaults", func(t *testing.T) {
		stored := *domain.DefaultPreference(userID, domain.NotifXrayReady)
		stored.SoundEnabled = false
		f.prefs.On("ListByUser", ctx, userID).
			Return([]domain.NotificationPreference{stored}, nil).Once()

		prefs, err := f.svc.ListPreferences(ctx, owner)
		assert.NoError(t, err)
		// one stored row plus a default for every other type
		assert.Len(t, prefs, 10)

		byType := make(map[domain.NotificationType]domain.NotificationPreference)
		for _, p := range prefs {
			byType[p.Type] = p
		}
		assert.False(t, byType[domain.NotifXrayReady].SoundEnabled)
		assert.True(t, byType[domain.NotifPaymentCreated].SoundEnabled)
	})

	t.Run("UpdateMergesPartialInput", func(t *testing.T) {
		f.prefs.On("Get", ctx, userID, domain.NotifPaymentCreated).
			Return(nil, sql.ErrNoRows).Once()
		f.prefs.On("Upsert", ctx, mock.MatchedBy(func(p *domain.NotificationPreference) bool {
			return p.UserID == userID && p.DoNotDisturb && p.Enabled &&
				p.WorkHoursStart != nil && *p.WorkHoursStart == "08:00"
		})).Return(nil).Once()

		dnd := true
		start, end := "08:00", "17:00"
		pref, err := f.svc.UpdatePreference(ctx, owner, domain.PreferenceInput{
			Type:           domain.NotifPaymentCreated,
			DoNotDisturb:   &dnd,
			WorkHoursStart: &start,
			WorkHoursEnd:   &end,
		})
		assert.NoError(t, err)
		assert.True(t, pref.DoNotDisturb)
		f.prefs.AssertExpectations(t)
	})

	t.Run("UpdateRejectsMissingType", func(t *testing.T) {
		_, err := f.svc.UpdatePreference(ctx, owner, domain.PreferenceInput{})
		assert.ErrorIs(t, err, domain.ErrValidation)
	})
}
