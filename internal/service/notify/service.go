package notify

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clinic-notify/internal/config"
	"clinic-notify/internal/domain"
	"clinic-notify/internal/repository"
	"clinic-notify/internal/service/email"
	"clinic-notify/internal/service/xray"
)

// Registry is the live-connection view the router delivers through. The
// websocket hub implements it; tests substitute a fake.
type Registry interface {
	IsOnline(userID uuid.UUID) bool
	Push(ctx context.Context, userID uuid.UUID, payload domain.PushPayload) int
}

type Service interface {
	Send(ctx context.Context, actor domain.Actor, req domain.SendRequest) (*domain.SendResult, error)
	NotifyRole(ctx context.Context, actor domain.Actor, role string, branchID *uuid.UUID, req domain.SendRequest) (int, error)
	NotifyBranch(ctx context.Context, actor domain.Actor, branchID uuid.UUID, req domain.SendRequest) (int, error)

	Acknowledge(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	MarkRead(ctx context.Context, actor domain.Actor, id uuid.UUID) error
	MarkAllRead(ctx context.Context, actor domain.Actor) error

	List(ctx context.Context, actor domain.Actor, filter domain.NotificationFilter) ([]domain.PushPayload, int64, error)
	UnreadCount(ctx context.Context, actor domain.Actor) (int64, error)
	FlushPending(ctx context.Context, userID uuid.UUID) error

	ListPreferences(ctx context.Context, actor domain.Actor) ([]domain.NotificationPreference, error)
	UpdatePreference(ctx context.Context, actor domain.Actor, input domain.PreferenceInput) (*domain.NotificationPreference, error)

	Metrics(ctx context.Context) (*domain.MetricsReport, error)

	SetClock(c Clock)
	SetDispatcher(d Dispatcher)
	Shutdown()
}

type service struct {
	notifRepo repository.NotificationRepository
	logRepo   repository.NotificationLogRepository
	prefRepo  repository.PreferenceRepository
	userRepo  repository.UserRepository

	registry Registry
	emailSvc email.Service
	xraySvc  xray.Service
	redis    *redis.Client

	cfg      *config.Config
	taxonomy *Taxonomy
	metrics  *Recorder
	timers   *timerSet
	clock    Clock
	dispatch Dispatcher
	log      *zap.Logger
}

func NewService(
	repos *repository.Repositories,
	registry Registry,
	emailSvc email.Service,
	xraySvc xray.Service,
	redisClient *redis.Client,
	cfg *config.Config,
	log *zap.Logger,
) Service {
	clock := SystemClock()
	return &service{
		notifRepo: repos.Notification,
		logRepo:   repos.NotificationLog,
		prefRepo:  repos.Preference,
		userRepo:  repos.User,
		registry:  registry,
		emailSvc:  emailSvc,
		xraySvc:   xraySvc,
		redis:     redisClient,
		cfg:       cfg,
		taxonomy:  NewTaxonomy(cfg.AckTimeoutCritical, cfg.AckTimeoutHigh, cfg.MaxRetries),
		metrics:   NewRecorder(cfg.MetricsWindow),
		timers:    newTimerSet(clock),
		clock:     clock,
		dispatch:  AsyncDispatcher(),
		log:       log,
	}
}

// SetClock substitutes the time source before any timer is armed.
func (s *service) SetClock(c Clock) {
	s.clock = c
	s.timers.clock = c
}

func (s *service) SetDispatcher(d Dispatcher) {
	s.dispatch = d
}

func (s *service) Shutdown() {
	s.timers.stopAll()
}

// Send routes one notification through the full gate sequence: authorize,
// preference check, dedup, defaults, persist, live delivery, ack timer.
func (s *service) Send(ctx context.Context, actor domain.Actor, req domain.SendRequest) (*domain.SendResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorizeSend(actor, req.UserID); err != nil {
		return nil, err
	}

	allowed, err := s.preferenceAllows(ctx, req.UserID, req.Type)
	if err != nil {
		return nil, err
	}
	if !allowed {
		return &domain.SendResult{Skipped: true}, nil
	}

	eventID := req.EventID
	if eventID == "" {
		eventID = uuid.NewString()
	}
	if existing, err := s.notifRepo.GetByEventID(ctx, eventID); err == nil {
		return &domain.SendResult{
			NotificationID: existing.ID,
			EventID:        eventID,
			Delivered:      existing.Delivered,
			Duplicate:      true,
		}, nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	notif, err := s.resolve(eventID, req)
	if err != nil {
		return nil, err
	}

	if err := s.notifRepo.Create(ctx, notif); err != nil {
		if repository.IsUniqueViolation(err) {
			// lost the race on event_id; the winner's row is the answer
			existing, ferr := s.notifRepo.GetByEventID(ctx, eventID)
			if ferr != nil {
				return nil, ferr
			}
			return &domain.SendResult{
				NotificationID: existing.ID,
				EventID:        eventID,
				Delivered:      existing.Delivered,
				Duplicate:      true,
			}, nil
		}
		s.metrics.IncFailed()
		s.appendLog(ctx, nil, domain.LogFailed, map[string]any{
			"event_id": eventID,
			"error":    err.Error(),
		})
		return nil, fmt.Errorf("failed to create notification: %w", err)
	}

	s.metrics.IncSent()
	s.appendLog(ctx, &notif.ID, domain.LogSent, map[string]any{
		"type":     notif.Type,
		"priority": notif.Priority,
	})
	s.invalidateUnread(ctx, notif.UserID)

	delivered := s.attemptDelivery(ctx, notif)
	if delivered && notif.RequiresAck {
		s.armAckTimer(notif)
	}

	return &domain.SendResult{
		NotificationID: notif.ID,
		EventID:        eventID,
		Delivered:      delivered,
	}, nil
}

// resolve fills everything the caller left blank from the taxonomy.
func (s *service) resolve(eventID string, req domain.SendRequest) (*domain.Notification, error) {
	priority := s.taxonomy.PriorityOf(req.Type)
	if req.Priority != nil {
		priority = *req.Priority
	}

	title := req.Title
	if title == "" {
		title = s.taxonomy.TitleOf(req.Type)
	}

	actionURL := req.ActionURL
	if actionURL == "" {
		actionURL = s.taxonomy.ActionURLOf(req.Type, req.Data)
	}

	requiresAck := s.taxonomy.RequiresAck(priority)
	if req.RequiresAck != nil {
		requiresAck = *req.RequiresAck
	}

	maxRetries := s.taxonomy.MaxRetriesOf(priority)
	if req.MaxRetries != nil && *req.MaxRetries >= 0 {
		maxRetries = *req.MaxRetries
	}

	var data json.RawMessage
	if req.Data != nil {
		encoded, err := json.Marshal(req.Data)
		if err != nil {
			return nil, domain.Validation("data is not serializable")
		}
		data = encoded
	}

	return &domain.Notification{
		ID:          uuid.New(),
		EventID:     eventID,
		UserID:      req.UserID,
		Type:        req.Type,
		Priority:    priority,
		Title:       title,
		Message:     req.Message,
		Data:        data,
		ActionURL:   actionURL,
		RequiresAck: requiresAck,
		MaxRetries:  maxRetries,
	}, nil
}

func (s *service) authorizeSend(actor domain.Actor, target uuid.UUID) error {
	if actor.IsSystem() || actor.IsAdmin() || actor.ID == target {
		return nil
	}
	return fmt.Errorf("%w: caller may not notify this user", domain.ErrUnauthorized)
}

// preferenceAllows treats a missing row as default-allow. Do-not-disturb
// suppresses outright; it never defers.
func (s *service) preferenceAllows(ctx context.Context, userID uuid.UUID, t domain.NotificationType) (bool, error) {
	pref, err := s.prefRepo.Get(ctx, userID, t)
	if errors.Is(err, sql.ErrNoRows) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return pref.AllowsAt(s.clock.Now()), nil
}

// attemptDelivery pushes to all open channels and records the first
// successful delivery. Transient push failures degrade to "not yet
// delivered"; they never become errors.
func (s *service) attemptDelivery(ctx context.Context, notif *domain.Notification) bool {
	if !s.registry.IsOnline(notif.UserID) {
		return false
	}

	payload := s.buildPayload(ctx, notif)

	pushCtx, cancel := context.WithTimeout(ctx, s.cfg.PushWriteTimeout)
	defer cancel()
	if s.registry.Push(pushCtx, notif.UserID, payload) == 0 {
		return false
	}

	first, err := s.notifRepo.MarkDelivered(ctx, notif.ID)
	if err != nil {
		s.log.Error("delivered push but failed to record it",
			zap.String("notification_id", notif.ID.String()), zap.Error(err))
		return true
	}
	if first {
		now := s.clock.Now()
		latency := now.Sub(notif.CreatedAt)
		notif.Delivered = true
		notif.DeliveredAt = &now
		s.metrics.RecordDelivery(latency)
		s.appendLog(ctx, &notif.ID, domain.LogDelivered, map[string]any{
			"latency_ms": latency.Milliseconds(),
		})
	}
	return true
}

// buildPayload resolves a presigned x-ray image link at push time so the
// recipient can open the film directly from the toast.
func (s *service) buildPayload(ctx context.Context, notif *domain.Notification) domain.PushPayload {
	payload := notif.ToPayload()

	if s.xraySvc == nil || len(notif.Data) == 0 {
		return payload
	}
	if notif.Type != domain.NotifXrayReady && notif.Type != domain.NotifXrayResultSent {
		return payload
	}

	var data map[string]any
	if err := json.Unmarshal(notif.Data, &data); err != nil {
		return payload
	}
	key, ok := data["image_key"].(string)
	if !ok || key == "" {
		return payload
	}

	url, err := s.xraySvc.ImageURL(ctx, key)
	if err != nil {
		s.log.Warn("could not presign x-ray image",
			zap.String("notification_id", notif.ID.String()), zap.Error(err))
		return payload
	}
	data["image_url"] = url
	if encoded, err := json.Marshal(data); err == nil {
		payload.Data = encoded
	}
	return payload
}

func (s *service) armAckTimer(notif *domain.Notification) {
	timeout := s.taxonomy.AckTimeout(notif.Priority)
	if timeout <= 0 {
		return
	}
	id := notif.ID
	s.timers.schedule(id, timeout, func() { s.onAckTimeout(id) })
}

// onAckTimeout drives the retry/escalation side of the state machine. It
// runs on a timer goroutine with its own bounded store context.
func (s *service) onAckTimeout(id uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
	defer cancel()

	notif, err := s.notifRepo.GetByID(ctx, id)
	if err != nil {
		s.log.Error("ack timer fired but notification load failed",
			zap.String("notification_id", id.String()), zap.Error(err))
		return
	}
	if notif.Acknowledged {
		return
	}

	count, ok, err := s.notifRepo.IncrementRetry(ctx, id)
	if err != nil {
		s.log.Error("retry bookkeeping failed",
			zap.String("notification_id", id.String()), zap.Error(err))
		return
	}
	if !ok {
		// retries exhausted (or acknowledged meanwhile); only Critical escalates
		if notif.Priority == domain.PriorityCritical {
			s.escalate(ctx, notif)
		}
		return
	}

	notif.RetryCount = count
	s.appendLog(ctx, &id, domain.LogSent, map[string]any{
		"retry":       count,
		"max_retries": notif.MaxRetries,
	})
	s.attemptDelivery(ctx, notif)
	// keep the clock running until acknowledged or exhausted
	s.armAckTimer(notif)
}

// escalate marks the notification and alerts every administrator in the
// owner's branch through the normal Send path. Nothing here ever propagates
// an error; escalation failures are logged and the flag stands.
func (s *service) escalate(ctx context.Context, notif *domain.Notification) {
	ok, err := s.notifRepo.MarkEscalated(ctx, notif.ID)
	if err != nil {
		s.log.Error("escalation write failed",
			zap.String("notification_id", notif.ID.String()), zap.Error(err))
		return
	}
	if !ok {
		// acknowledge got there first
		return
	}

	s.metrics.IncEscalated()
	s.appendLog(ctx, &notif.ID, domain.LogEscalated, map[string]any{
		"retries": notif.RetryCount,
	})

	owner, err := s.userRepo.GetByID(ctx, notif.UserID)
	if err != nil {
		s.log.Error("escalated but could not load recipient",
			zap.String("notification_id", notif.ID.String()), zap.Error(err))
		return
	}
	admins, err := s.userRepo.ListBranchAdmins(ctx, owner.BranchID)
	if err != nil {
		s.log.Error("escalated but could not resolve administrators",
			zap.String("notification_id", notif.ID.String()), zap.Error(err))
		return
	}

	for _, admin := range admins {
		admin := admin
		s.dispatch.Go(func() {
			actx, cancel := context.WithTimeout(context.Background(), s.cfg.StoreTimeout)
			defer cancel()

			_, err := s.Send(actx, domain.SystemActor, domain.SendRequest{
				UserID:  admin.ID,
				Type:    domain.NotifEscalationAlert,
				Message: fmt.Sprintf("%s has not acknowledged: %s", owner.FullName, notif.Title),
				Data: map[string]any{
					"notification_id": notif.ID.String(),
					"staff_id":        owner.ID.String(),
					"staff_name":      owner.FullName,
				},
			})
			if err != nil {
				s.log.Error("escalation alert failed",
					zap.String("admin_id", admin.ID.String()), zap.Error(err))
			}

			if s.emailSvc != nil && admin.Email != "" {
				if err := s.emailSvc.SendEscalationEmail(actx, admin.Email, admin.FullName, owner.FullName, notif); err != nil {
					s.log.Warn("escalation email failed",
						zap.String("admin_id", admin.ID.String()), zap.Error(err))
				}
			}
		})
	}
}

// FlushPending delivers the offline queue, which is simply the undelivered
// rows, to a user who just reconnected.
func (s *service) FlushPending(ctx context.Context, userID uuid.UUID) error {
	pending, err := s.notifRepo.ListUndelivered(ctx, userID)
	if err != nil {
		return err
	}
	for i := range pending {
		notif := &pending[i]
		if s.attemptDelivery(ctx, notif) && notif.RequiresAck {
			s.armAckTimer(notif)
		}
	}
	return nil
}

func (s *service) Acknowledge(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	notif, err := s.notifRepo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if notif.UserID != actor.ID {
		return fmt.Errorf("%w: notification belongs to another user", domain.ErrUnauthorized)
	}

	// An undelivered row can still be acknowledged from the list view.
	// Delivered is flipped first so acknowledged implies delivered at every
	// point in store order.
	if !notif.Delivered {
		first, err := s.notifRepo.MarkDelivered(ctx, id)
		if err != nil {
			return err
		}
		if first {
			latency := s.clock.Now().Sub(notif.CreatedAt)
			s.metrics.RecordDelivery(latency)
			s.appendLog(ctx, &id, domain.LogDelivered, map[string]any{
				"latency_ms": latency.Milliseconds(),
				"via":        "acknowledge",
			})
		}
	}

	ok, err := s.notifRepo.Acknowledge(ctx, id, actor.ID)
	if err != nil {
		return err
	}
	if !ok {
		// already acknowledged; idempotent
		return nil
	}

	s.timers.cancel(id)
	s.metrics.IncAcknowledged()
	s.appendLog(ctx, &id, domain.LogAcknowledged, nil)
	return nil
}

func (s *service) MarkRead(ctx context.Context, actor domain.Actor, id uuid.UUID) error {
	notif, err := s.notifRepo.GetByID(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if notif.UserID != actor.ID {
		return fmt.Errorf("%w: notification belongs to another user", domain.ErrUnauthorized)
	}

	ok, err := s.notifRepo.MarkRead(ctx, id, actor.ID)
	if err != nil {
		return err
	}
	if ok {
		s.metrics.IncRead()
		s.appendLog(ctx, &id, domain.LogRead, nil)
		s.invalidateUnread(ctx, actor.ID)
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, actor domain.Actor) error {
	count, err := s.notifRepo.MarkAllRead(ctx, actor.ID)
	if err != nil {
		return err
	}
	if count > 0 {
		s.metrics.AddRead(uint64(count))
		s.appendLog(ctx, nil, domain.LogRead, map[string]any{
			"user_id": actor.ID.String(),
			"bulk":    count,
		})
		s.invalidateUnread(ctx, actor.ID)
	}
	return nil
}

func (s *service) List(ctx context.Context, actor domain.Actor, filter domain.NotificationFilter) ([]domain.PushPayload, int64, error) {
	notifications, total, err := s.notifRepo.ListByUser(ctx, actor.ID, filter)
	if err != nil {
		return nil, 0, err
	}
	payloads := make([]domain.PushPayload, 0, len(notifications))
	for i := range notifications {
		payloads = append(payloads, notifications[i].ToPayload())
	}
	return payloads, total, nil
}

func (s *service) UnreadCount(ctx context.Context, actor domain.Actor) (int64, error) {
	key := unreadKey(actor.ID)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, key).Int64(); err == nil {
			return cached, nil
		}
	}

	count, err := s.notifRepo.CountUnread(ctx, actor.ID)
	if err != nil {
		return 0, err
	}
	if s.redis != nil {
		_ = s.redis.Set(ctx, key, count, time.Minute).Err()
	}
	return count, nil
}

func (s *service) ListPreferences(ctx context.Context, actor domain.Actor) ([]domain.NotificationPreference, error) {
	stored, err := s.prefRepo.ListByUser(ctx, actor.ID)
	if err != nil {
		return nil, err
	}

	seen := make(map[domain.NotificationType]bool, len(stored))
	for _, pref := range stored {
		seen[pref.Type] = true
	}
	for _, t := range allNotificationTypes {
		if !seen[t] {
			stored = append(stored, *domain.DefaultPreference(actor.ID, t))
		}
	}
	return stored, nil
}

func (s *service) UpdatePreference(ctx context.Context, actor domain.Actor, input domain.PreferenceInput) (*domain.NotificationPreference, error) {
	if err := input.Validate(); err != nil {
		return nil, err
	}

	pref, err := s.prefRepo.Get(ctx, actor.ID, input.Type)
	if errors.Is(err, sql.ErrNoRows) {
		pref = domain.DefaultPreference(actor.ID, input.Type)
	} else if err != nil {
		return nil, err
	}

	if input.Enabled != nil {
		pref.Enabled = *input.Enabled
	}
	if input.SoundEnabled != nil {
		pref.SoundEnabled = *input.SoundEnabled
	}
	if input.ToastEnabled != nil {
		pref.ToastEnabled = *input.ToastEnabled
	}
	if input.DoNotDisturb != nil {
		pref.DoNotDisturb = *input.DoNotDisturb
	}
	if input.WorkHoursStart != nil {
		pref.WorkHoursStart = input.WorkHoursStart
	}
	if input.WorkHoursEnd != nil {
		pref.WorkHoursEnd = input.WorkHoursEnd
	}

	if err := s.prefRepo.Upsert(ctx, pref); err != nil {
		return nil, err
	}
	return pref, nil
}

func (s *service) Metrics(ctx context.Context) (*domain.MetricsReport, error) {
	since := s.clock.Now().Add(-24 * time.Hour)
	counts, err := s.logRepo.CountsSince(ctx, since)
	if err != nil {
		return nil, err
	}
	return &domain.MetricsReport{
		Live:    s.metrics.Snapshot(),
		Last24h: BuildAggregate(since, counts),
	}, nil
}

// appendLog writes a lifecycle entry best-effort; losing an audit row must
// not fail the delivery path it describes.
func (s *service) appendLog(ctx context.Context, notifID *uuid.UUID, event domain.LogEvent, metadata map[string]any) {
	entry := &domain.NotificationLog{
		ID:             uuid.New(),
		NotificationID: notifID,
		Event:          event,
	}
	if metadata != nil {
		if encoded, err := json.Marshal(metadata); err == nil {
			entry.Metadata = encoded
		}
	}
	if err := s.logRepo.Create(ctx, entry); err != nil {
		s.log.Error("notification log write failed",
			zap.String("event", string(event)), zap.Error(err))
	}
}

func (s *service) invalidateUnread(ctx context.Context, userID uuid.UUID) {
	if s.redis != nil {
		_ = s.redis.Del(ctx, unreadKey(userID)).Err()
	}
}

func unreadKey(userID uuid.UUID) string {
	return "notify:unread:" + userID.String()
}

var allNotificationTypes = []domain.NotificationType{
	domain.NotifAppointmentCreated,
	domain.NotifAppointmentCancelled,
	domain.NotifXrayReady,
	domain.NotifXrayResultSent,
	domain.NotifPaymentCreated,
	domain.NotifPaymentUpdated,
	domain.NotifTreatmentCompleted,
	domain.NotifTreatmentCostUpdated,
	domain.NotifDetailedBillingEnabled,
	domain.NotifEscalationAlert,
}
