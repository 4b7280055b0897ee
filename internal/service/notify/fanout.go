package notify

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"clinic-notify/internal/domain"
)

// NotifyRole delivers one logical event to every active user holding the
// role, optionally scoped to a branch. Each recipient gets their own row and
// their own event id unless the caller pinned one, in which case all copies
// collapse under the shared idempotency key.
func (s *service) NotifyRole(ctx context.Context, actor domain.Actor, role string, branchID *uuid.UUID, req domain.SendRequest) (int, error) {
	if role == "" {
		return 0, domain.Validation("role is required")
	}
	if err := s.authorizeFanout(actor); err != nil {
		return 0, err
	}

	recipients, err := s.userRepo.ListByRole(ctx, role, branchID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve role cohort: %w", err)
	}
	return s.fanout(ctx, recipients, req), nil
}

// NotifyBranch delivers to every active user in a branch.
func (s *service) NotifyBranch(ctx context.Context, actor domain.Actor, branchID uuid.UUID, req domain.SendRequest) (int, error) {
	if branchID == uuid.Nil {
		return 0, domain.Validation("branch_id is required")
	}
	if err := s.authorizeFanout(actor); err != nil {
		return 0, err
	}

	recipients, err := s.userRepo.ListByBranch(ctx, branchID)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve branch cohort: %w", err)
	}
	return s.fanout(ctx, recipients, req), nil
}

func (s *service) authorizeFanout(actor domain.Actor) error {
	if actor.IsSystem() || actor.IsAdmin() {
		return nil
	}
	return fmt.Errorf("%w: cohort delivery requires an administrator or system caller", domain.ErrUnauthorized)
}

// fanout dispatches per-recipient sends concurrently. One recipient's
// preference block or failure never aborts the rest; skips and errors only
// reduce the returned count.
func (s *service) fanout(ctx context.Context, recipients []domain.User, req domain.SendRequest) int {
	var sent int64
	var wg sync.WaitGroup

	for _, user := range recipients {
		user := user
		wg.Add(1)
		s.dispatch.Go(func() {
			defer wg.Done()

			perReq := req
			perReq.UserID = user.ID

			result, err := s.Send(ctx, domain.SystemActor, perReq)
			if err != nil {
				s.log.Error("fan-out delivery failed",
					zap.String("user_id", user.ID.String()),
					zap.String("type", string(req.Type)),
					zap.Error(err))
				return
			}
			if result.Skipped || result.Duplicate {
				return
			}
			atomic.AddInt64(&sent, 1)
		})
	}
	wg.Wait()

	return int(atomic.LoadInt64(&sent))
}
