// Package hold implements the quote hold lifecycle. A hold is created
// PENDING and moves exactly once, to COMMITTED or CANCELED.
package hold

import (
	"context"
	"time"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
	"loyalty/internal/repositories"

	"github.com/pkg/errors"
)

// CanTransition reports whether h may move to status to.
func CanTransition(h *models.Hold, to models.HoldStatus) bool {
	if h.IsTerminal() {
		return false
	}
	return to == models.HoldStatusCommitted || to == models.HoldStatusCanceled
}

type Service struct {
	repo repositories.LedgerRepository
	now  func() time.Time
}

func NewService(repo repositories.LedgerRepository) *Service {
	if repo == nil {
		panic("repo is required")
	}
	return &Service{repo: repo, now: time.Now}
}

// Create stores a new PENDING hold.
func (s *Service) Create(ctx context.Context, h *models.Hold) error {
	h.Status = models.HoldStatusPending
	h.CommittedAt = nil
	h.CanceledAt = nil
	return s.repo.CreateHold(ctx, h)
}

func (s *Service) Get(ctx context.Context, merchantID, holdID string) (*models.Hold, error) {
	return s.repo.GetHold(ctx, merchantID, holdID)
}

// FindByQrJti returns the hold backed by a QR token, or nil.
func (s *Service) FindByQrJti(ctx context.Context, jti string) (*models.Hold, error) {
	h, err := s.repo.GetHoldByQrJti(ctx, jti)
	if errors.Is(err, apperrors.ErrHoldNotFound) {
		return nil, nil
	}
	return h, err
}

// Cancel moves a PENDING hold to CANCELED. The wallet is untouched since a
// hold never moves points before commit.
func (s *Service) Cancel(ctx context.Context, merchantID, holdID string) (*models.Hold, error) {
	ok, err := s.repo.TransitionHold(ctx, merchantID, holdID, models.HoldStatusCanceled, s.now())
	if err != nil {
		return nil, err
	}
	h, err := s.repo.GetHold(ctx, merchantID, holdID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return h, apperrors.ErrHoldNotPending.WithDetail("hold %s is %s", holdID, h.Status)
	}
	return h, nil
}

// MarkCommitted moves the hold to COMMITTED inside tx. It returns false when
// the hold was no longer PENDING, i.e. a concurrent commit or cancel won.
func (s *Service) MarkCommitted(ctx context.Context, tx repositories.LedgerRepository, h *models.Hold) (bool, error) {
	now := s.now()
	ok, err := tx.TransitionHold(ctx, h.MerchantID, h.ID, models.HoldStatusCommitted, now)
	if err != nil || !ok {
		return false, err
	}
	h.Status = models.HoldStatusCommitted
	h.CommittedAt = &now
	return true, nil
}
