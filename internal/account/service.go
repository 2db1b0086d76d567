// Package account owns user accounts, their monthly upload quota and the
// mock pro upgrade.
package account

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var ErrQuotaExceeded = errors.New("upload quota exceeded")

type Service struct {
	repo   Repository
	quota  int
	period time.Duration
	log    *zap.Logger
	now    func() time.Time
}

func NewService(repo Repository, monthlyUploads int, period time.Duration, log *zap.Logger) *Service {
	return &Service{repo: repo, quota: monthlyUploads, period: period, log: log, now: time.Now}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Account, error) {
	resetAt := s.now().UTC().Add(s.period)
	a := &Account{
		Username:     req.Username,
		Email:        req.Email,
		Role:         RoleUser,
		UploadQuota:  s.quota,
		QuotaResetAt: &resetAt,
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// Resolve loads the account and refills the quota of a non-pro account whose
// period has elapsed.
func (s *Service) Resolve(ctx context.Context, id uuid.UUID) (*Account, error) {
	a, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a.IsPro {
		return a, nil
	}

	now := s.now().UTC()
	if a.QuotaResetAt == nil || now.After(*a.QuotaResetAt) {
		resetAt := now.Add(s.period)
		if err := s.repo.ResetQuota(ctx, a.ID, s.quota, resetAt); err != nil {
			return nil, fmt.Errorf("reset quota: %w", err)
		}
		s.log.Info("upload quota reset", zap.String("account_id", a.ID.String()), zap.Int("quota", s.quota))
		a.UploadQuota = s.quota
		a.QuotaResetAt = &resetAt
	}
	return a, nil
}

// ConsumeUpload takes one upload from the account. Pro accounts are not
// metered.
func (s *Service) ConsumeUpload(ctx context.Context, a *Account) error {
	if a.IsPro {
		return nil
	}
	ok, err := s.repo.DecrementQuota(ctx, a.ID)
	if err != nil {
		return fmt.Errorf("decrement quota: %w", err)
	}
	if !ok {
		return ErrQuotaExceeded
	}
	a.UploadQuota--
	return nil
}

func (s *Service) Upgrade(ctx context.Context, id uuid.UUID) (*Account, error) {
	txnID := uuid.New()
	if err := s.repo.Upgrade(ctx, id, txnID); err != nil {
		return nil, err
	}
	s.log.Info("account upgraded", zap.String("account_id", id.String()), zap.String("txn_id", txnID.String()))
	return s.repo.GetByID(ctx, id)
}
