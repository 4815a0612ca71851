package onboarding

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

var (
	// ErrNotFound means the user has no onboarding record yet. Clients treat it as "start fresh".
	ErrNotFound = errors.New("onboarding not found")

	// ErrAlreadyCompleted rejects changes to a submitted onboarding.
	ErrAlreadyCompleted = errors.New("onboarding already completed")

	// ErrEmptyRequest rejects a save that carries no section.
	ErrEmptyRequest = errors.New("request carries no onboarding section")

	// ErrInvalidApproval rejects unknown approval values.
	ErrInvalidApproval = errors.New("invalid approval status")
)

// Notifier is told when a completed onboarding gets a review outcome.
type Notifier interface {
	ApprovalChanged(userID string, approval ApprovalStatus)
}

// Service implements the onboarding record contract the wizard talks to.
type Service struct {
	repo     Repository
	notifier Notifier
	logger   *zap.Logger
}

// NewService creates a new onboarding service
func NewService(repo Repository, logger *zap.Logger) *Service {
	return &Service{
		repo:   repo,
		logger: logger,
	}
}

// SetNotifier installs the receiver of approval changes. Nil disables it.
func (s *Service) SetNotifier(n Notifier) {
	s.notifier = n
}

// GetExisting returns the user's onboarding snapshot or ErrNotFound.
func (s *Service) GetExisting(ctx context.Context, userID string) (*Snapshot, error) {
	rec, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrNotFound
	}
	return rec.Snapshot(), nil
}

// Save applies an incremental section save or, when CompleteOnboarding is
// set, the final submission. Section saves are idempotent upserts.
func (s *Service) Save(ctx context.Context, userID string, req *SaveRequest) (*Snapshot, error) {
	existing, err := s.repo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if existing != nil && existing.Status == StatusCompleted {
		return nil, ErrAlreadyCompleted
	}

	if req.CompleteOnboarding {
		if err := s.complete(ctx, userID, req); err != nil {
			return nil, err
		}
	} else if err := s.saveSections(ctx, userID, existing, req); err != nil {
		return nil, err
	}

	return s.GetExisting(ctx, userID)
}

func (s *Service) complete(ctx context.Context, userID string, req *SaveRequest) error {
	payload := CompletePayload{
		BusinessInformation:  deref(req.BusinessInformation),
		AssistantGoals:       deref(req.AssistantGoals),
		AssistantInformation: deref(req.AssistantInformation),
	}
	if err := ValidateComplete(payload); err != nil {
		return err
	}
	if err := s.repo.Complete(ctx, userID, payload); err != nil {
		return err
	}

	s.logger.Info("Onboarding completed", zap.String("user_id", userID))
	return nil
}

func (s *Service) saveSections(ctx context.Context, userID string, existing *Record, req *SaveRequest) error {
	if req.BusinessInformation == nil && req.AssistantGoals == nil && req.AssistantInformation == nil {
		return ErrEmptyRequest
	}

	status := StatusPending
	hasBusiness := false
	if existing != nil {
		status = existing.Status
		hasBusiness = existing.Business != nil
	}

	if req.BusinessInformation != nil {
		if err := ValidateBusiness(*req.BusinessInformation); err != nil {
			return err
		}
		status = status.Max(StatusStep2)
		if err := s.repo.SaveSection(ctx, userID, SectionBusiness, req.BusinessInformation, status); err != nil {
			return err
		}
		hasBusiness = true
	}

	if req.AssistantGoals != nil {
		if err := ValidateGoals(*req.AssistantGoals); err != nil {
			return err
		}
		if hasBusiness {
			status = status.Max(StatusStep3)
		}
		goals := *req.AssistantGoals
		goals.StatusOnboarding = ""
		if err := s.repo.SaveSection(ctx, userID, SectionGoals, goals, status); err != nil {
			return err
		}
	}

	if req.AssistantInformation != nil {
		if err := ValidateInteraction(*req.AssistantInformation); err != nil {
			return err
		}
		info := *req.AssistantInformation
		info.StatusOnboarding = ""
		if err := s.repo.SaveSection(ctx, userID, SectionInteraction, info, status); err != nil {
			return err
		}
	}

	s.logger.Debug("Onboarding sections saved",
		zap.String("user_id", userID),
		zap.String("status", string(status)))
	return nil
}

// SetApproval records the review outcome of a completed onboarding.
func (s *Service) SetApproval(ctx context.Context, userID string, approval ApprovalStatus) error {
	switch approval {
	case ApprovalPending, ApprovalApproved, ApprovalRejected:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidApproval, approval)
	}
	if err := s.repo.SetApproval(ctx, userID, approval); err != nil {
		return err
	}

	s.logger.Info("Onboarding approval updated",
		zap.String("user_id", userID),
		zap.String("approval_status", string(approval)))
	if s.notifier != nil {
		s.notifier.ApprovalChanged(userID, approval)
	}
	return nil
}
