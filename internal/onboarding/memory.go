package onboarding

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// memoryRepository keeps rows in process. It mirrors the postgres upsert
// rules and is used for local runs without a database.
type memoryRepository struct {
	mu   sync.Mutex
	rows map[string]*recordRow
	now  func() time.Time
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		rows: make(map[string]*recordRow),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepository) GetByUserID(_ context.Context, userID string) (*Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok {
		return nil, nil
	}
	return row.toRecord()
}

func (r *memoryRepository) SaveSection(_ context.Context, userID string, section Section, payload any, status Status) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", section, err)
	}

	switch section {
	case SectionBusiness, SectionGoals, SectionInteraction:
	default:
		return fmt.Errorf("unknown onboarding section %q", section)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completedLocked(userID) {
		return ErrAlreadyCompleted
	}
	row := r.upsertLocked(userID)
	switch section {
	case SectionBusiness:
		row.BusinessInformation = datatypes.JSON(body)
	case SectionGoals:
		row.AssistantGoals = datatypes.JSON(body)
	case SectionInteraction:
		row.AssistantInformation = datatypes.JSON(body)
	}
	row.Status = string(Status(row.Status).Max(status))
	return nil
}

func (r *memoryRepository) Complete(_ context.Context, userID string, payload CompletePayload) error {
	business, err := json.Marshal(payload.BusinessInformation)
	if err != nil {
		return fmt.Errorf("encode business information: %w", err)
	}
	goals, err := json.Marshal(payload.AssistantGoals)
	if err != nil {
		return fmt.Errorf("encode assistant goals: %w", err)
	}
	info, err := json.Marshal(payload.AssistantInformation)
	if err != nil {
		return fmt.Errorf("encode assistant information: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.completedLocked(userID) {
		return ErrAlreadyCompleted
	}
	row := r.upsertLocked(userID)
	row.BusinessInformation = datatypes.JSON(business)
	row.AssistantGoals = datatypes.JSON(goals)
	row.AssistantInformation = datatypes.JSON(info)
	row.Status = string(StatusCompleted)
	row.ApprovalStatus.String, row.ApprovalStatus.Valid = string(ApprovalPending), true
	completedAt := row.UpdatedAt
	row.CompletedAt = &completedAt
	return nil
}

func (r *memoryRepository) SetApproval(_ context.Context, userID string, approval ApprovalStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[userID]
	if !ok || row.Status != string(StatusCompleted) {
		return ErrNotFound
	}
	row.ApprovalStatus.String, row.ApprovalStatus.Valid = string(approval), true
	row.UpdatedAt = r.now()
	return nil
}

func (r *memoryRepository) completedLocked(userID string) bool {
	row, ok := r.rows[userID]
	return ok && row.Status == string(StatusCompleted)
}

func (r *memoryRepository) upsertLocked(userID string) *recordRow {
	now := r.now()
	row, ok := r.rows[userID]
	if !ok {
		row = &recordRow{
			ID:        uuid.New(),
			UserID:    userID,
			Status:    string(StatusPending),
			CreatedAt: now,
		}
		r.rows[userID] = row
	}
	row.UpdatedAt = now
	return row
}
