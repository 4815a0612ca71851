package onboarding

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"gorm.io/datatypes"
)

// Section names one payload column of an onboarding record.
type Section string

const (
	SectionBusiness    Section = "business_information"
	SectionGoals       Section = "assistant_goals"
	SectionInteraction Section = "assistant_information"
)

// statusRank orders status markers in SQL so upserts never move a record backwards.
const statusRank = `ARRAY['pending_onboarding','step_2','step_3','completed']`

type Repository interface {
	GetByUserID(ctx context.Context, userID string) (*Record, error)
	SaveSection(ctx context.Context, userID string, section Section, payload any, status Status) error
	Complete(ctx context.Context, userID string, payload CompletePayload) error
	SetApproval(ctx context.Context, userID string, approval ApprovalStatus) error
}

// recordRow is the onboarding_records row. The gorm tags drive AutoMigrate.
type recordRow struct {
	ID                   uuid.UUID      `db:"id" gorm:"type:uuid;primaryKey"`
	UserID               string         `db:"user_id" gorm:"not null;uniqueIndex"`
	Status               string         `db:"status" gorm:"not null;default:'pending_onboarding'"`
	ApprovalStatus       sql.NullString `db:"approval_status"`
	BusinessInformation  datatypes.JSON `db:"business_information" gorm:"type:jsonb"`
	AssistantGoals       datatypes.JSON `db:"assistant_goals" gorm:"type:jsonb"`
	AssistantInformation datatypes.JSON `db:"assistant_information" gorm:"type:jsonb"`
	CompletedAt          *time.Time     `db:"completed_at"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func (recordRow) TableName() string { return "onboarding_records" }

type postgresRepository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &postgresRepository{db: db}
}

const selectRecord = `
	SELECT id, user_id, status, approval_status, business_information, assistant_goals,
		assistant_information, completed_at, created_at, updated_at
	FROM onboarding_records WHERE user_id = $1`

func (r *postgresRepository) GetByUserID(ctx context.Context, userID string) (*Record, error) {
	var row recordRow
	err := r.db.GetContext(ctx, &row, selectRecord, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get onboarding record: %w", err)
	}
	return row.toRecord()
}

func (r *postgresRepository) SaveSection(ctx context.Context, userID string, section Section, payload any, status Status) error {
	switch section {
	case SectionBusiness, SectionGoals, SectionInteraction:
	default:
		return fmt.Errorf("unknown onboarding section %q", section)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s: %w", section, err)
	}

	query := fmt.Sprintf(`
		INSERT INTO onboarding_records (id, user_id, status, %[1]s, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			%[1]s = EXCLUDED.%[1]s,
			status = CASE
				WHEN array_position(%[2]s, EXCLUDED.status) > COALESCE(array_position(%[2]s, onboarding_records.status), 0)
				THEN EXCLUDED.status ELSE onboarding_records.status END,
			updated_at = EXCLUDED.updated_at
		WHERE onboarding_records.status <> 'completed'`, section, statusRank)

	res, err := r.db.ExecContext(ctx, query, uuid.New(), userID, string(status), datatypes.JSON(body), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save %s: %w", section, err)
	}
	return requireWritten(res, "save "+string(section))
}

func (r *postgresRepository) Complete(ctx context.Context, userID string, payload CompletePayload) error {
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

	query := `
		INSERT INTO onboarding_records (
			id, user_id, status, approval_status, business_information, assistant_goals,
			assistant_information, completed_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			status = EXCLUDED.status,
			approval_status = EXCLUDED.approval_status,
			business_information = EXCLUDED.business_information,
			assistant_goals = EXCLUDED.assistant_goals,
			assistant_information = EXCLUDED.assistant_information,
			completed_at = EXCLUDED.completed_at,
			updated_at = EXCLUDED.updated_at
		WHERE onboarding_records.status <> 'completed'`

	res, err := r.db.ExecContext(ctx, query,
		uuid.New(), userID, string(StatusCompleted), string(ApprovalPending),
		datatypes.JSON(business), datatypes.JSON(goals), datatypes.JSON(info), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("complete onboarding: %w", err)
	}
	return requireWritten(res, "complete onboarding")
}

// requireWritten maps an upsert skipped by the completed-record guard to
// ErrAlreadyCompleted.
func requireWritten(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return ErrAlreadyCompleted
	}
	return nil
}

func (r *postgresRepository) SetApproval(ctx context.Context, userID string, approval ApprovalStatus) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE onboarding_records SET approval_status = $1, updated_at = $2 WHERE user_id = $3 AND status = $4`,
		string(approval), time.Now().UTC(), userID, string(StatusCompleted))
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set approval: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (row recordRow) toRecord() (*Record, error) {
	rec := &Record{
		ID:          row.ID,
		UserID:      row.UserID,
		Status:      Status(row.Status),
		CompletedAt: row.CompletedAt,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
	if row.ApprovalStatus.Valid {
		approval := ApprovalStatus(row.ApprovalStatus.String)
		rec.ApprovalStatus = &approval
	}
	var err error
	if rec.Business, err = decodeSection[BusinessInformation](row.BusinessInformation); err != nil {
		return nil, fmt.Errorf("decode business information: %w", err)
	}
	if rec.Goals, err = decodeSection[AssistantGoals](row.AssistantGoals); err != nil {
		return nil, fmt.Errorf("decode assistant goals: %w", err)
	}
	if rec.Interaction, err = decodeSection[AssistantInformation](row.AssistantInformation); err != nil {
		return nil, fmt.Errorf("decode assistant information: %w", err)
	}
	return rec, nil
}

// decodeSection returns nil for a NULL or empty column.
func decodeSection[T any](raw datatypes.JSON) (*T, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
