package onboarding

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jsonArg matches a JSON column argument by value rather than byte layout.
type jsonArg struct {
	want string
}

func (a jsonArg) Match(v driver.Value) bool {
	var raw []byte
	switch b := v.(type) {
	case string:
		raw = []byte(b)
	case []byte:
		raw = b
	default:
		return false
	}
	var got, want any
	if json.Unmarshal(raw, &got) != nil || json.Unmarshal([]byte(a.want), &want) != nil {
		return false
	}
	gotJSON, _ := json.Marshal(got)
	wantJSON, _ := json.Marshal(want)
	return string(gotJSON) == string(wantJSON)
}

func newMockRepository(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewRepository(sqlx.NewDb(db, "postgres")), mock
}

var recordColumns = []string{
	"id", "user_id", "status", "approval_status", "business_information", "assistant_goals",
	"assistant_information", "completed_at", "created_at", "updated_at",
}

func TestRepositoryGetByUserID(t *testing.T) {
	ctx := context.Background()

	t.Run("found", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		id := uuid.New()
		now := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

		mock.ExpectQuery(regexp.QuoteMeta("FROM onboarding_records WHERE user_id = $1")).
			WithArgs("u1").
			WillReturnRows(sqlmock.NewRows(recordColumns).AddRow(
				id.String(), "u1", "step_3", nil,
				[]byte(`{"name":"Acme","industry":"Retail","description":"x","timezone":"UTC"}`),
				[]byte(`{"goals":["Book appointments"]}`),
				nil, nil, now, now,
			))

		rec, err := repo.GetByUserID(ctx, "u1")
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.Equal(t, id, rec.ID)
		assert.Equal(t, StatusStep3, rec.Status)
		assert.Nil(t, rec.ApprovalStatus)
		require.NotNil(t, rec.Business)
		assert.Equal(t, "Acme", rec.Business.Name)
		require.NotNil(t, rec.Goals)
		assert.Equal(t, []string{"Book appointments"}, rec.Goals.Goals)
		assert.Nil(t, rec.Interaction)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("missing", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM onboarding_records WHERE user_id = $1")).
			WithArgs("u2").
			WillReturnRows(sqlmock.NewRows(recordColumns))

		rec, err := repo.GetByUserID(ctx, "u2")
		assert.NoError(t, err)
		assert.Nil(t, rec)
	})

	t.Run("database error", func(t *testing.T) {
		repo, mock := newMockRepository(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM onboarding_records")).
			WillReturnError(errors.New("connection reset"))

		_, err := repo.GetByUserID(ctx, "u3")
		assert.ErrorContains(t, err, "connection reset")
	})
}

func TestRepositorySaveSection(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO onboarding_records (id, user_id, status, assistant_goals, created_at, updated_at)")).
		WithArgs(sqlmock.AnyArg(), "u1", "step_3", jsonArg{`{"goals":["Book appointments"]}`}, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SaveSection(ctx, "u1", SectionGoals, validGoals(), StatusStep3)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())

	err = repo.SaveSection(ctx, "u1", Section("billing"), validGoals(), StatusStep3)
	assert.ErrorContains(t, err, "unknown onboarding section")
}

func TestRepositorySaveSectionSkipsCompletedRecord(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE onboarding_records.status <> 'completed'")).
		WithArgs(sqlmock.AnyArg(), "u1", "step_2", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveSection(ctx, "u1", SectionBusiness, validBusiness(), StatusStep2)
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCompleteSkipsCompletedRecord(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("WHERE onboarding_records.status <> 'completed'")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Complete(ctx, "u1", CompletePayload{
		BusinessInformation:  validBusiness(),
		AssistantGoals:       validGoals(),
		AssistantInformation: validInteraction(),
	})
	assert.ErrorIs(t, err, ErrAlreadyCompleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryComplete(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO onboarding_records")).
		WithArgs(sqlmock.AnyArg(), "u1", "completed", "pending",
			sqlmock.AnyArg(), jsonArg{`{"goals":["Book appointments"]}`}, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Complete(ctx, "u1", CompletePayload{
		BusinessInformation:  validBusiness(),
		AssistantGoals:       validGoals(),
		AssistantInformation: validInteraction(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetApproval(t *testing.T) {
	ctx := context.Background()
	repo, mock := newMockRepository(t)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE onboarding_records SET approval_status = $1")).
		WithArgs("approved", sqlmock.AnyArg(), "u1", "completed").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE onboarding_records SET approval_status = $1")).
		WithArgs("approved", sqlmock.AnyArg(), "u2", "completed").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, repo.SetApproval(ctx, "u1", ApprovalApproved))
	assert.ErrorIs(t, repo.SetApproval(ctx, "u2", ApprovalApproved), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
