package wizard

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
	"ai-receptionist/user-portal/user-portal-backend/pkg/workflows"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const (
	waitFor = time.Second
	tick    = 5 * time.Millisecond
)

func acmeBusiness() onboarding.BusinessInformation {
	return onboarding.BusinessInformation{
		Name:        "Acme",
		Industry:    "Retail",
		Description: "x",
		Timezone:    "UTC",
		BusinessHours: onboarding.BusinessHours{
			"monday":    {{Start: "09:00", End: "17:00"}},
			"tuesday":   {},
			"wednesday": {},
			"thursday":  {},
			"friday":    {},
			"saturday":  {},
			"sunday":    {},
		},
	}
}

func acmeGoals() onboarding.AssistantGoals {
	return onboarding.AssistantGoals{
		Tasks: []string{"Answer pricing questions"},
		Goals: []string{"Book appointments"},
	}
}

func acmeInteraction() onboarding.AssistantInformation {
	return onboarding.AssistantInformation{
		FirstMessage:         "Hi, thanks for calling Acme!",
		CommunicationStyle:   "friendly",
		SupportLanguages:     []string{"en"},
		InformationToCollect: []string{"name", "phone"},
		FAQs:                 []onboarding.FAQ{{Question: "Do you deliver?", Answer: "Yes"}},
	}
}

// MockGateway is a mock implementation of the Gateway interface
type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) FetchExisting(ctx context.Context) (*onboarding.Snapshot, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*onboarding.Snapshot), args.Error(1)
}

func (m *MockGateway) SaveStep(ctx context.Context, step int, payload any) error {
	args := m.Called(ctx, step, payload)
	return args.Error(0)
}

func (m *MockGateway) Complete(ctx context.Context, payload onboarding.CompletePayload) error {
	args := m.Called(ctx, payload)
	return args.Error(0)
}

type stubValidator struct {
	valid atomic.Bool
	calls atomic.Int32
}

func newStub(valid bool) *stubValidator {
	v := &stubValidator{}
	v.valid.Store(valid)
	return v
}

func (v *stubValidator) Validate() bool {
	v.calls.Add(1)
	return v.valid.Load()
}

func newTestController(t *testing.T, gw *MockGateway) (*Controller, *clock.Mock) {
	t.Helper()
	clk := clock.NewMock()
	c := NewController(gw, zap.NewNop(), Options{Clock: clk})
	t.Cleanup(c.Close)
	return c, clk
}

func (c *Controller) retryCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.retries
}

// fillPayloads sets valid data for steps 1 to 3.
func fillPayloads(c *Controller) {
	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { *b = acmeBusiness() })
	c.UpdateGoals(func(g *onboarding.AssistantGoals) { *g = acmeGoals() })
	c.UpdateInteraction(func(i *onboarding.AssistantInformation) { *i = acmeInteraction() })
}

// driveToReview advances a fresh controller to step 4 with valid payloads.
func driveToReview(t *testing.T, c *Controller) {
	t.Helper()
	c.RegisterSteps()
	fillPayloads(c)
	for step := onboarding.StepBusiness; step < onboarding.StepReview; step++ {
		require.True(t, c.Advance(), "advance from step %d", step)
	}
	require.Equal(t, onboarding.StepReview, c.Snapshot().CurrentStep)
}

func TestStartFresh(t *testing.T) {
	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(nil, onboarding.ErrNotFound)
	c, _ := newTestController(t, gw)

	entry, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Entry{Step: onboarding.StepBusiness}, entry)

	state := c.Snapshot()
	assert.Equal(t, onboarding.StepBusiness, state.CurrentStep)
	assert.Equal(t, workflows.StageBusiness, state.Stage)
	assert.Empty(t, state.CompletedSteps)
	assert.Empty(t, state.StepSubmitted)
	assert.Equal(t, onboarding.BusinessInformation{}, state.Business)
	assert.Equal(t, onboarding.AssistantGoals{}, state.Goals)
	assert.Equal(t, onboarding.AssistantInformation{}, state.Interaction)
	assert.Empty(t, state.TargetSection)
}

func TestStartPendingStatus(t *testing.T) {
	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(&onboarding.Snapshot{
		StatusOnboarding:    onboarding.StatusPending,
		BusinessInformation: acmeBusiness(),
	}, nil)
	c, _ := newTestController(t, gw)

	entry, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.False(t, entry.Resumed)
	state := c.Snapshot()
	assert.Equal(t, onboarding.StepBusiness, state.CurrentStep)
	assert.Empty(t, state.Business.Name)
}

func TestStartNetworkErrorStartsFresh(t *testing.T) {
	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(nil, &NetworkError{Op: "fetch", Err: errors.New("connection refused")})
	c, _ := newTestController(t, gw)

	entry, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, onboarding.StepBusiness, entry.Step)
	assert.Equal(t, onboarding.StepBusiness, c.Snapshot().CurrentStep)
}

func TestStartResumesStep3(t *testing.T) {
	goals := acmeGoals()
	goals.StatusOnboarding = onboarding.StatusStep3
	info := acmeInteraction()
	info.StatusOnboarding = onboarding.StatusStep3

	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(&onboarding.Snapshot{
		StatusOnboarding:     onboarding.StatusStep3,
		BusinessInformation:  acmeBusiness(),
		AssistantGoals:       &goals,
		AssistantInformation: &info,
	}, nil)
	c, _ := newTestController(t, gw)

	entry, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.True(t, entry.Resumed)
	assert.Equal(t, onboarding.StepInteraction, entry.Step)

	state := c.Snapshot()
	assert.Equal(t, onboarding.StepInteraction, state.CurrentStep)
	assert.Equal(t, workflows.StageInteraction, state.Stage)
	assert.Equal(t, acmeBusiness(), state.Business)
	assert.Equal(t, acmeGoals(), state.Goals)
	assert.Equal(t, acmeInteraction(), state.Interaction)
	assert.Equal(t, []int{1, 2}, state.Completed())

	// Resumed steps are reachable again.
	assert.True(t, c.JumpTo(onboarding.StepBusiness))
	assert.True(t, c.JumpTo(onboarding.StepInteraction))
}

func TestStartResumesStep2(t *testing.T) {
	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(&onboarding.Snapshot{
		StatusOnboarding:    onboarding.StatusStep2,
		BusinessInformation: acmeBusiness(),
	}, nil)
	c, _ := newTestController(t, gw)

	_, err := c.Start(context.Background())
	require.NoError(t, err)
	state := c.Snapshot()
	assert.Equal(t, onboarding.StepGoals, state.CurrentStep)
	assert.Equal(t, []int{1}, state.Completed())
	assert.Equal(t, "Acme", state.Business.Name)
}

func TestStartUnknownStatusHydrates(t *testing.T) {
	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(&onboarding.Snapshot{
		StatusOnboarding:    "step_9",
		BusinessInformation: acmeBusiness(),
	}, nil)
	c, _ := newTestController(t, gw)

	entry, err := c.Start(context.Background())
	require.NoError(t, err)
	assert.Equal(t, onboarding.StepBusiness, entry.Step)
	state := c.Snapshot()
	assert.Equal(t, onboarding.StepBusiness, state.CurrentStep)
	assert.Equal(t, "Acme", state.Business.Name)
}

func TestStartCompletedRedirects(t *testing.T) {
	cases := map[string]struct {
		approval onboarding.ApprovalStatus
		want     Redirect
	}{
		"approved": {onboarding.ApprovalApproved, RedirectMainApp},
		"pending":  {onboarding.ApprovalPending, RedirectPendingApproval},
		"rejected": {onboarding.ApprovalRejected, RedirectPendingApproval},
		"missing":  {"", RedirectPendingApproval},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			gw := new(MockGateway)
			gw.On("FetchExisting", mock.Anything).Return(&onboarding.Snapshot{
				StatusOnboarding: onboarding.StatusCompleted,
				ApprovalStatus:   tc.approval,
			}, nil)
			c, _ := newTestController(t, gw)

			entry, err := c.Start(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tc.want, entry.Redirect)
			assert.Equal(t, workflows.StageCompleted, c.Snapshot().Stage)
			assert.False(t, c.Advance())
			assert.False(t, c.JumpTo(onboarding.StepBusiness))
		})
	}
}

func TestStartPropagatesUnexpectedErrors(t *testing.T) {
	gw := new(MockGateway)
	gw.On("FetchExisting", mock.Anything).Return(nil, context.Canceled)
	c, _ := newTestController(t, gw)

	_, err := c.Start(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

// Scenarios B and C: the step 1 validator gates Advance.
func TestAdvanceBusinessStep(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, onboarding.StepBusiness, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)
	c.RegisterSteps()

	c.UpdateBusiness(func(b *onboarding.BusinessInformation) {
		*b = acmeBusiness()
		b.Name = ""
	})
	assert.False(t, c.Advance())
	state := c.Snapshot()
	assert.Equal(t, onboarding.StepBusiness, state.CurrentStep)
	assert.True(t, state.StepSubmitted[onboarding.StepBusiness])
	assert.Empty(t, state.CompletedSteps)
	assert.Equal(t, "Business name is required", c.BlockingReason())

	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { b.Name = "Acme" })
	assert.Empty(t, c.BlockingReason())
	require.True(t, c.Advance())

	state = c.Snapshot()
	assert.Equal(t, onboarding.StepGoals, state.CurrentStep)
	assert.Equal(t, []int{1}, state.Completed())

	c.Wait()
	gw.AssertCalled(t, "SaveStep", mock.Anything, onboarding.StepBusiness, mock.MatchedBy(func(b onboarding.BusinessInformation) bool {
		return b.Name == "Acme"
	}))
	gw.AssertNumberOfCalls(t, "SaveStep", 1)
}

func TestAdvanceFollowsValidator(t *testing.T) {
	for step := onboarding.StepBusiness; step < onboarding.StepReview; step++ {
		for _, valid := range []bool{true, false} {
			gw := new(MockGateway)
			gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
			c, _ := newTestController(t, gw)
			for n := onboarding.StepBusiness; n < onboarding.StepReview; n++ {
				c.Register(n, newStub(n != step || valid))
			}
			for n := onboarding.StepBusiness; n < step; n++ {
				require.True(t, c.Advance())
			}

			assert.Equal(t, valid, c.Advance(), "step %d valid=%v", step, valid)
			state := c.Snapshot()
			if valid {
				assert.Equal(t, step+1, state.CurrentStep)
				assert.True(t, state.IsCompleted(step))
			} else {
				assert.Equal(t, step, state.CurrentStep)
				assert.False(t, state.IsCompleted(step))
			}
		}
	}
}

func TestAdvanceSaveFailureDoesNotBlock(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(&NetworkError{Op: "save", Err: errors.New("timeout")})
	c, _ := newTestController(t, gw)
	c.Register(onboarding.StepBusiness, newStub(true))
	c.Register(onboarding.StepGoals, newStub(true))

	assert.True(t, c.Advance())
	assert.True(t, c.Advance())
	c.Wait()
	assert.Equal(t, onboarding.StepInteraction, c.Snapshot().CurrentStep)
	gw.AssertNumberOfCalls(t, "SaveStep", 2)
}

func TestAdvanceFromReviewIsRejected(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)
	driveToReview(t, c)

	assert.False(t, c.Advance())
	assert.Equal(t, onboarding.StepReview, c.Snapshot().CurrentStep)
}

func TestUnregisteredValidatorRetriesBounded(t *testing.T) {
	gw := new(MockGateway)
	c, clk := newTestController(t, gw)

	assert.False(t, c.Advance())
	assert.Equal(t, 1, c.retryCount())

	for want := 2; want <= DefaultOptions().MaxRetries; want++ {
		clk.Add(100 * time.Millisecond)
		assert.Eventually(t, func() bool { return c.retryCount() == want }, waitFor, tick)
	}
	clk.Add(time.Second)
	assert.Never(t, func() bool { return c.retryCount() > DefaultOptions().MaxRetries }, 50*time.Millisecond, tick)
	assert.False(t, c.Snapshot().CurrentStepValid)

	stub := newStub(true)
	c.Register(onboarding.StepBusiness, stub)
	clk.Add(150 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Snapshot().CurrentStepValid }, waitFor, tick)
	assert.EqualValues(t, 1, stub.calls.Load())
}

func TestLateRegistrationIsPickedUp(t *testing.T) {
	gw := new(MockGateway)
	c, clk := newTestController(t, gw)
	stub := newStub(true)

	assert.False(t, c.Advance())
	clk.Add(100 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.retryCount() == 2 }, waitFor, tick)

	c.Register(onboarding.StepBusiness, stub)
	clk.Add(150 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Snapshot().CurrentStepValid }, waitFor, tick)
}

func TestRevalidationIsDebounced(t *testing.T) {
	gw := new(MockGateway)
	c, clk := newTestController(t, gw)
	stub := newStub(true)
	c.Register(onboarding.StepBusiness, stub)

	for i := 0; i < 5; i++ {
		c.UpdateBusiness(func(b *onboarding.BusinessInformation) { b.Name += "a" })
		clk.Add(50 * time.Millisecond)
	}
	assert.Never(t, func() bool { return stub.calls.Load() > 0 }, 30*time.Millisecond, tick)

	clk.Add(100 * time.Millisecond)
	assert.Eventually(t, func() bool { return c.Snapshot().CurrentStepValid }, waitFor, tick)
	assert.EqualValues(t, 1, stub.calls.Load())
	assert.Equal(t, "aaaaa", c.Business().Name)
}

func TestRetreat(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)

	assert.False(t, c.Retreat())

	c.RegisterSteps()
	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { *b = acmeBusiness() })
	require.True(t, c.Advance())

	// Goals are invalid, so retreating saves nothing for step 2.
	require.True(t, c.Retreat())
	c.Wait()
	gw.AssertNotCalled(t, "SaveStep", mock.Anything, onboarding.StepGoals, mock.Anything)
	assert.Equal(t, onboarding.StepBusiness, c.Snapshot().CurrentStep)

	require.True(t, c.JumpTo(onboarding.StepGoals))
	c.UpdateGoals(func(g *onboarding.AssistantGoals) { *g = acmeGoals() })
	require.True(t, c.Retreat())
	c.Wait()
	gw.AssertCalled(t, "SaveStep", mock.Anything, onboarding.StepGoals, acmeGoals())

	// Data entered for other steps survives navigation.
	state := c.Snapshot()
	assert.Equal(t, acmeGoals(), state.Goals)
	assert.Equal(t, acmeBusiness(), state.Business)
}

func TestJumpToGuard(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)
	for n := onboarding.StepBusiness; n < onboarding.StepReview; n++ {
		c.Register(n, newStub(true))
	}

	assert.False(t, c.JumpTo(onboarding.StepInteraction))
	assert.False(t, c.JumpTo(0))
	assert.False(t, c.JumpTo(5))
	assert.True(t, c.JumpTo(onboarding.StepBusiness))
	assert.Equal(t, onboarding.StepBusiness, c.Snapshot().CurrentStep)

	require.True(t, c.Advance())
	require.True(t, c.Advance())
	require.True(t, c.JumpTo(onboarding.StepBusiness))

	// Steps 1 and 2 are completed, so 3 is reachable from 1 but 4 is not.
	assert.True(t, c.JumpTo(onboarding.StepInteraction))
	assert.Equal(t, onboarding.StepInteraction, c.Snapshot().CurrentStep)
	require.True(t, c.JumpTo(onboarding.StepBusiness))
	assert.False(t, c.JumpTo(onboarding.StepReview))

	state := c.Snapshot()
	assert.Equal(t, onboarding.StepBusiness, state.CurrentStep)
	assert.Equal(t, []int{1, 2}, state.Completed())
}

// Scenario D.
func TestJumpToSectionExpires(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, clk := newTestController(t, gw)
	for n := onboarding.StepBusiness; n < onboarding.StepReview; n++ {
		c.Register(n, newStub(true))
	}
	require.True(t, c.Advance())
	require.True(t, c.Advance())

	require.True(t, c.JumpToSection(onboarding.StepInteraction, "faq-knowledge-base"))
	assert.Equal(t, "faq-knowledge-base", c.Snapshot().TargetSection)

	clk.Add(4 * time.Second)
	assert.Never(t, func() bool { return c.Snapshot().TargetSection == "" }, 30*time.Millisecond, tick)

	clk.Add(time.Second)
	assert.Eventually(t, func() bool { return c.Snapshot().TargetSection == "" }, waitFor, tick)
}

func TestJumpToSectionSupersedes(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, clk := newTestController(t, gw)
	for n := onboarding.StepBusiness; n < onboarding.StepReview; n++ {
		c.Register(n, newStub(true))
	}
	require.True(t, c.Advance())
	require.True(t, c.Advance())

	require.True(t, c.JumpToSection(onboarding.StepInteraction, "greeting"))
	clk.Add(3 * time.Second)
	require.True(t, c.JumpToSection(onboarding.StepInteraction, "faq-knowledge-base"))

	// The first hint's deadline passes without clearing the newer one.
	clk.Add(2500 * time.Millisecond)
	assert.Never(t, func() bool { return c.Snapshot().TargetSection != "faq-knowledge-base" }, 30*time.Millisecond, tick)

	assert.Equal(t, "faq-knowledge-base", c.ConsumeTargetSection())
	assert.Empty(t, c.ConsumeTargetSection())
	assert.False(t, c.JumpToSection(onboarding.StepReview, "summary"))
}

func TestComplete(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("Complete", mock.Anything, onboarding.CompletePayload{
		BusinessInformation:  acmeBusiness(),
		AssistantGoals:       acmeGoals(),
		AssistantInformation: acmeInteraction(),
	}).Return(nil)
	c, _ := newTestController(t, gw)
	driveToReview(t, c)

	redirect, err := c.Complete(context.Background())
	require.NoError(t, err)
	assert.Equal(t, RedirectPendingApproval, redirect)

	state := c.Snapshot()
	assert.Equal(t, workflows.StageCompleted, state.Stage)
	assert.False(t, state.Completing)
	assert.False(t, c.JumpTo(onboarding.StepBusiness))
	assert.EqualValues(t, 100, c.Progress().PercentComplete)

	_, err = c.Complete(context.Background())
	assert.ErrorIs(t, err, ErrNotOnReviewStep)
}

// Scenario E.
func TestCompleteNetworkFailureStaysOnReview(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("Complete", mock.Anything, mock.Anything).Return(&NetworkError{Op: "complete", StatusCode: 503, Err: errors.New("unavailable")})
	c, _ := newTestController(t, gw)
	driveToReview(t, c)

	redirect, err := c.Complete(context.Background())
	var netErr *NetworkError
	require.ErrorAs(t, err, &netErr)
	assert.Equal(t, RedirectNone, redirect)

	state := c.Snapshot()
	assert.Equal(t, onboarding.StepReview, state.CurrentStep)
	assert.Equal(t, workflows.StageReview, state.Stage)
	assert.Equal(t, FailureMessage, state.LastError)
	assert.False(t, state.Completing)
}

func TestCompleteRejectsInvalidPayload(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)
	for n := onboarding.StepBusiness; n < onboarding.StepReview; n++ {
		c.Register(n, newStub(true))
	}
	for n := onboarding.StepBusiness; n < onboarding.StepReview; n++ {
		require.True(t, c.Advance())
	}

	_, err := c.Complete(context.Background())
	var schemaErr *onboarding.SchemaValidationError
	require.ErrorAs(t, err, &schemaErr)
	assert.Equal(t, "Business name is required", c.Snapshot().LastError)
	gw.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestCompleteRejectsDuplicateSubmission(t *testing.T) {
	release := make(chan struct{})
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("Complete", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
	c, _ := newTestController(t, gw)
	driveToReview(t, c)

	done := make(chan error, 1)
	go func() {
		_, err := c.Complete(context.Background())
		done <- err
	}()
	assert.Eventually(t, func() bool { return c.Snapshot().Completing }, waitFor, tick)

	_, err := c.Complete(context.Background())
	assert.ErrorIs(t, err, ErrCompletionInFlight)

	close(release)
	require.NoError(t, <-done)
	gw.AssertNumberOfCalls(t, "Complete", 1)
}

func TestNavigationLockedWhileCompleting(t *testing.T) {
	release := make(chan struct{})
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	gw.On("Complete", mock.Anything, mock.Anything).Run(func(mock.Arguments) { <-release }).Return(nil)
	c, _ := newTestController(t, gw)
	driveToReview(t, c)

	type result struct {
		redirect Redirect
		err      error
	}
	done := make(chan result, 1)
	go func() {
		redirect, err := c.Complete(context.Background())
		done <- result{redirect, err}
	}()
	assert.Eventually(t, func() bool { return c.Snapshot().Completing }, waitFor, tick)

	assert.False(t, c.Retreat())
	assert.False(t, c.JumpTo(onboarding.StepBusiness))
	assert.False(t, c.JumpToSection(onboarding.StepInteraction, "faq-knowledge-base"))
	c.Reset()
	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { b.Name = "Changed" })

	snap := c.Snapshot()
	assert.Equal(t, onboarding.StepReview, snap.CurrentStep)
	assert.Equal(t, "Acme", snap.Business.Name)

	close(release)
	res := <-done
	require.NoError(t, res.err)
	assert.Equal(t, RedirectPendingApproval, res.redirect)
	assert.Equal(t, workflows.StageCompleted, c.Snapshot().Stage)
	assert.Empty(t, c.Snapshot().LastError)
}

func TestCompleteOutsideReview(t *testing.T) {
	c, _ := newTestController(t, new(MockGateway))
	_, err := c.Complete(context.Background())
	assert.ErrorIs(t, err, ErrNotOnReviewStep)
}

func TestProgress(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)
	c.Register(onboarding.StepBusiness, newStub(true))
	require.True(t, c.Advance())

	p := c.Progress()
	assert.Equal(t, onboarding.StepGoals, p.CurrentStep)
	assert.Equal(t, onboarding.TotalSteps, p.TotalSteps)
	assert.EqualValues(t, 25, p.PercentComplete)
	require.Len(t, p.Steps, onboarding.TotalSteps)
	assert.True(t, p.Steps[0].Completed)
	assert.True(t, p.Steps[0].Submitted)
	assert.True(t, p.Steps[1].Current)
	assert.False(t, p.Steps[1].Completed)
}

func TestReset(t *testing.T) {
	gw := new(MockGateway)
	gw.On("SaveStep", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c, _ := newTestController(t, gw)
	c.Register(onboarding.StepBusiness, newStub(true))
	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { b.Name = "Acme" })
	require.True(t, c.Advance())

	c.Reset()
	state := c.Snapshot()
	assert.Equal(t, onboarding.StepBusiness, state.CurrentStep)
	assert.Empty(t, state.CompletedSteps)
	assert.Empty(t, state.Business.Name)
}

func TestSnapshotIsDetached(t *testing.T) {
	c, _ := newTestController(t, new(MockGateway))
	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { *b = acmeBusiness() })

	state := c.Snapshot()
	state.Business.BusinessHours["monday"][0].Start = "00:00"
	state.CompletedSteps[3] = true

	fresh := c.Snapshot()
	assert.Equal(t, "09:00", fresh.Business.BusinessHours["monday"][0].Start)
	assert.False(t, fresh.IsCompleted(3))
}

func TestClosedControllerIgnoresNavigation(t *testing.T) {
	c, _ := newTestController(t, new(MockGateway))
	c.Register(onboarding.StepBusiness, newStub(true))
	c.Close()

	assert.False(t, c.Advance())
	assert.False(t, c.JumpTo(onboarding.StepBusiness))
	c.UpdateBusiness(func(b *onboarding.BusinessInformation) { b.Name = "Acme" })
	assert.Empty(t, c.Business().Name)
}
