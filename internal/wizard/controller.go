package wizard

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"ai-receptionist/user-portal/user-portal-backend/internal/onboarding"
	"ai-receptionist/user-portal/user-portal-backend/pkg/workflows"
)

// FailureMessage is shown when the final submission fails for a reason the
// user cannot fix on the review step.
const FailureMessage = "We couldn't complete your onboarding. Please try again."

var (
	// ErrCompletionInFlight rejects a second Complete while one is pending.
	ErrCompletionInFlight = errors.New("onboarding completion already in progress")

	// ErrNotOnReviewStep rejects Complete outside step 4.
	ErrNotOnReviewStep = errors.New("onboarding can only be completed from the review step")
)

// Options tunes controller timing.
type Options struct {
	Debounce         time.Duration
	TargetSectionTTL time.Duration
	RetryInterval    time.Duration
	MaxRetries       int
	SaveTimeout      time.Duration
	Clock            clock.Clock
}

// DefaultOptions returns the production timings.
func DefaultOptions() Options {
	return Options{
		Debounce:         150 * time.Millisecond,
		TargetSectionTTL: 5 * time.Second,
		RetryInterval:    100 * time.Millisecond,
		MaxRetries:       10,
		SaveTimeout:      10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Debounce <= 0 {
		o.Debounce = def.Debounce
	}
	if o.TargetSectionTTL <= 0 {
		o.TargetSectionTTL = def.TargetSectionTTL
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = def.RetryInterval
	}
	if o.MaxRetries <= 0 {
		o.MaxRetries = def.MaxRetries
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = def.SaveTimeout
	}
	if o.Clock == nil {
		o.Clock = clock.New()
	}
	return o
}

// Controller drives one onboarding session: step navigation gated by the
// registered validators, best-effort saves on every transition, resumption
// and the final submission.
//
// All methods are safe for concurrent use. Validators are always called
// without the controller lock held, so they may read payloads back through
// the controller.
type Controller struct {
	gateway Gateway
	logger  *zap.Logger
	opts    Options
	machine *workflows.StateMachine

	mu         sync.Mutex
	state      State
	validators map[int]StepValidator
	closed     bool

	// revalGen invalidates pending revalidations whenever the step or a
	// payload changes.
	revalGen uint64
	debounce *clock.Timer
	retry    *clock.Timer
	retries  int

	targetGen   uint64
	targetTimer *clock.Timer

	saves sync.WaitGroup
}

// NewController creates a controller in the fresh step 1 state. Call Start to
// resume from the backend.
func NewController(gateway Gateway, logger *zap.Logger, opts Options) *Controller {
	return &Controller{
		gateway:    gateway,
		logger:     logger,
		opts:       opts.withDefaults(),
		machine:    workflows.NewWizardStateMachine(),
		state:      newState(),
		validators: make(map[int]StepValidator),
	}
}

// RegisterSteps binds the built-in validators for steps 1 to 3.
func (c *Controller) RegisterSteps() {
	c.Register(onboarding.StepBusiness, NewBusinessStep(c))
	c.Register(onboarding.StepGoals, NewGoalsStep(c))
	c.Register(onboarding.StepInteraction, NewInteractionStep(c))
}

// Register binds (or with nil, unbinds) the validator for step.
func (c *Controller) Register(step int, v StepValidator) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v == nil {
		delete(c.validators, step)
	} else {
		c.validators[step] = v
	}
	if step == c.state.CurrentStep {
		c.retries = 0
		c.scheduleRevalidateLocked()
	}
}

// Start fetches any existing onboarding and positions the session. When the
// record is already completed the returned Entry carries a Redirect and the
// wizard is not entered.
func (c *Controller) Start(ctx context.Context) (Entry, error) {
	snap, err := c.gateway.FetchExisting(ctx)
	if err != nil {
		var netErr *NetworkError
		switch {
		case errors.Is(err, onboarding.ErrNotFound):
			c.logger.Debug("No existing onboarding, starting fresh")
		case errors.As(err, &netErr):
			c.logger.Warn("Failed to fetch existing onboarding, starting fresh", zap.Error(err))
		default:
			return Entry{}, fmt.Errorf("fetch existing onboarding: %w", err)
		}
		snap = nil
	}

	plan := planResume(snap)
	if plan.unknown {
		c.logger.Warn("Unknown onboarding status, resuming from step 1",
			zap.String("status_onboarding", string(plan.entry.Status)))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimersLocked()
	c.state = newState()
	c.retries = 0

	if plan.entry.Redirect != RedirectNone {
		c.state.CurrentStep = onboarding.StepReview
		c.state.Stage = workflows.StageCompleted
		c.logger.Info("Onboarding already completed",
			zap.String("redirect", string(plan.entry.Redirect)))
		return plan.entry, nil
	}

	if plan.hydrate {
		c.state.hydrate(snap)
	}
	step := plan.entry.Step
	for n := onboarding.StepBusiness; n < step; n++ {
		c.state.CompletedSteps[n] = true
	}
	c.moveLocked(step)

	if plan.entry.Resumed {
		c.logger.Info("Resuming onboarding",
			zap.Int("step", step),
			zap.String("status_onboarding", string(plan.entry.Status)))
	}
	return plan.entry, nil
}

// Advance moves from step N to N+1 when step N's validator passes. The
// step's payload is saved in the background.
func (c *Controller) Advance() bool {
	c.mu.Lock()
	step := c.state.CurrentStep
	if !c.navigableLocked() || step >= onboarding.StepReview {
		c.mu.Unlock()
		return false
	}
	c.state.StepSubmitted[step] = true
	v := c.validators[step]
	c.mu.Unlock()

	valid := v != nil && v.Validate()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.navigableLocked() || c.state.CurrentStep != step {
		return false
	}
	if !valid {
		c.state.CurrentStepValid = false
		if v == nil {
			c.scheduleRetryLocked()
		}
		c.logger.Debug("Advance rejected by step validator", zap.Int("step", step))
		return false
	}

	next := step + 1
	if !c.canMoveLocked(next) {
		return false
	}
	c.saveLocked(step, c.state.payload(step))
	c.state.CompletedSteps[step] = true
	c.moveLocked(next)
	return true
}

// Retreat moves one step back. It is always allowed from step 2 onwards.
func (c *Controller) Retreat() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.navigableLocked() || c.state.CurrentStep <= onboarding.StepBusiness {
		return false
	}
	return c.jumpLocked(c.state.CurrentStep - 1)
}

// JumpTo moves to step m when m is not ahead of the current step or the step
// before m has been completed.
func (c *Controller) JumpTo(m int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.reachableLocked(m) {
		return false
	}
	return c.jumpLocked(m)
}

// JumpToSection is JumpTo plus a target section hint that clears itself
// after the configured TTL unless consumed or superseded first.
func (c *Controller) JumpToSection(m int, section string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.reachableLocked(m) || !c.jumpLocked(m) {
		return false
	}

	c.targetGen++
	gen := c.targetGen
	if c.targetTimer != nil {
		c.targetTimer.Stop()
	}
	c.state.TargetSection = section
	c.targetTimer = c.opts.Clock.AfterFunc(c.opts.TargetSectionTTL, func() {
		c.expireTarget(gen)
	})
	return true
}

// ConsumeTargetSection returns the pending target section and clears it.
func (c *Controller) ConsumeTargetSection() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	section := c.state.TargetSection
	c.clearTargetLocked()
	return section
}

func (c *Controller) expireTarget(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.targetGen {
		return
	}
	c.state.TargetSection = ""
	c.targetTimer = nil
}

// Complete submits all three payloads from the review step. On failure the
// session stays on step 4 with LastError set.
func (c *Controller) Complete(ctx context.Context) (Redirect, error) {
	c.mu.Lock()
	if c.state.Completing {
		c.mu.Unlock()
		return RedirectNone, ErrCompletionInFlight
	}
	if c.closed || c.state.Stage != workflows.StageReview {
		c.mu.Unlock()
		return RedirectNone, ErrNotOnReviewStep
	}
	c.state.Completing = true
	c.state.LastError = ""
	payload := c.state.completePayload()
	c.mu.Unlock()

	err := onboarding.ValidateComplete(payload)
	if err == nil {
		err = c.gateway.Complete(ctx, payload)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.state.Completing = false
	if err != nil {
		var schemaErr *onboarding.SchemaValidationError
		if errors.As(err, &schemaErr) {
			c.state.LastError = schemaErr.First()
		} else {
			c.state.LastError = FailureMessage
		}
		c.logger.Error("Failed to complete onboarding", zap.Error(err))
		return RedirectNone, fmt.Errorf("complete onboarding: %w", err)
	}

	if err := c.machine.Transition(c.state.Stage, workflows.StageCompleted); err != nil {
		return RedirectNone, err
	}
	c.state.Stage = workflows.StageCompleted
	c.stopTimersLocked()
	c.logger.Info("Onboarding submitted for approval")
	return RedirectPendingApproval, nil
}

// UpdateBusiness applies fn to the step 1 payload. fn must not call back
// into the controller.
func (c *Controller) UpdateBusiness(fn func(*onboarding.BusinessInformation)) {
	c.update(func(s *State) { fn(&s.Business) })
}

// UpdateGoals applies fn to the step 2 payload.
func (c *Controller) UpdateGoals(fn func(*onboarding.AssistantGoals)) {
	c.update(func(s *State) { fn(&s.Goals) })
}

// UpdateInteraction applies fn to the step 3 payload.
func (c *Controller) UpdateInteraction(fn func(*onboarding.AssistantInformation)) {
	c.update(func(s *State) { fn(&s.Interaction) })
}

func (c *Controller) update(fn func(*State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.navigableLocked() {
		return
	}
	fn(&c.state)
	c.scheduleRevalidateLocked()
}

// Business returns a copy of the step 1 payload.
func (c *Controller) Business() onboarding.BusinessInformation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneBusiness(c.state.Business)
}

// Goals returns a copy of the step 2 payload.
func (c *Controller) Goals() onboarding.AssistantGoals {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneGoals(c.state.Goals)
}

// Interaction returns a copy of the step 3 payload.
func (c *Controller) Interaction() onboarding.AssistantInformation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneInteraction(c.state.Interaction)
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Progress summarises the session for a step indicator.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	defer c.mu.Unlock()
	return progressOf(c.state)
}

// BlockingReason returns the first unmet requirement of the current step, or
// "" when Continue should be enabled.
func (c *Controller) BlockingReason() string {
	c.mu.Lock()
	step := c.state.CurrentStep
	payload := c.state.payload(step)
	v := c.validators[step]
	c.mu.Unlock()

	if step >= onboarding.StepReview {
		return ""
	}
	if err := onboarding.ValidateStep(step, payload); err != nil {
		return firstMessage(err)
	}
	// Step-local checks only surface through the validator's own report.
	if r, ok := v.(interface {
		StepValidator
		FirstError() string
	}); ok && !r.Validate() {
		return r.FirstError()
	}
	return ""
}

// Reset discards the session and returns to an empty step 1. Registered
// validators are kept. It is a no-op while a completion is in flight.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.state.Completing {
		return
	}
	c.stopTimersLocked()
	c.state = newState()
	c.retries = 0
	c.scheduleRevalidateLocked()
}

// Wait blocks until every background save has finished.
func (c *Controller) Wait() {
	c.saves.Wait()
}

// Close stops all timers and waits for background saves. The controller
// ignores further navigation.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopTimersLocked()
	c.mu.Unlock()
	c.saves.Wait()
}

// navigableLocked is false once closed, completed or while a completion is
// in flight.
func (c *Controller) navigableLocked() bool {
	return !c.closed && !c.state.Completing && c.state.Stage != workflows.StageCompleted
}

func (c *Controller) reachableLocked(m int) bool {
	if !c.navigableLocked() || m < onboarding.StepBusiness || m > onboarding.StepReview {
		return false
	}
	return m <= c.state.CurrentStep || c.state.CompletedSteps[m-1]
}

func (c *Controller) canMoveLocked(m int) bool {
	to, ok := workflows.StageForStep(m)
	if !ok {
		return false
	}
	if err := c.machine.Transition(c.state.Stage, to); err != nil {
		c.logger.Error("Rejected wizard transition", zap.Error(err))
		return false
	}
	return true
}

// jumpLocked saves the current step if it validates on its own, then moves
// to m. Jumping to the current step only saves.
func (c *Controller) jumpLocked(m int) bool {
	current := c.state.CurrentStep
	if m != current && !c.canMoveLocked(m) {
		return false
	}
	if payload := c.state.payload(current); payload != nil && onboarding.Navigable(current, payload) {
		c.saveLocked(current, payload)
	}
	if m != current {
		c.moveLocked(m)
	}
	return true
}

func (c *Controller) moveLocked(m int) {
	stage, _ := workflows.StageForStep(m)
	c.state.CurrentStep = m
	c.state.Stage = stage
	c.state.CurrentStepValid = m == onboarding.StepReview
	c.retries = 0
	c.scheduleRevalidateLocked()
}

// saveLocked persists payload in the background. Failures are logged only.
func (c *Controller) saveLocked(step int, payload any) {
	c.saves.Add(1)
	go func() {
		defer c.saves.Done()
		ctx, cancel := context.WithTimeout(context.Background(), c.opts.SaveTimeout)
		defer cancel()

		if err := c.gateway.SaveStep(ctx, step, payload); err != nil {
			c.logger.Warn("Failed to save onboarding step", zap.Int("step", step), zap.Error(err))
			return
		}
		c.logger.Debug("Onboarding step saved", zap.Int("step", step))
	}()
}

func (c *Controller) scheduleRevalidateLocked() {
	c.revalGen++
	gen := c.revalGen
	if c.debounce != nil {
		c.debounce.Stop()
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.debounce = c.opts.Clock.AfterFunc(c.opts.Debounce, func() {
		c.revalidate(gen)
	})
}

// scheduleRetryLocked rechecks the current step after the retry interval,
// bounded by MaxRetries, while its validator is not registered.
func (c *Controller) scheduleRetryLocked() {
	if c.retries >= c.opts.MaxRetries {
		c.logger.Debug("Step validator never registered",
			zap.Int("step", c.state.CurrentStep), zap.Int("retries", c.retries))
		return
	}
	c.retries++
	if c.retry != nil {
		c.retry.Stop()
	}
	gen := c.revalGen
	c.retry = c.opts.Clock.AfterFunc(c.opts.RetryInterval, func() {
		c.revalidate(gen)
	})
}

func (c *Controller) revalidate(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.revalGen {
		c.mu.Unlock()
		return
	}
	step := c.state.CurrentStep
	if step >= onboarding.StepReview {
		c.state.CurrentStepValid = true
		c.mu.Unlock()
		return
	}
	v := c.validators[step]
	if v == nil {
		c.state.CurrentStepValid = false
		c.scheduleRetryLocked()
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	valid := v.Validate()

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed && gen == c.revalGen && step == c.state.CurrentStep {
		c.state.CurrentStepValid = valid
	}
}

func (c *Controller) clearTargetLocked() {
	c.targetGen++
	if c.targetTimer != nil {
		c.targetTimer.Stop()
		c.targetTimer = nil
	}
	c.state.TargetSection = ""
}

func (c *Controller) stopTimersLocked() {
	c.revalGen++
	if c.debounce != nil {
		c.debounce.Stop()
		c.debounce = nil
	}
	if c.retry != nil {
		c.retry.Stop()
		c.retry = nil
	}
	c.clearTargetLocked()
}
