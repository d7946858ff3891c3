// Package guard bounds how much API work one user turn or session can
// trigger, independent of what the model asks for. Every check is a
// synchronous pre-call gate returning an allow/deny decision with a reason;
// retry and failover belong to the router, not here.
package guard

import (
	"fmt"
	"time"

	"github.com/MBemera/Radsim-sub001/errors"
)

// Defaults for the protection knobs. All are overridable via Limits.
const (
	DefaultMaxCallsPerTurn    = 15
	DefaultMaxFailuresPerTurn = 5
	DefaultCooldown           = 50 * time.Millisecond
	DefaultBreakerThreshold   = 3
	DefaultBreakerCooldown    = 60 * time.Second
	warnFraction              = 0.7
	budgetWarnFraction        = 0.8
)

// Limits carries the configured ceilings. Zero token budgets mean unlimited.
type Limits struct {
	MaxCallsPerTurn    int
	MaxFailuresPerTurn int
	Cooldown           time.Duration
	BreakerThreshold   int
	MaxInputTokens     int
	MaxOutputTokens    int
}

// DefaultLimits returns the stock configuration.
func DefaultLimits() Limits {
	return Limits{
		MaxCallsPerTurn:    DefaultMaxCallsPerTurn,
		MaxFailuresPerTurn: DefaultMaxFailuresPerTurn,
		Cooldown:           DefaultCooldown,
		BreakerThreshold:   DefaultBreakerThreshold,
	}
}

// RateLimiter caps API calls within one conversation turn and paces
// consecutive calls. It defends against tool-call loops where the model
// never terminates.
type RateLimiter struct {
	maxCalls    int
	maxFailures int
	cooldown    time.Duration

	calls    int
	failures int
	lastCall time.Time
	warned   bool

	now   func() time.Time
	sleep func(time.Duration)
}

// NewRateLimiter creates a limiter; non-positive arguments fall back to
// defaults.
func NewRateLimiter(maxCalls, maxFailures int, cooldown time.Duration) *RateLimiter {
	if maxCalls <= 0 {
		maxCalls = DefaultMaxCallsPerTurn
	}
	if maxFailures <= 0 {
		maxFailures = DefaultMaxFailuresPerTurn
	}
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &RateLimiter{
		maxCalls:    maxCalls,
		maxFailures: maxFailures,
		cooldown:    cooldown,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Check gates one API call. It enforces the cooldown pacing (by sleeping off
// the remainder), counts the call, and denies once the per-turn cap is
// reached. The returned warning is non-empty when usage crosses 70% of the
// cap.
func (r *RateLimiter) Check() (warning string, err error) {
	now := r.now()
	if !r.lastCall.IsZero() {
		if since := now.Sub(r.lastCall); since < r.cooldown {
			r.sleep(r.cooldown - since)
		}
	}

	r.calls++
	r.lastCall = r.now()

	if r.calls >= r.maxCalls {
		return "", errors.NewKind(errors.KindRateLimit,
			"Rate limit exceeded: %d API calls this turn. Maximum is %d. Try a simpler request or break the task into smaller steps",
			r.calls, r.maxCalls)
	}

	warnAt := int(float64(r.maxCalls) * warnFraction)
	if r.calls >= warnAt && !r.warned {
		r.warned = true
		return fmt.Sprintf("Approaching rate limit: %d/%d API calls this turn", r.calls, r.maxCalls), nil
	}
	return "", nil
}

// RecordFailure tracks a failed API call; a run of consecutive failures
// denies further calls.
func (r *RateLimiter) RecordFailure() error {
	r.failures++
	if r.failures >= r.maxFailures {
		return errors.NewKind(errors.KindRateLimit,
			"Too many consecutive failures: %d failed API calls. Maximum is %d. This prevents infinite error loops",
			r.failures, r.maxFailures)
	}
	return nil
}

// RecordSuccess resets the consecutive failure counter.
func (r *RateLimiter) RecordSuccess() { r.failures = 0 }

// Reset clears per-turn counters on new user input.
func (r *RateLimiter) Reset() {
	r.calls = 0
	r.failures = 0
	r.warned = false
}

// Calls reports the calls consumed this turn.
func (r *RateLimiter) Calls() int { return r.calls }

// CircuitBreaker refuses calls after a run of consecutive failures of the
// same error type until the cooldown elapses or it is explicitly reset.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	counts   map[string]int
	openedAt map[string]time.Time

	now func() time.Time
}

// NewCircuitBreaker creates a breaker; non-positive arguments fall back to
// defaults.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &CircuitBreaker{
		threshold: threshold,
		cooldown:  cooldown,
		counts:    make(map[string]int),
		openedAt:  make(map[string]time.Time),
		now:       time.Now,
	}
}

// RecordError counts an error of the given type and trips the circuit when
// the threshold is reached.
func (c *CircuitBreaker) RecordError(errorType string) error {
	c.counts[errorType]++
	if c.counts[errorType] >= c.threshold {
		c.openedAt[errorType] = c.now()
		return errors.NewKind(errors.KindRateLimit,
			"Circuit breaker tripped: %d consecutive '%s' errors. Wait %s or reset limits",
			c.counts[errorType], errorType, c.cooldown)
	}
	return nil
}

// RecordSuccess resets the count for one error type, or all of them when
// errorType is empty.
func (c *CircuitBreaker) RecordSuccess(errorType string) {
	if errorType == "" {
		c.counts = make(map[string]int)
		return
	}
	c.counts[errorType] = 0
}

// IsOpen reports whether the circuit is currently open for an error type.
// An elapsed cooldown closes it again.
func (c *CircuitBreaker) IsOpen(errorType string) bool {
	opened, ok := c.openedAt[errorType]
	if !ok {
		return false
	}
	if c.now().Sub(opened) >= c.cooldown {
		delete(c.openedAt, errorType)
		c.counts[errorType] = 0
		return false
	}
	return true
}

// Reset clears all breaker state.
func (c *CircuitBreaker) Reset() {
	c.counts = make(map[string]int)
	c.openedAt = make(map[string]time.Time)
}

// BudgetGuard enforces cumulative session token ceilings. Ceilings of zero
// mean unlimited. Once a ceiling is exceeded further calls are refused rather
// than silently truncated.
type BudgetGuard struct {
	maxInput  int
	maxOutput int

	inputTokens  int
	outputTokens int
	inputWarned  bool
	outputWarned bool
}

// NewBudgetGuard creates a budget guard with the given ceilings.
func NewBudgetGuard(maxInput, maxOutput int) *BudgetGuard {
	return &BudgetGuard{maxInput: maxInput, maxOutput: maxOutput}
}

// RecordUsage adds token usage and checks the ceilings. It returns a warning
// string when usage crosses 80% of a ceiling, and a budget error once a
// ceiling is reached.
func (b *BudgetGuard) RecordUsage(inputTokens, outputTokens int) (warning string, err error) {
	b.inputTokens += inputTokens
	b.outputTokens += outputTokens

	if b.maxInput > 0 && b.inputTokens >= b.maxInput {
		return "", errors.NewKind(errors.KindBudget,
			"Input token budget exceeded: %d tokens used, maximum is %d. Reset limits or raise the ceiling",
			b.inputTokens, b.maxInput)
	}
	if b.maxOutput > 0 && b.outputTokens >= b.maxOutput {
		return "", errors.NewKind(errors.KindBudget,
			"Output token budget exceeded: %d tokens used, maximum is %d. Reset limits or raise the ceiling",
			b.outputTokens, b.maxOutput)
	}

	var warnings []string
	if b.maxInput > 0 && !b.inputWarned && float64(b.inputTokens) >= float64(b.maxInput)*budgetWarnFraction {
		b.inputWarned = true
		warnings = append(warnings, fmt.Sprintf("Input token usage at %.0f%%", float64(b.inputTokens)/float64(b.maxInput)*100))
	}
	if b.maxOutput > 0 && !b.outputWarned && float64(b.outputTokens) >= float64(b.maxOutput)*budgetWarnFraction {
		b.outputWarned = true
		warnings = append(warnings, fmt.Sprintf("Output token usage at %.0f%%", float64(b.outputTokens)/float64(b.maxOutput)*100))
	}
	if len(warnings) == 2 {
		return warnings[0] + " | " + warnings[1], nil
	}
	if len(warnings) == 1 {
		return warnings[0], nil
	}
	return "", nil
}

// Check refuses further calls once a ceiling has been reached. A never-used
// guard always allows.
func (b *BudgetGuard) Check() error {
	if b.maxInput > 0 && b.inputTokens >= b.maxInput {
		return errors.NewKind(errors.KindBudget,
			"Input token budget exceeded: %d tokens used, maximum is %d. Reset limits or raise the ceiling",
			b.inputTokens, b.maxInput)
	}
	if b.maxOutput > 0 && b.outputTokens >= b.maxOutput {
		return errors.NewKind(errors.KindBudget,
			"Output token budget exceeded: %d tokens used, maximum is %d. Reset limits or raise the ceiling",
			b.outputTokens, b.maxOutput)
	}
	return nil
}

// InputTokens reports cumulative session input tokens.
func (b *BudgetGuard) InputTokens() int { return b.inputTokens }

// OutputTokens reports cumulative session output tokens.
func (b *BudgetGuard) OutputTokens() int { return b.outputTokens }

// Reset clears all budget tracking.
func (b *BudgetGuard) Reset() {
	b.inputTokens = 0
	b.outputTokens = 0
	b.inputWarned = false
	b.outputWarned = false
}

// Protection composes the rate limiter, circuit breaker and budget guard
// behind the single interface the agent consults. Counters are turn-scoped
// mutable state owned by the conversation loop; other components only read
// them through the query methods.
type Protection struct {
	Rate    *RateLimiter
	Breaker *CircuitBreaker
	Budget  *BudgetGuard
}

// NewProtection builds the full guard stack from configured limits.
func NewProtection(limits Limits) *Protection {
	return &Protection{
		Rate:    NewRateLimiter(limits.MaxCallsPerTurn, limits.MaxFailuresPerTurn, limits.Cooldown),
		Breaker: NewCircuitBreaker(limits.BreakerThreshold, DefaultBreakerCooldown),
		Budget:  NewBudgetGuard(limits.MaxInputTokens, limits.MaxOutputTokens),
	}
}

// CheckBeforeCall gates one API call across every protection. A denial means
// the call must not happen; the error's kind and message carry the reason.
func (p *Protection) CheckBeforeCall() (warning string, err error) {
	if p.Breaker.IsOpen("api_error") {
		return "", errors.NewKind(errors.KindRateLimit,
			"Circuit breaker is open after repeated API errors; reset limits to continue")
	}
	if err := p.Budget.Check(); err != nil {
		return "", err
	}
	return p.Rate.Check()
}

// RecordSuccess notes a successful API call and its token usage.
func (p *Protection) RecordSuccess(inputTokens, outputTokens int) (warning string, err error) {
	p.Rate.RecordSuccess()
	p.Breaker.RecordSuccess("api_error")
	return p.Budget.RecordUsage(inputTokens, outputTokens)
}

// RecordError notes a failed API call for both the failure cap and the
// breaker. The first tripped protection wins.
func (p *Protection) RecordError(errorType string) error {
	if errorType == "" {
		errorType = "api_error"
	}
	if err := p.Rate.RecordFailure(); err != nil {
		return err
	}
	return p.Breaker.RecordError(errorType)
}

// OnUserInput resets the per-turn counters when the user provides new input.
func (p *Protection) OnUserInput() {
	p.Rate.Reset()
	p.Breaker.Reset()
}

// ResetAll clears every protection, including session budgets.
func (p *Protection) ResetAll() {
	p.Rate.Reset()
	p.Breaker.Reset()
	p.Budget.Reset()
}

// Status summarizes current usage for display.
func (p *Protection) Status() string {
	return fmt.Sprintf("calls this turn: %d, input tokens: %d, output tokens: %d",
		p.Rate.Calls(), p.Budget.InputTokens(), p.Budget.OutputTokens())
}
