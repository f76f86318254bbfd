// Package session implements the practice session state machine: question
// progression, the countdown, pause/resume, code execution and scoring.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/terra-clan/practice-engine/internal/execution"
	"github.com/terra-clan/practice-engine/internal/harness"
	"github.com/terra-clan/practice-engine/internal/metrics"
	"github.com/terra-clan/practice-engine/internal/models"
	"github.com/terra-clan/practice-engine/internal/parser"
	"github.com/terra-clan/practice-engine/internal/scoring"
	"github.com/terra-clan/practice-engine/internal/storage"
	"github.com/terra-clan/practice-engine/internal/timer"
)

// Options wires an Engine to its collaborators
type Options struct {
	Questions storage.QuestionStore
	Sessions  storage.SessionStore
	Strategy  execution.Strategy

	// Now defaults to time.Now
	Now func() time.Time
	// TickInterval is the real-time length of one countdown second
	TickInterval   time.Duration
	PersistTimeout time.Duration

	// Notify receives every event; it must not block
	Notify func(Event)
}

// SubmitOutcome is the result of an accepted submission
type SubmitOutcome struct {
	Output     models.NormalizedOutput `json:"output"`
	Result     models.SessionResult    `json:"result"`
	Affordance Affordance              `json:"affordance"`
	Session    *models.Session         `json:"session"`
}

// questionState tracks the question currently on screen
type questionState struct {
	attempts    int
	hintsUsed   int
	shownAt     time.Time
	pausedTotal time.Duration
}

// job is an execution started under the lock and finished outside it
type job struct {
	epoch    uint64
	question *models.Question
	code     string
	program  harness.Program
}

// Engine drives one practice session. All state is guarded by mu;
// executions and store calls run without holding it.
type Engine struct {
	opts   Options
	config models.SessionConfig

	mu           sync.Mutex
	session      *models.Session
	questions    []*models.Question
	cases        map[int][]models.TestCase
	countdown    *timer.Countdown
	current      questionState
	pausedAt     time.Time
	lastActivity time.Time
	// epoch changes whenever the current question changes or the session
	// ends; executions started under an older epoch are discarded.
	epoch    uint64
	inFlight bool
	starting bool
}

// NewEngine creates an engine in the setup state
func NewEngine(cfg models.SessionConfig, opts Options) *Engine {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	if opts.PersistTimeout <= 0 {
		opts.PersistTimeout = 10 * time.Second
	}

	return &Engine{
		opts:   opts,
		config: cfg,
		cases:  make(map[int][]models.TestCase),
		session: &models.Session{
			Topic:            cfg.Topic,
			Difficulty:       cfg.Difficulty,
			TimeLimit:        cfg.TimeLimit,
			QuestionCount:    cfg.QuestionCount,
			State:            models.SessionSetup,
			RemainingSeconds: cfg.TimeLimit * 60,
			Results:          []models.SessionResult{},
		},
		lastActivity: opts.Now(),
	}
}

// Start loads questions, registers the session with the store and starts
// the countdown. On failure the engine stays in setup.
func (e *Engine) Start(ctx context.Context) (*models.Session, error) {
	const op = "start session"

	e.mu.Lock()
	if e.session.State != models.SessionSetup || e.starting {
		e.mu.Unlock()
		return nil, newError(KindState, op, ErrAlreadyStarted)
	}
	e.starting = true
	e.mu.Unlock()

	questions, err := e.loadQuestions(ctx)
	if err != nil {
		e.mu.Lock()
		e.starting = false
		e.mu.Unlock()
		return nil, newError(KindSetup, op, err)
	}

	now := e.opts.Now()
	s := &models.Session{
		Topic:            e.config.Topic,
		Difficulty:       e.config.Difficulty,
		TimeLimit:        e.config.TimeLimit,
		QuestionCount:    e.config.QuestionCount,
		QuestionIDs:      make([]string, len(questions)),
		State:            models.SessionActive,
		StartedAt:        &now,
		RemainingSeconds: e.config.TimeLimit * 60,
		Results:          []models.SessionResult{},
	}
	for i, q := range questions {
		s.QuestionIDs[i] = q.ID
	}
	s.ID, s.Warnings = e.register(ctx, s)

	e.mu.Lock()
	e.session = s
	e.questions = questions
	e.current = questionState{shownAt: now}
	e.lastActivity = now
	e.countdown = timer.New(s.RemainingSeconds, e.opts.TickInterval)
	e.countdown.Start(e.Tick)
	e.starting = false
	snap := e.snapshotLocked()
	ev := e.eventLocked(EventState)
	e.mu.Unlock()

	slog.Info("session started",
		"session_id", snap.ID,
		"topic", snap.Topic,
		"difficulty", snap.Difficulty,
		"questions", len(questions),
		"time_limit", snap.TimeLimit,
	)
	e.emit(ev)

	return snap, nil
}

func (e *Engine) loadQuestions(ctx context.Context) ([]*models.Question, error) {
	cfg := e.config
	if cfg.TimeLimit <= 0 {
		return nil, fmt.Errorf("%w: time limit must be positive", ErrInvalidConfig)
	}
	if cfg.QuestionCount <= 0 {
		return nil, fmt.Errorf("%w: question count must be positive", ErrInvalidConfig)
	}
	if cfg.Difficulty != "" && !cfg.Difficulty.IsValid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", ErrInvalidConfig, cfg.Difficulty)
	}
	if e.opts.Questions == nil {
		return nil, ErrNoQuestions
	}

	loaded, err := e.opts.Questions.GetQuestions(ctx, cfg.Topic, cfg.Difficulty, cfg.QuestionCount)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions: %w", err)
	}

	questions := make([]*models.Question, 0, len(loaded))
	seen := make(map[string]bool, len(loaded))
	for _, q := range loaded {
		if q == nil || q.ID == "" || seen[q.ID] {
			continue
		}
		seen[q.ID] = true
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return nil, ErrNoQuestions
	}
	if len(questions) > cfg.QuestionCount {
		questions = questions[:cfg.QuestionCount]
	}
	return questions, nil
}

// register creates the stored session. A store failure does not prevent
// the session from running; it gets a local id and a warning.
func (e *Engine) register(ctx context.Context, s *models.Session) (string, []string) {
	if e.opts.Sessions == nil {
		return uuid.NewString(), nil
	}

	created, err := e.opts.Sessions.CreateSession(ctx, s.Clone())
	if err != nil {
		werr := newError(KindPersistence, "create session", err)
		slog.Warn("failed to persist new session", "error", err)
		metrics.PersistenceWarnings.Inc()
		return uuid.NewString(), []string{werr.Error()}
	}
	if created == nil || created.ID == "" {
		return uuid.NewString(), nil
	}
	return created.ID, nil
}

// Tick advances the countdown by one second. Ticks outside the active
// state are ignored; reaching zero completes the session.
func (e *Engine) Tick() {
	e.mu.Lock()
	if e.session.State != models.SessionActive || e.countdown == nil {
		e.mu.Unlock()
		return
	}

	remaining := e.countdown.Tick()
	e.session.RemainingSeconds = remaining
	ev := e.eventLocked(EventTick)

	if remaining > 0 {
		e.mu.Unlock()
		e.emit(ev)
		return
	}

	final := e.finishLocked(models.SessionCompleted, models.ReasonTimeUp)
	e.mu.Unlock()

	e.emit(ev)
	e.persist(final)
}

// Pause stops the countdown. Pausing a paused session is a no-op.
func (e *Engine) Pause() (*models.Session, error) {
	e.mu.Lock()
	switch e.session.State {
	case models.SessionPaused:
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, nil
	case models.SessionActive:
	default:
		err := e.stateErrorLocked("pause")
		e.mu.Unlock()
		return nil, err
	}

	e.countdown.Stop()
	e.pausedAt = e.opts.Now()
	e.lastActivity = e.pausedAt
	e.session.State = models.SessionPaused
	snap := e.snapshotLocked()
	ev := e.eventLocked(EventState)
	e.mu.Unlock()

	e.emit(ev)
	return snap, nil
}

// Resume restarts the countdown. Resuming an active session is a no-op.
func (e *Engine) Resume() (*models.Session, error) {
	e.mu.Lock()
	switch e.session.State {
	case models.SessionActive:
		snap := e.snapshotLocked()
		e.mu.Unlock()
		return snap, nil
	case models.SessionPaused:
	default:
		err := e.stateErrorLocked("resume")
		e.mu.Unlock()
		return nil, err
	}

	now := e.opts.Now()
	e.current.pausedTotal += now.Sub(e.pausedAt)
	e.pausedAt = time.Time{}
	e.lastActivity = now
	e.session.State = models.SessionActive
	e.countdown.Start(e.Tick)
	snap := e.snapshotLocked()
	ev := e.eventLocked(EventState)
	e.mu.Unlock()

	e.emit(ev)
	return snap, nil
}

// RemainingSeconds returns the seconds left without side effects
func (e *Engine) RemainingSeconds() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remainingLocked()
}

// RunCode executes code against the current question's examples. Only the
// attempt counter changes; nothing is recorded.
func (e *Engine) RunCode(ctx context.Context, code string) (models.NormalizedOutput, error) {
	const op = "run code"

	j, err := e.beginExecution(op, code, false)
	if err != nil {
		return models.NormalizedOutput{}, err
	}

	out, runErr := e.execute(ctx, j)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.inFlight = false

	if err := e.checkCurrentLocked(op, j); err != nil {
		return models.NormalizedOutput{}, err
	}
	if runErr != nil {
		return models.NormalizedOutput{}, newError(KindExecution, op, runErr)
	}
	return out, nil
}

// SubmitSolution executes code and records the verdict for the current
// question. It never advances to the next question.
func (e *Engine) SubmitSolution(ctx context.Context, code string) (*SubmitOutcome, error) {
	const op = "submit solution"

	j, err := e.beginExecution(op, code, true)
	if err != nil {
		return nil, err
	}

	out, runErr := e.execute(ctx, j)

	e.mu.Lock()
	e.inFlight = false

	if err := e.checkCurrentLocked(op, j); err != nil {
		e.mu.Unlock()
		return nil, err
	}
	if runErr != nil {
		e.mu.Unlock()
		return nil, newError(KindExecution, op, runErr)
	}

	now := e.opts.Now()
	next, result, err := scoring.Record(e.session, j.question.ID, out, e.elapsedLocked(now), scoring.Meta{
		Attempts:    e.current.attempts,
		HintsUsed:   e.current.hintsUsed,
		Code:        j.code,
		SubmittedAt: now,
	})
	if err != nil {
		e.mu.Unlock()
		return nil, newError(KindState, op, err)
	}

	e.session = next
	e.lastActivity = now

	affordance := AffordanceEndSession
	if e.session.CurrentIndex+1 < len(e.questions) {
		affordance = AffordanceNextQuestion
	}

	snap := e.snapshotLocked()
	ev := e.eventLocked(EventResult)
	ev.Result = &result
	ev.Affordance = affordance
	e.mu.Unlock()

	metrics.SubmissionsTotal.WithLabelValues(strconv.FormatBool(result.Correct)).Inc()
	slog.Info("solution submitted",
		"session_id", snap.ID,
		"question_id", result.QuestionID,
		"correct", result.Correct,
		"attempts", result.Attempts,
		"strategy", out.Strategy,
	)
	e.emit(ev)

	return &SubmitOutcome{
		Output:     out,
		Result:     result,
		Affordance: affordance,
		Session:    snap,
	}, nil
}

func (e *Engine) beginExecution(op, code string, submit bool) (*job, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	allowed := []models.SessionState{models.SessionActive, models.SessionPaused}
	if submit {
		allowed = allowed[:1]
	}
	if err := e.requireLocked(op, allowed...); err != nil {
		return nil, err
	}

	idx := e.session.CurrentIndex
	q := e.questions[idx]
	if submit && e.session.HasResult(q.ID) {
		return nil, newError(KindState, op, ErrAlreadySubmitted)
	}
	if e.inFlight {
		return nil, newError(KindState, op, ErrExecutionInFlight)
	}

	e.inFlight = true
	e.current.attempts++
	e.lastActivity = e.opts.Now()

	return &job{
		epoch:    e.epoch,
		question: q,
		code:     code,
		program:  harness.Build(code, harness.EntryPoint(code, q), e.testCasesLocked(idx)),
	}, nil
}

func (e *Engine) execute(ctx context.Context, j *job) (models.NormalizedOutput, error) {
	if e.opts.Strategy == nil {
		return models.NormalizedOutput{}, execution.ErrNoStrategy
	}
	return e.opts.Strategy.Run(ctx, j.program)
}

// checkCurrentLocked rejects results of executions that outlived their
// question or the session.
func (e *Engine) checkCurrentLocked(op string, j *job) error {
	if j.epoch != e.epoch || e.session.State.IsTerminal() {
		slog.Debug("dropping stale execution result", "session_id", e.session.ID, "question_id", j.question.ID)
		return newError(KindDiscarded, op, ErrResultDiscarded)
	}
	return nil
}

// NextQuestion moves to the following question once the current one has
// been submitted.
func (e *Engine) NextQuestion() (*models.QuestionView, error) {
	const op = "next question"

	e.mu.Lock()
	if err := e.requireLocked(op, models.SessionActive); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	idx := e.session.CurrentIndex
	if !e.session.HasResult(e.questions[idx].ID) {
		e.mu.Unlock()
		return nil, newError(KindState, op, ErrNotSubmitted)
	}
	if idx+1 >= len(e.questions) {
		e.mu.Unlock()
		return nil, newError(KindState, op, ErrNoMoreQuestions)
	}

	now := e.opts.Now()
	e.session.CurrentIndex++
	e.epoch++
	e.current = questionState{shownAt: now}
	e.lastActivity = now
	view := e.viewLocked()
	ev := e.eventLocked(EventQuestion)
	e.mu.Unlock()

	e.emit(ev)
	return view, nil
}

// EndSession finishes the session: completed when every question has a
// result, aborted otherwise.
func (e *Engine) EndSession() (*models.Session, error) {
	return e.end("end session", false)
}

// Stop aborts the session regardless of progress. An execution still in
// flight finishes and its result is dropped.
func (e *Engine) Stop() (*models.Session, error) {
	return e.end("stop session", true)
}

func (e *Engine) end(op string, abort bool) (*models.Session, error) {
	e.mu.Lock()
	if err := e.requireLocked(op, models.SessionActive, models.SessionPaused); err != nil {
		e.mu.Unlock()
		return nil, err
	}

	state, reason := models.SessionAborted, models.ReasonStopped
	if !abort && len(e.session.Results) == len(e.questions) {
		state, reason = models.SessionCompleted, models.ReasonExhausted
	}
	final := e.finishLocked(state, reason)
	e.mu.Unlock()

	e.persist(final)
	return e.Snapshot(), nil
}

// finishLocked moves the session into a terminal state and returns the
// snapshot to persist.
func (e *Engine) finishLocked(state models.SessionState, reason models.CompletionReason) *models.Session {
	now := e.opts.Now()

	e.countdown.Stop()
	e.epoch++
	e.lastActivity = now

	s := e.session
	s.State = state
	s.CompletionReason = reason
	s.EndedAt = &now
	s.RemainingSeconds = e.countdown.Remaining()
	s.Accuracy = scoring.Accuracy(s.Results)
	s.Score = scoring.Score(s.Accuracy)

	return s.Clone()
}

// persist writes the final summary. The lock is not held during the store
// call; a failure is attached to the session as a warning.
func (e *Engine) persist(final *models.Session) {
	metrics.SessionsFinished.WithLabelValues(string(final.State), string(final.CompletionReason)).Inc()
	slog.Info("session finished",
		"session_id", final.ID,
		"state", final.State,
		"reason", final.CompletionReason,
		"score", final.Score,
		"answered", len(final.Results),
	)

	if e.opts.Sessions != nil {
		ctx, cancel := context.WithTimeout(context.Background(), e.opts.PersistTimeout)
		defer cancel()

		err := e.opts.Sessions.UpdateSession(ctx, final.ID, models.SessionUpdate{
			State:            final.State,
			CompletionReason: final.CompletionReason,
			EndedAt:          *final.EndedAt,
			Results:          final.Results,
			Score:            final.Score,
			Accuracy:         final.Accuracy,
		})
		if err != nil {
			werr := newError(KindPersistence, "update session", err)
			slog.Warn("failed to persist session summary", "session_id", final.ID, "error", err)
			metrics.PersistenceWarnings.Inc()

			e.mu.Lock()
			e.session.Warnings = append(e.session.Warnings, werr.Error())
			e.mu.Unlock()
		}
	}

	e.mu.Lock()
	ev := e.eventLocked(EventState)
	e.mu.Unlock()
	e.emit(ev)
}

// CurrentQuestion returns the candidate's view of the current question
func (e *Engine) CurrentQuestion() (*models.QuestionView, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State == models.SessionSetup {
		return nil, newError(KindState, "current question", ErrNotStarted)
	}
	return e.viewLocked(), nil
}

// RevealHint returns the next hint for the current question
func (e *Engine) RevealHint() (string, error) {
	const op = "reveal hint"

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.requireLocked(op, models.SessionActive, models.SessionPaused); err != nil {
		return "", err
	}

	q := e.questions[e.session.CurrentIndex]
	if e.current.hintsUsed >= len(q.Hints) {
		return "", newError(KindState, op, ErrNoMoreHints)
	}

	hint := q.Hints[e.current.hintsUsed]
	e.current.hintsUsed++
	e.lastActivity = e.opts.Now()
	return hint, nil
}

// Solution returns the reference solution of the current question once it
// has been submitted.
func (e *Engine) Solution() (string, error) {
	const op = "solution"

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.session.State == models.SessionSetup {
		return "", newError(KindState, op, ErrNotStarted)
	}

	q := e.questions[e.session.CurrentIndex]
	if !e.session.HasResult(q.ID) {
		return "", newError(KindState, op, ErrNotSubmitted)
	}
	if !q.HasSolution() {
		return "", newError(KindState, op, ErrNoSolution)
	}
	return q.Solution, nil
}

// Snapshot returns a copy of the session
func (e *Engine) Snapshot() *models.Session {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshotLocked()
}

// ID returns the session id, empty until started
func (e *Engine) ID() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.ID
}

// State returns the current state
func (e *Engine) State() models.SessionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session.State
}

// LastActivity is the time of the last candidate action or state change
func (e *Engine) LastActivity() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastActivity
}

func (e *Engine) requireLocked(op string, allowed ...models.SessionState) error {
	for _, s := range allowed {
		if e.session.State == s {
			return nil
		}
	}
	return e.stateErrorLocked(op)
}

func (e *Engine) stateErrorLocked(op string) error {
	switch e.session.State {
	case models.SessionSetup:
		return newError(KindState, op, ErrNotStarted)
	case models.SessionPaused:
		return newError(KindState, op, ErrSessionPaused)
	case models.SessionCompleted, models.SessionAborted:
		return newError(KindState, op, ErrSessionFinished)
	default:
		return newError(KindState, op, fmt.Errorf("not allowed in state %s", e.session.State))
	}
}

func (e *Engine) testCasesLocked(idx int) []models.TestCase {
	cases, ok := e.cases[idx]
	if !ok {
		cases = parser.Parse(e.questions[idx])
		e.cases[idx] = cases
	}
	return cases
}

// elapsedLocked is the time the current question has been on screen,
// excluding paused spans.
func (e *Engine) elapsedLocked(now time.Time) time.Duration {
	d := now.Sub(e.current.shownAt) - e.current.pausedTotal
	if e.session.State == models.SessionPaused {
		d -= now.Sub(e.pausedAt)
	}
	if d < 0 {
		return 0
	}
	return d
}

func (e *Engine) remainingLocked() int {
	if e.countdown == nil {
		return e.session.RemainingSeconds
	}
	return e.countdown.Remaining()
}

func (e *Engine) snapshotLocked() *models.Session {
	s := e.session.Clone()
	s.RemainingSeconds = e.remainingLocked()
	return s
}

func (e *Engine) viewLocked() *models.QuestionView {
	idx := e.session.CurrentIndex
	q := e.questions[idx]

	return &models.QuestionView{
		ID:            q.ID,
		Index:         idx,
		Total:         len(e.questions),
		Title:         q.Title,
		Description:   q.Description,
		Topic:         q.Topic,
		Difficulty:    q.Difficulty,
		Examples:      q.Examples,
		Constraints:   q.Constraints,
		HintsRevealed: append([]string(nil), q.Hints[:e.current.hintsUsed]...),
		HintsTotal:    len(q.Hints),
		EntryPoint:    harness.EntryPoint("", q),
		Submitted:     e.session.HasResult(q.ID),
	}
}

func (e *Engine) eventLocked(t EventType) Event {
	return Event{
		Type:             t,
		SessionID:        e.session.ID,
		State:            e.session.State,
		RemainingSeconds: e.remainingLocked(),
		QuestionIndex:    e.session.CurrentIndex,
		Score:            e.session.Score,
		Warnings:         append([]string(nil), e.session.Warnings...),
		At:               e.opts.Now(),
	}
}

func (e *Engine) emit(ev Event) {
	if e.opts.Notify != nil {
		e.opts.Notify(ev)
	}
}
