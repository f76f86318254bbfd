package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/terra-clan/practice-engine/internal/execution"
	"github.com/terra-clan/practice-engine/internal/harness"
	"github.com/terra-clan/practice-engine/internal/models"
)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeQuestions struct {
	questions []*models.Question
	err       error
}

func (f *fakeQuestions) GetQuestions(ctx context.Context, topic string, difficulty models.Difficulty, count int) ([]*models.Question, error) {
	return f.questions, f.err
}

type fakeSessions struct {
	mu        sync.Mutex
	createErr error
	updateErr error
	created   []*models.Session
	updates   map[string]models.SessionUpdate
}

func (f *fakeSessions) CreateSession(ctx context.Context, s *models.Session) (*models.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	s.ID = "stored-1"
	f.created = append(f.created, s)
	return s, nil
}

func (f *fakeSessions) UpdateSession(ctx context.Context, id string, u models.SessionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	if f.updates == nil {
		f.updates = make(map[string]models.SessionUpdate)
	}
	f.updates[id] = u
	return nil
}

func (f *fakeSessions) updateCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.updates)
}

// fixedStrategy returns pass or fail verdicts without running anything
type fixedStrategy struct {
	pass bool
}

func (f fixedStrategy) Name() string { return "fixed" }

func (f fixedStrategy) Run(ctx context.Context, p harness.Program) (models.NormalizedOutput, error) {
	out := models.NormalizedOutput{TotalCount: p.TestCount}
	for i := 0; i < p.TestCount; i++ {
		out.Results = append(out.Results, models.ExecutionResult{Index: i, Passed: f.pass})
		if f.pass {
			out.PassedCount++
		}
	}
	return out, nil
}

// blockingStrategy holds every run until released
type blockingStrategy struct {
	started chan struct{}
	release chan struct{}
}

func newBlockingStrategy() *blockingStrategy {
	return &blockingStrategy{started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *blockingStrategy) Name() string { return "blocking" }

func (b *blockingStrategy) Run(ctx context.Context, p harness.Program) (models.NormalizedOutput, error) {
	b.started <- struct{}{}
	<-b.release
	return fixedStrategy{pass: true}.Run(ctx, p)
}

func testQuestions() []*models.Question {
	return []*models.Question{
		{
			ID:       "two-sum",
			Title:    "Two Sum",
			Examples: []models.Example{{Input: "nums = [2,7,11,15], target = 9", Output: "[0,1]"}},
			Hints:    []string{"Use a map", "One pass is enough"},
			Solution: "function twoSum(nums, target) { return []; }",
		},
		{
			ID:       "reverse",
			Title:    "Reverse String",
			Examples: []models.Example{{Input: `s = "abc"`, Output: `"cba"`}},
		},
	}
}

func newTestEngine(t *testing.T, strategy execution.Strategy, sessions *fakeSessions, clock *fakeClock) *Engine {
	t.Helper()
	if clock == nil {
		clock = newFakeClock()
	}
	opts := Options{
		Questions:    &fakeQuestions{questions: testQuestions()},
		Strategy:     strategy,
		Now:          clock.Now,
		TickInterval: time.Hour, // ticks are driven by the test
	}
	if sessions != nil {
		opts.Sessions = sessions
	}
	e := NewEngine(models.SessionConfig{
		Topic:         "arrays",
		Difficulty:    models.DifficultyEasy,
		TimeLimit:     1,
		QuestionCount: 2,
	}, opts)
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() { e.Stop() })
	return e
}

func TestStartWithoutQuestions(t *testing.T) {
	e := NewEngine(models.SessionConfig{TimeLimit: 10, QuestionCount: 3}, Options{
		Questions: &fakeQuestions{},
	})

	_, err := e.Start(context.Background())
	if !errors.Is(err, ErrNoQuestions) {
		t.Fatalf("expected ErrNoQuestions, got %v", err)
	}
	if KindOf(err) != KindSetup {
		t.Errorf("kind = %q, want %q", KindOf(err), KindSetup)
	}
	if e.State() != models.SessionSetup {
		t.Errorf("state = %s, want setup", e.State())
	}
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	tests := []models.SessionConfig{
		{TimeLimit: 0, QuestionCount: 1},
		{TimeLimit: 5, QuestionCount: 0},
		{TimeLimit: 5, QuestionCount: 1, Difficulty: "brutal"},
	}
	for _, cfg := range tests {
		e := NewEngine(cfg, Options{Questions: &fakeQuestions{questions: testQuestions()}})
		if _, err := e.Start(context.Background()); !errors.Is(err, ErrInvalidConfig) {
			t.Errorf("config %+v: expected ErrInvalidConfig, got %v", cfg, err)
		}
	}
}

func TestStartStoreErrorIsSetupError(t *testing.T) {
	e := NewEngine(models.SessionConfig{TimeLimit: 5, QuestionCount: 1}, Options{
		Questions: &fakeQuestions{err: errors.New("db down")},
	})
	if _, err := e.Start(context.Background()); KindOf(err) != KindSetup {
		t.Errorf("expected setup error, got %v", err)
	}
}

func TestStartTwice(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{}, nil, nil)
	if _, err := e.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
}

func TestStartUsesStoreID(t *testing.T) {
	sessions := &fakeSessions{}
	e := newTestEngine(t, fixedStrategy{}, sessions, nil)

	s := e.Snapshot()
	if s.ID != "stored-1" {
		t.Errorf("ID = %q, want stored-1", s.ID)
	}
	if s.State != models.SessionActive || s.RemainingSeconds != 60 || len(s.QuestionIDs) != 2 {
		t.Errorf("unexpected session: %+v", s)
	}
}

func TestStartCreateFailureIsWarning(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{}, &fakeSessions{createErr: errors.New("insert failed")}, nil)

	s := e.Snapshot()
	if s.ID == "" || s.ID == "stored-1" {
		t.Errorf("expected a locally generated id, got %q", s.ID)
	}
	if len(s.Warnings) != 1 {
		t.Errorf("expected one warning, got %v", s.Warnings)
	}
	if s.State != models.SessionActive {
		t.Errorf("state = %s, want active", s.State)
	}
}

func TestTimeUpAfterSixtyTicks(t *testing.T) {
	sessions := &fakeSessions{}
	e := newTestEngine(t, fixedStrategy{}, sessions, nil)

	for i := 0; i < 59; i++ {
		e.Tick()
	}
	if e.State() != models.SessionActive || e.RemainingSeconds() != 1 {
		t.Fatalf("after 59 ticks: state=%s remaining=%d", e.State(), e.RemainingSeconds())
	}

	e.Tick()

	s := e.Snapshot()
	if s.State != models.SessionCompleted || s.CompletionReason != models.ReasonTimeUp {
		t.Fatalf("state=%s reason=%s, want completed/time_up", s.State, s.CompletionReason)
	}
	if s.RemainingSeconds != 0 || s.EndedAt == nil {
		t.Errorf("remaining=%d ended=%v", s.RemainingSeconds, s.EndedAt)
	}
	if sessions.updateCount() != 1 {
		t.Errorf("expected summary to be persisted once, got %d", sessions.updateCount())
	}

	e.Tick()
	if e.RemainingSeconds() != 0 || sessions.updateCount() != 1 {
		t.Error("ticks after completion must be ignored")
	}
}

func TestPauseIsIdempotent(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{}, nil, nil)
	e.Tick()

	first, err := e.Pause()
	if err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	second, err := e.Pause()
	if err != nil {
		t.Fatalf("second Pause failed: %v", err)
	}
	if first.State != models.SessionPaused || second.State != models.SessionPaused {
		t.Errorf("states = %s, %s", first.State, second.State)
	}
	if first.RemainingSeconds != 59 || second.RemainingSeconds != 59 {
		t.Errorf("remaining = %d, %d, want 59", first.RemainingSeconds, second.RemainingSeconds)
	}

	e.Tick()
	if e.RemainingSeconds() != 59 {
		t.Error("ticks must not count down while paused")
	}

	for i := 0; i < 2; i++ {
		s, err := e.Resume()
		if err != nil {
			t.Fatalf("Resume failed: %v", err)
		}
		if s.State != models.SessionActive || s.RemainingSeconds != 59 {
			t.Errorf("after resume: %s %d", s.State, s.RemainingSeconds)
		}
	}

	e.Tick()
	if e.RemainingSeconds() != 58 {
		t.Errorf("remaining = %d, want 58", e.RemainingSeconds())
	}
}

func TestRemainingSecondsIsIdempotent(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{}, nil, nil)
	e.Tick()
	for i := 0; i < 5; i++ {
		if got := e.RemainingSeconds(); got != 59 {
			t.Fatalf("RemainingSeconds() = %d, want 59", got)
		}
	}
}

func TestSubmitFlow(t *testing.T) {
	sessions := &fakeSessions{}
	e := newTestEngine(t, fixedStrategy{pass: true}, sessions, nil)
	ctx := context.Background()

	out, err := e.SubmitSolution(ctx, "function twoSum(nums, target) { return [0, 1]; }")
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if !out.Result.Correct || out.Affordance != AffordanceNextQuestion {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if len(out.Session.Results) != 1 || out.Session.Score != 100 {
		t.Errorf("results=%d score=%d", len(out.Session.Results), out.Session.Score)
	}
	if out.Session.CurrentIndex != 0 {
		t.Error("submit must not advance")
	}

	if _, err := e.SubmitSolution(ctx, "x"); !errors.Is(err, ErrAlreadySubmitted) {
		t.Errorf("expected ErrAlreadySubmitted, got %v", err)
	}
	if len(e.Snapshot().Results) != 1 {
		t.Error("rejected submit must not add a result")
	}

	view, err := e.NextQuestion()
	if err != nil {
		t.Fatalf("NextQuestion failed: %v", err)
	}
	if view.ID != "reverse" || view.Index != 1 || view.Submitted {
		t.Errorf("unexpected view: %+v", view)
	}

	e.opts.Strategy = fixedStrategy{pass: false}
	out, err = e.SubmitSolution(ctx, "function reverseString(s) { return s; }")
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if out.Result.Correct || out.Affordance != AffordanceEndSession {
		t.Errorf("unexpected outcome: %+v", out)
	}
	if out.Session.Score != 50 || out.Session.Accuracy != 0.5 {
		t.Errorf("score=%d accuracy=%v", out.Session.Score, out.Session.Accuracy)
	}

	if _, err := e.NextQuestion(); !errors.Is(err, ErrNoMoreQuestions) {
		t.Errorf("expected ErrNoMoreQuestions, got %v", err)
	}

	final, err := e.EndSession()
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if final.State != models.SessionCompleted || final.CompletionReason != models.ReasonExhausted {
		t.Errorf("state=%s reason=%s", final.State, final.CompletionReason)
	}
	u := sessions.updates["stored-1"]
	if u.Score != 50 || len(u.Results) != 2 {
		t.Errorf("persisted update = %+v", u)
	}
}

func TestSubmitWithRealInterpreter(t *testing.T) {
	e := newTestEngine(t, execution.NewLocalInProcess(2*time.Second), nil, nil)

	code := `function twoSum(nums, target) {
  const seen = new Map();
  for (let i = 0; i < nums.length; i++) {
    if (seen.has(target - nums[i])) return [seen.get(target - nums[i]), i];
    seen.set(nums[i], i);
  }
}`
	out, err := e.SubmitSolution(context.Background(), code)
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if !out.Result.Correct || out.Output.PassedCount != 1 || out.Output.TotalCount != 1 {
		t.Errorf("expected one passing test, got %+v", out.Output)
	}
	if out.Result.Code != code {
		t.Error("submitted code should be recorded")
	}
}

func TestQuestionWithoutExamplesIsNeverCorrect(t *testing.T) {
	e := NewEngine(models.SessionConfig{TimeLimit: 5, QuestionCount: 1}, Options{
		Questions:    &fakeQuestions{questions: []*models.Question{{ID: "open", Title: "Open Ended"}}},
		Strategy:     fixedStrategy{pass: true},
		TickInterval: time.Hour,
	})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer e.Stop()

	out, err := e.SubmitSolution(context.Background(), "function openEnded() {}")
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if out.Result.Correct {
		t.Error("zero test cases must never be correct")
	}
}

func TestNextQuestionRequiresSubmit(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, nil)
	if _, err := e.NextQuestion(); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("expected ErrNotSubmitted, got %v", err)
	}
}

func TestRunCodeOnlyCountsAttempts(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, nil)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := e.RunCode(ctx, "function twoSum() {}"); err != nil {
			t.Fatalf("RunCode failed: %v", err)
		}
	}
	if len(e.Snapshot().Results) != 0 {
		t.Fatal("run must not record results")
	}

	out, err := e.SubmitSolution(ctx, "function twoSum() {}")
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if out.Result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Result.Attempts)
	}
}

func TestPausedSessionAllowsRunButNotSubmit(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, nil)
	if _, err := e.Pause(); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}

	if _, err := e.RunCode(context.Background(), "x"); err != nil {
		t.Errorf("RunCode while paused: %v", err)
	}
	if _, err := e.SubmitSolution(context.Background(), "x"); !errors.Is(err, ErrSessionPaused) {
		t.Errorf("expected ErrSessionPaused, got %v", err)
	}
}

func TestElapsedExcludesPausedTime(t *testing.T) {
	clock := newFakeClock()
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, clock)

	clock.Advance(10 * time.Second)
	e.Pause()
	clock.Advance(100 * time.Second)
	e.Resume()
	clock.Advance(5 * time.Second)

	out, err := e.SubmitSolution(context.Background(), "x")
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if out.Result.TimeSpent != 15 {
		t.Errorf("TimeSpent = %d, want 15", out.Result.TimeSpent)
	}
}

func TestStopDropsInFlightResult(t *testing.T) {
	strategy := newBlockingStrategy()
	sessions := &fakeSessions{}
	e := newTestEngine(t, strategy, sessions, nil)

	errCh := make(chan error, 1)
	go func() {
		_, err := e.SubmitSolution(context.Background(), "function twoSum() {}")
		errCh <- err
	}()
	<-strategy.started

	if _, err := e.RunCode(context.Background(), "x"); !errors.Is(err, ErrExecutionInFlight) {
		t.Errorf("expected ErrExecutionInFlight, got %v", err)
	}

	final, err := e.Stop()
	if err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if final.State != models.SessionAborted || final.CompletionReason != models.ReasonStopped {
		t.Errorf("state=%s reason=%s", final.State, final.CompletionReason)
	}

	close(strategy.release)
	err = <-errCh
	if !errors.Is(err, ErrResultDiscarded) {
		t.Fatalf("expected ErrResultDiscarded, got %v", err)
	}
	if len(e.Snapshot().Results) != 0 {
		t.Error("discarded result must not be applied")
	}
	if len(sessions.updates["stored-1"].Results) != 0 {
		t.Error("persisted summary must not contain the discarded result")
	}
}

func TestEndSessionIncompleteIsAborted(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, nil)
	if _, err := e.SubmitSolution(context.Background(), "x"); err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}

	final, err := e.EndSession()
	if err != nil {
		t.Fatalf("EndSession failed: %v", err)
	}
	if final.State != models.SessionAborted || final.CompletionReason != models.ReasonStopped {
		t.Errorf("state=%s reason=%s", final.State, final.CompletionReason)
	}
	if final.Score != 100 || len(final.Results) != 1 {
		t.Errorf("score=%d results=%d", final.Score, len(final.Results))
	}
}

func TestTerminalSessionRejectsActions(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, nil)
	if _, err := e.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	checks := map[string]error{}
	_, checks["submit"] = e.SubmitSolution(context.Background(), "x")
	_, checks["run"] = e.RunCode(context.Background(), "x")
	_, checks["next"] = e.NextQuestion()
	_, checks["pause"] = e.Pause()
	_, checks["resume"] = e.Resume()
	_, checks["end"] = e.EndSession()
	_, checks["stop"] = e.Stop()
	_, checks["hint"] = e.RevealHint()

	for name, err := range checks {
		if !errors.Is(err, ErrSessionFinished) {
			t.Errorf("%s: expected ErrSessionFinished, got %v", name, err)
		}
		if KindOf(err) != KindState {
			t.Errorf("%s: kind = %q", name, KindOf(err))
		}
	}
}

func TestPersistenceFailureIsWarning(t *testing.T) {
	sessions := &fakeSessions{updateErr: errors.New("connection reset")}
	e := newTestEngine(t, fixedStrategy{pass: true}, sessions, nil)

	final, err := e.Stop()
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if final.State != models.SessionAborted {
		t.Errorf("state = %s, want aborted", final.State)
	}
	if len(final.Warnings) != 1 {
		t.Errorf("expected one persistence warning, got %v", final.Warnings)
	}
}

func TestHintsAndSolution(t *testing.T) {
	e := newTestEngine(t, fixedStrategy{pass: true}, nil, nil)

	if _, err := e.Solution(); !errors.Is(err, ErrNotSubmitted) {
		t.Errorf("expected ErrNotSubmitted, got %v", err)
	}

	for _, want := range []string{"Use a map", "One pass is enough"} {
		hint, err := e.RevealHint()
		if err != nil || hint != want {
			t.Errorf("RevealHint() = %q, %v; want %q", hint, err, want)
		}
	}
	if _, err := e.RevealHint(); !errors.Is(err, ErrNoMoreHints) {
		t.Errorf("expected ErrNoMoreHints, got %v", err)
	}

	view, _ := e.CurrentQuestion()
	if len(view.HintsRevealed) != 2 || view.HintsTotal != 2 || view.EntryPoint != "twoSum" {
		t.Errorf("unexpected view: %+v", view)
	}

	out, err := e.SubmitSolution(context.Background(), "x")
	if err != nil {
		t.Fatalf("SubmitSolution failed: %v", err)
	}
	if out.Result.HintsUsed != 2 {
		t.Errorf("HintsUsed = %d, want 2", out.Result.HintsUsed)
	}

	solution, err := e.Solution()
	if err != nil || solution == "" {
		t.Errorf("Solution() = %q, %v", solution, err)
	}

	e.NextQuestion()
	e.SubmitSolution(context.Background(), "x")
	if _, err := e.Solution(); !errors.Is(err, ErrNoSolution) {
		t.Errorf("expected ErrNoSolution, got %v", err)
	}
}

func TestEventsAreEmitted(t *testing.T) {
	var mu sync.Mutex
	var events []EventType

	e := NewEngine(models.SessionConfig{TimeLimit: 1, QuestionCount: 1}, Options{
		Questions:    &fakeQuestions{questions: testQuestions()[:1]},
		Strategy:     fixedStrategy{pass: true},
		TickInterval: time.Hour,
		Notify: func(ev Event) {
			mu.Lock()
			events = append(events, ev.Type)
			mu.Unlock()
		},
	})
	if _, err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	e.Tick()
	e.SubmitSolution(context.Background(), "x")
	e.EndSession()

	mu.Lock()
	defer mu.Unlock()
	want := []EventType{EventState, EventTick, EventResult, EventState}
	if len(events) != len(want) {
		t.Fatalf("events = %v, want %v", events, want)
	}
	for i := range want {
		if events[i] != want[i] {
			t.Errorf("event %d = %s, want %s", i, events[i], want[i])
		}
	}
}
