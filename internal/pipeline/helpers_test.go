package pipeline

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"iprisk-backend/internal/conflicts"
	"iprisk-backend/internal/execlog"
	"iprisk-backend/internal/invoker"
	"iprisk-backend/internal/llm"
	"iprisk-backend/internal/notify"
	"iprisk-backend/internal/patents"
	"iprisk-backend/internal/reports"
	"iprisk-backend/internal/retry"
	"iprisk-backend/internal/runs"
	"iprisk-backend/internal/users"
)

// kindGenerator answers each request kind with a function of the request.
type kindGenerator struct {
	name  string
	mu    sync.Mutex
	calls map[llm.Kind]int
	reply map[llm.Kind]func(req llm.Request) (string, error)
}

func newKindGenerator(name string) *kindGenerator {
	return &kindGenerator{
		name:  name,
		calls: map[llm.Kind]int{},
		reply: map[llm.Kind]func(llm.Request) (string, error){},
	}
}

func (g *kindGenerator) on(kind llm.Kind, fn func(req llm.Request) (string, error)) *kindGenerator {
	g.reply[kind] = fn
	return g
}

func (g *kindGenerator) Name() string { return g.name }

func (g *kindGenerator) Generate(ctx context.Context, req llm.Request) (string, error) {
	g.mu.Lock()
	g.calls[req.Kind]++
	fn := g.reply[req.Kind]
	g.mu.Unlock()
	if fn == nil {
		return llm.Offline{}.Generate(ctx, req)
	}
	return fn(req)
}

func (g *kindGenerator) count(kind llm.Kind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

func (g *kindGenerator) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n := 0
	for _, c := range g.calls {
		n += c
	}
	return n
}

type fakePatents struct {
	mu      sync.Mutex
	calls   int
	results []patents.Candidate
	err     error
}

func (f *fakePatents) Search(ctx context.Context, q patents.Query) ([]patents.Candidate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return append([]patents.Candidate(nil), f.results...), nil
}

func (f *fakePatents) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNotifier struct {
	mu      sync.Mutex
	enabled bool
	err     error
	sent    []notify.Message
}

func (f *fakeNotifier) Enabled() bool { return f.enabled }

func (f *fakeNotifier) Send(ctx context.Context, msg notify.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

// recordingInvoker captures tasks without running them.
type recordingInvoker struct {
	mu    sync.Mutex
	tasks []invoker.Task
	err   error
}

func (r *recordingInvoker) Invoke(ctx context.Context, task invoker.Task) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.tasks = append(r.tasks, task)
	return nil
}

func (r *recordingInvoker) last() invoker.Task {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.tasks) == 0 {
		return invoker.Task{}
	}
	return r.tasks[len(r.tasks)-1]
}

// progressRepo records every progress value a transition writes.
type progressRepo struct {
	*runs.MemoryRepo
	mu       sync.Mutex
	progress []int
	statuses []runs.Status
}

func (r *progressRepo) Transition(ctx context.Context, runID string, u runs.Update) (runs.Run, error) {
	run, err := r.MemoryRepo.Transition(ctx, runID, u)
	if err == nil {
		r.mu.Lock()
		r.progress = append(r.progress, run.ProgressPercentage)
		r.statuses = append(r.statuses, run.Status)
		r.mu.Unlock()
	}
	return run, err
}

func noWait() retry.Options {
	return retry.Options{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		Sleep:        func(context.Context, time.Duration) error { return nil },
	}
}

var errUpstream = errors.New("upstream 503")

type fixture struct {
	svc      *Service
	runs     *progressRepo
	execlog  *execlog.MemoryRepo
	gen      *kindGenerator
	patents  *fakePatents
	notifier *fakeNotifier
	invoker  *recordingInvoker
}

func newFixture(t *testing.T, providers ...llm.Generator) *fixture {
	t.Helper()
	gen := newKindGenerator("primary")
	if len(providers) == 0 {
		providers = []llm.Generator{gen}
	}
	f := &fixture{
		runs:     &progressRepo{MemoryRepo: runs.NewMemoryRepo()},
		execlog:  execlog.NewMemoryRepo(),
		gen:      gen,
		patents:  &fakePatents{results: sampleCandidates()},
		notifier: &fakeNotifier{enabled: true},
		invoker:  &recordingInvoker{},
	}
	f.svc = &Service{
		Runs:          f.runs,
		Conflicts:     conflicts.NewMemoryRepo(),
		Reports:       reports.NewMemoryRepo(),
		ExecLog:       f.execlog,
		Users:         users.NewMemoryRepo(),
		LLM:           llm.NewChain(noWait(), providers...),
		Patents:       f.patents,
		Notifier:      f.notifier,
		Invoker:       f.invoker,
		Guard:         invoker.NewMemoryGuard(time.Hour),
		Retry:         noWait(),
		MaxCandidates: DefaultMaxCandidates,
		AppBaseURL:    "https://app.example",
	}
	return f
}

// seedRun stores a run directly, bypassing intake validation.
func (f *fixture) seedRun(t *testing.T, mutate func(*runs.Run)) runs.Run {
	t.Helper()
	now := time.Now().UTC()
	run := runs.Run{
		ID:                   "run-" + t.Name(),
		UserID:               "user-1",
		InventionDescription: "A self-cleaning solar panel mount that tilts to shed dust.",
		TechnicalKeywords:    []string{"solar", "tilt"},
		Status:               runs.StatusSearching,
		ProgressPercentage:   runs.InitialProgress,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	if mutate != nil {
		mutate(&run)
	}
	require.NoError(t, f.runs.Create(context.Background(), run))
	return run
}

func (f *fixture) entries(t *testing.T, runID string) []execlog.Entry {
	t.Helper()
	entries, err := f.execlog.ListByRun(context.Background(), runID)
	require.NoError(t, err)
	return entries
}

func sampleCandidates() []patents.Candidate {
	return []patents.Candidate{
		{PatentNumber: "US1000001B2", Title: "Tilting panel mount", Assignee: "Sunco", LegalStatus: patents.StatusActive, Relevance: 0.9},
		{PatentNumber: "US1000002B2", Title: "Dust shedding surface", Assignee: "Clearview", LegalStatus: patents.StatusExpired, Relevance: 0.7},
		{PatentNumber: "US1000003A1", Title: "Panel cleaning robot", Assignee: "Botics", LegalStatus: patents.StatusPending, Relevance: 0.6},
		{PatentNumber: "US1000004A1", Title: "Solar tracker", Assignee: "Trackers Inc", LegalStatus: patents.StatusPending, Relevance: 0.5},
		{PatentNumber: "US1000005B1", Title: "Vibrating dust remover", Assignee: "Shake LLC", LegalStatus: patents.StatusActive, Relevance: 0.4},
	}
}
