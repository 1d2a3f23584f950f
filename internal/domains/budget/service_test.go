package budget

import (
	"context"
	"sync"
	"testing"

	"github.com/xpanvictor/telly/pkg/Logger"
)

type memRepo struct {
	mu       sync.Mutex
	balances map[int64]float64
	costs    map[int64]float64
	tokens   map[int64]int
}

func newMemRepo() *memRepo {
	return &memRepo{
		balances: make(map[int64]float64),
		costs:    make(map[int64]float64),
		tokens:   make(map[int64]int),
	}
}

func (m *memRepo) EnsureUser(_ context.Context, userID int64, _ string, initial float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		m.balances[userID] = initial
	}
	return nil
}

func (m *memRepo) Balance(_ context.Context, userID int64) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.balances[userID]
	if !ok {
		return 0, ErrUserNotFound
	}
	return b, nil
}

func (m *memRepo) AddBalance(_ context.Context, userID int64, amount float64, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.balances[userID]; !ok {
		return ErrUserNotFound
	}
	m.balances[userID] += amount
	return nil
}

func (m *memRepo) AddCost(_ context.Context, userID int64, tokens int, cost float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.costs[userID] += cost
	m.tokens[userID] += tokens
	return nil
}

func (m *memRepo) Costs(_ context.Context, userID int64) (*Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.costs[userID]
	return &Summary{Day: c, Month: c, AllTime: c}, nil
}

func TestAllowGatesOnRemainingBudget(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, 20.0, 0.01, Logger.New(true)) // 0.02 per token, tiny credit
	ctx := context.Background()

	if err := svc.Touch(ctx, 7, "tester"); err != nil {
		t.Fatalf("touch: %v", err)
	}
	ok, err := svc.Allow(ctx, 7)
	if err != nil || !ok {
		t.Fatalf("fresh user allowed = (%v, %v), want true", ok, err)
	}

	if err := svc.ReportUsage(ctx, 7, 1000); err != nil {
		t.Fatalf("report: %v", err)
	}
	ok, err = svc.Allow(ctx, 7)
	if err != nil || ok {
		t.Fatalf("exhausted user allowed = (%v, %v), want false", ok, err)
	}

	if err := svc.Credit(ctx, 7, 5, "cryptomus"); err != nil {
		t.Fatalf("credit: %v", err)
	}
	ok, _ = svc.Allow(ctx, 7)
	if !ok {
		t.Fatalf("topped-up user must be allowed again")
	}
}

func TestConcurrentUsageReportsAreNotLost(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, 2.0, 100, Logger.New(true))
	ctx := context.Background()
	if err := svc.Touch(ctx, 9, "racer"); err != nil {
		t.Fatalf("touch: %v", err)
	}

	const streams = 50
	var wg sync.WaitGroup
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			reporter := svc.ReporterFor(9)
			if err := reporter.ReportUsage(ctx, 100); err != nil {
				t.Errorf("report usage: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := repo.tokens[9]; got != streams*100 {
		t.Fatalf("recorded tokens = %d, want %d", got, streams*100)
	}
	sum, err := svc.Summary(ctx, 9)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	want := float64(streams) * 100 * 2.0 / 1000
	if diff := sum.AllTime - want; diff > 1e-6 || diff < -1e-6 {
		t.Fatalf("all-time cost = %v, want %v", sum.AllTime, want)
	}
}

func TestTouchIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := New(repo, 20.0, 1, Logger.New(true))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := svc.Touch(ctx, 11, "again"); err != nil {
			t.Fatalf("touch %d: %v", i, err)
		}
	}
	b, err := repo.Balance(ctx, 11)
	if err != nil || b != 1 {
		t.Fatalf("balance = (%v, %v), want the starting credit exactly once", b, err)
	}
}
