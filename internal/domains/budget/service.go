package budget

import (
	"context"
	"errors"
	"math"

	"github.com/xpanvictor/telly/pkg/Logger"
	"github.com/xpanvictor/telly/pkg/render"
)

var ErrUserNotFound = errors.New("user not found")

// Summary is what a user has spent and has left.
type Summary struct {
	Day     float64
	Month   float64
	AllTime float64
	Balance float64
}

// Repository persists balances and usage. Cost increments must be additive
// and commutative per user key: concurrent streams reporting usage for the
// same user must not lose updates.
type Repository interface {
	EnsureUser(ctx context.Context, userID int64, userName string, initialBalance float64) error
	Balance(ctx context.Context, userID int64) (float64, error)
	AddBalance(ctx context.Context, userID int64, amount float64, method string) error
	AddCost(ctx context.Context, userID int64, tokens int, cost float64) error
	Costs(ctx context.Context, userID int64) (*Summary, error)
}

// Service is the prepaid usage ledger consulted before a stream starts and
// credited by payment webhooks. It is never consulted mid-stream.
type Service interface {
	Touch(ctx context.Context, userID int64, userName string) error
	Allow(ctx context.Context, userID int64) (bool, error)
	Credit(ctx context.Context, userID int64, amount float64, method string) error
	ReportUsage(ctx context.Context, userID int64, tokens int) error
	Summary(ctx context.Context, userID int64) (*Summary, error)
	ReporterFor(userID int64) render.UsageReporter
}

type budgetService struct {
	repo       Repository
	tokenPrice float64 // per 1000 tokens
	initial    float64
	logger     *Logger.Logger
}

func New(repo Repository, tokenPrice, initialBalance float64, logger *Logger.Logger) Service {
	return &budgetService{
		repo:       repo,
		tokenPrice: tokenPrice,
		initial:    initialBalance,
		logger:     logger,
	}
}

// Touch registers the user on first contact with the free starting credit.
func (s *budgetService) Touch(ctx context.Context, userID int64, userName string) error {
	return s.repo.EnsureUser(ctx, userID, userName, s.initial)
}

// Allow implements the pre-stream budget gate. The check and the later
// usage report are deliberately not atomic; a stream that slightly
// overruns an exhausted budget is acceptable, lost increments are not.
func (s *budgetService) Allow(ctx context.Context, userID int64) (bool, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	costs, err := s.repo.Costs(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance-costs.AllTime > 0, nil
}

func (s *budgetService) Credit(ctx context.Context, userID int64, amount float64, method string) error {
	if err := s.repo.AddBalance(ctx, userID, amount, method); err != nil {
		return err
	}
	s.logger.Infof("credited user %d with %.4f via %s", userID, amount, method)
	return nil
}

func (s *budgetService) ReportUsage(ctx context.Context, userID int64, tokens int) error {
	cost := math.Round(float64(tokens)*s.tokenPrice/1000*1e6) / 1e6
	return s.repo.AddCost(ctx, userID, tokens, cost)
}

func (s *budgetService) Summary(ctx context.Context, userID int64) (*Summary, error) {
	balance, err := s.repo.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	costs, err := s.repo.Costs(ctx, userID)
	if err != nil {
		return nil, err
	}
	costs.Balance = balance
	return costs, nil
}

// ReporterFor binds the ledger to one user for the duration of one stream.
func (s *budgetService) ReporterFor(userID int64) render.UsageReporter {
	return &userReporter{svc: s, userID: userID}
}

type userReporter struct {
	svc    *budgetService
	userID int64
}

func (r *userReporter) ReportUsage(ctx context.Context, tokens int) error {
	return r.svc.ReportUsage(ctx, r.userID, tokens)
}
