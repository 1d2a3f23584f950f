package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis"
	"github.com/xpanvictor/telly/internal/domains/budget"
	"gorm.io/gorm"
)

// GormUsageRepo keeps balances and usage records in mysql and maintains
// hot per-user cost counters in redis. The redis counters use IncrByFloat
// so concurrent streams for the same user commute.
type GormUsageRepo struct {
	db *gorm.DB
	rc *redis.Client
}

func NewGormUsageRepo(db *gorm.DB, rc *redis.Client) budget.Repository {
	return &GormUsageRepo{db: db, rc: rc}
}

func dayKey(userID int64, now time.Time) string {
	return fmt.Sprintf("usage:%d:day:%s", userID, now.Format("2006-01-02"))
}

func monthKey(userID int64, now time.Time) string {
	return fmt.Sprintf("usage:%d:month:%s", userID, now.Format("2006-01"))
}

func allTimeKey(userID int64) string {
	return fmt.Sprintf("usage:%d:all", userID)
}

// EnsureUser implements budget.Repository.
func (g *GormUsageRepo) EnsureUser(ctx context.Context, userID int64, userName string, initialBalance float64) error {
	entity := UserBalanceEntity{UserID: userID, UserName: userName, Balance: initialBalance}
	err := g.db.WithContext(ctx).
		Where(UserBalanceEntity{UserID: userID}).
		FirstOrCreate(&entity).Error
	if err != nil {
		return fmt.Errorf("failed to ensure user %d: %w", userID, err)
	}
	return nil
}

// Balance implements budget.Repository.
func (g *GormUsageRepo) Balance(ctx context.Context, userID int64) (float64, error) {
	var entity UserBalanceEntity
	if err := g.db.WithContext(ctx).Where("user_id = ?", userID).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, budget.ErrUserNotFound
		}
		return 0, fmt.Errorf("failed to fetch balance: %w", err)
	}
	return entity.Balance, nil
}

// AddBalance implements budget.Repository.
func (g *GormUsageRepo) AddBalance(ctx context.Context, userID int64, amount float64, method string) error {
	return g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&UserBalanceEntity{}).
			Where("user_id = ?", userID).
			UpdateColumn("balance", gorm.Expr("balance + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("failed to add balance: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return budget.ErrUserNotFound
		}
		if err := tx.Create(&PaymentEntity{UserID: userID, Amount: amount, Method: method}).Error; err != nil {
			return fmt.Errorf("failed to record payment: %w", err)
		}
		return nil
	})
}

// AddCost implements budget.Repository. The redis increments are additive
// so reports from concurrent streams never overwrite each other.
func (g *GormUsageRepo) AddCost(ctx context.Context, userID int64, tokens int, cost float64) error {
	now := time.Now()

	if err := g.rc.IncrByFloat(allTimeKey(userID), cost).Err(); err != nil {
		return fmt.Errorf("failed to bump all-time cost: %w", err)
	}
	if err := g.rc.IncrByFloat(dayKey(userID, now), cost).Err(); err != nil {
		return fmt.Errorf("failed to bump day cost: %w", err)
	}
	g.rc.Expire(dayKey(userID, now), 48*time.Hour)
	if err := g.rc.IncrByFloat(monthKey(userID, now), cost).Err(); err != nil {
		return fmt.Errorf("failed to bump month cost: %w", err)
	}
	g.rc.Expire(monthKey(userID, now), 40*24*time.Hour)

	if err := g.db.WithContext(ctx).
		Create(&UsageRecordEntity{UserID: userID, Tokens: tokens, Cost: cost}).Error; err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// Costs implements budget.Repository.
func (g *GormUsageRepo) Costs(ctx context.Context, userID int64) (*budget.Summary, error) {
	now := time.Now()
	summary := &budget.Summary{}

	var err error
	if summary.AllTime, err = g.counter(allTimeKey(userID)); err != nil {
		return nil, err
	}
	if summary.Day, err = g.counter(dayKey(userID, now)); err != nil {
		return nil, err
	}
	if summary.Month, err = g.counter(monthKey(userID, now)); err != nil {
		return nil, err
	}

	// cold start: redis was wiped, rebuild the all-time counter from mysql
	if summary.AllTime == 0 {
		var total float64
		err := g.db.WithContext(ctx).
			Model(&UsageRecordEntity{}).
			Where("user_id = ?", userID).
			Select("COALESCE(SUM(cost), 0)").
			Scan(&total).Error
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild all-time cost: %w", err)
		}
		if total > 0 {
			summary.AllTime = total
			g.rc.Set(allTimeKey(userID), total, 0)
		}
	}
	return summary, nil
}

func (g *GormUsageRepo) counter(key string) (float64, error) {
	v, err := g.rc.Get(key).Float64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read counter %s: %w", key, err)
	}
	return v, nil
}
