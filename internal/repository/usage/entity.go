package usage

import (
	"time"
)

// UserBalanceEntity is the prepaid balance row for one chat user.
type UserBalanceEntity struct {
	UserID    int64   `gorm:"primaryKey"`
	UserName  string  `gorm:"type:varchar(255)"`
	Balance   float64 `gorm:"not null;default:0"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (UserBalanceEntity) TableName() string {
	return "user_balances"
}

// UsageRecordEntity is one completed stream's token accounting.
type UsageRecordEntity struct {
	ID        uint  `gorm:"primaryKey;autoIncrement"`
	UserID    int64 `gorm:"index;not null"`
	Tokens    int   `gorm:"not null"`
	Cost      float64
	CreatedAt time.Time
}

func (UsageRecordEntity) TableName() string {
	return "usage_records"
}

// PaymentEntity is a confirmed top-up from any provider.
type PaymentEntity struct {
	ID        uint   `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"index;not null"`
	Amount    float64 `gorm:"not null"`
	Method    string  `gorm:"type:varchar(64)"`
	CreatedAt time.Time
}

func (PaymentEntity) TableName() string {
	return "payments"
}
