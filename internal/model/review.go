package model

import (
	"time"
)

const (
	ScoreMin = 1
	ScoreMax = 5

	CreditScoreMin = 0
	CreditScoreMax = 100
)

// Review 订单评价，每个订单每个评价人只能评价一次
type Review struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID     int64     `gorm:"not null;uniqueIndex:ux_review_order_reviewer" json:"order_id"`
	ReviewerID  int64     `gorm:"not null;uniqueIndex:ux_review_order_reviewer" json:"reviewer_id"`
	RevieweeID  int64     `gorm:"not null;index" json:"reviewee_id"`
	Score       int       `gorm:"not null" json:"rating"`
	Comment     string    `gorm:"type:varchar(500)" json:"comment"`
	CreditDelta int       `gorm:"not null" json:"credit_delta"`
	CreatedAt   time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (Review) TableName() string {
	return "review"
}

// CreditDelta 5 星 +2，3 星不变，1 星 -2
func CreditDelta(score int) int {
	return score - 3
}

func ClampCreditScore(score int) int {
	if score < CreditScoreMin {
		return CreditScoreMin
	}
	if score > CreditScoreMax {
		return CreditScoreMax
	}
	return score
}
