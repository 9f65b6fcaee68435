package model

import (
	"time"
)

const (
	PointSourceInitial = "initial"       // 注册赠送
	PointSourcePayment = "order_payment" // 发单扣除
	PointSourceReward  = "order_reward"  // 完成订单奖励
	PointSourceRefund  = "order_refund"  // 取消订单退回
)

// PointRecord 积分流水表
// 只追加，不修改，不删除；与 users.points 的变动在同一个事务内写入
// BalanceAfter = BalanceBefore + Delta
type PointRecord struct {
	ID            int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	RecordNo      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"record_no"`
	UserID        int64     `gorm:"index;not null" json:"user_id"`
	OrderID       *int64    `gorm:"index" json:"order_id"`
	Delta         int64     `gorm:"column:delta;not null" json:"change"` // 正数入账，负数出账
	Source        string    `gorm:"type:varchar(32);not null" json:"source"`
	BalanceBefore int64     `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64     `gorm:"not null" json:"balance_after"`
	Remark        string    `gorm:"type:varchar(256)" json:"remark"`
	CreatedAt     time.Time `gorm:"autoCreateTime;index" json:"created_at"`
}

func (PointRecord) TableName() string {
	return "point_record"
}
