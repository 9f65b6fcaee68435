package model

import (
	"time"
)

// User 用户表
// Points 是积分余额，必须始终等于该用户所有积分流水 Delta 之和
type User struct {
	ID           int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	StudentID    string    `gorm:"type:varchar(16);uniqueIndex;not null" json:"student_id"` // 学号，注册后不可修改
	Name         string    `gorm:"type:varchar(64);not null" json:"name"`
	PasswordHash string    `gorm:"type:varchar(255);not null" json:"-"`
	Points       int64     `gorm:"not null;default:0" json:"points"`
	CreditScore  int       `gorm:"not null" json:"credit_score"` // 信用分 [0,100]
	AvatarURL    string    `gorm:"type:varchar(255)" json:"avatar_url"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// UserBrief 对其他用户展示的公开信息
type UserBrief struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	CreditScore int    `json:"credit_score"`
	AvatarURL   string `json:"avatar_url"`
}

func (u *User) Brief() *UserBrief {
	if u == nil {
		return nil
	}
	return &UserBrief{
		ID:          u.ID,
		Name:        u.Name,
		CreditScore: u.CreditScore,
		AvatarURL:   u.AvatarURL,
	}
}
