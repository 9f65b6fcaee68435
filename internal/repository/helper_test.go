package repository

import (
	"context"
	"strings"
	"testing"

	"unirun/internal/infrastructure/database"
	"unirun/internal/model"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenInMemory(strings.ReplaceAll(t.Name(), "/", "_"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func seedUser(t *testing.T, db *gorm.DB, studentID string, points int64) *model.User {
	t.Helper()
	user := &model.User{
		StudentID:    studentID,
		Name:         "用户" + studentID,
		PasswordHash: "x",
		Points:       points,
		CreditScore:  100,
	}
	require.NoError(t, NewUserRepository(db).Create(context.Background(), nil, user))
	return user
}

func seedOrder(t *testing.T, db *gorm.DB, requesterID int64, category string) *model.Order {
	t.Helper()
	order := &model.Order{
		OrderNo:         "RUN" + strings.ReplaceAll(t.Name(), "/", "_") + category + string(rune('a'+requesterID)),
		RequesterID:     requesterID,
		Status:          model.OrderStatusOpen,
		Category:        category,
		RewardPoints:    20,
		LocationDeliver: "宿舍 3 号楼",
		Tags:            []string{"小件"},
	}
	require.NoError(t, NewOrderRepository(db).Create(context.Background(), nil, order))
	return order
}
