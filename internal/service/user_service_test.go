package service

import (
	"context"
	"strings"
	"testing"

	"unirun/internal/model"
	"unirun/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterGrantsInitialPoints(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user, err := env.users.Register(ctx, RegisterRequest{
		StudentID: " 2023123456 ",
		Name:      "小明",
		Password:  "secret1",
	})
	require.NoError(t, err)
	assert.NotZero(t, user.ID)
	assert.Equal(t, "2023123456", user.StudentID)
	assert.Equal(t, int64(100), user.Points)
	assert.Equal(t, 100, user.CreditScore)
	assert.NotEqual(t, "secret1", user.PasswordHash)

	records := env.pointRecords(t, user.ID)
	require.Len(t, records, 1)
	assert.Equal(t, model.PointSourceInitial, records[0].Source)
	assert.Equal(t, "初始积分", records[0].Remark)
	assert.Equal(t, int64(0), records[0].BalanceBefore)
	assert.Equal(t, int64(100), records[0].BalanceAfter)
	env.assertLedger(t, user)
}

func TestRegisterRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, nil)

	cases := []struct {
		name string
		req  RegisterRequest
	}{
		{"short student id", RegisterRequest{StudentID: "12345", Name: "小明", Password: "123456"}},
		{"letters in student id", RegisterRequest{StudentID: "2023abc456", Name: "小明", Password: "123456"}},
		{"empty name", RegisterRequest{StudentID: "2023123456", Name: "  ", Password: "123456"}},
		{"long name", RegisterRequest{StudentID: "2023123456", Name: strings.Repeat("名", maxNameLength+1), Password: "123456"}},
		{"short password", RegisterRequest{StudentID: "2023123456", Name: "小明", Password: "12345"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := env.users.Register(context.Background(), tc.req)
			assertKind(t, apperr.KindInvalidInput, err)
		})
	}
}

func TestRegisterDuplicateStudentID(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	req := RegisterRequest{StudentID: "20231234567", Name: "小明", Password: "123456"}
	_, err := env.users.Register(ctx, req)
	require.NoError(t, err)

	_, err = env.users.Register(ctx, req)
	assertKind(t, apperr.KindConflict, err)
	assert.Equal(t, "该学号已注册", apperr.MessageOf(err))
}

func TestAuthenticate(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()

	user := env.register(t, "小明")

	got, err := env.users.Authenticate(ctx, user.StudentID, "123456")
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, wrongPassword := env.users.Authenticate(ctx, user.StudentID, "654321")
	assertKind(t, apperr.KindUnauthorized, wrongPassword)

	_, unknown := env.users.Authenticate(ctx, "2099000000", "123456")
	assertKind(t, apperr.KindUnauthorized, unknown)

	// 不区分学号不存在和密码错误
	assert.Equal(t, apperr.MessageOf(wrongPassword), apperr.MessageOf(unknown))
}

func TestGetUnknownUser(t *testing.T) {
	env := newTestEnv(t, nil)

	_, err := env.users.Get(context.Background(), 404)
	assertKind(t, apperr.KindNotFound, err)
}

func TestProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	requester := env.register(t, "发单人")
	runner := env.register(t, "跑腿")

	profile, err := env.users.Profile(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), profile.CompletedOrders)
	assert.Nil(t, profile.AvgRating)

	first := env.completedOrder(t, requester, runner)
	second := env.completedOrder(t, requester, runner)
	_, err = env.reviews.Rate(ctx, first.ID, requester.ID, RateRequest{Score: 5})
	require.NoError(t, err)
	_, err = env.reviews.Rate(ctx, second.ID, requester.ID, RateRequest{Score: 4})
	require.NoError(t, err)

	profile, err = env.users.Profile(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), profile.CompletedOrders)
	assert.Equal(t, int64(2), profile.ReviewCount)
	require.NotNil(t, profile.AvgRating)
	assert.InDelta(t, 4.5, *profile.AvgRating, 0.001)
	assert.Equal(t, int64(140), profile.Points)
}
