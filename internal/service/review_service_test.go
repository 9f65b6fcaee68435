package service

import (
	"context"
	"strings"
	"testing"

	"unirun/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateRequiresCompletedOrder(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	requester := env.register(t, "发单人")
	runner := env.register(t, "跑腿")

	order := env.createOrder(t, requester)
	_, err := env.orders.Take(ctx, order.ID, runner.ID)
	require.NoError(t, err)

	_, err = env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: 5})
	assertKind(t, apperr.KindInvalidTransition, err)
	assert.Equal(t, "订单未完成，无法评价", apperr.MessageOf(err))
}

func TestRateValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	requester := env.register(t, "发单人")
	runner := env.register(t, "跑腿")
	stranger := env.register(t, "路人")
	order := env.completedOrder(t, requester, runner)

	for _, score := range []int{0, 6, -1} {
		_, err := env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: score})
		assertKind(t, apperr.KindInvalidInput, err)
	}

	_, err := env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: 4, Comment: strings.Repeat("好", maxCommentLength+1)})
	assertKind(t, apperr.KindInvalidInput, err)

	_, err = env.reviews.Rate(ctx, order.ID, stranger.ID, RateRequest{Score: 4})
	assertKind(t, apperr.KindForbidden, err)

	_, err = env.reviews.Rate(ctx, 4040, requester.ID, RateRequest{Score: 4})
	assertKind(t, apperr.KindNotFound, err)
}

func TestRateOncePerReviewer(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	requester := env.register(t, "发单人")
	runner := env.register(t, "跑腿")
	order := env.completedOrder(t, requester, runner)

	_, err := env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: 1, Comment: "太慢了"})
	require.NoError(t, err)

	_, err = env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: 1})
	assertKind(t, apperr.KindConflict, err)

	// 双方各自可以评价一次
	review, err := env.reviews.Rate(ctx, order.ID, runner.ID, RateRequest{Score: 3})
	require.NoError(t, err)
	assert.Equal(t, requester.ID, review.RevieweeID)
	assert.Equal(t, 0, review.CreditDelta)

	got, err := env.users.Get(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, 98, got.CreditScore, "only the first review counts")

	reviews, err := env.reviews.ListByOrder(ctx, order.ID, runner.ID)
	require.NoError(t, err)
	assert.Len(t, reviews, 2)

	received, err := env.reviews.ListReceived(ctx, runner.ID)
	require.NoError(t, err)
	require.Len(t, received, 1)
	assert.Equal(t, "太慢了", received[0].Comment)
}

func TestRateClampsCreditScore(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	requester := env.register(t, "发单人")
	runner := env.register(t, "跑腿")
	env.setCreditScore(t, runner.ID, 1)

	order := env.completedOrder(t, requester, runner)
	review, err := env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: 1})
	require.NoError(t, err)
	assert.Equal(t, -2, review.CreditDelta)

	got, err := env.users.Get(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CreditScore)

	// 重复评价被拒绝，信用分不再变化
	_, err = env.reviews.Rate(ctx, order.ID, requester.ID, RateRequest{Score: 1})
	assertKind(t, apperr.KindConflict, err)
	got, err = env.users.Get(ctx, runner.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.CreditScore)
	env.assertLedger(t, requester, runner)

	// 上限
	env.setCreditScore(t, requester.ID, 99)
	order = env.completedOrder(t, runner, requester)
	_, err = env.reviews.Rate(ctx, order.ID, runner.ID, RateRequest{Score: 5})
	require.NoError(t, err)

	got, err = env.users.Get(ctx, requester.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, got.CreditScore)
}

func TestListReviewsVisibility(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	requester := env.register(t, "发单人")
	runner := env.register(t, "跑腿")
	stranger := env.register(t, "路人")
	order := env.completedOrder(t, requester, runner)

	_, err := env.reviews.ListByOrder(ctx, order.ID, stranger.ID)
	assertKind(t, apperr.KindForbidden, err)
}
