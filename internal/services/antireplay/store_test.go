package antireplay

import (
	"context"
	"sync"
	"testing"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/repositories"
	"loyalty/internal/testutil"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarkConsumed_SecondUseIsReplay(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(repositories.NewNonceRepository(db))
	ctx := context.Background()
	token := Token{Jti: "jti-1", MerchantID: "m1", CustomerID: "c1"}

	outcome, err := store.MarkConsumed(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Consumed, outcome)

	outcome, err = store.MarkConsumed(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, Replayed, outcome)
}

func TestMarkConsumed_ExactlyOneWinner(t *testing.T) {
	db := testutil.NewDB(t)
	store := NewStore(repositories.NewNonceRepository(db))

	const workers = 10
	results := make(chan Outcome, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := store.MarkConsumed(context.Background(), Token{Jti: "shared", MerchantID: "m1", CustomerID: "c1"})
			if assert.NoError(t, err) {
				results <- outcome
			}
		}()
	}
	wg.Wait()
	close(results)

	consumed := 0
	for outcome := range results {
		if outcome == Consumed {
			consumed++
		}
	}
	assert.Equal(t, 1, consumed)
}

func TestMarkConsumed_RejectsEmptyJti(t *testing.T) {
	store := NewStore(repositories.NewNonceRepository(testutil.NewDB(t)))
	_, err := store.MarkConsumed(context.Background(), Token{Jti: "  "})
	assert.True(t, errors.Is(err, apperrors.ErrInvalidToken))
}
