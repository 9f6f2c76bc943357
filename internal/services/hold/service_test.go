package hold

import (
	"context"
	"testing"

	apperrors "loyalty/internal/errors"
	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/testutil"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to models.HoldStatus
		want     bool
	}{
		{models.HoldStatusPending, models.HoldStatusCommitted, true},
		{models.HoldStatusPending, models.HoldStatusCanceled, true},
		{models.HoldStatusPending, models.HoldStatusPending, false},
		{models.HoldStatusCommitted, models.HoldStatusCanceled, false},
		{models.HoldStatusCanceled, models.HoldStatusCommitted, false},
		{models.HoldStatusCommitted, models.HoldStatusCommitted, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, CanTransition(&models.Hold{Status: tt.from}, tt.to))
		})
	}
}

func TestService_CancelIsTerminal(t *testing.T) {
	db := testutil.NewDB(t)
	repo := repositories.NewLedgerRepository(db)
	svc := NewService(repo)
	ctx := context.Background()

	h := &models.Hold{MerchantID: "m1", CustomerID: "c1", Mode: models.ModeRedeem, RedeemAmount: 30}
	require.NoError(t, svc.Create(ctx, h))

	canceled, err := svc.Cancel(ctx, "m1", h.ID)
	require.NoError(t, err)
	assert.Equal(t, models.HoldStatusCanceled, canceled.Status)
	assert.NotNil(t, canceled.CanceledAt)

	_, err = svc.Cancel(ctx, "m1", h.ID)
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotPending))

	err = repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
		ok, err := svc.MarkCommitted(ctx, tx, h)
		assert.False(t, ok)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), testutil.TransactionCount(t, db, ""))
}

func TestService_CancelUnknownHold(t *testing.T) {
	svc := NewService(repositories.NewLedgerRepository(testutil.NewDB(t)))
	_, err := svc.Cancel(context.Background(), "m1", "missing")
	assert.True(t, errors.Is(err, apperrors.ErrHoldNotFound))
}

func TestService_FindByQrJti(t *testing.T) {
	svc := NewService(repositories.NewLedgerRepository(testutil.NewDB(t)))
	ctx := context.Background()

	none, err := svc.FindByQrJti(ctx, "jti-1")
	require.NoError(t, err)
	assert.Nil(t, none)

	jti := "jti-1"
	h := &models.Hold{MerchantID: "m1", CustomerID: "c1", Mode: models.ModeEarn, QrJti: &jti}
	require.NoError(t, svc.Create(ctx, h))

	found, err := svc.FindByQrJti(ctx, jti)
	require.NoError(t, err)
	assert.Equal(t, h.ID, found.ID)

	dup := &models.Hold{MerchantID: "m1", CustomerID: "c1", Mode: models.ModeEarn, QrJti: &jti}
	assert.Error(t, svc.Create(ctx, dup), "a token backs at most one hold")
}
