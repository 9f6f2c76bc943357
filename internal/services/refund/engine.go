package refund

import (
	"context"
	"time"

	"loyalty/internal/models"
	"loyalty/internal/repositories"
	"loyalty/internal/services/wallet"
)

// Request describes one refund against a receipt.
type Request struct {
	RefundTotal         float64
	RefundEligibleTotal *float64
	StaffID             *string
}

// Result is what a refund moved.
type Result struct {
	Share          float64
	PointsRestored int64
	PointsRevoked  int64
	Balance        int64
	Canceled       bool
}

// Engine applies refunds to the ledger.
type Engine struct {
	ledger *wallet.Ledger
	now    func() time.Time
}

func NewEngine(ledger *wallet.Ledger) *Engine {
	if ledger == nil {
		panic("ledger is required")
	}
	return &Engine{ledger: ledger, now: time.Now}
}

// Apply prorates req against the receipt and posts the restore (credit) and
// revoke (debit) lines inside tx. The revoke is an unconditional clawback:
// the resulting balance may be negative. The receipt row is locked so
// concurrent partial refunds see each other's effects.
func (e *Engine) Apply(ctx context.Context, tx repositories.LedgerRepository, receiptID string, req Request) (*models.Receipt, Result, error) {
	receipt, err := tx.LockReceipt(ctx, receiptID)
	if err != nil {
		return nil, Result{}, err
	}
	prior, err := tx.SumRefunds(ctx, receipt.ID)
	if err != nil {
		return nil, Result{}, err
	}

	p := Prorate(Input{
		Total:               receipt.Total,
		EligibleTotal:       receipt.EligibleTotal,
		RedeemApplied:       receipt.RedeemApplied,
		EarnApplied:         receipt.EarnApplied,
		RefundTotal:         req.RefundTotal,
		RefundEligibleTotal: req.RefundEligibleTotal,
		AlreadyRestored:     prior.Restored,
		AlreadyRevoked:      prior.Revoked,
	})

	w, err := e.ledger.LockWallet(ctx, tx, receipt.MerchantID, receipt.CustomerID)
	if err != nil {
		return nil, Result{}, err
	}
	meta := models.NewJSON(map[string]interface{}{"share": p.Share})
	receiptRef := receipt.ID
	balance, err := e.ledger.Post(ctx, tx, w,
		wallet.Entry{
			Type:      models.TransactionTypeRefund,
			Amount:    p.Restore,
			OrderID:   receipt.OrderID,
			HoldID:    &receipt.HoldID,
			ReceiptID: &receiptRef,
			OutletID:  receipt.OutletID,
			StaffID:   req.StaffID,
			Metadata:  meta,
		},
		wallet.Entry{
			Type:      models.TransactionTypeRefund,
			Amount:    -p.Revoke,
			OrderID:   receipt.OrderID,
			HoldID:    &receipt.HoldID,
			ReceiptID: &receiptRef,
			OutletID:  receipt.OutletID,
			StaffID:   req.StaffID,
			Metadata:  meta,
		},
	)
	if err != nil {
		return nil, Result{}, err
	}

	canceled := receipt.CanceledAt != nil
	if p.Full() && !canceled {
		now := e.now()
		if err := tx.MarkReceiptCanceled(ctx, receipt.ID, now); err != nil {
			return nil, Result{}, err
		}
		receipt.CanceledAt = &now
		canceled = true
	}

	return receipt, Result{
		Share:          p.Share,
		PointsRestored: p.Restore,
		PointsRevoked:  p.Revoke,
		Balance:        balance,
		Canceled:       canceled,
	}, nil
}
