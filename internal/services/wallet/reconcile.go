package wallet

import (
	"context"

	"loyalty/internal/repositories"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Reconcile compares every wallet of merchantID (all merchants when empty)
// with the sum of its transactions. With repair set, a drifted projection
// is reset to the ledger sum; the log itself is never touched.
func (l *Ledger) Reconcile(ctx context.Context, merchantID string, repair bool) (*ReconcileReport, error) {
	wallets, err := l.repo.ListWallets(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	sums, err := l.repo.SumTransactionsByWallet(ctx, merchantID)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{WalletsChecked: len(wallets), Mismatches: []Mismatch{}}
	for _, w := range wallets {
		sum := sums[w.ID]
		if sum == w.Balance {
			continue
		}
		report.Mismatches = append(report.Mismatches, Mismatch{
			WalletID:   w.ID,
			MerchantID: w.MerchantID,
			CustomerID: w.CustomerID,
			Balance:    w.Balance,
			LedgerSum:  sum,
		})
	}

	if !repair {
		return report, nil
	}
	for _, m := range report.Mismatches {
		err := l.repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
			locked, err := tx.LockWallet(ctx, m.WalletID)
			if err != nil {
				return err
			}
			sum, err := tx.SumTransactions(ctx, m.WalletID)
			if err != nil {
				return err
			}
			if drift := sum - locked.Balance; drift != 0 {
				return tx.AddToBalance(ctx, m.WalletID, drift)
			}
			return nil
		})
		if err != nil {
			return report, errors.Wrapf(err, "repair wallet %s", m.WalletID)
		}
		report.Repaired++
		l.Invalidate(ctx, m.MerchantID, m.CustomerID)
		log.Warn().Str("wallet_id", m.WalletID).Int64("balance", m.Balance).Int64("ledger_sum", m.LedgerSum).Msg("wallet balance repaired from ledger")
	}
	return report, nil
}
