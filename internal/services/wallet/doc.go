/*
Package wallet is the points ledger: an append-only transaction log and the
per-wallet balance projection it backs.

Every balance change goes through Post inside a repository transaction, so
a wallet's balance always equals the sum of its transaction amounts:

	err := repo.ExecuteInTransaction(ctx, func(tx repositories.LedgerRepository) error {
	    w, err := ledger.LockWallet(ctx, tx, merchantID, customerID)
	    if err != nil {
	        return err
	    }
	    _, err = ledger.Post(ctx, tx, w, wallet.Entry{Type: models.TransactionTypeEarn, Amount: 120})
	    return err
	})

Balance serves display reads from a short-lived cache snapshot. Such reads
are never used to gate a write; writers re-read the locked row instead.

Reconcile recomputes balances from the log and reports wallets whose
projection drifted.
*/
package wallet
