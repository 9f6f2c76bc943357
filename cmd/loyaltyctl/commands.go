package main

import (
	"time"

	"loyalty/internal/models"
	"loyalty/internal/services/wallet"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newMerchantCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "merchant", Short: "Manage merchants"}

	var (
		name               string
		earnBps, redeemBps int64
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a merchant and print its API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			merchant := &models.Merchant{Name: name, EarnBps: earnBps, RedeemLimitBps: redeemBps}
			if err := a.components.Merchants.Create(ctx, merchant); err != nil {
				return err
			}
			key, err := a.components.APIKeys.Generate(ctx, merchant.ID)
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{"merchantId": merchant.ID, "apiKey": key})
		},
	}
	create.Flags().StringVar(&name, "name", "", "merchant display name")
	create.Flags().Int64Var(&earnBps, "earn-bps", 0, "flat earn rate in basis points")
	create.Flags().Int64Var(&redeemBps, "redeem-bps", 0, "flat redeem limit in basis points")
	_ = create.MarkFlagRequired("name")

	var merchantID string
	rotate := &cobra.Command{
		Use:   "rotate-key",
		Short: "Replace a merchant's API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := a.components.APIKeys.Generate(cmd.Context(), merchantID)
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{"merchantId": merchantID, "apiKey": key})
		},
	}
	rotate.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	_ = rotate.MarkFlagRequired("merchant")

	rates := &cobra.Command{
		Use:   "rates",
		Short: "Update a merchant's flat rates",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.components.Merchants.UpdateRates(cmd.Context(), merchantID, earnBps, redeemBps); err != nil {
				return err
			}
			return a.print(map[string]interface{}{"merchantId": merchantID, "earnBps": earnBps, "redeemLimitBps": redeemBps})
		},
	}
	rates.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	rates.Flags().Int64Var(&earnBps, "earn-bps", 0, "flat earn rate in basis points")
	rates.Flags().Int64Var(&redeemBps, "redeem-bps", 0, "flat redeem limit in basis points")
	_ = rates.MarkFlagRequired("merchant")

	cmd.AddCommand(create, rotate, rates)
	return cmd
}

func newTierCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "tier", Short: "Manage loyalty tiers"}

	var (
		merchantID, name   string
		earnBps, redeemBps int64
		threshold          float64
		minPayment         float64
		initial            bool
	)
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			tier := &models.LoyaltyTier{
				MerchantID:      merchantID,
				Name:            name,
				EarnRateBps:     earnBps,
				RedeemRateBps:   redeemBps,
				ThresholdAmount: threshold,
				IsInitial:       initial,
			}
			if cmd.Flags().Changed("min-payment") {
				tier.MinPaymentAmount = &minPayment
			}
			if initial {
				created, err := a.components.Tiers.CreateInitialTier(cmd.Context(), tier)
				if err != nil {
					return err
				}
				if !created {
					return errors.Errorf("merchant %s already has initial tier %s", merchantID, tier.ID)
				}
			} else if err := a.components.Tiers.CreateTier(cmd.Context(), tier); err != nil {
				return err
			}
			return a.print(tier)
		},
	}
	create.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	create.Flags().StringVar(&name, "name", "", "tier name")
	create.Flags().Int64Var(&earnBps, "earn-bps", 0, "earn rate in basis points")
	create.Flags().Int64Var(&redeemBps, "redeem-bps", 0, "redeem limit in basis points")
	create.Flags().Float64Var(&threshold, "threshold", 0, "spend threshold for the tier")
	create.Flags().Float64Var(&minPayment, "min-payment", 0, "minimum payable amount")
	create.Flags().BoolVar(&initial, "initial", false, "make this the merchant's initial tier")
	_ = create.MarkFlagRequired("merchant")
	_ = create.MarkFlagRequired("name")

	var (
		customerID, tierID string
		expiresIn          time.Duration
	)
	assign := &cobra.Command{
		Use:   "assign",
		Short: "Assign a customer to a tier",
		RunE: func(cmd *cobra.Command, args []string) error {
			assignment := &models.TierAssignment{
				MerchantID: merchantID,
				CustomerID: customerID,
				TierID:     tierID,
				AssignedAt: time.Now(),
			}
			if expiresIn > 0 {
				expires := assignment.AssignedAt.Add(expiresIn)
				assignment.ExpiresAt = &expires
			}
			if err := a.components.Tiers.Assign(cmd.Context(), assignment); err != nil {
				return err
			}
			return a.print(assignment)
		},
	}
	assign.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	assign.Flags().StringVar(&customerID, "customer", "", "customer id")
	assign.Flags().StringVar(&tierID, "tier", "", "tier id")
	assign.Flags().DurationVar(&expiresIn, "expires-in", 0, "assignment lifetime, 0 for none")
	for _, f := range []string{"merchant", "customer", "tier"} {
		_ = assign.MarkFlagRequired(f)
	}

	cmd.AddCommand(create, assign)
	return cmd
}

func newTokenCmd(a *app) *cobra.Command {
	var merchantID, customerID string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a single-use customer QR token",
		RunE: func(cmd *cobra.Command, args []string) error {
			token, claims, err := a.components.Tokens.Issue(merchantID, customerID)
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{
				"token":     token,
				"jti":       claims.ID,
				"expiresAt": claims.ExpiresAt.Time,
			})
		},
	}
	cmd.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	cmd.Flags().StringVar(&customerID, "customer", "", "customer id")
	_ = cmd.MarkFlagRequired("merchant")
	_ = cmd.MarkFlagRequired("customer")
	return cmd
}

func newWalletCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "wallet", Short: "Inspect and adjust wallets"}

	var (
		merchantID, customerID string
		amount                 int64
		txType, reason         string
	)
	adjust := &cobra.Command{
		Use:   "adjust",
		Short: "Post a manual ADJUST, CAMPAIGN or REFERRAL entry",
		RunE: func(cmd *cobra.Command, args []string) error {
			balance, err := a.components.Wallets.Adjust(cmd.Context(), wallet.AdjustRequest{
				MerchantID: merchantID,
				CustomerID: customerID,
				Type:       models.TransactionType(txType),
				Amount:     amount,
				Reason:     reason,
			})
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{"merchantId": merchantID, "customerId": customerID, "balance": balance})
		},
	}
	adjust.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	adjust.Flags().StringVar(&customerID, "customer", "", "customer id")
	adjust.Flags().Int64Var(&amount, "amount", 0, "signed point amount")
	adjust.Flags().StringVar(&txType, "type", string(models.TransactionTypeAdjust), "ADJUST, CAMPAIGN or REFERRAL")
	adjust.Flags().StringVar(&reason, "reason", "", "free-form reason stored with the entry")
	for _, f := range []string{"merchant", "customer", "amount"} {
		_ = adjust.MarkFlagRequired(f)
	}

	balance := &cobra.Command{
		Use:   "balance",
		Short: "Print a customer balance",
		RunE: func(cmd *cobra.Command, args []string) error {
			snap, err := a.components.Wallets.Balance(cmd.Context(), merchantID, customerID)
			if err != nil {
				return err
			}
			return a.print(snap)
		},
	}
	balance.Flags().StringVar(&merchantID, "merchant", "", "merchant id")
	balance.Flags().StringVar(&customerID, "customer", "", "customer id")
	_ = balance.MarkFlagRequired("merchant")
	_ = balance.MarkFlagRequired("customer")

	cmd.AddCommand(adjust, balance)
	return cmd
}

func newReconcileCmd(a *app) *cobra.Command {
	var (
		merchantID string
		repair     bool
	)
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Compare wallet balances with the sum of their ledger entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := a.components.Wallets.Reconcile(cmd.Context(), merchantID, repair)
			if err != nil {
				return err
			}
			if err := a.print(report); err != nil {
				return err
			}
			if len(report.Mismatches) > report.Repaired {
				return errors.Errorf("%d wallets do not match their ledger", len(report.Mismatches)-report.Repaired)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&merchantID, "merchant", "", "merchant id, all merchants when empty")
	cmd.Flags().BoolVar(&repair, "repair", false, "rewrite mismatched balances from the ledger")
	return cmd
}

func newIdempotencyCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{Use: "idempotency", Short: "Idempotency key housekeeping"}
	purge := &cobra.Command{
		Use:   "purge",
		Short: "Delete expired idempotency keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			purged, err := a.components.Idempotency.PurgeExpired(cmd.Context(), time.Now())
			if err != nil {
				return err
			}
			return a.print(map[string]interface{}{"purged": purged})
		},
	}
	cmd.AddCommand(purge)
	return cmd
}
