// Command loyaltyctl is the operator tool for the loyalty ledger: merchant
// onboarding, tiers, manual adjustments, reconciliation and housekeeping.
package main

import (
	"os"

	"github.com/rs/zerolog/log"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		log.Error().Err(err).Msg("loyaltyctl failed")
		os.Exit(1)
	}
}
