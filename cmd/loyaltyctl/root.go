package main

import (
	"encoding/json"
	"io"

	"loyalty/internal/config"
	"loyalty/internal/logging"
	"loyalty/internal/repositories"
	"loyalty/internal/services/auth"
	"loyalty/internal/services/loyalty"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

// app carries the state shared by every subcommand.
type app struct {
	out        io.Writer
	sqlitePath string
	cfg        config.Config
	db         *gorm.DB
	components *loyalty.Components
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{out: out}

	root := &cobra.Command{
		Use:           "loyaltyctl",
		Short:         "Operate the loyalty ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			config.LoadEnv()
			a.cfg = config.Load()
			logging.Setup("loyaltyctl", a.cfg.Env, a.cfg.LogLevel)
			return a.open()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.close()
		},
	}
	root.PersistentFlags().StringVar(&a.sqlitePath, "sqlite", "", "use a SQLite database file instead of PostgreSQL")

	root.AddCommand(
		newMerchantCmd(a),
		newTierCmd(a),
		newTokenCmd(a),
		newWalletCmd(a),
		newReconcileCmd(a),
		newIdempotencyCmd(a),
	)
	return root
}

func (a *app) open() error {
	var (
		db  *gorm.DB
		err error
	)
	if a.sqlitePath != "" {
		db, err = repositories.OpenSQLite(a.sqlitePath)
	} else {
		db, err = repositories.InitDB(a.cfg.Database)
	}
	if err != nil {
		return err
	}
	a.db = db
	a.components = loyalty.Build(db, nil, nil, auth.NewTokenService(a.cfg.TokenSecret, a.cfg.TokenTTL), loyalty.Options{
		IdempotencyTTL: a.cfg.IdempotencyTTL,
	})
	return nil
}

func (a *app) close() error {
	if a.db == nil {
		return nil
	}
	sqlDB, err := a.db.DB()
	if err != nil {
		return errors.Wrap(err, "get database instance")
	}
	return sqlDB.Close()
}

func (a *app) print(v interface{}) error {
	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
