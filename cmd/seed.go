package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenatlas/compliance-assistant/internal/store"
)

var seedFile string

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load reference data from a YAML fixture into the store",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		f, err := os.Open(seedFile)
		if err != nil {
			return eris.Wrapf(err, "open fixture %s", seedFile)
		}
		defer f.Close()

		fx, err := store.LoadFixture(f)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return err
		}
		if err := st.SeedFixture(ctx, fx); err != nil {
			return err
		}

		zap.L().Info("seed complete",
			zap.Int("states", len(fx.States)),
			zap.Int("brands", len(fx.Brands)),
			zap.Int("products", len(fx.Products)),
			zap.Int("allow_list", len(fx.AllowList)),
			zap.Int("knowledge", len(fx.Knowledge)),
			zap.Int("files", len(fx.Files)),
		)
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "seed.yaml", "fixture file path")
	rootCmd.AddCommand(seedCmd)
}
