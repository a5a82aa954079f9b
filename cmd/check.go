package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/imei-gateway/internal/config"
	"github.com/jmehdipour/imei-gateway/internal/logger"
	"github.com/jmehdipour/imei-gateway/internal/lookup"
)

var checkClient string

// A rejected IMEI is a result, not a usage mistake: no usage dump, and
// Execute prints the error once.
var checkCmd = &cobra.Command{
	Use:           "check <imei>",
	Short:         "Run a single IMEI check and print the result as JSON",
	Args:          cobra.ExactArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		logger.Init(cfg.Log.Level, "console")
		defer logger.Sync()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		st, closer, err := newStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() { _ = closer.Close() }()

		env, err := newOrchestrator(cfg, st).Check(ctx, args[0], checkClient, cfg.Provider.Credentials())
		if err != nil {
			var cerr *lookup.CheckError
			if errors.As(err, &cerr) {
				return fmt.Errorf("%s (%d): %s", cerr.Code, cerr.HTTPStatus(), cerr.Message())
			}
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(env)
	},
}

func init() {
	checkCmd.Flags().StringVar(&checkClient, "client", "127.0.0.1", "client address charged for the check")
}
