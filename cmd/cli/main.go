package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/dvloznov/perla/internal/app"
	"github.com/dvloznov/perla/internal/config"
	"github.com/dvloznov/perla/internal/logger"
)

var (
	cfgFile string
	owner   string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "perla",
	Short: "Conversational sales tracking",
	Long: `Perla keeps a sales ledger you talk to. Describe what you sold in plain
Spanish and the assistant records, corrects or removes the sales for you.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "perla.yml", "config file path")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "ledger owner (overrides owner_id)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if owner != "" {
		cfg.OwnerID = owner
	}
	if verbose {
		cfg.Log.Level = "debug"
	} else {
		cfg.Log.Level = "warn"
	}
	return cfg, logger.NewFromConfig(cfg.Log), nil
}

// startApp builds and starts the application. The returned stop function
// flushes pending ledger writes.
func startApp(ctx context.Context) (*app.App, func(), error) {
	cfg, log, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	if err := a.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("starting sync workers: %w", err)
	}

	stop := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := a.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Shutdown failed")
		}
	}
	return a, stop, nil
}
