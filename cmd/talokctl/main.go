package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"talok/internal/adapters/observability"
	"talok/internal/shared"
)

func main() {
	_ = godotenv.Load()

	cfg := shared.Load()
	log.Logger = observability.NewLogger(cfg.AppEnv, "talokctl")

	rootCmd := &cobra.Command{
		Use:           "talokctl",
		Short:         "Talok operations tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		migrateCmd(cfg),
		wizardCmd(cfg),
		validateConfigCmd(),
		exportCmd(cfg),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
