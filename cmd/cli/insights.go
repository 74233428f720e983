package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dvloznov/perla/internal/assistant"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Ask the assistant for an analysis of the ledger",
	Args:  cobra.NoArgs,
	RunE:  runInsights,
}

func init() {
	insightsCmd.Flags().Bool("summary", false, "print the local totals without calling the assistant")
	rootCmd.AddCommand(insightsCmd)
}

func runInsights(cmd *cobra.Command, args []string) error {
	summaryOnly, _ := cmd.Flags().GetBool("summary")
	ctx := cmd.Context()

	a, stop, err := startApp(ctx)
	if err != nil {
		return err
	}
	defer stop()

	sales, err := a.Store.ListSales(ctx, a.Config.OwnerID)
	if err != nil {
		return fmt.Errorf("listing sales: %w", err)
	}

	out := cmd.OutOrStdout()
	if summaryOnly {
		fmt.Fprint(out, assistant.Summarize(sales).String())
		return nil
	}

	text, err := a.Gateway.Insights(ctx, sales)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, text)
	return nil
}
