package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/dvloznov/perla/internal/app"
	"github.com/dvloznov/perla/internal/domain"
)

var salesCmd = &cobra.Command{
	Use:   "sales",
	Short: "List the stored sales",
	Args:  cobra.NoArgs,
	RunE:  runSales,
}

func init() {
	salesCmd.Flags().Bool("json", false, "output sales as JSON")
	rootCmd.AddCommand(salesCmd)
}

func runSales(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}

	store, _, closer, err := app.OpenStore(cmd.Context(), cfg.Store)
	if err != nil {
		return err
	}
	defer closer.Close()

	sales, err := store.ListSales(cmd.Context(), cfg.OwnerID)
	if err != nil {
		return fmt.Errorf("listing sales: %w", err)
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(sales)
	}
	printSales(out, sales)
	return nil
}

func printSales(out io.Writer, sales []domain.SaleRecord) {
	if len(sales) == 0 {
		fmt.Fprintln(out, "No hay ventas.")
		return
	}
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFECHA\tPRODUCTO\tCANT\tPRECIO\tTOTAL\tCLIENTE\tPAGO")
	for _, s := range sales {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Date, s.DisplayProduct(), num(s.Amount), num(s.UnitPrice), num(s.TotalPrice),
			s.DisplayClient(), s.PaymentMethod)
	}
	tw.Flush()
}

func num(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
