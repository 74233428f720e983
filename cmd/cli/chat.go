package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dvloznov/perla/internal/domain"
	"github.com/dvloznov/perla/internal/reconcile"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Talk to the assistant about your sales",
	Long: `Starts an interactive session. Type what you sold, ask for corrections,
or use the commands:

  /sales            list the ledger
  /select <id>...   select sales for the next update or delete
  /clear            clear the selection
  /quit             leave`,
	Args: cobra.NoArgs,
	RunE: runChat,
}

func init() {
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, stop, err := startApp(ctx)
	if err != nil {
		return err
	}
	defer stop()

	session, err := a.Sessions.Get(ctx, a.Config.OwnerID)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Perla (%d ventas cargadas). Escribí /quit para salir.\n", len(session.Ledger()))
	return chatLoop(ctx, session, cmd.InOrStdin(), out)
}

func chatLoop(ctx context.Context, s *reconcile.Session, in io.Reader, out io.Writer) error {
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			if quit := chatCommand(s, line, out); quit {
				return nil
			}
			continue
		}

		outcome, err := s.Submit(ctx, line)
		if errors.Is(err, reconcile.ErrClosed) {
			return err
		}
		if err != nil {
			fmt.Fprintf(out, "Error: %v\n", err)
			continue
		}
		printOutcome(out, outcome)
	}
}

func chatCommand(s *reconcile.Session, line string, out io.Writer) (quit bool) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/sales":
		printSales(out, s.Ledger())
	case "/select":
		s.Select(fields[1:]...)
		fmt.Fprintf(out, "Seleccionadas: %s\n", strings.Join(s.Selection(), ", "))
	case "/clear":
		s.ClearSelection()
		fmt.Fprintln(out, "Selección vacía.")
	default:
		fmt.Fprintf(out, "Comando desconocido: %s\n", fields[0])
	}
	return false
}

func printOutcome(out io.Writer, o *reconcile.Outcome) {
	fmt.Fprintln(out, o.Message)
	changed := make([]domain.SaleRecord, 0, len(o.Created)+len(o.Updated))
	changed = append(changed, o.Created...)
	changed = append(changed, o.Updated...)
	if len(changed) > 0 {
		printSales(out, changed)
	}
}
