// Command report prints a month-bounded order summary for one account.
package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"recipecost/models"
	"recipecost/pkg/config"
	"recipecost/pkg/logging"
	"recipecost/pkg/store"
	"recipecost/pkg/validate"
)

func main() {
	if err := newCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newCmd() *cobra.Command {
	var (
		configFile string
		email      string
		month      string
		list       bool
	)
	cmd := &cobra.Command{
		Use:          "report",
		Short:        "Summarize an account's orders for one month (UTC)",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			start, end, err := store.MonthRange(month)
			if err != nil {
				return err
			}
			log := logging.New("warn", "text")
			cfg, err := config.Load(configFile, log)
			if err != nil {
				return err
			}
			db, err := store.Open(cfg.DBDSN, log)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			u, err := store.NewUsers(db).ByEmail(ctx, validate.Email(email))
			if err != nil {
				return fmt.Errorf("user %s: %w", email, err)
			}
			sum, err := store.SummarizeOrders(ctx, db, u.ID, start, end)
			if err != nil {
				return err
			}
			var rows []models.Order
			if list {
				if rows, err = store.OrdersBetween(ctx, db, u.ID, start, end); err != nil {
					return err
				}
			}
			printReport(cmd.OutOrStdout(), u.Email, month, sum, rows)
			return nil
		},
	}
	cmd.Flags().StringVar(&configFile, "config", "", "optional config file")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&month, "month", time.Now().UTC().Format("2006-01"), "month to report (YYYY-MM)")
	cmd.Flags().BoolVar(&list, "list", false, "list matching orders")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func printReport(w io.Writer, email, month string, sum store.OrderSummary, rows []models.Order) {
	fmt.Fprintf(w, "Report for user=%s month=%s (UTC):\n", email, month)
	fmt.Fprintf(w, "  orders=%d total=%.2f\n", sum.Count, sum.Total)
	for _, o := range rows {
		fmt.Fprintf(w, "%d|%d|%s|%s|%.2f|%s\n", o.ID, o.ClientID, o.Status, o.Priority, o.TotalPrice, o.CreatedAt.Format(time.RFC3339))
	}
}
