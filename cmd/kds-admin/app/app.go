// Package app implements kds-admin, the operator CLI for a running kds-server.
package app

import (
	"fmt"
	"io"
	"time"

	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kdsgrill/kdsgrill/internal/kds/core/model"
)

type adminOptions struct {
	Server  string
	Timeout time.Duration
}

func NewAdminCommand() *cobra.Command {
	opts := &adminOptions{
		Server:  "http://127.0.0.1:5000",
		Timeout: 10 * time.Second,
	}

	cmd := &cobra.Command{
		Use:           "kds-admin",
		Short:         "Administer a running kitchen display server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.Server, "server", opts.Server, "Base URL of the kds-server HTTP endpoint.")
	cmd.PersistentFlags().DurationVar(&opts.Timeout, "timeout", opts.Timeout, "Request timeout.")

	cmd.AddCommand(
		newRequeueCommand(opts),
		newReportCommand(opts),
		newOrdersCommand(opts),
	)
	return cmd
}

func newRequeueCommand(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "requeue <order-id>",
		Short: "Send an order back to the grill with a fresh timer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := NewClient(opts.Server, opts.Timeout)
			resp, err := client.Requeue(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Message)
			printOrders(cmd.OutOrStdout(), []*model.Order{resp.Order})
			return nil
		},
	}
}

func newReportCommand(opts *adminOptions) *cobra.Command {
	var withOrders bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Show today's order summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := NewClient(opts.Server, opts.Timeout)
			summary, err := client.DailyReport(cmd.Context())
			if err != nil {
				return err
			}
			printSummary(cmd.OutOrStdout(), summary)
			if withOrders && len(summary.Orders) > 0 {
				fmt.Fprintln(cmd.OutOrStdout())
				printOrders(cmd.OutOrStdout(), summary.Orders)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&withOrders, "orders", false, "Also list the day's orders.")
	return cmd
}

func newOrdersCommand(opts *adminOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "orders",
		Short: "List the orders currently on the display",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			client := NewClient(opts.Server, opts.Timeout)
			orders, err := client.Orders(cmd.Context())
			if err != nil {
				return err
			}
			printOrders(cmd.OutOrStdout(), orders)
			return nil
		},
	}
}

func printSummary(w io.Writer, s *model.DailySummary) {
	table := uitable.New()
	table.AddRow("DATE:", s.Date)
	table.AddRow("TOTAL ORDERS:", s.TotalOrders)
	for _, st := range model.Statuses {
		table.AddRow(string(st)+":", s.StatusCounts[st])
	}
	table.AddRow("AVG COMPLETION:", (time.Duration(s.AvgCompletionSeconds * float64(time.Second))).Round(time.Second))
	fmt.Fprintln(w, table)
}

func printOrders(w io.Writer, orders []*model.Order) {
	table := uitable.New()
	table.AddRow("ID", "TABLE", "STATUS", "STARTED", "BUDGET")
	for _, o := range orders {
		table.AddRow(o.ID, o.Table, o.Status, o.StartedAt, (time.Duration(o.InitialDuration) * time.Second).String())
	}
	fmt.Fprintln(w, table)
}
