package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"

	"github.com/Additional-Code/upfit/internal/app"
	"github.com/Additional-Code/upfit/internal/entity"
	"github.com/Additional-Code/upfit/internal/lifecycle"
	serviceorder "github.com/Additional-Code/upfit/internal/service/order"
	"github.com/Additional-Code/upfit/pkg/errorbank"
)

func newOrdersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect and move orders through the lifecycle",
	}
	cmd.AddCommand(newOrdersListCmd(), newOrdersAdvanceCmd(), newOrdersCancelCmd(), newOrdersSweepCmd())
	return cmd
}

func withOrders(ctx context.Context, fn func(context.Context, *serviceorder.Service) error) error {
	var svc *serviceorder.Service
	opts := fx.Options(app.Core, fx.Populate(&svc))
	return runWithApp(ctx, opts, func(ctx context.Context) error {
		return fn(ctx, svc)
	})
}

func newOrdersListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			filter := serviceorder.ListFilter{}
			filter.Status, _ = flags.GetString("status")
			filter.DealerCode, _ = flags.GetString("dealer")
			filter.UpfitterID, _ = flags.GetString("upfitter")
			filter.Query, _ = flags.GetString("query")
			if flags.Changed("stock") {
				stock, _ := flags.GetBool("stock")
				filter.IsStock = &stock
			}

			return withOrders(cmd.Context(), func(ctx context.Context, svc *serviceorder.Service) error {
				orders, err := svc.ListOrders(ctx, filter)
				if err != nil {
					return err
				}
				return printOrders(cmd.OutOrStdout(), orders)
			})
		},
	}
	cmd.Flags().String("status", "", "Only orders in this status")
	cmd.Flags().String("dealer", "", "Only orders for this dealer code")
	cmd.Flags().String("upfitter", "", "Only orders for this upfitter id")
	cmd.Flags().String("query", "", "Search id, stock number, VIN, dealer or buyer")
	cmd.Flags().Bool("stock", false, "Only stock (true) or sold (false) units")
	return cmd
}

func newOrdersAdvanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "advance <id>",
		Short: "Move an order to its next stage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrders(cmd.Context(), func(ctx context.Context, svc *serviceorder.Service) error {
				detail, err := svc.GetOrder(ctx, args[0])
				if err != nil {
					return err
				}
				next, ok := detail.Order.Status.Next()
				if !ok {
					return errorbank.InvalidTransition(fmt.Sprintf("order %s has no next stage", detail.Order.ID),
						errorbank.WithDetail("from", string(detail.Order.Status)))
				}
				res, err := svc.TransitionOrder(ctx, detail.Order.ID, string(next))
				if err != nil {
					return err
				}
				printTransition(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newOrdersCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrders(cmd.Context(), func(ctx context.Context, svc *serviceorder.Service) error {
				res, err := svc.CancelOrder(ctx, args[0])
				if err != nil {
					return err
				}
				printTransition(cmd.OutOrStdout(), res)
				return nil
			})
		},
	}
}

func newOrdersSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep-etas",
		Short: "Re-apply the ETA policy to early orders with past-due OEM dates",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withOrders(cmd.Context(), func(ctx context.Context, svc *serviceorder.Service) error {
				ids, err := svc.SweepETAs(ctx)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "corrected %d orders\n", len(ids))
				return nil
			})
		},
	}
}

func printOrders(out io.Writer, orders []*entity.Order) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTOCK\tVIN\tSTATUS\tDEALER\tDELIVERY")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			o.ID, o.StockNumber, dash(o.VIN), o.Status, o.DealerCode, date(o.DeliveryEta))
	}
	return w.Flush()
}

func printTransition(out io.Writer, res *serviceorder.TransitionResult) {
	fmt.Fprintf(out, "%s: %s -> %s", res.Order.ID, res.Event.From.Label(), res.Event.To.Label())
	if res.Order.VIN != "" && res.Event.To != lifecycle.Canceled {
		fmt.Fprintf(out, " (VIN %s)", res.Order.VIN)
	}
	fmt.Fprintln(out)
}

func date(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.UTC().Format(time.DateOnly)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
