package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Status prints the current market picture and, when a user id is given, that
// user's active alerts.
func (a *App) Status(ctx context.Context, opts StatusOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database not configured; cannot show status")
	}
	defer closeStore()

	svc := a.newAlertService(store)

	reports, err := svc.MarketStats(ctx, opts.UserID, a.Config.Market.Resources)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Resource\tBuy\tSell\tSpeed/min\tTrend\tMin/Max Buy\tQty\tSampled (UTC)")
	for _, report := range reports {
		if !report.HasData {
			fmt.Fprintf(writer, "%s\t-\t-\t-\t-\t-\t-\t-\n", report.Resource)
			continue
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s/%s\t%d\t%s\n",
			report.Resource,
			formatDecimal(report.Buy, 2),
			formatDecimal(report.Sell, 2),
			formatDecimal(report.Speed, 4),
			report.Trend,
			formatDecimal(report.Stats.MinBuy, 2),
			formatDecimal(report.Stats.MaxBuy, 2),
			report.Stats.MaxQuantity,
			report.SampledAt.Timestamp.UTC().Format(time.RFC3339),
		)
	}
	writer.Flush()

	if opts.UserID == 0 {
		return nil
	}

	active, err := svc.ListUserAlerts(ctx, opts.UserID)
	if err != nil {
		return err
	}
	if len(active) == 0 {
		fmt.Fprintln(os.Stdout, "no active alerts")
		return nil
	}
	if opts.Limit > 0 && len(active) > opts.Limit {
		active = active[:opts.Limit]
	}

	fmt.Fprintln(os.Stdout)
	alertWriter := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(alertWriter, "ID\tResource\tDirection\tTarget\tSpeed/min\tFires (UTC)")
	for _, alert := range active {
		fmt.Fprintf(
			alertWriter,
			"%d\t%s\t%s\t%s\t%s\t%s\n",
			alert.ID,
			alert.Resource,
			alert.Direction,
			formatDecimal(alert.TargetPrice, 2),
			formatDecimal(alert.Speed, 4),
			alert.FireTime.UTC().Format(time.RFC3339),
		)
	}
	alertWriter.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}

func formatInt(v int64) string {
	return strconv.FormatInt(v, 10)
}
