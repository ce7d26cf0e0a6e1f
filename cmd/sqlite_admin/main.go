package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/hetulpatel/crossarb/internal/logging"
	sqlstore "github.com/hetulpatel/crossarb/internal/storage/sqlite"
)

const usage = "usage: sqlite_admin [-limit N] [-pair ID] create|drop|clear|migrate|report"

func main() {
	logging.InitFromEnv()
	limit := flag.Int("limit", 10, "rows to show in report")
	pairID := flag.String("pair", "", "only report opportunities for this pair id")
	flag.Parse()
	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	store, err := sqlstore.Open(os.Getenv("SQLITE_PATH"))
	if err != nil {
		logging.Fatalf("[sqlite] open: %v", err)
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	switch cmd := flag.Arg(0); cmd {
	case "create":
		err = store.CreateTables(ctx)
	case "drop":
		err = store.DropTables(ctx)
	case "clear":
		err = store.ClearTables(ctx)
	case "migrate":
		err = store.Migrate(ctx)
	case "report":
		err = report(ctx, store, *pairID, *limit)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logging.Fatalf("[sqlite] %s: %v", flag.Arg(0), err)
	}
	logging.Infof("[sqlite] %s done at %s", flag.Arg(0), store.Path())
}

func report(ctx context.Context, store *sqlstore.Store, pairID string, limit int) error {
	total, err := store.CountContracts(ctx, "")
	if err != nil {
		return err
	}
	fmt.Printf("contracts: %d\n\n", total)

	summaries, err := store.Summaries(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Println("recent cycles:")
	for _, s := range summaries {
		fmt.Printf("  %s %s matches=%d opportunities=%d profit=$%.2f books=%d exhausted=%t\n",
			s.StartedAt.Format(time.RFC3339), s.CycleID, s.Matches, s.Opportunities, s.TotalProfitUSD, s.OrderbookCalls, s.BudgetExhausted)
	}

	opps, err := store.ListOpportunities(ctx, pairID, limit)
	if err != nil {
		return err
	}
	fmt.Println("\nrecent opportunities:")
	for _, o := range opps {
		fmt.Printf("  %s pair=%s %s buy %s %s / %s %s size=$%.0f profit=$%.2f (%.2f%%) %s\n",
			o.Timestamp.Format(time.RFC3339), o.PairID, o.Strategy, o.BuyVenue, o.BuySide, o.SellVenue, o.SellSide,
			o.TradeSizeUSD, o.GuaranteedProfit, o.ProfitPercent, o.Recommendation)
	}
	return nil
}
