// Command bot places and supervises orders on Binance USDT-M futures:
// one-shot market, limit and stop-limit orders plus the OCO, TWAP and
// grid strategies and a live mark-price stream.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"futures_bot/internal/app"
	"futures_bot/internal/domain"
	"futures_bot/internal/exchange"
	"futures_bot/internal/execution"
	"futures_bot/internal/strategy"

	"github.com/shopspring/decimal"
)

const usageText = `Usage: bot <command> [args] [flags]

Commands:
  market     <symbol> <side> <quantity>
  limit      <symbol> <side> <quantity> <price>
  stop-limit <symbol> <side> <quantity> <stopPrice> <limitPrice>
  oco        <symbol> <positionSide> <quantity> <takeProfitPrice> <stopLossPrice>
  twap       <symbol> <side> <totalQuantity> <sliceCount> <intervalSeconds>
  grid       <symbol> <lowerPrice> <upperPrice> <levelCount> <quantityPerLevel>
  grid       <symbol> --cancel-all
  price      <symbol>

Common flags: --config PATH, --journal PATH, --dry-run
Run "bot <command> -h" for command flags.
`

func main() {
	os.Exit(run())
}

func run() int {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usageText)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch cmd := os.Args[1]; cmd {
	case "market":
		err = runMarket(ctx, os.Args[2:])
	case "limit":
		err = runLimit(ctx, os.Args[2:])
	case "stop-limit":
		err = runStopLimit(ctx, os.Args[2:])
	case "oco":
		err = runOCO(ctx, os.Args[2:])
	case "twap":
		err = runTWAP(ctx, os.Args[2:])
	case "grid":
		err = runGrid(ctx, os.Args[2:])
	case "price":
		err = runPrice(ctx, os.Args[2:])
	case "help", "-h", "--help":
		fmt.Print(usageText)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usageText)
		return 1
	}
	return exitCode(err)
}

// exitCode maps the error taxonomy onto process exit codes:
// 0 success, 1 validation, 2 exchange rejection, 3 connectivity.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	fmt.Fprintln(os.Stderr, "error:", err)

	var rejected *domain.OrderRejectedError
	var transient *domain.TransientError
	switch {
	case errors.As(err, &rejected):
		return 2
	case errors.As(err, &transient):
		return 3
	default:
		return 1
	}
}

// commonFlags are shared by every order-placing subcommand.
type commonFlags struct {
	configPath  string
	journalPath string
	dryRun      bool
}

func addCommon(fs *flag.FlagSet) *commonFlags {
	cf := &commonFlags{}
	fs.StringVar(&cf.configPath, "config", "config.yaml", "path to config file (optional)")
	fs.StringVar(&cf.journalPath, "journal", "orders.db", "order journal database, empty to disable")
	fs.BoolVar(&cf.dryRun, "dry-run", false, "log intended orders without placing them")
	return cf
}

// parseCommand takes the leading positional arguments, then hands the
// remainder to the flag set, so flags may trail the positionals as in
// "twap BTCUSDT BUY 0.1 5 60 --dry-run".
func parseCommand(fs *flag.FlagSet, args []string, positionals int, usage string) ([]string, error) {
	if len(args) < positionals {
		return nil, domain.NewValidationError("args", "usage: %s", usage)
	}
	pos := args[:positionals]
	if err := fs.Parse(args[positionals:]); err != nil {
		return nil, domain.NewValidationError("args", "%v", err)
	}
	if fs.NArg() > 0 {
		return nil, domain.NewValidationError("args", "unexpected argument %q; usage: %s", fs.Arg(0), usage)
	}
	return pos, nil
}

// submitter bootstraps the runtime and builds the right submitter.
// Live mode requires credentials and a connectivity preflight; dry-run
// mode never touches the network.
func submitter(ctx context.Context, cf *commonFlags, refPrice decimal.Decimal) (execution.Submitter, *app.Runtime, error) {
	if cf.dryRun {
		rt, err := app.Bootstrap(cf.configPath, "")
		if err != nil {
			return nil, nil, err
		}
		return execution.NewSubmitter(execution.ModeDry, rt.Cfg, nil, nil, refPrice), rt, nil
	}

	rt, err := app.Bootstrap(cf.configPath, cf.journalPath)
	if err != nil {
		return nil, nil, err
	}
	if !rt.Cfg.HasCredentials() {
		rt.Close()
		return nil, nil, domain.NewValidationError("credentials",
			"BINANCE_API_KEY and BINANCE_API_SECRET are required for live orders")
	}
	if err := rt.Client.Ping(ctx); err != nil {
		rt.Close()
		return nil, nil, fmt.Errorf("exchange unreachable: %w", err)
	}
	return execution.NewSubmitter(execution.ModeLive, rt.Cfg, rt.Client, rt.Journal, refPrice), rt, nil
}

func runMarket(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("market", flag.ContinueOnError)
	cf := addCommon(fs)
	reduceOnly := fs.Bool("reduce-only", false, "only reduce an existing position")

	pos, err := parseCommand(fs, args, 3, "market <symbol> <side> <quantity>")
	if err != nil {
		return err
	}
	side, err := parseSide(pos[1])
	if err != nil {
		return err
	}
	qty, err := parseDecimalArg("quantity", pos[2])
	if err != nil {
		return err
	}

	sub, rt, err := submitter(ctx, cf, decimal.Zero)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, err = strategy.Market(ctx, sub, pos[0], side, qty, *reduceOnly)
	return err
}

func runLimit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("limit", flag.ContinueOnError)
	cf := addCommon(fs)
	tifFlag := fs.String("time-in-force", "GTC", "GTC, IOC, FOK or GTX")
	postOnly := fs.Bool("post-only", false, "maker only, forces GTX")
	reduceOnly := fs.Bool("reduce-only", false, "only reduce an existing position")

	pos, err := parseCommand(fs, args, 4, "limit <symbol> <side> <quantity> <price>")
	if err != nil {
		return err
	}
	side, err := parseSide(pos[1])
	if err != nil {
		return err
	}
	qty, err := parseDecimalArg("quantity", pos[2])
	if err != nil {
		return err
	}
	price, err := parseDecimalArg("price", pos[3])
	if err != nil {
		return err
	}
	tif, err := parseTimeInForce(*tifFlag)
	if err != nil {
		return err
	}

	sub, rt, err := submitter(ctx, cf, price)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, err = strategy.Limit(ctx, sub, pos[0], side, qty, price, tif, *reduceOnly, *postOnly)
	return err
}

func runStopLimit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("stop-limit", flag.ContinueOnError)
	cf := addCommon(fs)
	reduceOnly := fs.Bool("reduce-only", false, "only reduce an existing position")
	workingFlag := fs.String("working-type", "CONTRACT_PRICE", "CONTRACT_PRICE or MARK_PRICE")

	pos, err := parseCommand(fs, args, 5, "stop-limit <symbol> <side> <quantity> <stopPrice> <limitPrice>")
	if err != nil {
		return err
	}
	side, err := parseSide(pos[1])
	if err != nil {
		return err
	}
	qty, err := parseDecimalArg("quantity", pos[2])
	if err != nil {
		return err
	}
	stopPrice, err := parseDecimalArg("stopPrice", pos[3])
	if err != nil {
		return err
	}
	limitPrice, err := parseDecimalArg("limitPrice", pos[4])
	if err != nil {
		return err
	}
	working, err := parseWorkingType(*workingFlag)
	if err != nil {
		return err
	}

	sub, rt, err := submitter(ctx, cf, limitPrice)
	if err != nil {
		return err
	}
	defer rt.Close()

	_, err = strategy.StopLimit(ctx, sub, pos[0], side, qty, stopPrice, limitPrice, *reduceOnly, working)
	return err
}

func runOCO(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("oco", flag.ContinueOnError)
	cf := addCommon(fs)

	pos, err := parseCommand(fs, args, 5, "oco <symbol> <positionSide> <quantity> <takeProfitPrice> <stopLossPrice>")
	if err != nil {
		return err
	}
	posSide, err := parsePositionSide(pos[1])
	if err != nil {
		return err
	}
	qty, err := parseDecimalArg("quantity", pos[2])
	if err != nil {
		return err
	}
	takeProfit, err := parseDecimalArg("takeProfitPrice", pos[3])
	if err != nil {
		return err
	}
	stopLoss, err := parseDecimalArg("stopLossPrice", pos[4])
	if err != nil {
		return err
	}

	// OCO needs a reference price even in dry runs; the midpoint of
	// the two exits stands in for the market.
	refPrice := takeProfit.Add(stopLoss).Div(decimal.NewFromInt(2))
	sub, rt, err := submitter(ctx, cf, refPrice)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := strategy.OCOConfig{
		PollInterval: time.Duration(rt.Cfg.Trading.PollIntervalSec) * time.Second,
		Budget:       time.Duration(rt.Cfg.Trading.MonitorBudgetSec) * time.Second,
	}
	monitor := strategy.NewOCOMonitor(sub, rt.Client, cfg)

	pair, err := monitor.Execute(ctx, pos[0], posSide, qty, takeProfit, stopLoss)
	if err != nil {
		return err
	}
	fmt.Printf("OCO %s: take-profit order %d, stop-loss order %d\n",
		pair.State, pair.TakeProfit.OrderID, pair.StopLoss.OrderID)
	if pair.State == domain.OCOFailed {
		return fmt.Errorf("both OCO legs terminal without a fill")
	}
	return nil
}

func runTWAP(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("twap", flag.ContinueOnError)
	cf := addCommon(fs)
	randomize := fs.Bool("randomize", false, "jitter slice sizes up to 20%")

	pos, err := parseCommand(fs, args, 5, "twap <symbol> <side> <totalQuantity> <sliceCount> <intervalSeconds>")
	if err != nil {
		return err
	}
	side, err := parseSide(pos[1])
	if err != nil {
		return err
	}
	total, err := parseDecimalArg("totalQuantity", pos[2])
	if err != nil {
		return err
	}
	sliceCount, err := parseIntArg("sliceCount", pos[3])
	if err != nil {
		return err
	}
	intervalSec, err := parseIntArg("intervalSeconds", pos[4])
	if err != nil {
		return err
	}

	sub, rt, err := submitter(ctx, cf, decimal.Zero)
	if err != nil {
		return err
	}
	defer rt.Close()

	sched := strategy.NewTWAPScheduler(sub, strategy.TWAPConfig{
		Randomize: *randomize,
		DryRun:    cf.dryRun,
	})
	report, err := sched.Execute(ctx, pos[0], side, total, sliceCount, time.Duration(intervalSec)*time.Second)
	if err != nil {
		return err
	}
	printTWAPReport(report)
	return nil
}

func printTWAPReport(r *domain.TWAPReport) {
	fmt.Printf("TWAP %s %s: executed %s of %s over %d slices",
		r.Side, r.Symbol, r.TotalExecuted, r.TotalQuantity, r.SliceCount)
	if r.AvgPrice.IsPositive() {
		fmt.Printf(" at average price %s", r.AvgPrice)
	}
	fmt.Println()
	if failed := r.Failed(); len(failed) > 0 {
		fmt.Printf("failed slices: %v\n", failed)
	}
	if r.StartPrice.IsPositive() && r.EndPrice.IsPositive() {
		fmt.Printf("mark price moved %s -> %s\n", r.StartPrice, r.EndPrice)
	}
}

func runGrid(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("grid", flag.ContinueOnError)
	cf := addCommon(fs)
	cancelAll := fs.Bool("cancel-all", false, "cancel previously placed grid orders")
	skipAtMarket := fs.Bool("skip-at-market", true, "skip a level equal to the current price")

	// Cancel-only invocations carry just the symbol.
	positionals := 5
	if len(args) >= 1 && len(args) < 5 {
		positionals = 1
	}
	pos, err := parseCommand(fs, args, positionals,
		"grid <symbol> <lowerPrice> <upperPrice> <levelCount> <quantityPerLevel> | grid <symbol> --cancel-all")
	if err != nil {
		return err
	}
	symbol := pos[0]
	if positionals == 1 && !*cancelAll {
		return domain.NewValidationError("args",
			"grid needs the full range arguments unless --cancel-all is given")
	}
	if *cancelAll && cf.dryRun {
		return domain.NewValidationError("args", "--cancel-all cannot run with --dry-run")
	}

	if *cancelAll && positionals == 1 {
		rt, err := app.Bootstrap(cf.configPath, cf.journalPath)
		if err != nil {
			return err
		}
		defer rt.Close()
		if !rt.Cfg.HasCredentials() {
			return domain.NewValidationError("credentials",
				"BINANCE_API_KEY and BINANCE_API_SECRET are required to cancel orders")
		}
		mgr := strategy.NewGridManager(nil, rt.Client, rt.Journal, strategy.GridConfig{})
		canceled, err := mgr.CancelAll(ctx, symbol)
		if err != nil {
			return err
		}
		fmt.Printf("grid: canceled %d orders on %s\n", canceled, symbol)
		return nil
	}

	lower, err := parseDecimalArg("lowerPrice", pos[1])
	if err != nil {
		return err
	}
	upper, err := parseDecimalArg("upperPrice", pos[2])
	if err != nil {
		return err
	}
	levelCount, err := parseIntArg("levelCount", pos[3])
	if err != nil {
		return err
	}
	qtyPerLevel, err := parseDecimalArg("quantityPerLevel", pos[4])
	if err != nil {
		return err
	}

	// Dry runs have no live mark price; the range midpoint stands in
	// so buys and sells still split sensibly.
	refPrice := lower.Add(upper).Div(decimal.NewFromInt(2))
	sub, rt, err := submitter(ctx, cf, refPrice)
	if err != nil {
		return err
	}
	defer rt.Close()

	mgr := strategy.NewGridManager(sub, rt.Client, rt.Journal, strategy.GridConfig{
		SkipAtMarket: *skipAtMarket,
	})
	plan, err := mgr.Deploy(ctx, symbol, lower, upper, levelCount, qtyPerLevel)
	if err != nil {
		return err
	}

	fmt.Printf("grid: placed %d of %d levels on %s\n", plan.Placed(), plan.LevelCount, symbol)
	if *cancelAll {
		canceled, err := mgr.CancelAll(ctx, symbol)
		if err != nil {
			return err
		}
		fmt.Printf("grid: canceled %d orders on %s\n", canceled, symbol)
	}
	return nil
}

func runPrice(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("price", flag.ContinueOnError)
	cf := addCommon(fs)

	pos, err := parseCommand(fs, args, 1, "price <symbol>")
	if err != nil {
		return err
	}
	symbol := pos[0]

	rt, err := app.Bootstrap(cf.configPath, "")
	if err != nil {
		return err
	}
	defer rt.Close()

	worker := exchange.NewMarkPriceWorker(rt.Cfg.API.Binance.StreamURL, symbol, func(p decimal.Decimal) {
		fmt.Printf("%s  %s  %s\n", time.Now().Format(time.RFC3339), symbol, p)
	})
	if err := worker.Connect(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	worker.Disconnect()
	return nil
}

func parseSide(s string) (domain.Side, error) {
	switch domain.Side(s) {
	case domain.SideBuy, domain.SideSell:
		return domain.Side(s), nil
	}
	return "", domain.NewValidationError("side", "must be BUY or SELL, got %q", s)
}

func parsePositionSide(s string) (domain.PositionSide, error) {
	switch domain.PositionSide(s) {
	case domain.PositionLong, domain.PositionShort:
		return domain.PositionSide(s), nil
	}
	return "", domain.NewValidationError("positionSide", "must be LONG or SHORT, got %q", s)
}

func parseTimeInForce(s string) (domain.TimeInForce, error) {
	switch domain.TimeInForce(s) {
	case domain.TifGTC, domain.TifIOC, domain.TifFOK, domain.TifGTX:
		return domain.TimeInForce(s), nil
	}
	return "", domain.NewValidationError("timeInForce", "must be GTC, IOC, FOK or GTX, got %q", s)
}

func parseWorkingType(s string) (domain.WorkingType, error) {
	switch domain.WorkingType(s) {
	case domain.WorkingContractPrice, domain.WorkingMarkPrice:
		return domain.WorkingType(s), nil
	}
	return "", domain.NewValidationError("workingType", "must be CONTRACT_PRICE or MARK_PRICE, got %q", s)
}

func parseDecimalArg(field, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.NewValidationError(field, "%q is not a number", s)
	}
	return d, nil
}

func parseIntArg(field, s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, domain.NewValidationError(field, "%q is not an integer", s)
	}
	return n, nil
}
