// Package main implements the commerce CLI for the Coinbase Commerce charges
// API.
//
// Usage:
//
//	commerce create --name=Gold --amount=9.99 --customer-id=42 --customer-name=alice
//	commerce list
//	commerce cancel --id=CHARGE_ID
//
// The API key is read from COINBASE_COMMERCE_API_KEY (or its _SSM_PARAM
// pointer outside APP_ENV=local). create prints the hosted payment URL; list
// and cancel print the API response as indented JSON. Failures print the
// error kind, HTTP status and response body when available, and exit 1.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/shopspring/decimal"

	"commercepay/internal/commerce"
	"commercepay/internal/config"
	"commercepay/internal/types"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// serviceFactory builds the ChargeService used by a subcommand.
type serviceFactory func(stderr io.Writer) (commerce.ChargeService, error)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, newChargeService))
}

// newChargeService loads configuration and builds a commerce.Client.
func newChargeService(stderr io.Writer) (commerce.ChargeService, error) {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "local"
	}
	provider := config.NewSecretProvider(appEnv, os.Getenv("AWS_REGION"), os.Getenv("AWS_ENDPOINT_URL"))

	cfg, err := config.LoadConfig(provider)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	if err := cfg.RequireCommerce(); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level: cliLogLevel(cfg.LogLevel),
	}))

	return commerce.NewClient(&http.Client{Timeout: cfg.Commerce.Timeout}, commerce.ClientConfig{
		APIKey:     cfg.Commerce.APIKey,
		APIVersion: cfg.Commerce.APIVersion,
		BaseURL:    cfg.Commerce.BaseURL,
		UserAgent:  "commercepay-cli/" + cfg.Build.Version,
		Logger:     logger,
	})
}

// cliLogLevel maps LOG_LEVEL for the CLI. info is treated as warn so that
// stdout carries only command output.
func cliLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, newService serviceFactory) int {
	if len(args) == 0 {
		usage(stderr)
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "create":
		return runCreate(ctx, rest, stdout, stderr, newService)
	case "list":
		return runList(ctx, rest, stdout, stderr, newService)
	case "cancel":
		return runCancel(ctx, rest, stdout, stderr, newService)
	case "help", "-h", "--help":
		usage(stdout)
		return exitOK
	default:
		fmt.Fprintf(stderr, "error: unknown command %q\n\n", cmd)
		usage(stderr)
		return exitUsage
	}
}

func usage(w io.Writer) {
	fmt.Fprintf(w, "Coinbase Commerce CLI\n\n")
	fmt.Fprintf(w, "Usage:\n")
	fmt.Fprintf(w, "  commerce create --name=NAME --amount=AMOUNT --customer-id=ID --customer-name=NAME [--description=TEXT] [--currency=USD] [--pricing-type=fixed_price]\n")
	fmt.Fprintf(w, "  commerce list\n")
	fmt.Fprintf(w, "  commerce cancel --id=CHARGE_ID\n\n")
	fmt.Fprintf(w, "Environment:\n")
	fmt.Fprintf(w, "  COINBASE_COMMERCE_API_KEY   API key sent as X-CC-Api-Key [required]\n")
	fmt.Fprintf(w, "  HTTP_TIMEOUT                per-request timeout (default 10s)\n")
}

func newFlagSet(name string, stderr io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(stderr)
	return fs
}

func runCreate(ctx context.Context, args []string, stdout, stderr io.Writer, newService serviceFactory) int {
	fs := newFlagSet("create", stderr)
	name := fs.String("name", "", "Charge name [required]")
	description := fs.String("description", "", "Charge description")
	amount := fs.String("amount", "", "Local price amount, e.g. 9.99 [required]")
	customerID := fs.String("customer-id", "", "Customer ID stored in charge metadata [required]")
	customerName := fs.String("customer-name", "", "Customer name stored in charge metadata [required]")
	currency := fs.String("currency", types.DefaultCurrency, "ISO 4217 currency code")
	pricingType := fs.String("pricing-type", string(types.PricingFixedPrice), "fixed_price or no_price")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	if *amount == "" {
		*amount = "0"
	}
	value, err := decimal.NewFromString(*amount)
	if err != nil {
		fmt.Fprintf(stderr, "error: invalid --amount %q: %v\n", *amount, err)
		return exitUsage
	}

	svc, err := newService(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	hostedURL, err := svc.CreateCharge(ctx, types.ChargeRequest{
		Name:         *name,
		Description:  *description,
		Amount:       value,
		CustomerID:   *customerID,
		CustomerName: *customerName,
		Currency:     *currency,
		PricingType:  types.PricingType(*pricingType),
	})
	if err != nil {
		printFailure(stderr, err)
		return exitFailure
	}

	fmt.Fprintln(stdout, hostedURL)
	return exitOK
}

func runList(ctx context.Context, args []string, stdout, stderr io.Writer, newService serviceFactory) int {
	fs := newFlagSet("list", stderr)
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}

	svc, err := newService(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	payload, err := svc.ListCharges(ctx)
	if err != nil {
		printFailure(stderr, err)
		return exitFailure
	}
	return printPayload(stdout, stderr, payload)
}

func runCancel(ctx context.Context, args []string, stdout, stderr io.Writer, newService serviceFactory) int {
	fs := newFlagSet("cancel", stderr)
	id := fs.String("id", "", "Charge ID or code to cancel [required]")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *id == "" && fs.NArg() > 0 {
		*id = fs.Arg(0)
	}
	if *id == "" {
		fmt.Fprintf(stderr, "error: --id is required\n")
		return exitUsage
	}

	svc, err := newService(stderr)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return exitFailure
	}

	payload, err := svc.CancelCharge(ctx, *id)
	if err != nil {
		printFailure(stderr, err)
		return exitFailure
	}
	return printPayload(stdout, stderr, payload)
}

func printPayload(stdout, stderr io.Writer, payload any) int {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		fmt.Fprintf(stderr, "error: encoding response: %v\n", err)
		return exitFailure
	}
	fmt.Fprintln(stdout, string(out))
	return exitOK
}

// printFailure reports err along with its outcome kind and, when present,
// the upstream status and body.
func printFailure(w io.Writer, err error) {
	fmt.Fprintf(w, "error: %v\n", err)
	fmt.Fprintf(w, "kind: %s\n", commerce.KindOf(err))
	if status, ok := commerce.StatusCode(err); ok {
		fmt.Fprintf(w, "status: %d\n", status)
	}
	if body, ok := commerce.ResponseBody(err); ok {
		fmt.Fprintf(w, "body: %s\n", body)
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		if missing, ok := appErr.Details[types.DetailMissingField].(string); ok {
			fmt.Fprintf(w, "missing: %s\n", missing)
		}
	}
}
