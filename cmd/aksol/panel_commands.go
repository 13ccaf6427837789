package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/itchyny/gojq"
	"github.com/tracesanford134/aksol-dapp/client"
	"github.com/urfave/cli/v2"
)

func serverFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "server",
		Aliases: []string{"s"},
		Value:   "http://localhost:8080",
		Usage:   "HTTP server URL",
		EnvVars: []string{"AKSOL_SERVER_URL"},
	}
}

func jsonFlag() *cli.BoolFlag {
	return &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}
}

func newPanelClient(c *cli.Context, timeout time.Duration) *client.Client {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError, // Only errors to stderr
	}))
	var httpClient *http.Client
	if timeout > 0 {
		httpClient = &http.Client{Timeout: timeout}
	}
	return client.NewClient(c.String("server"), httpClient, logger)
}

func transferCommand() *cli.Command {
	return &cli.Command{
		Name:      "transfer",
		Aliases:   []string{"send"},
		Usage:     "Send SOL to a destination address",
		ArgsUsage: "DESTINATION_ADDRESS AMOUNT_SOL",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   2 * time.Minute,
				Usage:   "How long to wait for the terminal outcome",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 2 {
				return fmt.Errorf("destination address and amount are required")
			}

			dest := c.Args().Get(0)
			amount, err := strconv.ParseFloat(c.Args().Get(1), 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", c.Args().Get(1), err)
			}

			cl := newPanelClient(c, c.Duration("timeout"))

			if !c.Bool("json") {
				fmt.Fprintf(os.Stderr, "Sending %.4f SOL to %s...\n\n", amount, dest)
			}

			outcome, err := cl.SubmitTransfer(context.Background(), dest, amount)
			if err != nil {
				return fmt.Errorf("failed to submit transfer: %w", err)
			}

			return printOutcome(outcome, c.Bool("json"))
		},
	}
}

func swapCommand() *cli.Command {
	return &cli.Command{
		Name:      "swap",
		Aliases:   []string{"buy"},
		Usage:     "Buy AKSOL with SOL via the fee-free route",
		ArgsUsage: "AMOUNT_SOL",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
			&cli.DurationFlag{
				Name:    "timeout",
				Aliases: []string{"t"},
				Value:   2 * time.Minute,
				Usage:   "How long to wait for the terminal outcome",
			},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("amount is required")
			}

			amount, err := strconv.ParseFloat(c.Args().Get(0), 64)
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", c.Args().Get(0), err)
			}

			cl := newPanelClient(c, c.Duration("timeout"))

			if !c.Bool("json") {
				fmt.Fprintf(os.Stderr, "Buying AKSOL with %.4f SOL...\n\n", amount)
			}

			outcome, err := cl.SubmitSwap(context.Background(), amount)
			if err != nil {
				return fmt.Errorf("failed to submit swap: %w", err)
			}

			if c.Bool("json") {
				return printJSON(outcome)
			}

			if outcome.OK && outcome.EstimatedTokensUI > 0 {
				fmt.Printf("Estimated:  ~%.2f AKSOL\n", outcome.EstimatedTokensUI)
			}
			return printOutcome(&outcome.Outcome, false)
		},
	}
}

func txCommand() *cli.Command {
	return &cli.Command{
		Name:      "tx",
		Aliases:   []string{"lookup"},
		Usage:     "Look up the on-chain status of a transaction signature",
		ArgsUsage: "SIGNATURE",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("transaction signature is required")
			}

			cl := newPanelClient(c, 30*time.Second)
			status, err := cl.Lookup(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to look up signature: %w", err)
			}

			if c.Bool("json") {
				return printJSON(status)
			}

			fmt.Printf("Signature:  %s\n", status.Signature)
			if !status.Found {
				fmt.Println("Status:     not found")
				return nil
			}
			fmt.Printf("Status:     %s\n", status.ConfirmationStatus)
			fmt.Printf("Slot:       %d\n", status.Slot)
			if status.Confirmations != nil {
				fmt.Printf("Confirms:   %d\n", *status.Confirmations)
			}
			if status.Err != nil {
				fmt.Printf("On-chain error: %s\n", *status.Err)
			}
			return nil
		},
	}
}

func activityCommand() *cli.Command {
	return &cli.Command{
		Name:  "activity",
		Usage: "Show the panel's recent-outcomes feed",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl := newPanelClient(c, 30*time.Second)
			records, err := cl.Activity(context.Background())
			if err != nil {
				return fmt.Errorf("failed to fetch activity: %w", err)
			}

			if c.Bool("json") {
				return printJSON(records)
			}

			if len(records) == 0 {
				fmt.Println("No recent activity")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("%s  %s\n", rec.Timestamp.Format(time.RFC3339), rec.Label)
				if rec.Signature != nil {
					fmt.Printf("    signature: %s\n", *rec.Signature)
				}
			}
			return nil
		},
	}
}

func balanceCommand() *cli.Command {
	return &cli.Command{
		Name:      "balance",
		Usage:     "Show an account's SOL balance",
		ArgsUsage: "ADDRESS",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 {
				return fmt.Errorf("address is required")
			}

			cl := newPanelClient(c, 30*time.Second)
			balance, err := cl.Balance(context.Background(), c.Args().Get(0))
			if err != nil {
				return fmt.Errorf("failed to fetch balance: %w", err)
			}

			if c.Bool("json") {
				return printJSON(balance)
			}

			fmt.Printf("Address:  %s\n", balance.Address)
			fmt.Printf("Balance:  %.9f SOL (%d lamports)\n", balance.SOL, balance.Lamports)
			return nil
		},
	}
}

func priceCommand() *cli.Command {
	return &cli.Command{
		Name:  "price",
		Usage: "Show the panel's latest SOL/USD quote",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
		},
		Action: func(c *cli.Context) error {
			cl := newPanelClient(c, 30*time.Second)
			quote, err := cl.Price(context.Background())
			if err != nil {
				return fmt.Errorf("failed to fetch price: %w", err)
			}

			if c.Bool("json") {
				return printJSON(quote)
			}

			fmt.Printf("SOL/USD:  $%.2f\n", quote.PriceUSD)
			fmt.Printf("Fetched:  %s\n", quote.FetchedAt.Format(time.RFC3339))
			if quote.Stale {
				fmt.Println("Warning:  quote is stale")
			}
			return nil
		},
	}
}

func historyCommand() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List persisted pipeline outcomes, newest first",
		Flags: []cli.Flag{
			serverFlag(),
			jsonFlag(),
			&cli.StringFlag{
				Name:    "wallet",
				Aliases: []string{"w"},
				Usage:   "Filter by source wallet address",
			},
			&cli.IntFlag{
				Name:    "limit",
				Aliases: []string{"n"},
				Value:   20,
				Usage:   "Maximum number of records",
			},
			&cli.StringSliceFlag{
				Name:    "must-jq",
				Aliases: []string{"jq"},
				Usage:   "jq filter expression that must evaluate to true (can be specified multiple times, all must match)",
			},
		},
		Action: func(c *cli.Context) error {
			filters, err := compileJQFilters(c.StringSlice("must-jq"))
			if err != nil {
				return err
			}

			cl := newPanelClient(c, 30*time.Second)
			records, err := cl.History(context.Background(), c.String("wallet"), c.Int("limit"))
			if err != nil {
				return fmt.Errorf("failed to fetch history: %w", err)
			}

			matched := make([]client.HistoryRecord, 0, len(records))
			for _, rec := range records {
				ok, err := matchesJQFilters(filters, rec)
				if err != nil {
					return err
				}
				if ok {
					matched = append(matched, rec)
				}
			}

			if c.Bool("json") {
				return printJSON(matched)
			}

			if len(matched) == 0 {
				fmt.Println("No matching records")
				return nil
			}
			for _, rec := range matched {
				printHistoryRecord(rec)
			}
			return nil
		},
	}
}

func printHistoryRecord(rec client.HistoryRecord) {
	marker := "✓"
	if rec.Outcome != "success" {
		marker = "✗"
	}
	fmt.Printf("%s %s  %s %.4f SOL  [%s]\n", marker, rec.CreatedAt.Format(time.RFC3339), rec.Kind, rec.AmountUI, rec.Cluster)
	if rec.Destination != nil {
		fmt.Printf("    to:        %s\n", *rec.Destination)
	}
	if rec.Signature != nil {
		fmt.Printf("    signature: %s\n", *rec.Signature)
	}
	if rec.ErrorKind != nil {
		fmt.Printf("    error:     %s\n", *rec.ErrorKind)
	}
}

// compileJQFilters parses and compiles the --must-jq expressions.
func compileJQFilters(exprs []string) ([]*gojq.Code, error) {
	compiled := make([]*gojq.Code, len(exprs))
	for i, expr := range exprs {
		query, err := gojq.Parse(expr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
		}
		compiled[i], err = gojq.Compile(query)
		if err != nil {
			return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
		}
	}
	return compiled, nil
}

// matchesJQFilters runs every compiled filter over the record's JSON form.
// All filters must evaluate to a truthy value.
func matchesJQFilters(filters []*gojq.Code, record interface{}) (bool, error) {
	if len(filters) == 0 {
		return true, nil
	}

	// Round-trip through JSON so gojq sees plain maps and numbers.
	raw, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("failed to marshal record for filtering: %w", err)
	}
	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("failed to unmarshal record for filtering: %w", err)
	}

	for _, code := range filters {
		iter := code.Run(doc)
		v, ok := iter.Next()
		if !ok {
			return false, nil
		}
		if _, isErr := v.(error); isErr {
			return false, nil
		}
		if !isTruthy(v) {
			return false, nil
		}
	}
	return true, nil
}

// isTruthy reports whether a jq result counts as a match.
func isTruthy(v interface{}) bool {
	if v == nil {
		return false
	}
	if b, ok := v.(bool); ok {
		return b
	}
	// Everything else (numbers, strings, objects, arrays) is truthy
	return true
}

func printOutcome(outcome *client.Outcome, jsonOutput bool) error {
	if jsonOutput {
		return printJSON(outcome)
	}

	if outcome.OK {
		fmt.Println("✓ Confirmed")
		fmt.Printf("Signature:  %s\n", outcome.Signature)
		return nil
	}

	fmt.Println("✗ Failed")
	fmt.Printf("Kind:       %s\n", outcome.ErrorKind)
	fmt.Printf("Message:    %s\n", outcome.Message)
	if outcome.Signature != "" {
		fmt.Printf("Signature:  %s (may still land, re-check with 'aksol tx')\n", outcome.Signature)
	}
	return nil
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	fmt.Println(string(data))
	return nil
}
