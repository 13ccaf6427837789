package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	natspkg "github.com/tracesanford134/aksol-dapp/service/nats"
	"github.com/urfave/cli/v2"
)

func streamCommand() *cli.Command {
	return &cli.Command{
		Name:      "stream",
		Usage:     "Follow the live activity stream via SSE",
		ArgsUsage: "[wallet_address]",
		Flags: []cli.Flag{
			serverFlag(),
			&cli.BoolFlag{
				Name:    "json",
				Aliases: []string{"j"},
				Usage:   "Output outcome events as JSON (one per line)",
			},
		},
		Action: func(c *cli.Context) error {
			serverURL := c.String("server")
			walletAddress := c.Args().First()
			jsonOutput := c.Bool("json")

			var url string
			if walletAddress != "" {
				url = fmt.Sprintf("%s/api/v1/stream/activity/%s", serverURL, walletAddress)
			} else {
				url = fmt.Sprintf("%s/api/v1/stream/activity", serverURL)
			}

			// Cancel on interrupt
			ctx, cancel := context.WithCancel(c.Context)
			defer cancel()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigChan
				cancel()
			}()

			req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
			if err != nil {
				return fmt.Errorf("failed to create request: %w", err)
			}
			req.Header.Set("Accept", "text/event-stream")

			httpClient := &http.Client{
				Timeout: 0, // No timeout for streaming
			}
			resp, err := httpClient.Do(req)
			if err != nil {
				return fmt.Errorf("failed to connect to SSE endpoint: %w", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != http.StatusOK {
				return fmt.Errorf("server returned status %d", resp.StatusCode)
			}

			if !jsonOutput {
				if walletAddress != "" {
					fmt.Fprintf(os.Stderr, "Connected to activity stream for wallet: %s\n", walletAddress)
				} else {
					fmt.Fprintf(os.Stderr, "Connected to activity stream for all wallets\n")
				}
				fmt.Fprintf(os.Stderr, "Streaming outcomes... (Ctrl+C to stop)\n\n")
			}

			scanner := bufio.NewScanner(resp.Body)
			var currentEvent, currentData string

			for scanner.Scan() {
				line := scanner.Text()

				// Empty line indicates end of event
				if line == "" {
					if currentEvent != "" && currentData != "" {
						if err := handleSSEEvent(currentEvent, currentData, jsonOutput); err != nil {
							fmt.Fprintf(os.Stderr, "Error handling event: %v\n", err)
						}
					}
					currentEvent = ""
					currentData = ""
					continue
				}

				if strings.HasPrefix(line, "event:") {
					currentEvent = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
				} else if strings.HasPrefix(line, "data:") {
					currentData = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
				}
			}

			if err := scanner.Err(); err != nil {
				if ctx.Err() != nil {
					if !jsonOutput {
						fmt.Fprintf(os.Stderr, "\nDisconnected\n")
					}
					return nil
				}
				return fmt.Errorf("error reading SSE stream: %w", err)
			}

			return nil
		},
	}
}

func handleSSEEvent(eventType, data string, jsonOutput bool) error {
	switch eventType {
	case "connected":
		if !jsonOutput {
			var info map[string]interface{}
			if err := json.Unmarshal([]byte(data), &info); err != nil {
				return err
			}
			if wallet, ok := info["wallet"].(string); ok {
				fmt.Fprintf(os.Stderr, "✓ Subscribed: %s\n\n", wallet)
			}
		}
		return nil

	case "outcome":
		var event natspkg.OutcomeEvent
		if err := json.Unmarshal([]byte(data), &event); err != nil {
			return err
		}

		if jsonOutput {
			fmt.Println(data)
		} else {
			printOutcomeEvent(event)
		}
		return nil

	case "error":
		var errInfo map[string]interface{}
		if err := json.Unmarshal([]byte(data), &errInfo); err != nil {
			return err
		}
		return fmt.Errorf("server error: %v", errInfo["error"])

	default:
		// Unknown event type, ignore
		return nil
	}
}

func printOutcomeEvent(event natspkg.OutcomeEvent) {
	marker := "✓"
	if event.Outcome != "success" {
		marker = "✗"
	}
	fmt.Printf("%s %s %.4f SOL  [%s]\n", marker, event.Kind, event.AmountUI, event.Cluster)
	fmt.Printf("  Wallet:    %s\n", event.WalletAddress)
	if event.Signature != "" {
		fmt.Printf("  Signature: %s\n", event.Signature)
	}
	if event.ErrorKind != "" {
		fmt.Printf("  Error:     %s\n", event.ErrorKind)
	}
	if event.Message != "" {
		fmt.Printf("  Message:   %s\n", event.Message)
	}
	fmt.Printf("  Published: %s\n", event.PublishedAt.Format(time.RFC3339))
	fmt.Println()
}
