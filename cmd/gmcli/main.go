package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"

	germanminer "github.com/devDariush/germanminer-go"
	"github.com/devDariush/germanminer-go/internal/logging"
	"github.com/devDariush/germanminer-go/internal/reporting"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const usage = `usage: gmcli <command>

commands:
  info                 print the current request quota
  bank <number>        print a bank account
  bank list            print all bank accounts
  player <name|uuid>   print a player identity
`

func main() {
	logger := logging.New(os.Getenv("GERMANMINER_ENVIRONMENT") == "development")
	ctx := logging.AddToContext(context.Background(), logger)

	fail := func(msg string, args ...any) {
		logger.Error(msg, args...)
		os.Exit(1)
	}

	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	if dsn := os.Getenv("SENTRY_DSN"); dsn != "" {
		flush, err := reporting.InitSentry(dsn)
		if err != nil {
			fail("Failed to initialize Sentry", "error", err.Error())
		}
		defer flush()
	}

	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}

	client, err := germanminer.NewClient(ctx, germanminer.Options{
		HTTPClient: httpClient,
	})
	if err != nil {
		fail("Failed to create client", "error", err.Error())
	}
	defer client.Close()

	switch os.Args[1] {
	case "info":
		snapshot, err := client.QuotaInfo(ctx, false)
		if err != nil {
			fail("Failed to fetch quota info", "error", err.Error())
		}
		printJSON(snapshot, fail)
	case "bank":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		if os.Args[2] == "list" {
			accounts, err := client.Bank().ListAll(ctx)
			if err != nil {
				fail("Failed to list bank accounts", "error", err.Error())
			}
			printJSON(accounts, fail)
			return
		}
		account, err := client.Bank().Account(ctx, os.Args[2])
		if err != nil {
			fail("Failed to fetch bank account", "error", err.Error(), "account", os.Args[2])
		}
		printJSON(account, fail)
	case "player":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		player, err := fetchPlayer(ctx, client, os.Args[2])
		if err != nil {
			fail("Failed to fetch player", "error", err.Error(), "player", os.Args[2])
		}
		printJSON(player, fail)
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
}

func fetchPlayer(ctx context.Context, client *germanminer.Client, identifier string) (*germanminer.Player, error) {
	// Playernames are at most 16 characters; anything longer is a UUID
	if len(identifier) < 20 {
		return client.Players().FromPlayername(ctx, identifier)
	}
	return client.Players().FromUUID(ctx, identifier)
}

func printJSON(value any, fail func(msg string, args ...any)) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		fail("Failed to marshal output", "error", err.Error())
	}
	fmt.Println(string(data))
}
