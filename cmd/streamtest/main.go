// streamtest connects to the Polymarket websocket and prints events to the console.
// Usage: go run ./cmd/streamtest --tokens 1234,5678 [--user] [--verbose]
//
// For --user the following environment variables are required (a .env file
// in the working directory is loaded first):
//
//	POLY_API_KEY        - CLOB API key
//	POLY_API_SECRET     - CLOB API secret
//	POLY_API_PASSPHRASE - CLOB API passphrase
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rickgao/polymarket-realtime/internal/api"
	"github.com/rickgao/polymarket-realtime/internal/auth"
	"github.com/rickgao/polymarket-realtime/internal/connection"
	"github.com/rickgao/polymarket-realtime/internal/model"
	"github.com/rickgao/polymarket-realtime/internal/realtime"
	"github.com/rickgao/polymarket-realtime/internal/subscription"
	"github.com/rickgao/polymarket-realtime/internal/version"
)

func main() {
	tokens := flag.String("tokens", "", "comma separated token ids")
	markets := flag.String("markets", "", "comma separated condition ids or slugs, resolved via the REST API")
	user := flag.Bool("user", false, "subscribe to the user channel")
	wsURL := flag.String("url", realtime.DefaultURL, "websocket endpoint")
	reconnect := flag.Bool("reconnect", true, "reconnect automatically")
	verbose := flag.Bool("verbose", false, "print full event JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Warn("error loading .env file", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	tokenIDs := splitList(*tokens)
	if m := splitList(*markets); len(m) > 0 {
		resolved, err := api.NewClient(api.DefaultBaseURL, api.WithLogger(logger)).ResolveTokenIDs(ctx, m)
		if err != nil {
			logger.Error("failed to resolve markets", "error", err)
			os.Exit(1)
		}
		tokenIDs = append(tokenIDs, resolved...)
	}
	if len(tokenIDs) == 0 && !*user {
		logger.Error("nothing to subscribe to: pass --tokens, --markets or --user")
		os.Exit(1)
	}

	client, err := realtime.New(realtime.Config{
		URL:           *wsURL,
		UserAgent:     version.UserAgent(),
		AutoReconnect: realtime.Bool(*reconnect),
	}, logger)
	if err != nil {
		logger.Error("failed to create client", "error", err)
		os.Exit(1)
	}

	client.On(connection.EventConnected, func(ev connection.Event) {
		fmt.Printf("[STATE] connected session=%d\n", ev.Session)
	})
	client.On(connection.EventReconnecting, func(ev connection.Event) {
		fmt.Printf("[STATE] reconnecting attempt=%d delay=%s\n", ev.Attempt, ev.Delay)
	})
	client.On(connection.EventDisconnected, func(ev connection.Event) {
		fmt.Printf("[STATE] disconnected err=%v\n", ev.Err)
	})

	p := printer{verbose: *verbose}

	if len(tokenIDs) > 0 {
		if _, err := client.SubscribeMarket(tokenIDs, subscription.Callbacks{
			OnMarket: p.market,
			OnError:  p.fail,
		}); err != nil {
			logger.Error("failed to subscribe to market channel", "error", err)
			os.Exit(1)
		}
	}

	if *user {
		creds := auth.Credentials{
			Key:        os.Getenv("POLY_API_KEY"),
			Secret:     os.Getenv("POLY_API_SECRET"),
			Passphrase: os.Getenv("POLY_API_PASSPHRASE"),
		}
		if err := creds.Validate(); err != nil {
			logger.Error("API credentials required for the user channel", "error", err)
			logger.Info("Set environment variables: POLY_API_KEY, POLY_API_SECRET and POLY_API_PASSPHRASE")
			os.Exit(1)
		}
		logger.Info("using API credentials", "creds", creds)

		if _, err := client.SubscribeUserEvents(creds, subscription.Callbacks{
			OnOrder: p.order,
			OnTrade: p.trade,
			OnError: p.fail,
		}); err != nil {
			logger.Error("failed to subscribe to user channel", "error", err)
			os.Exit(1)
		}
	}

	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}

	// Diagnostics printer
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-client.Diagnostics():
				fmt.Printf("[DIAG] %v\n", err)
			}
		}
	}()

	// Stats printer
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s := client.Stats()
				logger.Info("stats",
					"state", s.State,
					"reconnects", s.Reconnects,
					"subscriptions", s.Subscriptions,
					"router_received", s.Router.MessagesReceived,
					"router_routed", s.Router.MessagesRouted,
					"parse_errors", s.Router.ParseErrors,
					"queued", s.Router.Queued,
				)
			}
		}
	}()

	logger.Info("streaming started - press Ctrl+C to stop")

	// Wait for shutdown
	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	logger.Info("shutting down...")
	client.Disconnect(shutdownCtx)

	logger.Info("shutdown complete")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type printer struct {
	verbose bool
}

func (p printer) dump(tag string, v any) bool {
	if !p.verbose {
		return false
	}
	data, _ := json.MarshalIndent(v, "", "  ")
	fmt.Printf("[%s] %s\n", tag, data)
	return true
}

func (p printer) market(ev model.MarketEvent) error {
	if p.dump("MARKET", ev) {
		return nil
	}
	switch ev.Type {
	case model.MarketBook:
		fmt.Printf("[BOOK] asset=%s bids=%d asks=%d hash=%s\n", ev.AssetID, len(ev.Bids), len(ev.Asks), ev.Hash)
	case model.MarketPriceChange:
		fmt.Printf("[PRICE] asset=%s side=%s price=%s size=%s bid=%s ask=%s\n",
			ev.AssetID, ev.Side, ev.Price, ev.Size, ev.BestBid, ev.BestAsk)
	case model.MarketLastTradePrice:
		fmt.Printf("[LAST] asset=%s side=%s price=%s size=%s\n", ev.AssetID, ev.Side, ev.Price, ev.Size)
	case model.MarketTickSizeChange:
		fmt.Printf("[TICK] asset=%s %s -> %s\n", ev.AssetID, ev.OldTickSize, ev.NewTickSize)
	}
	return nil
}

func (p printer) order(ev model.OrderEvent) error {
	if p.dump("ORDER", ev) {
		return nil
	}
	fmt.Printf("[ORDER] id=%s type=%s side=%s price=%s matched=%s/%s\n",
		ev.OrderID, ev.EventType, ev.Side, ev.Price, ev.MatchedSize, ev.OriginalSize)
	return nil
}

func (p printer) trade(ev model.TradeEvent) error {
	if p.dump("TRADE", ev) {
		return nil
	}
	fmt.Printf("[TRADE] id=%s status=%s side=%s price=%s size=%s outcome=%s\n",
		ev.TradeID, ev.Status, ev.Side, ev.Price, ev.Size, ev.Outcome)
	return nil
}

func (p printer) fail(err error) {
	fmt.Printf("[ERROR] %v\n", err)
}
