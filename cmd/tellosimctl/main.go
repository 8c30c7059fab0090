// Command tellosimctl drives a running tellosim through its HTTP relay.
//
//	tellosimctl [-url http://localhost:8080] send takeoff
//	tellosimctl stats
//	tellosimctl flight
//	tellosimctl health
//	tellosimctl run mission.yaml
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/dronelab/tellosim/internal/api"
	"github.com/dronelab/tellosim/internal/script"
)

var errUsage = errors.New("usage: tellosimctl [-url URL] [-v] send <command> | stats | flight | health | run <script.yaml>")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("tellosimctl", flag.ContinueOnError)
	fs.SetOutput(stderr)
	baseURL := fs.String("url", envOr("TELLOSIM_URL", "http://localhost:8080"), "relay base URL")
	verbose := fs.Bool("v", false, "log script progress")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return errUsage
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	client := api.New(*baseURL, "")

	rest := fs.Args()[1:]
	switch fs.Arg(0) {
	case "send":
		if len(rest) == 0 {
			return errUsage
		}
		reply, err := client.SendCommand(strings.Join(rest, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, reply)

	case "stats":
		stats, err := client.Stats()
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(stats))
		for k := range stats {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(stdout, "%s:%s\n", k, stats[k])
		}

	case "flight":
		flight, err := client.Flight()
		if err != nil {
			return err
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(flight)

	case "health":
		if err := client.Healthcheck(); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "ok")

	case "run":
		if len(rest) != 1 {
			return errUsage
		}
		s, err := script.Load(rest[0])
		if err != nil {
			return err
		}
		report, err := script.NewRunner(client, logger).Run(ctx, s)
		fmt.Fprint(stdout, report.YAML())
		return err

	default:
		return errUsage
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
