// Command r4m is a dev CLI for reply4me maintenance and debugging tasks.
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"sort"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/pkg/browser"

	"github.com/ibeckermayer/reply4me/internal/config"
	"github.com/ibeckermayer/reply4me/internal/quota"
	"github.com/ibeckermayer/reply4me/internal/store"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "open":
		if len(os.Args) < 3 {
			fmt.Println("Usage: r4m open <config|data|cache>")
			os.Exit(1)
		}
		runOpen(os.Args[2])
	case "state":
		runState()
	case "last-exchange":
		runLastExchange()
	default:
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage: r4m <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  open config   Open config file in default editor")
	fmt.Println("  open data     Open data directory (database, quotes, media)")
	fmt.Println("  open cache    Open cache directory (saved LLM exchanges)")
	fmt.Println("  state         Print persisted cursor and quota state")
	fmt.Println("  last-exchange Print the most recent saved LLM exchange")
}

func runOpen(target string) {
	var path string
	var err error

	switch target {
	case "config":
		path, err = config.ConfigPath()
	case "data":
		var cfg *config.Config
		cfg, err = config.Load(os.Getenv("REPLY4ME_CONFIG"))
		if err == nil {
			path = cfg.Storage.DataDir
		}
	case "cache":
		path, err = config.CacheDir()
	default:
		fmt.Printf("Unknown target: %s\n", target)
		os.Exit(1)
	}

	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}

	if err := browser.OpenFile(path); err != nil {
		log.Fatalf("Failed to open: %v", err)
	}
}

func runState() {
	cfg, err := config.Load(os.Getenv("REPLY4ME_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	st, err := store.New(cfg.Storage.DBPath)
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer st.Close()

	ctx := context.Background()
	meta, err := st.AllMeta(ctx)
	if err != nil {
		log.Fatalf("Failed to read meta: %v", err)
	}

	fmt.Println("Database:", cfg.Storage.DBPath)
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Printf("  %-26s %s\n", k, meta[k])
	}

	tracker := quota.NewTracker(st, cfg.Engagement.HourlyReplyCap)
	used, resetAt, err := tracker.Usage(ctx)
	if err != nil {
		log.Fatalf("Failed to read quota: %v", err)
	}
	reset := "not started"
	if !resetAt.IsZero() {
		reset = resetAt.In(time.Local).Format(time.DateTime)
		if time.Now().After(resetAt) {
			reset += " (expired)"
		}
	}
	fmt.Printf("Hourly replies: %d/%d, window resets %s\n", used, tracker.Cap(), reset)
}

func runLastExchange() {
	dir, err := config.ExchangeDir()
	if err != nil {
		log.Fatalf("Failed to get path: %v", err)
	}
	if err := printLastExchange(os.Stdout, dir); err != nil {
		log.Fatal(err)
	}
}

func printLastExchange(w io.Writer, dir string) error {
	ex, path, err := store.LoadLatestJSON[store.LLMExchange](dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, "File:", path)
	fmt.Fprintf(w, "Time:     %s\n", ex.Timestamp.In(time.Local).Format(time.DateTime))
	fmt.Fprintf(w, "Provider: %s (%s)\n", ex.Provider, ex.Model)
	fmt.Fprintf(w, "Intent:   %s\n", ex.Intent)
	if ex.Error != "" {
		fmt.Fprintf(w, "Error:    %s\n", ex.Error)
	}
	fmt.Fprintf(w, "\n--- prompt ---\n%s\n\n--- response ---\n%s\n", ex.Prompt, ex.Response)
	return nil
}
