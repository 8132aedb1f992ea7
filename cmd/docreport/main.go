package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/poller"
	"github.com/docuchat/docuchat/internal/session"
)

func main() {
	var (
		docID    = flag.Int64("doc", 0, "document id (required)")
		out      = flag.String("out", "", "output file path (defaults to document-<id>-report.pdf)")
		original = flag.Bool("original", false, "download the original uploaded file instead of the PDF report")
	)
	flag.Parse()

	if *docID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --doc is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()
	client := api.NewClient(cfg.API, logger)

	var (
		data []byte
		err  error
	)
	if *original {
		if *out == "" {
			*out = fmt.Sprintf("document-%d", *docID)
		}
		data, err = client.FetchFile(ctx, *docID, true)
	} else {
		if *out == "" {
			*out = fmt.Sprintf("document-%d-report.pdf", *docID)
		}
		mgr := session.NewManager(client, poller.NewScheduler(logger), logger)
		data, err = mgr.GenerateReport(ctx, *docID)
	}
	if err != nil {
		if errors.Is(err, common.ErrSessionNotInitialized) {
			fmt.Fprintln(os.Stderr, "Error: run LLM contextualization for this document first")
			os.Exit(1)
		}
		logger.Error("download failed", "doc_id", *docID, "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, data, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Wrote %d bytes to %s\n", len(data), *out)
}
