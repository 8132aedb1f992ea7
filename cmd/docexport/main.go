package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/export"
)

func main() {
	var (
		out    = flag.String("out", "documents.xlsx", "output XLSX file path")
		withQA = flag.Bool("qa", false, "include a Q&A sheet with each document's conversation history")
	)
	flag.Parse()

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

	docs, err := client.ListDocuments(ctx)
	if err != nil {
		logger.Error("document list fetch failed", "error", err)
		os.Exit(1)
	}

	svc := export.NewService(client, logger)
	xlsxBytes, err := svc.ExportDocumentsXLSX(ctx, docs, nil, *withQA)
	if err != nil {
		logger.Error("export failed", "error", err)
		os.Exit(1)
	}

	if err := os.WriteFile(*out, xlsxBytes, 0644); err != nil {
		logger.Error("failed to write output file", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Exported %d document(s) to %s\n", len(docs), *out)
}
