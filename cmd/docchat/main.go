package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/poller"
	"github.com/docuchat/docuchat/internal/session"
)

func main() {
	var (
		docID = flag.Int64("doc", 0, "document id to chat about (required)")
	)
	flag.Parse()

	if *docID == 0 {
		fmt.Fprintln(os.Stderr, "Error: --doc is required")
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	}))
	slog.SetDefault(logger)

	_ = godotenv.Load()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := api.NewClient(cfg.API, logger)
	sched := poller.NewScheduler(logger)
	mgr := session.NewManager(client, sched, logger,
		session.WithPollInterval(cfg.Session.Interval),
		session.WithPollAttempts(cfg.Session.Attempts),
	)

	docs, err := client.ListDocuments(ctx)
	if err != nil {
		logger.Error("document list fetch failed", "error", err)
		os.Exit(1)
	}
	var extracted string
	found := false
	for _, d := range docs {
		if d.ID == *docID {
			found = true
			if d.OCRReady() {
				extracted = *d.ExtractedText
			}
			break
		}
	}
	if !found {
		fmt.Fprintf(os.Stderr, "Error: document %d not found\n", *docID)
		os.Exit(1)
	}
	if extracted == "" {
		fmt.Fprintf(os.Stderr, "Error: document %d has no extracted text yet, run OCR first\n", *docID)
		os.Exit(1)
	}

	sess, err := mgr.EnsureSession(ctx, *docID, extracted)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not start session: %v\n", err)
		os.Exit(1)
	}

	if cx, ok := sess.Context(); ok {
		fmt.Printf("Document context (%d chars of OCR text)\n", len(cx.Question))
		fmt.Printf("Contextualization: %s\n\n", cx.Answer)
	}
	for _, turn := range sess.Turns() {
		fmt.Printf("> %s\n%s\n\n", turn.Question, turn.Answer)
	}
	fmt.Println(`Ask a question about the document ("exit" to quit).`)

	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "exit" || q == "quit" {
			break
		}

		exch, err := mgr.Ask(ctx, *docID, q)
		if err != nil {
			if errors.Is(err, common.ErrSessionNotInitialized) {
				fmt.Println("Session is not initialized for this document.")
				continue
			}
			fmt.Printf("Question failed: %v\n", err)
			continue
		}
		fmt.Printf("%s\n\n", exch.Answer)
	}

	mgr.StopAll()
	shutdownCtx, cancel := common.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	sched.Shutdown(shutdownCtx)

	if history := mgr.History(*docID); len(history) > 1 {
		fmt.Printf("Session saved server-side with %d question(s).\n", len(history)-1)
	}
}
