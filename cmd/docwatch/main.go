package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/docuchat/docuchat/constants"
	"github.com/docuchat/docuchat/internal/api"
	"github.com/docuchat/docuchat/internal/common"
	"github.com/docuchat/docuchat/internal/doclist"
	"github.com/docuchat/docuchat/internal/jobs"
	"github.com/docuchat/docuchat/internal/poller"
)

// previewText collapses whitespace and truncates to n bytes for one-line output
func previewText(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > n {
		return s[:n] + "..."
	}
	return s
}

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		ids = flag.String("ids", "", "comma-separated document ids to OCR")
		all = flag.Bool("all", false, "run OCR on every listed document")
	)
	flag.Parse()

	if *ids == "" && !*all {
		printError("Error: either --ids or --all is required\n")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	client := api.NewClient(cfg.API, logger)
	sched := poller.NewScheduler(logger)
	tracker := jobs.NewTracker(client, sched, logger, jobs.WithPollInterval(cfg.OCR.Interval))
	list := doclist.NewReconciler(client, tracker, logger)

	if err := list.Refresh(ctx); err != nil {
		logger.Error("initial document list fetch failed", "error", err)
		os.Exit(1)
	}

	// Build the selection, then start jobs for it.
	if *all {
		list.ToggleSelectAll()
	} else {
		for _, part := range strings.Split(*ids, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				printError("Error: invalid document id %q\n", part)
				os.Exit(1)
			}
			list.ToggleOne(id)
		}
	}
	selected := list.Selected()
	if len(selected) == 0 {
		fmt.Println("No documents to process.")
		return
	}

	go list.Run(ctx)

	logger.Info("starting ocr batch", "documents", len(selected))
	if err := list.OCRSelected(ctx); err != nil {
		logger.Warn("some jobs failed to start", "error", err)
	}

	// Wait until every poll handle has resolved or teardown is requested.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
wait:
	for {
		select {
		case <-ctx.Done():
			logger.Info("interrupted, cancelling active polls")
			break wait
		case <-ticker.C:
			if len(sched.ActiveKeys()) == 0 {
				break wait
			}
		}
	}

	tracker.StopAll()
	shutdownCtx, cancel := common.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sched.Shutdown(shutdownCtx)

	completed, failed := 0, 0
	for _, id := range selected {
		job, ok := tracker.Job(id)
		if !ok {
			continue
		}
		switch {
		case job.Status == constants.JobStatusCompleted:
			completed++
			if job.ExtractedText != nil {
				fmt.Printf("document %d: completed (%d%%) %q\n", id, job.Progress, previewText(*job.ExtractedText, 80))
			} else {
				fmt.Printf("document %d: completed (%d%%)\n", id, job.Progress)
			}
		case job.ErrorMessage != nil:
			failed++
			fmt.Printf("document %d: %s (%s)\n", id, job.Status, *job.ErrorMessage)
		default:
			fmt.Printf("document %d: %s (%d%%)\n", id, job.Status, job.Progress)
		}
	}
	fmt.Printf("OCR batch done: %d completed, %d failed, %d total\n", completed, failed, len(selected))
}
