package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/FACorreiaa/statement-ingest/internal/domain/ingest"
	"github.com/FACorreiaa/statement-ingest/internal/domain/pdfextract"
	"github.com/FACorreiaa/statement-ingest/internal/domain/schema"
	"github.com/FACorreiaa/statement-ingest/internal/domain/validation"
	"github.com/FACorreiaa/statement-ingest/pkg/config"
	"github.com/FACorreiaa/statement-ingest/pkg/cron"
	"github.com/FACorreiaa/statement-ingest/pkg/storage"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "process":
		runProcess(logger)
	case "schemas":
		runSchemas(logger)
	case "samples":
		runSamples(logger)
	case "cleanup":
		runCleanup(logger)
	case "serve":
		runServe(logger)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Statement Ingest CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  ingest <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  process   Parse, validate, and normalize statement files")
	fmt.Println("  schemas   List registered source schemas")
	fmt.Println("  samples   List sources with saved sample metadata")
	fmt.Println("  cleanup   Remove pre-fix backup files past the retention window")
	fmt.Println("  serve     Run the scheduled maintenance jobs in the foreground")
	fmt.Println("  help      Show this help message")
	fmt.Println("\nRun 'ingest <command> -h' for more information on a command.")
}

// deps bundles everything the subcommands need.
type deps struct {
	cfg      *config.Config
	registry *schema.Registry
	store    *storage.DocumentStore
	samples  *ingest.SampleStore
	service  *ingest.Service
}

func buildDeps(logger *slog.Logger) (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	registry, err := schema.NewRegistry(cfg.Data.SchemaDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema registry: %w", err)
	}

	store, err := storage.NewDocumentStore(cfg.Data.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open document store: %w", err)
	}

	samples, err := ingest.NewSampleStore(cfg.Data.MetadataDir, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open sample store: %w", err)
	}

	validator := validation.NewValidator(logger)
	service := ingest.NewService(registry, pdfextract.New(logger), validator,
		validation.NewFixer(validator, logger), samples, logger)
	service.SetHeaderScanLimit(cfg.Limits.HeaderScanLines)

	return &deps{cfg: cfg, registry: registry, store: store, samples: samples, service: service}, nil
}

func runProcess(logger *slog.Logger) {
	fs := flag.NewFlagSet("process", flag.ExitOnError)
	source := fs.String("source", "", "source schema ID (e.g. chase, bankofamerica)")
	year := fs.Int("year", time.Now().Year(), "statement year for PDF date completion")
	out := fs.String("out", "", "output CSV path (default stdout)")
	applyFixes := fs.Bool("apply-fixes", false, "apply pending fixable issues instead of holding the file back")
	fs.Parse(os.Args[2:])

	if *source == "" || fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "Usage: ingest process -source ID [options] FILE...")
		os.Exit(1)
	}

	d, err := buildDeps(logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	maxBytes := int64(d.cfg.Limits.MaxFileSizeMB) * 1024 * 1024
	var records []ingest.NormalizedTransaction
	failed := 0

	for _, arg := range fs.Args() {
		result, err := processFile(ctx, d, *source, arg, *year, *applyFixes, maxBytes, logger)
		if err != nil {
			logger.Error("processing failed", slog.String("file", arg), slog.Any("error", err))
			failed++
			continue
		}

		printResult(result)
		records = append(records, result.Records...)
		if !result.Validation.CanProceed() {
			failed++
		}
	}

	if len(records) > 0 {
		w := os.Stdout
		if *out != "" {
			f, err := os.Create(*out)
			if err != nil {
				logger.Error("failed to create output file", slog.Any("error", err))
				os.Exit(1)
			}
			defer f.Close()
			w = f
		}
		if err := ingest.WriteCSV(w, records); err != nil {
			logger.Error("failed to write output", slog.Any("error", err))
			os.Exit(1)
		}
	}

	if failed > 0 {
		os.Exit(1)
	}
}

func processFile(ctx context.Context, d *deps, source, path string, year int, applyFixes bool, maxBytes int64, logger *slog.Logger) (*ingest.Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.Size() > maxBytes {
		return nil, fmt.Errorf("file exceeds the %dMB size limit", d.cfg.Limits.MaxFileSizeMB)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	stored, err := d.store.Save(source, filepath.Base(path), f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to stage file: %w", err)
	}

	data, err := d.store.Read(source, stored.Name)
	if err != nil {
		return nil, err
	}

	doc := ingest.Document{
		SourceID: source,
		Name:     stored.Name,
		Path:     stored.Path,
		Data:     data,
		Year:     year,
	}

	result, err := d.service.Process(ctx, doc)
	if err != nil {
		return nil, err
	}

	if result.Validation.UserActionRequired() && applyFixes {
		for _, issue := range result.Validation.FixableIssues() {
			fixed, err := d.service.ApproveFix(ctx, doc, issue)
			if err != nil {
				logger.Warn("fix attempt failed",
					slog.String("issue", string(issue.Type)),
					slog.Any("error", err))
				continue
			}
			result = fixed
			if result.Validation.CanProceed() {
				break
			}
		}
	}

	return result, nil
}

func printResult(r *ingest.Result) {
	fmt.Fprintf(os.Stderr, "%s [%s]: state=%s records=%d skipped=%d\n",
		r.File, r.SourceID, r.Validation.State, len(r.Records), r.SkippedAmounts)
	for _, e := range r.Validation.Errors {
		fmt.Fprintf(os.Stderr, "  error: %s\n", e)
	}
	for _, w := range r.Validation.Warnings {
		fmt.Fprintf(os.Stderr, "  warning: %s\n", w)
	}
	for _, issue := range r.Validation.FixableIssues() {
		fmt.Fprintf(os.Stderr, "  fixable: %s (%s)\n", issue.Message, issue.Suggestion)
	}
}

func runSchemas(logger *slog.Logger) {
	fs := flag.NewFlagSet("schemas", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	d, err := buildDeps(logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	for _, s := range d.registry.All() {
		sum := d.registry.Summary(s.SourceID)
		pdfMark := ""
		if sum.PDFCapable {
			pdfMark = " (pdf)"
		}
		fmt.Printf("%-18s %s%s\n", sum.SourceID, sum.DisplayName, pdfMark)
		fmt.Printf("    required: %s\n", strings.Join(sum.RequiredColumns, ", "))
	}
}

func runSamples(logger *slog.Logger) {
	fs := flag.NewFlagSet("samples", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	d, err := buildDeps(logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	sources, err := d.samples.List()
	if err != nil {
		logger.Error("failed to list sample metadata", slog.Any("error", err))
		os.Exit(1)
	}
	if len(sources) == 0 {
		fmt.Println("No saved sample metadata.")
		return
	}
	for _, src := range sources {
		meta, err := d.samples.Get(src)
		if err != nil {
			continue
		}
		fmt.Printf("%-18s %s (%d rows, processed %s)\n",
			src, meta.OriginalFilename, meta.TotalRows, meta.ProcessedAt.Format("2006-01-02"))
	}
}

func runCleanup(logger *slog.Logger) {
	fs := flag.NewFlagSet("cleanup", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	d, err := buildDeps(logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	maxAge := time.Duration(d.cfg.Backups.RetentionDays) * 24 * time.Hour
	removed, err := d.store.CleanupOldBackups(maxAge)
	if err != nil {
		logger.Error("backup cleanup failed", slog.Any("error", err))
		os.Exit(1)
	}
	fmt.Printf("Removed %d backup files older than %d days.\n", removed, d.cfg.Backups.RetentionDays)
}

func runServe(logger *slog.Logger) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	d, err := buildDeps(logger)
	if err != nil {
		logger.Error("startup failed", slog.Any("error", err))
		os.Exit(1)
	}

	scheduler := cron.NewScheduler(d.store, d.cfg.Backups.RetentionDays, logger)
	if err := scheduler.Start(d.cfg.Backups.CleanupSchedule); err != nil {
		logger.Error("failed to start scheduler", slog.Any("error", err))
		os.Exit(1)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	scheduler.Stop()
}
