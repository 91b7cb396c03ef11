// narrated ingests feed items on a schedule, clusters them into narratives,
// and reports sentiment and momentum metrics for what is hot right now.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/finpulse/narrative/internal/config"
	"github.com/finpulse/narrative/internal/entity"
	"github.com/finpulse/narrative/internal/feeds"
	"github.com/finpulse/narrative/internal/feeds/rss"
	"github.com/finpulse/narrative/internal/logging"
	"github.com/finpulse/narrative/internal/narrative"
	"github.com/finpulse/narrative/internal/sentiment"
	"github.com/finpulse/narrative/internal/store"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: narrated <command> [flags]

commands:
  run        run the periodic fetch/detect/metrics loop
  detect     fetch feeds once and run one detection pass
  metrics    run one metrics computation pass
  trending   show narratives ranked by velocity
  mentioned  show narratives ranked by mention count
  extract    extract entities from text (debug)
  classify   classify sentiment of text (debug)
  prune      delete narratives older than the retention window
`)
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}

	// Optional .env for local development
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	cmd := os.Args[1]
	args := os.Args[2:]

	switch cmd {
	case "run":
		if err := logging.Init(); err != nil {
			fmt.Fprintf(os.Stderr, "init logging: %v\n", err)
			os.Exit(1)
		}
	default:
		logging.InitWriter(os.Stderr)
	}
	defer logging.Close()

	eng, st, err := buildEngine(cfg)
	if err != nil {
		logging.Fatal("startup failed", "error", err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "run":
		runLoop(ctx, cfg, eng)
	case "detect":
		runDetect(ctx, cfg, eng)
	case "metrics":
		runMetrics(ctx, eng)
	case "trending":
		runRanked(ctx, eng, args, "trending")
	case "mentioned":
		runRanked(ctx, eng, args, "mentioned")
	case "extract":
		runExtract(eng, args)
	case "classify":
		runClassify(eng, args)
	case "prune":
		runPrune(ctx, cfg, eng)
	default:
		usage()
	}
}

func buildEngine(cfg *config.Config) (*narrative.Engine, *store.Store, error) {
	tables := entity.DefaultTables()
	if cfg.Tables.EntitiesFile != "" {
		var err error
		tables, err = entity.LoadTables(cfg.Tables.EntitiesFile)
		if err != nil {
			return nil, nil, fmt.Errorf("entity tables: %w", err)
		}
	}

	lexicon := sentiment.DefaultLexicon()
	if cfg.Tables.LexiconFile != "" {
		var err error
		lexicon, err = sentiment.LoadLexicon(cfg.Tables.LexiconFile)
		if err != nil {
			return nil, nil, fmt.Errorf("sentiment lexicon: %w", err)
		}
	}

	dbPath := cfg.DatabasePath()
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
			return nil, nil, fmt.Errorf("create data dir: %w", err)
		}
	}
	st, err := store.Open(dbPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}

	eng := narrative.NewEngine(st, entity.NewExtractor(tables), sentiment.NewClassifier(lexicon))
	eng.SetMaxKeywords(cfg.Detector.MaxKeywords)
	return eng, st, nil
}

func buildAggregator(cfg *config.Config) *feeds.Aggregator {
	agg := feeds.NewAggregator()
	minInterval := time.Duration(cfg.Scheduler.FeedMinIntervalMinutes) * time.Minute
	for _, f := range cfg.Feeds {
		agg.Add(rss.New(f.Name, f.URL), minInterval)
	}
	return agg
}

func detectConfig(cfg *config.Config) narrative.DetectConfig {
	return narrative.DetectConfig{
		MinArticles:       cfg.Detector.MinArticles,
		TimeWindowHours:   cfg.Detector.TimeWindowHours,
		MinSharedEntities: cfg.Detector.MinSharedEntities,
	}
}

// runLoop is the scheduler-driven cadence: fetch+detect, metrics, and
// retention each tick independently until interrupted.
func runLoop(ctx context.Context, cfg *config.Config, eng *narrative.Engine) {
	agg := buildAggregator(cfg)

	detectEvery := time.Duration(cfg.Scheduler.DetectIntervalMinutes) * time.Minute
	metricsEvery := time.Duration(cfg.Scheduler.MetricsIntervalMinutes) * time.Minute

	detectTick := time.NewTicker(detectEvery)
	defer detectTick.Stop()
	metricsTick := time.NewTicker(metricsEvery)
	defer metricsTick.Stop()
	pruneTick := time.NewTicker(24 * time.Hour)
	defer pruneTick.Stop()

	logging.Info("scheduler started",
		"detect_every", detectEvery, "metrics_every", metricsEvery,
		"feeds", len(cfg.Feeds))

	// First pass immediately, then on cadence
	detectOnce(ctx, cfg, eng, agg)
	metricsOnce(ctx, eng)

	for {
		select {
		case <-ctx.Done():
			logging.Info("scheduler stopped")
			return
		case <-detectTick.C:
			detectOnce(ctx, cfg, eng, agg)
		case <-metricsTick.C:
			metricsOnce(ctx, eng)
		case <-pruneTick.C:
			pruneOnce(ctx, cfg, eng)
		}
	}
}

func detectOnce(ctx context.Context, cfg *config.Config, eng *narrative.Engine, agg *feeds.Aggregator) {
	items := agg.FetchAll(ctx)
	res, err := eng.DetectNarratives(ctx, items, detectConfig(cfg))
	if err != nil {
		logging.Error("detection pass failed", "error", err)
		return
	}
	logging.Info("detection pass complete",
		"items", len(items), "detected", res.Detected,
		"created", res.Created, "skipped", res.Skipped)
}

func metricsOnce(ctx context.Context, eng *narrative.Engine) {
	res, err := eng.ComputeMetrics(ctx, nil)
	if err != nil {
		logging.Error("metrics pass failed", "error", err)
		return
	}
	logging.Info("metrics pass complete", "calculated", res.Calculated, "stored", res.Stored)
}

func pruneOnce(ctx context.Context, cfg *config.Config, eng *narrative.Engine) {
	days := cfg.Scheduler.RetentionDays
	if days <= 0 {
		return
	}
	n, err := eng.DeleteOlderThan(ctx, days)
	if err != nil {
		logging.Error("retention pass failed", "error", err)
		return
	}
	logging.Info("retention pass complete", "deleted", n, "days", days)
}

func runDetect(ctx context.Context, cfg *config.Config, eng *narrative.Engine) {
	agg := buildAggregator(cfg)
	items := agg.FetchAll(ctx)
	res, err := eng.DetectNarratives(ctx, items, detectConfig(cfg))
	if err != nil {
		logging.Fatal("detection failed", "error", err)
	}
	fmt.Printf("items=%d detected=%d created=%d skipped=%d\n",
		len(items), res.Detected, res.Created, res.Skipped)
}

func runMetrics(ctx context.Context, eng *narrative.Engine) {
	res, err := eng.ComputeMetrics(ctx, nil)
	if err != nil {
		logging.Fatal("metrics failed", "error", err)
	}
	fmt.Printf("calculated=%d stored=%d\n", res.Calculated, res.Stored)
}

func runRanked(ctx context.Context, eng *narrative.Engine, args []string, mode string) {
	fs := flag.NewFlagSet(mode, flag.ExitOnError)
	period := fs.String("period", "1h", "metric period: 1h or 24h")
	limit := fs.Int("limit", 10, "max rows")
	fs.Parse(args)

	var (
		rows []narrative.Ranked
		err  error
	)
	if mode == "trending" {
		rows, err = eng.Trending(ctx, narrative.Period(*period), *limit)
	} else {
		rows, err = eng.MostMentioned(ctx, narrative.Period(*period), *limit)
	}
	if err != nil {
		logging.Fatal("ranking failed", "error", err)
	}

	for i, r := range rows {
		fmt.Printf("%2d. [%s] %s  mentions=%d prev=%d velocity=%+.2f\n",
			i+1, r.Narrative.Sentiment, r.Narrative.Title,
			r.MentionCount, r.PreviousMentionCount, r.Velocity)
	}
}

func runExtract(eng *narrative.Engine, args []string) {
	fs := flag.NewFlagSet("extract", flag.ExitOnError)
	maxKeywords := fs.Int("keywords", 5, "max keywords")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: narrated extract [-keywords n] <text>")
		os.Exit(2)
	}

	grouped := eng.ExtractEntities(fs.Arg(0), *maxKeywords)
	for _, typ := range []entity.Type{entity.TypeTicker, entity.TypePerson, entity.TypeOrg, entity.TypeKeyword} {
		if values := grouped[typ]; len(values) > 0 {
			fmt.Printf("%-8s %v\n", typ, values)
		}
	}
}

func runClassify(eng *narrative.Engine, args []string) {
	fs := flag.NewFlagSet("classify", flag.ExitOnError)
	explain := fs.Bool("explain", false, "show matched terms")
	fs.Parse(args)
	if fs.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: narrated classify [-explain] <text>")
		os.Exit(2)
	}

	if *explain {
		ex := eng.ExplainSentiment(fs.Arg(0))
		fmt.Printf("%s\n  bullish: %v\n  bearish: %v\n", ex.Sentiment, ex.BullishTerms, ex.BearishTerms)
		return
	}
	fmt.Println(eng.ClassifySentiment(fs.Arg(0)))
}

func runPrune(ctx context.Context, cfg *config.Config, eng *narrative.Engine) {
	days := cfg.Scheduler.RetentionDays
	if days <= 0 {
		fmt.Println("retention disabled")
		return
	}
	n, err := eng.DeleteOlderThan(ctx, days)
	if err != nil {
		logging.Fatal("prune failed", "error", err)
	}
	fmt.Printf("deleted=%d\n", n)
}
