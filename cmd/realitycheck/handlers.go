package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/elonfeng/realitycheck/internal/cache"
	"github.com/elonfeng/realitycheck/internal/config"
	"github.com/elonfeng/realitycheck/internal/scheduler"
	"github.com/elonfeng/realitycheck/internal/store"
	"github.com/elonfeng/realitycheck/pkg/alert"
	"github.com/elonfeng/realitycheck/pkg/check"
	"github.com/elonfeng/realitycheck/pkg/scoring"
	"github.com/elonfeng/realitycheck/pkg/server"
	"github.com/elonfeng/realitycheck/pkg/source"
)

func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		if _, err := os.Stat("config.yaml"); err == nil {
			path = "config.yaml"
		}
	}
	return config.Load(path)
}

func buildLogger(lc config.LogConfig, verbose bool) (*zap.Logger, error) {
	zc := zap.NewProductionConfig()
	if lc.Development || verbose {
		zc = zap.NewDevelopmentConfig()
	}
	if lc.Level != "" {
		lvl, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("parse log level %q: %w", lc.Level, err)
		}
		zc.Level = lvl
	}
	if verbose {
		zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	zc.OutputPaths = []string{"stderr"}
	return zc.Build()
}

// runtime holds what a check needs; Close releases the database if one
// was opened.
type runtime struct {
	runner *check.Runner
	db     store.Store
}

func (rt *runtime) Close() {
	if rt.db != nil {
		rt.db.Close()
	}
}

func buildRuntime(cfg *config.Config) (*runtime, error) {
	rt := &runtime{}

	var c source.Cache
	if cfg.Cache.Enabled {
		if cfg.Cache.Persistent {
			db, err := store.New(cfg.Database.Path)
			if err != nil {
				return nil, fmt.Errorf("open store: %w", err)
			}
			rt.db = db
		}
		tiered, err := cache.New(cfg.Cache.Size, cfg.Cache.ParseTTL(), rt.db, logger)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("create cache: %w", err)
		}
		c = tiered
	}

	rt.runner = check.NewRunner(buildSources(cfg, c), cfg.Check.ParseSourceTimeout(), logger)
	return rt, nil
}

func buildSources(cfg *config.Config, c source.Cache) []source.Source {
	var sources []source.Source

	if sc := cfg.Sources.GitHub; sc.Enabled {
		gh := source.NewGitHub(sc.Token, sc.Limit)
		if sc.BaseURL != "" {
			gh.WithBaseURL(sc.BaseURL)
		}
		sources = append(sources, gh)
	}
	if sc := cfg.Sources.HackerNews; sc.Enabled {
		hn := source.NewHackerNews(sc.Limit)
		if sc.BaseURL != "" {
			hn.WithBaseURL(sc.BaseURL)
		}
		sources = append(sources, hn)
	}
	if sc := cfg.Sources.NPM; sc.Enabled {
		npm := source.NewNPM(sc.Limit)
		if sc.BaseURL != "" {
			npm.WithBaseURL(sc.BaseURL)
		}
		sources = append(sources, npm)
	}
	if sc := cfg.Sources.PyPI; sc.Enabled {
		pypi := source.NewPyPI(sc.Limit)
		if sc.BaseURL != "" || sc.StatsURL != "" {
			pypi.WithBaseURL(orDefault(sc.BaseURL, "https://pypi.org"), orDefault(sc.StatsURL, "https://pypistats.org/api"))
		}
		sources = append(sources, pypi)
	}
	if sc := cfg.Sources.ProductHunt; sc.Enabled {
		sources = append(sources, source.NewProductHunt(sc.FeedURL, sc.ExcludeKeywords, sc.Limit))
	}

	for i, s := range sources {
		sources[i] = source.WithCache(s, c, logger)
	}
	return sources
}

// buildAlertManager collects the configured notifiers. annotations, when
// non-nil, also receives the advisory as a workflow warning.
func buildAlertManager(cfg *config.Config, annotations io.Writer) *alert.Manager {
	var notifiers []alert.Notifier

	if annotations != nil {
		notifiers = append(notifiers, alert.NewAnnotation(annotations))
	}
	if cfg.Alerts.Slack.Enabled && cfg.Alerts.Slack.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewSlack(cfg.Alerts.Slack.WebhookURL))
	}
	if cfg.Alerts.Discord.Enabled && cfg.Alerts.Discord.WebhookURL != "" {
		notifiers = append(notifiers, alert.NewDiscord(cfg.Alerts.Discord.WebhookURL))
	}
	if cfg.Alerts.Webhook.Enabled && cfg.Alerts.Webhook.URL != "" {
		notifiers = append(notifiers, alert.NewWebhook(cfg.Alerts.Webhook.URL, cfg.Alerts.Webhook.Secret))
	}

	return alert.NewManager(notifiers)
}

// notifyIfExceeded sends the advisory when the score is above threshold.
// Delivery failures are logged, never returned.
func notifyIfExceeded(ctx context.Context, mgr *alert.Manager, idea string, report *scoring.Report, threshold int) bool {
	if report == nil || !alert.Exceeds(report.RealitySignal, threshold) {
		return false
	}
	if !mgr.HasNotifiers() {
		return true
	}
	if err := mgr.Broadcast(ctx, alert.NewNotification(idea, report, threshold)); err != nil {
		logger.Warn("alert delivery failed", zap.Error(err))
	}
	return true
}

type checkOptions struct {
	args       []string
	depth      string
	threshold  int
	ideaFile   string
	jsonOutput bool
}

func readIdea(opts checkOptions) (string, error) {
	if opts.ideaFile != "" {
		data, err := os.ReadFile(opts.ideaFile)
		if err != nil {
			return "", fmt.Errorf("read idea file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	return strings.TrimSpace(strings.Join(opts.args, " ")), nil
}

func runCheck(ctx context.Context, cfg *config.Config, opts checkOptions) error {
	idea, err := readIdea(opts)
	if err != nil {
		return err
	}
	if idea == "" {
		return check.ErrEmptyIdea
	}

	depth := scoring.ParseDepth(cfg.Check.Depth)
	if opts.depth != "" {
		depth = scoring.ParseDepth(opts.depth)
	}
	threshold := cfg.Check.Threshold
	if opts.threshold >= 0 {
		threshold = opts.threshold
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Check.ParseRunTimeout())
	defer cancel()

	fmt.Fprintf(os.Stderr, "checking %d sources (%s)...\n", len(rt.runner.Sources(depth)), depth)
	res := rt.runner.Check(ctx, idea, depth)
	if res.Err != nil {
		return fmt.Errorf("check idea: %w", res.Err)
	}

	if notifyIfExceeded(ctx, buildAlertManager(cfg, nil), idea, res.Report, threshold) {
		fmt.Fprintf(os.Stderr, "signal %d exceeds threshold %d\n", res.Report.RealitySignal, threshold)
	}

	if opts.jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res.Report)
	}
	return printReport(os.Stdout, res.Report)
}

func printReport(out io.Writer, r *scoring.Report) error {
	fmt.Fprintf(out, "reality signal: %d/100 (%s duplicate likelihood)\n", r.RealitySignal, r.DuplicateLikelihood)
	fmt.Fprintf(out, "top competitor: %s\n", r.TopCompetitor())
	fmt.Fprintf(out, "keywords:       %s\n", strings.Join(r.Keywords, ", "))

	var counts []string
	for _, st := range r.Depth.Sources() {
		if n, ok := r.SourceCounts[st]; ok {
			counts = append(counts, fmt.Sprintf("%s=%d", source.ShortName(st), n))
		}
	}
	fmt.Fprintf(out, "sources:        %s\n\n", strings.Join(counts, " "))

	if len(r.TopSimilars) == 0 {
		fmt.Fprintln(out, "no similar projects found")
	} else {
		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "#\tNAME\tSTARS\tURL")
		for i, s := range r.TopSimilars {
			fmt.Fprintf(w, "%d\t%s\t%d\t%s\n", i+1, s.Name, s.Stars, s.URL)
		}
		if err := w.Flush(); err != nil {
			return err
		}
	}

	if len(r.PivotHints) > 0 {
		fmt.Fprintln(out, "\npivot hints:")
		for _, h := range r.PivotHints {
			fmt.Fprintf(out, "  - %s\n", h)
		}
	}
	return nil
}

func runKeywords(args []string) error {
	idea := strings.TrimSpace(strings.Join(args, " "))
	if idea == "" {
		return check.ErrEmptyIdea
	}
	for _, kw := range scoring.ExtractKeywords(idea) {
		fmt.Println(kw)
	}
	return nil
}

func runServe(ctx context.Context, cfg *config.Config, port int) error {
	if port == 0 {
		port = cfg.Server.Port
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.Close()

	if rt.db != nil {
		janitor := scheduler.New(rt.db, cfg.Cache.ParseTTL(), cfg.Cache.ParsePurgeInterval(), logger)
		go func() {
			if err := janitor.Run(ctx); err != nil && ctx.Err() == nil {
				logger.Error("cache janitor failed", zap.Error(err))
			}
		}()
	}

	srv := server.New(rt.runner, server.Options{
		Store:        rt.db,
		DefaultDepth: scoring.ParseDepth(cfg.Check.Depth),
		RunTimeout:   cfg.Check.ParseRunTimeout(),
		Port:         port,
		Logger:       logger,
	})
	fmt.Fprintf(os.Stderr, "realitycheck server listening on :%d\n", port)
	return srv.ListenAndServe(ctx)
}

func runPurge(ctx context.Context, cfg *config.Config, olderThan string) error {
	age := cfg.Cache.ParseTTL()
	if olderThan != "" {
		d, err := time.ParseDuration(olderThan)
		if err != nil {
			return fmt.Errorf("parse --older-than: %w", err)
		}
		age = d
	}

	db, err := store.New(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer db.Close()

	n, err := db.PurgeBefore(ctx, time.Now().Add(-age))
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "purged %d cached responses older than %s\n", n, age)
	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
