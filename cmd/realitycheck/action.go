package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/elonfeng/realitycheck/internal/config"
	"github.com/elonfeng/realitycheck/internal/ghaction"
	"github.com/elonfeng/realitycheck/pkg/check"
	"github.com/elonfeng/realitycheck/pkg/scoring"
)

const maxHeaderIdea = 120

// runAction executes one check as a workflow step and returns the process
// exit code. Only input errors fail the step; engine failures publish the
// fallback outputs with a warning.
func runAction(ctx context.Context, cfg *config.Config, stdout io.Writer, getenv func(string) string) int {
	in, warnings := ghaction.ReadInputs(getenv)
	for _, w := range warnings {
		ghaction.Warning(stdout, w)
	}

	idea, path, err := ghaction.ResolveIdea(in.Idea)
	if err != nil {
		ghaction.Error(stdout, err.Error())
		return 1
	}
	if idea == "" {
		if path != "" {
			ghaction.Error(stdout, fmt.Sprintf("idea file %s is empty", path))
		} else {
			ghaction.Error(stdout, "idea input is empty")
		}
		return 1
	}
	if path != "" {
		logger.Info("idea read from file", zap.String("path", path))
	}

	if in.GitHubToken != "" {
		cfg.Sources.GitHub.Token = in.GitHubToken
	}
	depth := scoring.ParseDepth(in.Depth)
	printActionHeader(stdout, idea, depth, in.Threshold)

	res := actionCheck(ctx, cfg, idea, depth)
	if res.Fallback() {
		ghaction.Warning(stdout, fmt.Sprintf("reality check failed, publishing fallback outputs: %v", res.Err))
	}

	outputs := res.Outputs()
	w := ghaction.NewWriter(getenv("GITHUB_OUTPUT"), stdout)
	for _, o := range []struct{ name, value string }{
		{"score", outputs.Score},
		{"report", outputs.Report},
		{"top-competitor", outputs.TopCompetitor},
	} {
		if err := w.SetOutput(o.name, o.value); err != nil {
			logger.Error("write output failed", zap.String("output", o.name), zap.Error(err))
			ghaction.Warning(stdout, err.Error())
		}
	}

	if res.Fallback() {
		return 0
	}

	fmt.Fprintln(stdout)
	if err := printReport(stdout, res.Report); err != nil {
		logger.Warn("print report failed", zap.Error(err))
	}
	ghaction.Notice(stdout, fmt.Sprintf("Reality signal %d/100 (%s). Top competitor: %s",
		res.Report.RealitySignal, res.Report.DuplicateLikelihood, outputs.TopCompetitor))
	notifyIfExceeded(ctx, buildAlertManager(cfg, stdout), idea, res.Report, in.Threshold)
	return 0
}

// loadActionConfig resolves configuration for a workflow step. Config is
// read only from --config or REALITYCHECK_CONFIG; a config or logger
// problem is reported as a warning and the defaults are used instead.
func loadActionConfig(stdout io.Writer, getenv func(string) string) (*config.Config, *zap.Logger) {
	path := cfgFile
	if path == "" {
		path = getenv("REALITYCHECK_CONFIG")
	}

	cfg, err := config.Load(path)
	if err != nil {
		ghaction.Warning(stdout, fmt.Sprintf("ignoring config: %v", err))
		cfg, _ = config.Load("")
	}

	lg, err := buildLogger(cfg.Log, verbose)
	if err != nil {
		ghaction.Warning(stdout, fmt.Sprintf("ignoring log settings: %v", err))
		if lg, err = buildLogger(config.Default().Log, verbose); err != nil {
			lg = zap.NewNop()
		}
	}
	return cfg, lg
}

func printActionHeader(out io.Writer, idea string, depth scoring.Depth, threshold int) {
	if r := []rune(idea); len(r) > maxHeaderIdea {
		idea = string(r[:maxHeaderIdea]) + "..."
	}
	fmt.Fprintf(out, "idea:           %s\n", strings.Join(strings.Fields(idea), " "))
	fmt.Fprintf(out, "depth:          %s\n", depth)
	fmt.Fprintf(out, "threshold:      %d\n", threshold)
	fmt.Fprintln(out, "---")
}

// actionCheck runs the engine, turning setup failures into a fallback
// result as well.
func actionCheck(ctx context.Context, cfg *config.Config, idea string, depth scoring.Depth) check.Result {
	rt, err := buildRuntime(cfg)
	if err != nil {
		return check.Result{Err: err}
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(ctx, cfg.Check.ParseRunTimeout())
	defer cancel()

	return rt.runner.Check(ctx, idea, depth)
}
