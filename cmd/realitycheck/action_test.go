package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/realitycheck/internal/config"
	"github.com/elonfeng/realitycheck/pkg/scoring"
	"github.com/elonfeng/realitycheck/pkg/source"
)

func catalogServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/search/repositories", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"items": [{"full_name": "acme/figma-sync", "html_url": "https://github.com/acme/figma-sync",
			"description": "Sync Figma files to GitHub from the CLI", "stargazers_count": 500}]}`))
	})
	mux.HandleFunc("/search", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"hits": [{"objectID": "9", "title": "Ask HN: versioning Figma files?", "points": 40, "created_at_i": 1700000000}]}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(baseURL string) *config.Config {
	cfg := config.Default()
	cfg.Sources.GitHub.BaseURL = baseURL
	cfg.Sources.HackerNews.BaseURL = baseURL
	cfg.Cache.Enabled = false
	return cfg
}

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func readOutputs(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	out := make(map[string]string)
	lines := strings.Split(string(data), "\n")
	for i := 0; i < len(lines); i++ {
		name, ok := strings.CutSuffix(lines[i], "<<EOF_IDEA_CHECK")
		if !ok {
			continue
		}
		var value []string
		for i++; i < len(lines) && lines[i] != "EOF_IDEA_CHECK"; i++ {
			value = append(value, lines[i])
		}
		out[name] = strings.Join(value, "\n")
	}
	return out
}

func TestRunAction_Success(t *testing.T) {
	srv := catalogServer(t)
	outFile := filepath.Join(t.TempDir(), "github_output")

	var stdout bytes.Buffer
	code := runAction(context.Background(), testConfig(srv.URL), &stdout, envOf(map[string]string{
		"INPUT_IDEA":      "a CLI tool to sync Figma files to GitHub",
		"INPUT_THRESHOLD": "10",
		"GITHUB_OUTPUT":   outFile,
	}))
	require.Equal(t, 0, code)

	outputs := readOutputs(t, outFile)
	assert.NotEqual(t, "0", outputs["score"])
	assert.Equal(t, "acme/figma-sync (500 stars)", outputs["top-competitor"])
	assert.Contains(t, outputs["report"], `"duplicate_likelihood"`)

	log := stdout.String()
	assert.Contains(t, log, "idea:           a CLI tool to sync Figma files to GitHub\n")
	assert.Contains(t, log, "depth:          quick\n")
	assert.Contains(t, log, "threshold:      10\n")
	assert.Contains(t, log, "top competitor: acme/figma-sync (500 stars)")
	assert.Regexp(t, `1\s+acme/figma-sync\s+500\s+https://github\.com/acme/figma-sync`, log)
	assert.Contains(t, log, "pivot hints:\n  - ")
	assert.Less(t, strings.Index(log, "---"), strings.Index(log, "reality signal:"), "header precedes the summary")

	assert.Contains(t, log, "::notice::Reality signal")
	assert.Contains(t, log, "::warning::Reality signal", "score above threshold raises the advisory")
}

func TestPrintActionHeader_TruncatesIdea(t *testing.T) {
	var buf bytes.Buffer
	printActionHeader(&buf, strings.Repeat("é", 130), scoring.DepthDeep, 70)

	first, _, _ := strings.Cut(buf.String(), "\n")
	assert.Equal(t, "idea:           "+strings.Repeat("é", 120)+"...", first)
	assert.Contains(t, buf.String(), "depth:          deep\n")
}

func TestLoadActionConfig_IgnoresWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	bad := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("server: api.example.com\nlog: debug\n"), 0o644))
	t.Chdir(dir)
	cfgFile = ""

	var stdout bytes.Buffer
	cfg, lg := loadActionConfig(&stdout, envOf(nil))
	require.NotNil(t, lg)
	assert.Empty(t, stdout.String(), "./config.yaml is not read implicitly")
	assert.Equal(t, config.Default().Server, cfg.Server)

	cfg, lg = loadActionConfig(&stdout, envOf(map[string]string{"REALITYCHECK_CONFIG": bad}))
	require.NotNil(t, lg)
	assert.Contains(t, stdout.String(), "::warning::ignoring config: parse config")
	assert.Equal(t, config.Default().Check, cfg.Check)
}

func TestLoadActionConfig_BadLogLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: loud\ncheck:\n  threshold: 55\n"), 0o644))
	cfgFile = ""

	var stdout bytes.Buffer
	cfg, lg := loadActionConfig(&stdout, envOf(map[string]string{"REALITYCHECK_CONFIG": path}))
	require.NotNil(t, lg)
	assert.Contains(t, stdout.String(), "::warning::ignoring log settings")
	assert.Equal(t, 55, cfg.Check.Threshold, "the rest of the file still applies")
}

func TestRunAction_BelowThresholdNoAdvisory(t *testing.T) {
	srv := catalogServer(t)

	var stdout bytes.Buffer
	code := runAction(context.Background(), testConfig(srv.URL), &stdout, envOf(map[string]string{
		"INPUT_IDEA":      "a CLI tool to sync Figma files to GitHub",
		"INPUT_THRESHOLD": "100",
	}))
	require.Equal(t, 0, code)

	assert.Contains(t, stdout.String(), "::set-output name=top-competitor::acme/figma-sync (500 stars)")
	assert.NotContains(t, stdout.String(), "::warning::")
}

func TestRunAction_IdeaFromFile(t *testing.T) {
	srv := catalogServer(t)
	ideaFile := filepath.Join(t.TempDir(), "IDEA.md")
	require.NoError(t, os.WriteFile(ideaFile, []byte("Sync Figma files to GitHub\n"), 0o644))

	var stdout bytes.Buffer
	code := runAction(context.Background(), testConfig(srv.URL), &stdout, envOf(map[string]string{
		"INPUT_IDEA": ideaFile,
	}))
	require.Equal(t, 0, code)
	assert.Contains(t, stdout.String(), "acme/figma-sync (500 stars)")
}

func TestRunAction_EmptyIdea(t *testing.T) {
	var stdout bytes.Buffer
	code := runAction(context.Background(), config.Default(), &stdout, envOf(map[string]string{
		"INPUT_IDEA": "   ",
	}))
	assert.Equal(t, 1, code)
	assert.Contains(t, stdout.String(), "::error::idea input is empty")
	assert.NotContains(t, stdout.String(), "set-output")
}

func TestRunAction_EngineFailurePublishesFallback(t *testing.T) {
	cfg := config.Default()
	cfg.Cache.Enabled = true
	cfg.Cache.Persistent = true
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "cache.db")
	outFile := filepath.Join(t.TempDir(), "github_output")

	var stdout bytes.Buffer
	code := runAction(context.Background(), cfg, &stdout, envOf(map[string]string{
		"INPUT_IDEA":      "a CLI tool to sync Figma files to GitHub",
		"INPUT_THRESHOLD": "bogus",
		"GITHUB_OUTPUT":   outFile,
	}))
	assert.Equal(t, 0, code)

	assert.Contains(t, stdout.String(), `::warning::invalid threshold "bogus", using 70`)
	assert.Contains(t, stdout.String(), "::warning::reality check failed")
	assert.Equal(t, map[string]string{
		"score":          "0",
		"report":         "{}",
		"top-competitor": "N/A",
	}, readOutputs(t, outFile))
}

func TestPrintReport(t *testing.T) {
	r := &scoring.Report{
		RealitySignal:       45,
		DuplicateLikelihood: scoring.LikelihoodModerate,
		TopSimilars:         []scoring.Similar{{Name: "acme/figma-sync", URL: "https://github.com/acme/figma-sync", Stars: 500}},
		PivotHints:          []string{"Go offline-first."},
		Keywords:            []string{"figma", "sync"},
		Depth:               scoring.DepthQuick,
		SourceCounts:        map[source.SourceType]int{source.SourceGitHub: 1, source.SourceHackerNews: 0},
	}

	var buf bytes.Buffer
	require.NoError(t, printReport(&buf, r))
	out := buf.String()

	assert.Contains(t, out, "reality signal: 45/100 (moderate duplicate likelihood)")
	assert.Contains(t, out, "top competitor: acme/figma-sync (500 stars)")
	assert.Contains(t, out, "github=1 hn=0")
	assert.Contains(t, out, "acme/figma-sync")
	assert.Contains(t, out, "  - Go offline-first.")
}

func TestBuildSources(t *testing.T) {
	cfg := config.Default()
	cfg.Sources.PyPI.Enabled = false

	var names []source.SourceType
	for _, s := range buildSources(cfg, nil) {
		names = append(names, s.Name())
	}
	assert.Equal(t, []source.SourceType{source.SourceGitHub, source.SourceHackerNews, source.SourceNPM, source.SourceProductHunt}, names)
}

func TestBuildAlertManager(t *testing.T) {
	cfg := config.Default()
	assert.False(t, buildAlertManager(cfg, nil).HasNotifiers())
	assert.True(t, buildAlertManager(cfg, &bytes.Buffer{}).HasNotifiers())

	cfg.Alerts.Webhook.Enabled = true
	cfg.Alerts.Webhook.URL = "https://hooks.example.test"
	assert.True(t, buildAlertManager(cfg, nil).HasNotifiers())
}
