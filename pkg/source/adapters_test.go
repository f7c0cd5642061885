package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGitHub_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/repositories", r.URL.Path)
		assert.Equal(t, "figma sync github in:name,description,readme", r.URL.Query().Get("q"))
		assert.Equal(t, "stars", r.URL.Query().Get("sort"))
		assert.Equal(t, "2", r.URL.Query().Get("per_page"))
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"total_count": 3, "items": [
			{"full_name": "acme/figma-sync", "html_url": "https://github.com/acme/figma-sync", "description": "Sync Figma files", "stargazers_count": 500, "updated_at": "2025-01-02T03:04:05Z"},
			{"full_name": "b/two", "html_url": "https://github.com/b/two", "description": null, "stargazers_count": 3},
			{"full_name": "c/three", "html_url": "https://github.com/c/three", "stargazers_count": 1}
		]}`))
	}))
	defer srv.Close()

	gh := NewGitHub("tok", 2).WithBaseURL(srv.URL + "/")
	recs, err := gh.Search(context.Background(), []string{"figma", "sync", "github", "cli"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, SourceGitHub, recs[0].Source)
	assert.Equal(t, "acme/figma-sync", recs[0].Name)
	assert.Equal(t, "https://github.com/acme/figma-sync", recs[0].URL)
	assert.Equal(t, 500, recs[0].Metric)
	assert.Equal(t, 2025, recs[0].Published.Year())
	assert.Empty(t, recs[1].Description)
}

func TestGitHub_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	gh := NewGitHub("", 0).WithBaseURL(srv.URL)
	_, err := gh.Search(context.Background(), []string{"figma"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")

	recs, err := gh.Search(context.Background(), []string{" ", ""})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestHackerNews_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "figma sync", r.URL.Query().Get("query"))
		assert.Equal(t, "story", r.URL.Query().Get("tags"))

		w.Write([]byte(`{"hits": [
			{"objectID": "41", "title": "Show HN: Figma Sync", "url": "https://figsync.dev", "points": 120, "created_at_i": 1700000000},
			{"objectID": "42", "title": "Ask HN: syncing Figma?", "url": "", "points": 4, "story_text": "Anyone?", "created_at_i": 1700000100}
		]}`))
	}))
	defer srv.Close()

	hn := NewHackerNews(10).WithBaseURL(srv.URL)
	recs, err := hn.Search(context.Background(), []string{"figma", "sync"})
	require.NoError(t, err)
	require.Len(t, recs, 2)

	assert.Equal(t, "Show HN: Figma Sync", recs[0].Name)
	assert.Equal(t, 120, recs[0].Metric)
	assert.Equal(t, int64(1700000000), recs[0].Published.Unix())
	assert.Equal(t, "https://news.ycombinator.com/item?id=42", recs[1].URL)
	assert.Equal(t, "Anyone?", recs[1].Description)
}

func TestNPM_Search(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/-/v1/search", r.URL.Path)
		assert.Equal(t, "figma sync", r.URL.Query().Get("text"))

		w.Write([]byte(`{"objects": [
			{"package": {"name": "figma-sync", "description": "sync", "links": {"npm": "https://www.npmjs.com/package/figma-sync"}}, "downloads": {"weekly": 1234, "monthly": 5000}},
			{"package": {"name": "figma-monthly"}, "downloads": {"monthly": 400}},
			{"package": {"name": "figma-legacy"}, "score": {"detail": {"popularity": 0.25}}}
		]}`))
	}))
	defer srv.Close()

	npm := NewNPM(0).WithBaseURL(srv.URL)
	recs, err := npm.Search(context.Background(), []string{"figma", "sync"})
	require.NoError(t, err)
	require.Len(t, recs, 3)

	assert.Equal(t, 1234, recs[0].Metric)
	assert.Equal(t, 100, recs[1].Metric)
	assert.Equal(t, "https://www.npmjs.com/package/figma-monthly", recs[1].URL)
	assert.Equal(t, 25000, recs[2].Metric)
}

func TestNPM_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"objects": [`))
	}))
	defer srv.Close()

	_, err := NewNPM(5).WithBaseURL(srv.URL).Search(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode npm search")
}

func TestAdapters_RespectContext(t *testing.T) {
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-block:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHackerNews(5).WithBaseURL(srv.URL).Search(ctx, []string{"figma"})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestShortName(t *testing.T) {
	assert.Equal(t, "hn", ShortName(SourceHackerNews))
	assert.Equal(t, "ph", ShortName(SourceProductHunt))
	assert.Equal(t, "github", ShortName(SourceGitHub))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))

	got := truncate("日本語のテキスト", 3)
	assert.Equal(t, "日本語...", got)
	assert.True(t, utf8.ValidString(got))
}
