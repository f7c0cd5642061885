package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/elonfeng/realitycheck/pkg/scoring"
)

func testReport() *scoring.Report {
	return &scoring.Report{
		RealitySignal:       82,
		DuplicateLikelihood: scoring.LikelihoodVeryHigh,
		TopSimilars: []scoring.Similar{
			{Name: "acme/figma-sync", URL: "https://github.com/acme/figma-sync", Stars: 500},
			{Name: "figma-sync", URL: "https://www.npmjs.com/package/figma-sync", Stars: 20000},
		},
		PivotHints: []string{},
	}
}

func TestNewNotification(t *testing.T) {
	n := NewNotification("sync Figma files to GitHub", testReport(), 70)

	assert.Equal(t, 82, n.Score)
	assert.Equal(t, 70, n.Threshold)
	assert.Equal(t, "very-high", n.Likelihood)
	assert.Equal(t, "acme/figma-sync (500 stars)", n.TopCompetitor)
	assert.Contains(t, n.Body, "82 exceeds threshold 70")
	assert.Len(t, n.Similars, 2)
}

func TestExceeds(t *testing.T) {
	assert.True(t, Exceeds(71, 70))
	assert.False(t, Exceeds(70, 70))
	assert.False(t, Exceeds(0, 70))
}

func TestWebhook_SignsPayload(t *testing.T) {
	var (
		gotBody []byte
		gotSig  string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSig = r.Header.Get("X-Signature-256")
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	n := NewNotification("idea", testReport(), 70)
	require.NoError(t, NewWebhook(srv.URL, "s3cret").Send(context.Background(), n))

	assert.Equal(t, Sign("s3cret", gotBody), gotSig)
	assert.True(t, strings.HasPrefix(gotSig, "sha256="))

	var decoded Notification
	require.NoError(t, json.Unmarshal(gotBody, &decoded))
	assert.Equal(t, *n, decoded)
}

func TestWebhook_NoSecretNoSignature(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("X-Signature-256"))
	}))
	defer srv.Close()

	require.NoError(t, NewWebhook(srv.URL, "").Send(context.Background(), NewNotification("idea", testReport(), 70)))
}

func TestWebhook_StatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	err := NewWebhook(srv.URL, "").Send(context.Background(), NewNotification("idea", testReport(), 70))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestSlackAndDiscordPayloads(t *testing.T) {
	var payloads []map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		payloads = append(payloads, p)
	}))
	defer srv.Close()

	n := NewNotification("sync Figma files", testReport(), 70)
	require.NoError(t, NewSlack(srv.URL).Send(context.Background(), n))
	require.NoError(t, NewDiscord(srv.URL).Send(context.Background(), n))
	require.Len(t, payloads, 2)

	blocks := payloads[0]["blocks"].([]any)
	assert.Len(t, blocks, 3)
	raw, _ := json.Marshal(blocks)
	assert.Contains(t, string(raw), "acme/figma-sync")

	embeds := payloads[1]["embeds"].([]any)
	require.Len(t, embeds, 1)
	desc := embeds[0].(map[string]any)["description"].(string)
	assert.Contains(t, desc, "**Score:** 82 / 70")
	assert.Contains(t, desc, "[figma-sync](https://www.npmjs.com/package/figma-sync)")
}

func TestAnnotation(t *testing.T) {
	var buf bytes.Buffer
	a := NewAnnotation(&buf)
	require.NoError(t, a.Send(context.Background(), NewNotification("idea", testReport(), 70)))
	assert.True(t, strings.HasPrefix(buf.String(), "::warning::Reality signal 82 exceeds threshold 70"))
}

type failingNotifier struct{ name string }

func (f failingNotifier) Name() string { return f.name }

func (f failingNotifier) Send(context.Context, *Notification) error {
	return errors.New("unreachable")
}

func TestManager_Broadcast(t *testing.T) {
	var buf bytes.Buffer
	m := NewManager([]Notifier{failingNotifier{"slack"}, NewAnnotation(&buf), failingNotifier{"discord"}})
	require.True(t, m.HasNotifiers())

	err := m.Broadcast(context.Background(), NewNotification("idea", testReport(), 70))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slack: unreachable")
	assert.Contains(t, err.Error(), "discord: unreachable")
	assert.NotEmpty(t, buf.String(), "one failing notifier does not stop the rest")

	assert.False(t, NewManager(nil).HasNotifiers())
	assert.NoError(t, NewManager(nil).Broadcast(context.Background(), &Notification{}))
}
