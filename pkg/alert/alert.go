package alert

import (
	"context"
	"errors"
	"fmt"

	"github.com/elonfeng/realitycheck/pkg/scoring"
)

// Notification is the advisory sent when an idea scores above the
// configured threshold.
type Notification struct {
	Title         string            `json:"title"`
	Body          string            `json:"body"`
	Idea          string            `json:"idea"`
	Score         int               `json:"score"`
	Threshold     int               `json:"threshold"`
	Likelihood    string            `json:"duplicate_likelihood"`
	TopCompetitor string            `json:"top_competitor"`
	Similars      []scoring.Similar `json:"top_similars"`
}

// NewNotification builds the advisory for a report.
func NewNotification(idea string, report *scoring.Report, threshold int) *Notification {
	n := &Notification{
		Title:         "Similar projects already exist",
		Idea:          idea,
		Threshold:     threshold,
		TopCompetitor: report.TopCompetitor(),
		Score:         report.RealitySignal,
		Likelihood:    string(report.DuplicateLikelihood),
		Similars:      report.TopSimilars,
	}
	n.Body = fmt.Sprintf("Reality signal %d exceeds threshold %d (duplicate likelihood: %s). Top competitor: %s.",
		n.Score, n.Threshold, n.Likelihood, n.TopCompetitor)
	return n
}

// Notifier delivers alerts to a specific destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, n *Notification) error
}

// Manager broadcasts notifications to all registered notifiers.
type Manager struct {
	notifiers []Notifier
}

// NewManager creates a new alert manager.
func NewManager(notifiers []Notifier) *Manager {
	return &Manager{notifiers: notifiers}
}

// HasNotifiers returns true if at least one notifier is configured.
func (m *Manager) HasNotifiers() bool {
	return len(m.notifiers) > 0
}

// Broadcast sends a notification to all registered notifiers. One failing
// destination does not stop the others.
func (m *Manager) Broadcast(ctx context.Context, n *Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", notifier.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Exceeds reports whether score is strictly above threshold.
func Exceeds(score, threshold int) bool {
	return score > threshold
}

func topSimilars(n *Notification, limit int) []scoring.Similar {
	if len(n.Similars) < limit {
		limit = len(n.Similars)
	}
	return n.Similars[:limit]
}
