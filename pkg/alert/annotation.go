package alert

import (
	"context"
	"io"

	"github.com/elonfeng/realitycheck/internal/ghaction"
)

// Annotation writes the advisory as a workflow warning so it shows up on
// the run summary.
type Annotation struct {
	w io.Writer
}

// NewAnnotation creates a notifier writing workflow commands to w.
func NewAnnotation(w io.Writer) *Annotation {
	return &Annotation{w: w}
}

func (a *Annotation) Name() string { return "annotation" }

func (a *Annotation) Send(_ context.Context, n *Notification) error {
	ghaction.Warning(a.w, n.Body)
	return nil
}
