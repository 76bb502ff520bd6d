package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/julianstephens/tally/internal/config"
	"github.com/julianstephens/tally/internal/dashboard"
	"github.com/julianstephens/tally/internal/models"
	"github.com/julianstephens/tally/internal/session"
)

var errNotSignedIn = errors.New("not signed in; run `tally login` first")

type Context struct {
	Config  *config.Config
	Session *session.Manager
	Engine  *dashboard.Engine
	Out     io.Writer
}

func (c *Context) printf(format string, args ...any) {
	fmt.Fprintf(c.Out, format, args...)
}

func (c *Context) requireSession() error {
	if !c.Session.Authenticated() {
		return errNotSignedIn
	}
	return nil
}

func formatCounters(s models.Snapshot) string {
	parts := make([]string, 0, len(models.Windows))
	// month first, the way the dashboard header reads
	for i := len(models.Windows) - 1; i >= 0; i-- {
		w := models.Windows[i]
		parts = append(parts, models.FormatCounter(s.StatsFor(w), w))
	}
	return strings.Join(parts, "  ")
}

func checkmark(completed bool) string {
	if completed {
		return "✓"
	}
	return "○"
}
