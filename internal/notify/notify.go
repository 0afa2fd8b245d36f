// Package notify pushes run completion notices to operator channels via
// shoutrrr URLs (ntfy, gotify, telegram, email and friends).
package notify

import (
	"fmt"
	"io"
	stdlog "log"
	"log/slog"
	"slices"
	"strings"
	"time"

	shoutrrr "github.com/nicholas-fedor/shoutrrr"
	router "github.com/nicholas-fedor/shoutrrr/pkg/router"
	stypes "github.com/nicholas-fedor/shoutrrr/pkg/types"

	"github.com/linguanet/linguanet-go/internal/errors"
	"github.com/linguanet/linguanet-go/internal/migration"
)

const sendTimeout = 30 * time.Second

// Notifier sends one message per finished run. A disabled notifier is
// valid and does nothing, so callers never branch.
type Notifier struct {
	enabled bool
	urls    []string
	sender  *router.ServiceRouter
	log     *slog.Logger
}

// New validates the notification URLs up front so a typo surfaces at
// startup, not after a half-hour migration.
func New(enabled bool, urls []string, logger *slog.Logger) (*Notifier, error) {
	n := &Notifier{enabled: enabled, urls: slices.Clone(urls), log: logger}
	if !enabled {
		return n, nil
	}
	if len(n.urls) == 0 {
		return nil, errors.Newf("notifications enabled but no URLs configured").
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}

	sender, err := shoutrrr.CreateSender(n.urls...)
	if err != nil {
		return nil, errors.New(err).
			Component("notify").
			Category(errors.CategoryConfiguration).
			Build()
	}
	sender.Timeout = sendTimeout
	sender.SetLogger(stdlog.New(io.Discard, "", 0))
	n.sender = sender
	return n, nil
}

// Enabled reports whether RunFinished will send anything.
func (n *Notifier) Enabled() bool {
	return n.enabled && n.sender != nil
}

// RunFinished pushes a summary of one run to every configured URL.
func (n *Notifier) RunFinished(summary *migration.Summary) error {
	if !n.Enabled() {
		return nil
	}

	title, body := renderSummary(summary)
	params := stypes.Params{}
	params.SetTitle(title)

	for _, err := range n.sender.Send(body, &params) {
		if err != nil {
			return errors.New(err).
				Component("notify").
				Category(errors.CategoryNetwork).
				Build()
		}
	}
	n.log.Debug("run notification sent", "run_id", summary.RunID, "urls", len(n.urls))
	return nil
}

func renderSummary(s *migration.Summary) (title, body string) {
	title = fmt.Sprintf("LinguaNet migration %s", s.Status)
	if s.DryRun {
		title += " (dry run)"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Run %s finished in %s\n", s.RunID, s.Duration)
	for i := range s.Entities {
		r := &s.Entities[i]
		fmt.Fprintf(&b, "%s: %d migrated, %d skipped, %d failed\n", r.Entity, r.Migrated, r.Skipped, r.Failed)
	}
	if s.FatalError != "" {
		fmt.Fprintf(&b, "fatal: %s\n", s.FatalError)
	}
	return title, strings.TrimRight(b.String(), "\n")
}
