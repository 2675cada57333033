// Package supervisor runs the long-lived parts of the process (HTTP server,
// metrics refreshers) under a suture supervisor so a crashed loop is
// restarted with backoff instead of silently stopping.
package supervisor

import (
	"context"
	"time"

	"github.com/thejerf/suture/v4"
	"github.com/thejerf/sutureslog"

	"github.com/okian/movierank/pkg/logger"
)

const (
	defaultFailureThreshold = 5.0
	defaultFailureDecay     = 30.0
	defaultFailureBackoff   = 15 * time.Second
	defaultShutdownTimeout  = 10 * time.Second
)

// Tree is the root supervisor of the process.
type Tree struct {
	root *suture.Supervisor
}

// Option applies a configuration option to the Tree spec.
type Option func(*suture.Spec)

// WithShutdownTimeout bounds how long each service gets to stop.
func WithShutdownTimeout(d time.Duration) Option {
	return func(s *suture.Spec) {
		if d > 0 {
			s.Timeout = d
		}
	}
}

// WithFailureBackoff sets how long the tree waits once the failure
// threshold is crossed.
func WithFailureBackoff(d time.Duration) Option {
	return func(s *suture.Spec) {
		if d > 0 {
			s.FailureBackoff = d
		}
	}
}

// New creates a supervisor tree whose events are logged through pkg/logger.
func New(name string, opts ...Option) *Tree {
	spec := suture.Spec{
		EventHook:        (&sutureslog.Handler{Logger: logger.Slog("supervisor")}).MustHook(),
		FailureThreshold: defaultFailureThreshold,
		FailureDecay:     defaultFailureDecay,
		FailureBackoff:   defaultFailureBackoff,
		Timeout:          defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(&spec)
	}
	return &Tree{root: suture.New(name, spec)}
}

// Add registers svc with the root supervisor.
func (t *Tree) Add(svc suture.Service) suture.ServiceToken {
	return t.root.Add(svc)
}

// Serve runs every service and blocks until ctx is canceled or a service
// terminates the tree.
func (t *Tree) Serve(ctx context.Context) error {
	return t.root.Serve(ctx)
}
