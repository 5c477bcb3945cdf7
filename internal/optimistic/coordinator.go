// Package optimistic applies feed writes locally before the backend confirms
// them and puts the feed back the way it was when the backend does not.
package optimistic

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/downstream"
	"github.com/volunteerhub/feed-bff/internal/feed"
	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/internal/tracing"
)

type Kind string

const (
	KindNone       Kind = "none"
	KindValidation Kind = "validation"
	KindForbidden  Kind = "forbidden"
	KindPending    Kind = "pending"
	KindNotFound   Kind = "not_found"
	KindRejected   Kind = "rejected"
	KindTransport  Kind = "transport"
)

// Outcome is how one write ended. Message is meant for the user.
type Outcome struct {
	OK       bool
	Kind     Kind
	Message  string
	TargetID string
	Err      error
}

// Failed builds the outcome of a write refused before anything was applied.
func Failed(kind Kind, err error) Outcome {
	return Outcome{Kind: kind, Message: err.Error(), Err: err}
}

// Mutation describes one optimistic write. Capture and Apply run under the
// feed lock, Remote runs without it, Reconcile runs under it again.
type Mutation struct {
	Name      string
	Capture   func() (feed.Snapshot, error)
	Apply     func() error
	Remote    func(ctx context.Context) (domain.ModerationResult, error)
	Reconcile func(res domain.ModerationResult)
	OnSuccess func(ctx context.Context, out Outcome)
	OnFailure func(ctx context.Context, out Outcome)
}

// Coordinator runs mutations against one store. It keeps no per-target state:
// two writes on the same item race and the one resolving last wins.
type Coordinator struct {
	mu    sync.Locker
	store *feed.Store
}

func NewCoordinator(mu sync.Locker, store *feed.Store) *Coordinator {
	return &Coordinator{mu: mu, store: store}
}

// Perform never returns an error and never retries.
func (c *Coordinator) Perform(ctx context.Context, m Mutation) Outcome {
	ctx, span := tracing.StartSpan(ctx, "feed.mutation", attribute.String("mutation", m.Name))
	log := logger.Ctx(ctx).With().Str("mutation", m.Name).Logger()

	out := c.run(ctx, m)

	mutationsTotal.WithLabelValues(m.Name, string(out.Kind)).Inc()
	span.SetAttributes(attribute.String("outcome", string(out.Kind)))
	tracing.EndSpan(span, out.Err)

	if out.OK {
		log.Debug().Str("target_id", out.TargetID).Msg("optimistic_committed")
		if m.OnSuccess != nil {
			m.OnSuccess(ctx, out)
		}
	} else if m.OnFailure != nil {
		m.OnFailure(ctx, out)
	}
	return out
}

func (c *Coordinator) run(ctx context.Context, m Mutation) Outcome {
	log := logger.Ctx(ctx).With().Str("mutation", m.Name).Logger()

	c.mu.Lock()
	snap, err := m.Capture()
	if err == nil {
		if err = m.Apply(); err != nil {
			snap.Restore(c.store)
		}
	}
	c.mu.Unlock()
	if err != nil {
		kind := KindValidation
		if errors.Is(err, feed.ErrPostNotFound) || errors.Is(err, feed.ErrCommentNotFound) {
			kind = KindNotFound
		}
		return Failed(kind, err)
	}

	start := time.Now()
	res, err := callRemote(ctx, m.Remote)
	remoteSeconds.WithLabelValues(m.Name).Observe(time.Since(start).Seconds())
	if err == nil && !res.Succeeded() {
		err = &downstream.RejectedError{Result: res}
	}

	c.mu.Lock()
	restored := false
	if err != nil {
		restored = snap.Restore(c.store)
	} else if m.Reconcile != nil {
		m.Reconcile(res)
	}
	c.mu.Unlock()

	if err != nil {
		kind := KindTransport
		var rejected *downstream.RejectedError
		if errors.As(err, &rejected) {
			kind = KindRejected
		}
		log.Warn().Err(err).Bool("restored", restored).Str("kind", string(kind)).Msg("optimistic_rolled_back")
		return Outcome{Kind: kind, Message: downstream.FailureMessage(err), Err: err}
	}
	return Outcome{OK: true, Kind: KindNone, Message: res.Message, TargetID: res.TargetID}
}

// callRemote turns a panicking remote call into a transport failure so the
// snapshot is still restored.
func callRemote(ctx context.Context, remote func(context.Context) (domain.ModerationResult, error)) (res domain.ModerationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("remote call panicked: %v", r)
		}
	}()
	return remote(ctx)
}
