package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"tradecal/internal/domain"
	"tradecal/internal/store"
)

// Provider is the source of exchange sessions.
type Provider interface {
	// Name identifies the provider, e.g. "nyse" or "alpaca".
	Name() string

	// Sessions returns one session per trading day within [start, end].
	Sessions(ctx context.Context, start, end time.Time) ([]domain.Session, error)
}

// Compile-time interface checks.
var _ Provider = (*StaticProvider)(nil)
var _ Provider = (*CachedProvider)(nil)

// ---------------------------------------------------------------------------
// StaticProvider
// ---------------------------------------------------------------------------

// StaticProvider serves a fixed list of sessions.
type StaticProvider struct {
	name     string
	sessions []domain.Session
}

// NewStaticProvider creates a provider named name over sessions.
func NewStaticProvider(name string, sessions []domain.Session) *StaticProvider {
	return &StaticProvider{name: name, sessions: sessions}
}

// Name returns the provider name.
func (p *StaticProvider) Name() string { return p.name }

// Sessions returns the sessions whose day falls within [start, end].
func (p *StaticProvider) Sessions(_ context.Context, start, end time.Time) ([]domain.Session, error) {
	s, e := NormalizeDate(start), NormalizeDate(end)
	var out []domain.Session
	for _, sess := range p.sessions {
		d := NormalizeDate(sess.Day)
		if d.Before(s) || d.After(e) {
			continue
		}
		out = append(out, sess)
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// CachedProvider
// ---------------------------------------------------------------------------

// CachedProvider serves sessions from a SessionStore and falls back to the
// wrapped provider on a miss, saving what it fetched.
type CachedProvider struct {
	upstream Provider
	cache    store.SessionStore
	log      *slog.Logger
}

// NewCachedProvider wraps upstream with a read-through cache.
func NewCachedProvider(upstream Provider, cache store.SessionStore) *CachedProvider {
	return &CachedProvider{
		upstream: upstream,
		cache:    cache,
		log:      slog.Default().With("component", "session-cache", "provider", upstream.Name()),
	}
}

// Name returns the upstream provider's name so cached and uncached indexes
// are indistinguishable.
func (p *CachedProvider) Name() string { return p.upstream.Name() }

// Sessions returns cached sessions when [start, end] is covered, otherwise
// fetches from upstream and stores a non-empty result. A failing cache write
// is logged and does not fail the request.
func (p *CachedProvider) Sessions(ctx context.Context, start, end time.Time) ([]domain.Session, error) {
	s, e := NormalizeDate(start), NormalizeDate(end)

	cached, ok, err := p.cache.LoadSessions(ctx, p.upstream.Name(), s, e)
	if err != nil {
		p.log.Warn("session cache read failed", "err", err)
	} else if ok {
		p.log.Debug("session cache hit", "start", s.Format(time.DateOnly), "end", e.Format(time.DateOnly), "sessions", len(cached))
		return cached, nil
	}

	sessions, err := p.upstream.Sessions(ctx, s, e)
	if err != nil {
		return nil, fmt.Errorf("fetching %s sessions: %w", p.upstream.Name(), err)
	}

	// An empty answer is not cached, so a transient gap upstream does not
	// mark the range as covered.
	if len(sessions) == 0 {
		return sessions, nil
	}
	if err := p.cache.SaveSessions(ctx, p.upstream.Name(), s, e, sessions); err != nil {
		p.log.Warn("session cache write failed", "err", err)
	} else {
		p.log.Info("cached sessions", "start", s.Format(time.DateOnly), "end", e.Format(time.DateOnly), "sessions", len(sessions))
	}
	return sessions, nil
}
