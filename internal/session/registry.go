// Package session keeps one feed facade per viewer and event so optimistic
// state survives between requests.
package session

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/volunteerhub/feed-bff/internal/domain"
	"github.com/volunteerhub/feed-bff/internal/logger"
	"github.com/volunteerhub/feed-bff/internal/social"
)

const anonymousKey = "anonymous"

// Factory builds the facade for a key seen for the first time.
type Factory func(eventID string, viewer domain.Viewer) *social.Facade

// Registry is a bounded LRU of facades. The least recently used facade is
// dropped when the cache is full; its next request starts from a fresh load.
type Registry struct {
	mu        sync.Mutex
	cache     *lru.Cache[string, *social.Facade]
	newFacade Factory
}

func NewRegistry(size int, factory Factory) (*Registry, error) {
	cache, err := lru.NewWithEvict(size, func(key string, _ *social.Facade) {
		logger.Log.Debug().Str("session", key).Msg("session_evicted")
	})
	if err != nil {
		return nil, err
	}
	return &Registry{cache: cache, newFacade: factory}, nil
}

// Get returns the facade for viewer on eventID, creating it on first use.
// clientID names one screen of the viewer; screens that send none share a
// facade, and so do anonymous viewers without one.
func (r *Registry) Get(eventID string, viewer domain.Viewer, clientID string) *social.Facade {
	k := Key(eventID, viewer, clientID)

	r.mu.Lock()
	defer r.mu.Unlock()
	if f, ok := r.cache.Get(k); ok {
		return f
	}
	if !viewer.Authenticated() {
		viewer = domain.Viewer{}
	}
	f := r.newFacade(eventID, viewer)
	r.cache.Add(k, f)
	return f
}

func (r *Registry) Len() int {
	return r.cache.Len()
}

func Key(eventID string, viewer domain.Viewer, clientID string) string {
	who := viewer.UserID
	if !viewer.Authenticated() {
		who = anonymousKey
	}
	k := who + "|" + eventID
	if clientID != "" {
		k += "|" + clientID
	}
	return k
}
