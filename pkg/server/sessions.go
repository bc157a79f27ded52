package server

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"

	"github.com/sudorandom/gapdash/pkg/metrics"
	"github.com/sudorandom/gapdash/pkg/reactive"
)

var ErrSessionNotFound = errors.New("session not found")

// session pairs a controller with the lock that serialises its cycles. Two
// connections may share a session id.
type session struct {
	id string
	mu sync.Mutex
	rc *reactive.Controller
}

// Sessions holds live dashboard sessions in memory. Idle sessions expire
// after the configured TTL; reads extend it.
type Sessions struct {
	log   *slog.Logger
	cache *ttlcache.Cache[string, *session]
	newRC func() (*reactive.Controller, error)
}

func NewSessions(log *slog.Logger, ttl time.Duration, newRC func() (*reactive.Controller, error)) *Sessions {
	cache := ttlcache.New(
		ttlcache.WithTTL[string, *session](ttl),
	)
	cache.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, *session]) {
		r := "deleted"
		if reason == ttlcache.EvictionReasonExpired {
			r = "expired"
		}
		metrics.SessionEvictions.WithLabelValues(r).Inc()
		metrics.SessionsActive.Dec()
		log.Debug("session evicted", "session", item.Key(), "reason", r)
	})
	return &Sessions{log: log, cache: cache, newRC: newRC}
}

// Start runs the expiry loop until Stop is called.
func (s *Sessions) Start() { s.cache.Start() }

func (s *Sessions) Stop() { s.cache.Stop() }

func (s *Sessions) Len() int { return s.cache.Len() }

// Create starts a new session with a fresh controller.
func (s *Sessions) Create() (*session, error) {
	rc, err := s.newRC()
	if err != nil {
		return nil, err
	}
	sess := &session{id: uuid.NewString(), rc: rc}
	s.cache.Set(sess.id, sess, ttlcache.DefaultTTL)
	metrics.SessionsActive.Inc()
	s.log.Debug("session created", "session", sess.id)
	return sess, nil
}

func (s *Sessions) Get(id string) (*session, error) {
	item := s.cache.Get(id)
	if item == nil {
		return nil, ErrSessionNotFound
	}
	return item.Value(), nil
}

// Resume returns the session for id, or a new one when id is empty or has
// expired. resumed reports whether an existing session was found.
func (s *Sessions) Resume(id string) (sess *session, resumed bool, err error) {
	if id != "" {
		sess, err := s.Get(id)
		if err == nil {
			return sess, true, nil
		}
		if !errors.Is(err, ErrSessionNotFound) {
			return nil, false, err
		}
		s.log.Debug("session not found, creating a new one", "session", id)
	}
	sess, err = s.Create()
	return sess, false, err
}

func (s *Sessions) Delete(id string) { s.cache.Delete(id) }
