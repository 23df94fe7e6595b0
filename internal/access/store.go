package access

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// LoadState tracks whether the overlay is known yet.
type LoadState uint8

const (
	StateUnknown LoadState = iota
	StateLoading
	StateLoaded
)

func (s LoadState) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateLoaded:
		return "loaded"
	default:
		return "unknown"
	}
}

// OverlaySource reads persisted role definition overrides.
type OverlaySource interface {
	ListRoleOverrides(ctx context.Context) ([]OverrideRecord, error)
}

const (
	defaultLoadTimeout   = 10 * time.Second
	defaultRetryInterval = 30 * time.Second
	overlayKey           = "overlay"
)

// OverlayStore holds the overlay shared by every access decision. It is
// loaded once and kept until Invalidate is called. A failed load resolves to
// an empty overlay and is retried after the retry interval.
type OverlayStore struct {
	source        OverlaySource
	logger        *zap.Logger
	loadTimeout   time.Duration
	retryInterval time.Duration
	now           func() time.Time

	group singleflight.Group

	mu         sync.RWMutex
	state      LoadState
	overlay    *Overlay
	failedAt   time.Time
	generation uint64
}

type StoreOption func(*OverlayStore)

func WithLoadTimeout(d time.Duration) StoreOption {
	return func(s *OverlayStore) {
		if d > 0 {
			s.loadTimeout = d
		}
	}
}

func WithRetryInterval(d time.Duration) StoreOption {
	return func(s *OverlayStore) {
		if d > 0 {
			s.retryInterval = d
		}
	}
}

func withClock(now func() time.Time) StoreOption {
	return func(s *OverlayStore) { s.now = now }
}

func NewOverlayStore(source OverlaySource, logger *zap.Logger, opts ...StoreOption) *OverlayStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &OverlayStore{
		source:        source,
		logger:        logger,
		loadTimeout:   defaultLoadTimeout,
		retryInterval: defaultRetryInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load returns the overlay, fetching it if needed. Concurrent callers share a
// single fetch. Load never fails: errors are logged and the empty overlay is
// returned. A caller whose context ends early gets the current snapshot; the
// fetch itself keeps running and its result is still stored.
func (s *OverlayStore) Load(ctx context.Context) *Overlay {
	if o, ok := s.cached(); ok {
		return o
	}

	ch := s.group.DoChan(overlayKey, func() (any, error) {
		return s.fetch(context.WithoutCancel(ctx)), nil
	})

	select {
	case res := <-ch:
		return res.Val.(*Overlay)
	case <-ctx.Done():
		o, _ := s.Snapshot()
		return o
	}
}

// Invalidate drops the cached overlay so the next Load refetches it.
// A fetch already in flight is not stored.
func (s *OverlayStore) Invalidate() {
	s.mu.Lock()
	s.generation++
	s.state = StateUnknown
	s.overlay = nil
	s.failedAt = time.Time{}
	s.mu.Unlock()
	s.group.Forget(overlayKey)
}

// State reports the load state without triggering a fetch.
func (s *OverlayStore) State() LoadState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Snapshot returns the current overlay and state without triggering a fetch.
func (s *OverlayStore) Snapshot() (*Overlay, LoadState) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.overlay, s.state
}

// Decider builds an access decider for subject over the current snapshot.
func (s *OverlayStore) Decider(subject Subject) *Decider {
	o, state := s.Snapshot()
	return NewDecider(subject, o, state)
}

func (s *OverlayStore) cached() (*Overlay, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != StateLoaded {
		return nil, false
	}
	if !s.failedAt.IsZero() && s.now().Sub(s.failedAt) >= s.retryInterval {
		return nil, false
	}
	return s.overlay, true
}

func (s *OverlayStore) fetch(ctx context.Context) *Overlay {
	s.mu.Lock()
	gen := s.generation
	if s.state == StateLoaded && (s.failedAt.IsZero() || s.now().Sub(s.failedAt) < s.retryInterval) {
		o := s.overlay
		s.mu.Unlock()
		return o
	}
	if s.state != StateLoaded {
		s.state = StateLoading
	}
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.loadTimeout)
	defer cancel()

	var (
		overlay  *Overlay
		failedAt time.Time
	)
	records, err := s.source.ListRoleOverrides(ctx)
	if err != nil {
		s.logger.Warn("role overrides unavailable, using static feature map", zap.Error(err))
		overlay = &Overlay{}
		failedAt = s.now()
	} else {
		var decodeErr error
		overlay, decodeErr = DecodeOverlay(records)
		if decodeErr != nil {
			s.logger.Warn("malformed role overrides skipped", zap.Error(decodeErr))
		}
	}

	s.mu.Lock()
	if s.generation == gen {
		s.overlay = overlay
		s.state = StateLoaded
		s.failedAt = failedAt
	}
	s.mu.Unlock()

	if overlay.Active() {
		s.logger.Debug("role overrides loaded", zap.Int("records", len(records)))
	}
	return overlay
}
