// Package harvest drives component trees whose components suspend on
// asynchronous data until every dependency has settled.
//
// Rendering is a two-phase walk. A pass renders the whole tree; components
// call Await for their data and render a placeholder while it is pending.
// When the pass finishes, every pending fetch is settled behind a single
// barrier and the tree is walked again. The harvest ends with the first pass
// that requests nothing new.
//
// The settled values form a Seeds snapshot. Planting that snapshot into a
// fresh tree makes every Await resolve immediately, so a single synchronous
// pass reproduces the harvested markup byte for byte.
package harvest

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/a-h/templ"
	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultMaxPasses bounds the number of render passes in one harvest.
	DefaultMaxPasses = 16

	// DefaultConcurrency bounds the fetches settled at once.
	DefaultConcurrency = 8
)

var (
	// ErrTooManyPasses is returned when a tree keeps requesting new data
	// after MaxPasses passes.
	ErrTooManyPasses = errors.New("harvest: too many render passes")

	// ErrMissingSeed is returned by Plant when the tree awaited keys the
	// snapshot does not contain.
	ErrMissingSeed = errors.New("harvest: missing seed")
)

type contextKey struct{}

type fetchFunc func(context.Context) ([]byte, error)

type request struct {
	key   string
	fetch fetchFunc
}

type outcome struct {
	raw []byte
	err error
}

// session tracks one harvest or plant.
type session struct {
	mu      sync.Mutex
	plant   bool
	values  map[string][]byte
	errs    map[string]error
	order   []string
	pending []request
	queued  map[string]struct{}
	missing []string
}

func newSession(plant bool) *session {
	return &session{
		plant:  plant,
		values: make(map[string][]byte),
		errs:   make(map[string]error),
		queued: make(map[string]struct{}),
	}
}

func fromContext(ctx context.Context) *session {
	s, _ := ctx.Value(contextKey{}).(*session)
	return s
}

// Await returns the value for key. Inside a harvest it returns ok=false while
// the fetch is pending and queues fetch to be settled after the current pass.
// Inside a plant it resolves from the snapshot and never calls fetch. Outside
// both it calls fetch directly.
//
// A fetch error is returned to the component on the pass after it settled.
func Await[T any](ctx context.Context, key string, fetch func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	s := fromContext(ctx)
	if s == nil {
		v, err := fetch(ctx)
		if err != nil {
			return zero, true, err
		}
		return v, true, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if raw, ok := s.values[key]; ok {
		var v T
		if err := msgpack.Unmarshal(raw, &v); err != nil {
			return zero, true, fmt.Errorf("harvest: decoding %q: %w", key, err)
		}
		return v, true, nil
	}

	if err, ok := s.errs[key]; ok {
		return zero, true, err
	}

	if s.plant {
		s.missing = append(s.missing, key)
		return zero, false, nil
	}

	if _, ok := s.queued[key]; !ok {
		s.queued[key] = struct{}{}
		s.pending = append(s.pending, request{
			key: key,
			fetch: func(ctx context.Context) ([]byte, error) {
				v, err := fetch(ctx)
				if err != nil {
					return nil, err
				}
				return msgpack.Marshal(v)
			},
		})
	}
	return zero, false, nil
}

// Harvesting reports whether ctx belongs to a harvest or plant.
func Harvesting(ctx context.Context) bool {
	return fromContext(ctx) != nil
}

func (s *session) drain() []request {
	s.mu.Lock()
	defer s.mu.Unlock()
	pending := s.pending
	s.pending = nil
	return pending
}

// commit records settled fetches in traversal order.
func (s *session) commit(reqs []request, results []outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, req := range reqs {
		if results[i].err != nil {
			s.errs[req.key] = results[i].err
			continue
		}
		s.values[req.key] = results[i].raw
		s.order = append(s.order, req.key)
	}
}

func (s *session) snapshot() Seeds {
	s.mu.Lock()
	defer s.mu.Unlock()
	seeds := make(Seeds, 0, len(s.order))
	for _, key := range s.order {
		seeds = append(seeds, Seed{Key: key, Value: s.values[key]})
	}
	return seeds
}

// Result is the outcome of a harvest.
type Result struct {
	HTML   string
	Seeds  Seeds
	Passes int
}

// Harvester drives component trees to completion.
type Harvester struct {
	MaxPasses   int
	Concurrency int

	// OnPass, when set, observes the markup of every pass, including the
	// placeholder passes that precede the settled one.
	OnPass func(pass int, html string)
}

// New returns a Harvester with default limits.
func New() *Harvester {
	return &Harvester{
		MaxPasses:   DefaultMaxPasses,
		Concurrency: DefaultConcurrency,
	}
}

// Run harvests c. It returns once a pass requests no new data. Deadlines are
// the caller's: when ctx ends while fetches are settling, Run returns
// ctx.Err() and the in-flight results are discarded.
func (h *Harvester) Run(ctx context.Context, c templ.Component) (*Result, error) {
	s := newSession(false)
	rctx := context.WithValue(ctx, contextKey{}, s)
	maxPasses := h.maxPasses()

	for pass := 1; ; pass++ {
		var buf bytes.Buffer
		if err := c.Render(rctx, &buf); err != nil {
			return nil, err
		}
		if h.OnPass != nil {
			h.OnPass(pass, buf.String())
		}

		pending := s.drain()
		if len(pending) == 0 {
			return &Result{HTML: buf.String(), Seeds: s.snapshot(), Passes: pass}, nil
		}
		if pass >= maxPasses {
			return nil, fmt.Errorf("%w: %d fetches pending after %d passes", ErrTooManyPasses, len(pending), pass)
		}

		if err := h.settle(ctx, s, pending); err != nil {
			return nil, err
		}
	}
}

// Harvest returns the settled markup of c.
func (h *Harvester) Harvest(ctx context.Context, c templ.Component) (string, error) {
	res, err := h.Run(ctx, c)
	if err != nil {
		return "", err
	}
	return res.HTML, nil
}

// Seeds returns only the snapshot of c's settled data.
func (h *Harvester) Seeds(ctx context.Context, c templ.Component) (Seeds, error) {
	res, err := h.Run(ctx, c)
	if err != nil {
		return nil, err
	}
	return res.Seeds, nil
}

// Plant renders c once with every Await resolved from seeds. Keys missing
// from seeds render as placeholders and are reported with ErrMissingSeed
// alongside the markup.
func (h *Harvester) Plant(ctx context.Context, c templ.Component, seeds Seeds) (string, error) {
	s := newSession(true)
	for _, seed := range seeds {
		s.values[seed.Key] = seed.Value
		s.order = append(s.order, seed.Key)
	}

	var buf bytes.Buffer
	if err := c.Render(context.WithValue(ctx, contextKey{}, s), &buf); err != nil {
		return "", err
	}
	if h.OnPass != nil {
		h.OnPass(1, buf.String())
	}

	if len(s.missing) > 0 {
		return buf.String(), fmt.Errorf("%w: %s", ErrMissingSeed, strings.Join(s.missing, ", "))
	}
	return buf.String(), nil
}

func (h *Harvester) settle(ctx context.Context, s *session, pending []request) error {
	results := make([]outcome, len(pending))
	done := make(chan struct{})

	go func() {
		defer close(done)
		var g errgroup.Group
		g.SetLimit(h.concurrency())
		for i, req := range pending {
			g.Go(func() error {
				raw, err := req.fetch(ctx)
				results[i] = outcome{raw: raw, err: err}
				return nil
			})
		}
		_ = g.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.commit(pending, results)
	return nil
}

func (h *Harvester) maxPasses() int {
	if h == nil || h.MaxPasses <= 0 {
		return DefaultMaxPasses
	}
	return h.MaxPasses
}

func (h *Harvester) concurrency() int {
	if h == nil || h.Concurrency <= 0 {
		return DefaultConcurrency
	}
	return h.Concurrency
}
