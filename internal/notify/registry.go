package notify

import (
	"context"
	"sync"

	"github.com/abhisek/coursetape/internal/logging"
)

// Registry deduplicates subscriptions: at most one live broker
// subscription exists per Key, no matter how often consumers mount and
// unmount. Each Subscribe returns a teardown that is always safe to
// call (and safe to call twice); the underlying channel is released
// when the last outstanding teardown for its key runs.
//
// The registry never replays missed events. A consumer that needs to
// catch up after (re)subscribing must do an explicit refetch.
type Registry struct {
	log    *logging.Logger
	broker Broker

	mu   sync.Mutex
	live map[Key]*handle
}

type handle struct {
	refs     int
	teardown func()
}

// NewRegistry creates a registry on top of the given broker.
func NewRegistry(broker Broker, log *logging.Logger) *Registry {
	return &Registry{
		log:    log.With("component", "notify-registry"),
		broker: broker,
		live:   make(map[Key]*handle),
	}
}

// Subscribe ensures a live subscription for key and returns a teardown.
// If the key is already live this is a no-op that only pins the
// existing channel: the new handler is NOT attached, and the returned
// teardown releases one reference. Callers must not assume their
// teardown is unique, only that calling it is safe.
func (r *Registry) Subscribe(ctx context.Context, key Key, h Handler) (func(), error) {
	r.mu.Lock()
	if hd, ok := r.live[key]; ok {
		hd.refs++
		r.mu.Unlock()
		r.log.Debug("duplicate subscription deduplicated", "channel", key.Channel, "table", key.Table)
		return r.releaseFunc(key), nil
	}
	r.mu.Unlock()

	filtered := func(ev Event) {
		if key.Matches(ev) {
			h(ev)
		}
	}
	teardown, err := r.broker.Subscribe(ctx, key.Channel, filtered)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if hd, ok := r.live[key]; ok {
		// Lost the race against a concurrent Subscribe for the same
		// key: keep the winner's channel, drop ours.
		teardown()
		hd.refs++
		return r.releaseFunc(key), nil
	}
	r.live[key] = &handle{refs: 1, teardown: teardown}
	r.log.Debug("subscription established", "channel", key.Channel, "table", key.Table, "filter", key.Filter)
	return r.releaseFunc(key), nil
}

// releaseFunc builds a single-shot reference release for key.
func (r *Registry) releaseFunc(key Key) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			hd, ok := r.live[key]
			if !ok {
				return
			}
			hd.refs--
			if hd.refs <= 0 {
				hd.teardown()
				delete(r.live, key)
				r.log.Debug("subscription released", "channel", key.Channel, "table", key.Table)
			}
		})
	}
}

// Live returns the number of live broker subscriptions.
func (r *Registry) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

// CleanupAll tears down every live subscription. Used on user-identity
// change or full session teardown.
func (r *Registry) CleanupAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for key, hd := range r.live {
		hd.teardown()
		delete(r.live, key)
	}
}
