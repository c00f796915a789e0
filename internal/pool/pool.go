// Package pool provides a generic, per-transport connection cache plus
// a retry-with-backoff wrapper (WithRetry) that transports call around
// the operations they choose to retry. It deliberately knows nothing about individual
// protocols: transports hand it a dial factory and a key, and get back
// reusable handles with idle eviction.
package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// ErrExhausted is returned by Acquire when a key already holds its maximum
// number of connections. It is a transient condition (a concurrent caller
// releasing its handle clears it), so transports match it with errors.Is in
// their retry predicates.
var ErrExhausted = errors.New("pool: max connections reached")

// Conn is anything a pool can hold a handle to and later tear down.
type Conn interface {
	Close() error
}

// Factory dials a new Conn for the given fully-qualified provider key.
type Factory func(ctx context.Context, key string) (Conn, error)

type handle struct {
	conn   Conn
	busy   bool
	key    string
}

// Options mirrors ClientConfig's pool knobs.
type Options struct {
	MaxConnections    int
	ConnectionTimeout time.Duration
	MaxIdleTime       time.Duration
}

func DefaultOptions() Options {
	return Options{MaxConnections: 10, ConnectionTimeout: 30 * time.Second, MaxIdleTime: 5 * time.Minute}
}

// Pool caches connections keyed by a transport-supplied fully-qualified
// key (for example "host:port" or "<providerName>|<url>"), evicting idle handles on a timer and
// never evicting a handle that is currently checked out.
type Pool struct {
	mu       sync.Mutex
	factory  Factory
	opts     Options
	byKey    map[string][]*handle
	seen     *cache.Cache
	stopOnce sync.Once
	stop     chan struct{}
}

func New(factory Factory, opts Options) *Pool {
	p := &Pool{
		factory: factory,
		opts:    opts,
		byKey:   make(map[string][]*handle),
		seen:    cache.New(opts.MaxIdleTime, opts.MaxIdleTime/2),
		stop:    make(chan struct{}),
	}
	go p.evictLoop()
	return p
}

// Acquire returns a free handle for key, dialing a new one if none is idle
// and the per-key connection cap allows it.
func (p *Pool) Acquire(ctx context.Context, key string) (Conn, error) {
	p.mu.Lock()
	for _, h := range p.byKey[key] {
		if !h.busy {
			h.busy = true
			p.mu.Unlock()
			p.seen.Set(key, time.Now(), cache.DefaultExpiration)
			return h.conn, nil
		}
	}
	if len(p.byKey[key]) >= p.opts.MaxConnections {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w for %s", ErrExhausted, key)
	}
	p.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, p.opts.ConnectionTimeout)
	defer cancel()
	conn, err := p.factory(dialCtx, key)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	h := &handle{conn: conn, busy: true, key: key}
	p.byKey[key] = append(p.byKey[key], h)
	p.mu.Unlock()
	p.seen.Set(key, time.Now(), cache.DefaultExpiration)
	return conn, nil
}

// Release marks conn free for reuse by a future Acquire on the same key.
func (p *Pool) Release(key string, conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.byKey[key] {
		if h.conn == conn {
			h.busy = false
			return
		}
	}
}

// Discard closes conn and drops it from the pool instead of returning it to
// the free list, for handles a transport found to be broken.
func (p *Pool) Discard(key string, conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	handles := p.byKey[key]
	for i, h := range handles {
		if h.conn == conn {
			_ = h.conn.Close()
			p.byKey[key] = append(handles[:i], handles[i+1:]...)
			return
		}
	}
}

func (p *Pool) evictLoop() {
	ticker := time.NewTicker(p.opts.MaxIdleTime / 2)
	defer ticker.Stop()
	for {
		select {
		case <-p.stop:
			return
		case <-ticker.C:
			p.evictIdle()
		}
	}
}

func (p *Pool) evictIdle() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for key, handles := range p.byKey {
		if _, stillFresh := p.seen.Get(key); stillFresh {
			continue
		}
		var kept []*handle
		for _, h := range handles {
			if h.busy {
				kept = append(kept, h)
				continue
			}
			_ = h.conn.Close()
		}
		if len(kept) == 0 {
			delete(p.byKey, key)
		} else {
			p.byKey[key] = kept
		}
	}
}

// Close tears down every held connection and stops the eviction loop.
func (p *Pool) Close() error {
	p.stopOnce.Do(func() { close(p.stop) })
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, handles := range p.byKey {
		for _, h := range handles {
			if err := h.conn.Close(); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	p.byKey = make(map[string][]*handle)
	return firstErr
}
