package ratelimit

import (
	"context"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Policy bounds requests to one upstream site.
type Policy struct {
	MinInterval   time.Duration `yaml:"min_interval"`
	PerMinute     int           `yaml:"per_minute"`
	MaxConcurrent int           `yaml:"max_concurrent"`
}

// DefaultPolicy applies to hosts without a configured policy.
var DefaultPolicy = Policy{MinInterval: time.Second, PerMinute: 30, MaxConcurrent: 1}

// Limiter enforces a Policy: a concurrency slot, a minimum gap between
// request starts and a rolling per-minute budget.
type Limiter struct {
	policy   Policy
	slots    chan struct{}
	interval *rate.Limiter
	minute   *rate.Limiter
}

func NewLimiter(p Policy) *Limiter {
	if p.MaxConcurrent < 1 {
		p.MaxConcurrent = 1
	}
	l := &Limiter{policy: p, slots: make(chan struct{}, p.MaxConcurrent)}
	if p.MinInterval > 0 {
		l.interval = rate.NewLimiter(rate.Every(p.MinInterval), 1)
	}
	if p.PerMinute > 0 {
		l.minute = rate.NewLimiter(rate.Every(time.Minute/time.Duration(p.PerMinute)), p.PerMinute)
	}
	return l
}

// Acquire blocks until a request may start. The returned release must be
// called when the request finishes.
func (l *Limiter) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case l.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	release = func() { <-l.slots }

	if l.interval != nil {
		if err := l.interval.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	if l.minute != nil {
		if err := l.minute.Wait(ctx); err != nil {
			release()
			return nil, err
		}
	}
	return release, nil
}

func (l *Limiter) Policy() Policy { return l.policy }

// Manager resolves the limiter for a host: an exact match first, then the
// longest matching "*.domain" pattern, then a shared default.
type Manager struct {
	mu       sync.RWMutex
	byHost   map[string]*Limiter
	patterns map[string]*Limiter
	fallback *Limiter
}

func NewManager(policies map[string]Policy) *Manager {
	m := &Manager{
		byHost:   make(map[string]*Limiter),
		patterns: make(map[string]*Limiter),
		fallback: NewLimiter(DefaultPolicy),
	}
	for host, p := range policies {
		m.Set(host, p)
	}
	return m
}

// Set installs or replaces the policy for a host or "*.domain" pattern.
func (m *Manager) Set(host string, p Policy) {
	m.mu.Lock()
	defer m.mu.Unlock()
	host = strings.ToLower(host)
	if strings.HasPrefix(host, "*.") {
		m.patterns[host[1:]] = NewLimiter(p)
		return
	}
	m.byHost[host] = NewLimiter(p)
}

func (m *Manager) Remove(host string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	host = strings.ToLower(host)
	delete(m.byHost, host)
	if strings.HasPrefix(host, "*.") {
		delete(m.patterns, host[1:])
	}
}

func (m *Manager) For(host string) *Limiter {
	host = strings.ToLower(host)
	m.mu.RLock()
	defer m.mu.RUnlock()
	if l, ok := m.byHost[host]; ok {
		return l
	}
	var best *Limiter
	bestLen := 0
	for suffix, l := range m.patterns {
		if strings.HasSuffix(host, suffix) && len(suffix) > bestLen {
			best, bestLen = l, len(suffix)
		}
	}
	if best != nil {
		return best
	}
	return m.fallback
}

// Acquire is For(host).Acquire(ctx).
func (m *Manager) Acquire(ctx context.Context, host string) (func(), error) {
	return m.For(host).Acquire(ctx)
}
