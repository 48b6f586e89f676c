// Package ratelimit throttles callers by key (the client address) against one
// or more budgets such as "200 per day;50 per hour".
package ratelimit

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Rule allows Count events per Period.
type Rule struct {
	Count  int
	Period time.Duration
}

func (r Rule) String() string {
	return fmt.Sprintf("%d per %s", r.Count, r.Period)
}

var periods = map[string]time.Duration{
	"second": time.Second,
	"minute": time.Minute,
	"hour":   time.Hour,
	"day":    24 * time.Hour,
}

// ParseRules parses budgets of the form "5 per minute" or "5/minute",
// separated by ";". An empty string yields no rules.
func ParseRules(budget string) ([]Rule, error) {
	var rules []Rule
	for _, part := range strings.Split(budget, ";") {
		part = strings.TrimSpace(strings.ToLower(part))
		if part == "" {
			continue
		}

		var count, unit string
		if before, after, ok := strings.Cut(part, "/"); ok {
			count, unit = before, after
		} else {
			fields := strings.Fields(part)
			if len(fields) != 3 || fields[1] != "per" {
				return nil, fmt.Errorf("invalid rate limit %q", part)
			}
			count, unit = fields[0], fields[2]
		}

		n, err := strconv.Atoi(strings.TrimSpace(count))
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid rate limit count in %q", part)
		}
		unit = strings.TrimSuffix(strings.TrimSpace(unit), "s")
		period, ok := periods[unit]
		if !ok {
			return nil, fmt.Errorf("invalid rate limit period in %q", part)
		}
		rules = append(rules, Rule{Count: n, Period: period})
	}
	return rules, nil
}

type entry struct {
	limiters []*rate.Limiter
	lastSeen time.Time
}

// Limiter keeps one token bucket per rule for every key it has seen.
// Keys idle for longer than the longest rule period are evicted.
type Limiter struct {
	rules   []Rule
	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	entries   map[string]*entry
	lastSweep time.Time
}

func New(rules ...Rule) *Limiter {
	idle := time.Minute
	for _, r := range rules {
		if r.Period > idle {
			idle = r.Period
		}
	}
	return &Limiter{
		rules:   rules,
		idleTTL: idle,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Rules returns the configured budgets.
func (l *Limiter) Rules() []Rule { return l.rules }

// Allow consumes one event for key. When any budget is exhausted nothing is
// consumed and the returned duration says how long to wait.
func (l *Limiter) Allow(key string) (bool, time.Duration) {
	return AllowAll(key, l)
}

// AllowAll consumes one event for key from every non-nil limiter, or from
// none of them when any budget is exhausted.
func AllowAll(key string, limiters ...*Limiter) (bool, time.Duration) {
	var (
		taken []func()
		wait  time.Duration
	)
	for _, l := range limiters {
		if l == nil {
			continue
		}
		ok, d, undo := l.take(key)
		if !ok {
			if d > wait {
				wait = d
			}
			continue
		}
		taken = append(taken, undo)
	}

	if wait > 0 {
		for _, undo := range taken {
			undo()
		}
		return false, wait
	}
	return true, 0
}

// take reserves one event on every rule for key. On success it returns a
// function handing the events back.
func (l *Limiter) take(key string) (bool, time.Duration, func()) {
	if len(l.rules) == 0 {
		return true, 0, func() {}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.sweep(now)

	e, ok := l.entries[key]
	if !ok {
		e = &entry{limiters: make([]*rate.Limiter, len(l.rules))}
		for i, r := range l.rules {
			e.limiters[i] = rate.NewLimiter(rate.Every(r.Period/time.Duration(r.Count)), r.Count)
		}
		l.entries[key] = e
	}
	e.lastSeen = now

	reservations := make([]*rate.Reservation, 0, len(e.limiters))
	var wait time.Duration
	for _, lim := range e.limiters {
		res := lim.ReserveN(now, 1)
		reservations = append(reservations, res)
		if !res.OK() {
			wait = l.idleTTL
			continue
		}
		if d := res.DelayFrom(now); d > wait {
			wait = d
		}
	}

	cancel := func() {
		for _, res := range reservations {
			res.CancelAt(now)
		}
	}
	if wait > 0 {
		cancel()
		return false, wait, nil
	}
	return true, 0, func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		cancel()
	}
}

func (l *Limiter) sweep(now time.Time) {
	if now.Sub(l.lastSweep) < l.idleTTL {
		return
	}
	l.lastSweep = now
	for key, e := range l.entries {
		if now.Sub(e.lastSeen) > l.idleTTL {
			delete(l.entries, key)
		}
	}
}

// Len reports how many keys are currently tracked.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
