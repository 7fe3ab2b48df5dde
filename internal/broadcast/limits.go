package broadcast

import (
	"sync"
	"sync/atomic"
)

// LimitReason describes why a stream connection was rejected.
type LimitReason string

const (
	LimitReasonGlobal LimitReason = "global_limit"
	LimitReasonPerIP  LimitReason = "per_ip_limit"
)

// ConnectionLimits caps concurrent stream connections per instance and per client IP.
type ConnectionLimits struct {
	current atomic.Int64
	max     int64

	mu     sync.Mutex
	ips    map[string]int
	maxPer int
}

func NewConnectionLimits(globalMax int64, perIPMax int) *ConnectionLimits {
	return &ConnectionLimits{
		max:    globalMax,
		ips:    make(map[string]int),
		maxPer: perIPMax,
	}
}

// Acquire reserves a slot for ip. On success the caller must Release it.
func (l *ConnectionLimits) Acquire(ip string) (bool, LimitReason) {
	if !l.acquireGlobal() {
		return false, LimitReasonGlobal
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.ips[ip] >= l.maxPer {
		l.current.Add(-1)
		return false, LimitReasonPerIP
	}
	l.ips[ip]++
	return true, ""
}

func (l *ConnectionLimits) Release(ip string) {
	l.mu.Lock()
	if count := l.ips[ip]; count > 1 {
		l.ips[ip] = count - 1
	} else {
		delete(l.ips, ip)
	}
	l.mu.Unlock()

	l.current.Add(-1)
}

// Current returns the number of held slots.
func (l *ConnectionLimits) Current() int64 {
	return l.current.Load()
}

// CountIP returns the number of slots held by ip.
func (l *ConnectionLimits) CountIP(ip string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ips[ip]
}

func (l *ConnectionLimits) acquireGlobal() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}
