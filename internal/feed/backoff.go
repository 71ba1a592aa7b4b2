package feed

import (
	"fmt"
	"math"
	"time"
)

// Policy computes the delay before reconnect attempt number retry (0-based).
type Policy interface {
	Delay(retry int) time.Duration
}

// MultiplierPolicy grows the delay geometrically:
// delay = base * multiplier^retry, capped at max.
type MultiplierPolicy struct {
	Base       time.Duration
	Multiplier float64
	Max        time.Duration
}

func (p MultiplierPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	d := time.Duration(float64(p.Base) * math.Pow(p.Multiplier, float64(retry)))
	if d > p.Max || d < 0 {
		d = p.Max
	}
	return d
}

// DoublingPolicy doubles a base delay per retry: delay = base * 2^retry,
// capped at max.
type DoublingPolicy struct {
	Base time.Duration
	Max  time.Duration
}

func (p DoublingPolicy) Delay(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	if retry > 30 {
		return p.Max
	}
	d := p.Base << uint(retry)
	if d > p.Max || d < 0 {
		d = p.Max
	}
	return d
}

// DefaultPolicy is the stock reconnect schedule: 2s base, 1.5x growth,
// 10s ceiling.
func DefaultPolicy() Policy {
	return MultiplierPolicy{Base: 2 * time.Second, Multiplier: 1.5, Max: 10 * time.Second}
}

// PolicyByName returns a named policy. Both observed backoff schedules are
// supported as independent configurations.
func PolicyByName(name string) (Policy, error) {
	switch name {
	case "", "multiplier":
		return DefaultPolicy(), nil
	case "doubling":
		return DoublingPolicy{Base: time.Second, Max: 10 * time.Second}, nil
	default:
		return nil, fmt.Errorf("unknown backoff policy %q", name)
	}
}
