package feed

import (
	"testing"
	"time"
)

func TestMultiplierPolicy(t *testing.T) {
	p := MultiplierPolicy{Base: 2 * time.Second, Multiplier: 1.5, Max: 10 * time.Second}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, 2 * time.Second},
		{1, 3 * time.Second},
		{2, 4500 * time.Millisecond},
		{3, 6750 * time.Millisecond},
		{4, 10 * time.Second}, // 10.125s capped
		{10, 10 * time.Second},
		{-1, 2 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.retry); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestDoublingPolicy(t *testing.T) {
	p := DoublingPolicy{Base: time.Second, Max: 10 * time.Second}

	tests := []struct {
		retry int
		want  time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 10 * time.Second}, // 16s capped
		{63, 10 * time.Second},
	}

	for _, tt := range tests {
		if got := p.Delay(tt.retry); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.retry, got, tt.want)
		}
	}
}

func TestPolicyByName(t *testing.T) {
	if _, err := PolicyByName("multiplier"); err != nil {
		t.Errorf("multiplier: %v", err)
	}
	if _, err := PolicyByName(""); err != nil {
		t.Errorf("empty: %v", err)
	}
	if _, err := PolicyByName("doubling"); err != nil {
		t.Errorf("doubling: %v", err)
	}
	if _, err := PolicyByName("fibonacci"); err == nil {
		t.Error("expected error for unknown policy")
	}
}
