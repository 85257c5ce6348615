package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestNilLimiterAllows(t *testing.T) {
	var l *Limiter
	d := l.Allow(context.Background(), "key", 10)
	if !d.Allowed {
		t.Fatal("nil limiter must allow")
	}
}

func TestNoRedisFailsOpen(t *testing.T) {
	l := New(nil, 100)
	d := l.Allow(context.Background(), "key", 0)
	if !d.Allowed {
		t.Fatal("limiter without redis must fail open")
	}
	if d.Limit != 100 {
		t.Errorf("Limit = %d, want default 100", d.Limit)
	}
	if d.ResetAt.IsZero() {
		t.Error("ResetAt should be set")
	}
	if got := d.ResetAt.Sub(time.Now().UTC()); got > time.Hour || got < 0 {
		t.Errorf("ResetAt %v outside current hour window", got)
	}
}

func TestNegativeLimitDisables(t *testing.T) {
	l := New(nil, 100)
	d := l.Allow(context.Background(), "key", -1)
	if !d.Allowed {
		t.Fatal("negative limit must disable limiting")
	}
}
