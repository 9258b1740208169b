package redis

import (
	"net/url"
	"testing"
	"time"
)

func TestProviderSupports(t *testing.T) {
	cases := []struct {
		raw  string
		want bool
	}{
		{"redis://localhost:6379", true},
		{"rediss://remote:6380", true},
		{"memory://", false},
		{"mysql://localhost", false},
	}
	var p redisProvider
	for _, c := range cases {
		u, err := url.Parse(c.raw)
		if err != nil {
			t.Fatal(err)
		}
		if got := p.Supports(u); got != c.want {
			t.Fatalf("Supports(%s) = %v, want %v", c.raw, got, c.want)
		}
	}
}

func TestTTLSecondsFloor(t *testing.T) {
	s := &redisStore{ttl: time.Millisecond}
	if got := s.ttlSeconds(); got != 1 {
		t.Fatalf("expected floor of 1 second, got %d", got)
	}
	s.ttl = 2 * time.Hour
	if got := s.ttlSeconds(); got != 7200 {
		t.Fatalf("expected 7200, got %d", got)
	}
}
