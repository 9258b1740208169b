package models

import (
	"strings"
	"testing"
)

func TestValidateAgentID(t *testing.T) {
	cases := []struct {
		id   string
		want APIError
	}{
		{"", ErrAgentsMissingID},
		{"a1", nil},
		{"agent_one.v2-final", nil},
		{"has space", ErrAgentsInvalidID},
		{"has/slash", ErrAgentsInvalidID},
		{strings.Repeat("a", 129), ErrAgentsInvalidID},
		{strings.Repeat("a", 128), nil},
	}

	for _, c := range cases {
		if got := ValidateAgentID(c.id); got != c.want {
			t.Fatalf("ValidateAgentID(%q) = %v, want %v", c.id, got, c.want)
		}
	}
}
