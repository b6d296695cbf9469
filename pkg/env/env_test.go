package env

import "testing"

func TestGetPrefersEarlierKeys(t *testing.T) {
	t.Setenv("ORDERDESK_LOG_FORMAT", "console")
	t.Setenv("LOG_FORMAT", "json")

	if got := Get("json", "ORDERDESK_LOG_FORMAT", "LOG_FORMAT"); got != "console" {
		t.Fatalf("expected namespaced value, got %q", got)
	}
}

func TestGetFallsBack(t *testing.T) {
	t.Setenv("ORDERDESK_LOG_FORMAT", "  ")

	if got := Get("json", "ORDERDESK_LOG_FORMAT"); got != "json" {
		t.Fatalf("expected fallback for blank value, got %q", got)
	}
	if got := Get("json"); got != "json" {
		t.Fatalf("expected fallback without keys, got %q", got)
	}
}
