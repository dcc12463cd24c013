package telemetry

import "testing"

func TestMetricsObserveDoesNotPanic(t *testing.T) {
	m := New(NewLogger("error"))
	m.ObserveApply("feed", "ethereum", 100, 0.01)
	m.ObserveRevert("feed", "ethereum", 99)
	m.SetSubscribers("feed", "ethereum", 3)
	m.ObserveAPIRequest("/v1/ethereum/tokens", "2xx", 0.002)
}

func TestNewLoggerDefaultsOnBadLevel(t *testing.T) {
	lg := NewLogger("not-a-level")
	if lg.GetLevel().String() != "info" {
		t.Fatalf("expected info level fallback, got %s", lg.GetLevel())
	}
}
