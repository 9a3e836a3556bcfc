package mesh

import (
	"testing"
	"time"
)

func TestRetryPolicyNext(t *testing.T) {
	p := DefaultRetryPolicy()
	tests := []struct {
		failures int
		ok       bool
	}{
		{1, true},
		{2, true},
		{3, false},
		{4, false},
	}
	for _, tt := range tests {
		delay, ok := p.Next(tt.failures)
		if ok != tt.ok {
			t.Errorf("Next(%d) ok = %v, want %v", tt.failures, ok, tt.ok)
		}
		if ok && delay != 2*time.Second {
			t.Errorf("Next(%d) delay = %v", tt.failures, delay)
		}
	}
}
