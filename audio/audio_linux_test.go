//go:build linux

package audio

import "testing"

func TestStreamProps(t *testing.T) {
	if p := streamProps(CaptureConfig{}); p != nil {
		t.Errorf("no hints: props = %v, want none", p)
	}
	for _, cfg := range []CaptureConfig{
		{EchoCancellation: true},
		{NoiseSuppression: true},
		{EchoCancellation: true, NoiseSuppression: true},
	} {
		if p := streamProps(cfg); p["filter.want"] != "echo-cancel" {
			t.Errorf("%+v: props = %v", cfg, p)
		}
	}
}
