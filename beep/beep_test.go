package beep

import "testing"

func TestSamples(t *testing.T) {
	for _, tt := range []struct {
		name string
		tone Tone
		min  float64 // seconds of sound before the tail pad
	}{
		{"start", Start, 0.03},
		{"end", End, 0.05},
		{"error", Error, 0.21},
		{"tick", Tick, 0.02},
		{"success", Success, 0.14},
	} {
		t.Run(tt.name, func(t *testing.T) {
			s := Samples(tt.tone)
			want := int(tt.min*sampleRate) + int(sampleRate*tailPad.Seconds())
			if len(s) < want-2 {
				t.Errorf("len = %d, want >= %d", len(s), want)
			}
			var peak int16
			for _, v := range s {
				peak = max(peak, v)
			}
			if peak == 0 {
				t.Error("tone is silent")
			}
		})
	}
	if Samples(Tone(99)) != nil {
		t.Error("unknown tone should have no samples")
	}
}

func TestDoubleBeepHasGap(t *testing.T) {
	s := generateDoubleBeep(1000, 100, 0.01, 0.01, 0.5, 0)
	if len(s) != 30 {
		t.Fatalf("len = %d, want 30", len(s))
	}
	for _, v := range s[10:20] {
		if v != 0 {
			t.Fatal("gap is not silent")
		}
	}
}

func TestDisabledIsSilent(t *testing.T) {
	Disable()
	PlayStart()
	PlayTick()
	PlaySuccess()
}
