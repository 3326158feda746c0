package analyzer

import (
	"encoding/binary"
	"math"
	"testing"
	"time"

	"voicebutton/audio"
)

func sine(freq float64, n int) []byte {
	pcm := make([]byte, n*2)
	for i := range n {
		v := 0.05 * math.Sin(2*math.Pi*freq*float64(i)/16000)
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(int16(v*32767)))
	}
	return pcm
}

func TestDisconnectAnyOrder(t *testing.T) {
	for _, tt := range []struct {
		name  string
		steps string // c = connect, d = disconnect, x = close stream
	}{
		{"never connected", "ddd"},
		{"once", "cd"},
		{"twice", "cdd"},
		{"reconnect", "cdcd"},
		{"connect twice", "ccd"},
		{"after stream close", "cxdd"},
		{"nothing", ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			a := New(DefaultConfig())
			s := audio.NewStream(16000, 1)
			for _, step := range tt.steps {
				switch step {
				case 'c':
					if err := a.Connect(s); err != nil {
						t.Fatal(err)
					}
				case 'd':
					a.Disconnect()
				case 'x':
					s.Close()
				}
			}
			if a.Connected() {
				a.Disconnect()
			}
			if a.Connected() {
				t.Error("still connected")
			}
		})
	}
}

func TestConnectIdempotent(t *testing.T) {
	a := New(DefaultConfig())
	s := audio.NewStream(16000, 1)
	a.Connect(s)
	a.Connect(s)
	if s.Taps() != 1 {
		t.Errorf("Taps = %d, want 1", s.Taps())
	}

	other := audio.NewStream(16000, 1)
	a.Connect(other)
	if s.Taps() != 0 || other.Taps() != 1 {
		t.Errorf("taps after switch: old=%d new=%d", s.Taps(), other.Taps())
	}
	a.Disconnect()
	if other.Taps() != 0 {
		t.Error("tap survived Disconnect")
	}
}

func TestConnectNil(t *testing.T) {
	if err := New(DefaultConfig()).Connect(nil); err == nil {
		t.Error("Connect(nil) should fail")
	}
}

func TestTapDroppedWhenStreamCloses(t *testing.T) {
	a := New(DefaultConfig())
	s := audio.NewStream(16000, 1)
	a.Connect(s)
	s.Close()

	deadline := time.Now().Add(time.Second)
	for a.Connected() {
		if time.Now().After(deadline) {
			t.Fatal("analyzer outlived its stream")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSampleRange(t *testing.T) {
	a := New(DefaultConfig())
	s := audio.NewStream(16000, 1)
	a.Connect(s)
	defer a.Disconnect()

	// 1 kHz lands in bin 1000 / (16000/128) = 8.
	s.Publish(sine(1000, 1600))
	var bins []float64
	for range 20 {
		bins = a.Sample()
	}
	if len(bins) != 64 {
		t.Fatalf("len = %d, want 64", len(bins))
	}
	peak := 0
	for i, v := range bins {
		if v < 0 || v > 1 {
			t.Fatalf("bin %d = %f out of range", i, v)
		}
		if v > bins[peak] {
			peak = i
		}
	}
	if peak < 7 || peak > 9 {
		t.Errorf("peak bin = %d, want ~8", peak)
	}
	if v := a.Volume(); v <= 0 || v > 1 {
		t.Errorf("Volume = %f", v)
	}
}

func TestSilenceAndDisconnected(t *testing.T) {
	a := New(DefaultConfig())
	for _, v := range a.Sample() {
		if v != 0 {
			t.Fatal("disconnected analyzer should be silent")
		}
	}
	if a.Volume() != 0 {
		t.Error("disconnected volume should be 0")
	}

	s := audio.NewStream(16000, 1)
	a.Connect(s)
	s.Publish(make([]byte, 3200))
	if v := a.Volume(); v != 0 {
		t.Errorf("silence volume = %f", v)
	}
}

func TestSmoothingDecays(t *testing.T) {
	a := New(DefaultConfig())
	s := audio.NewStream(16000, 1)
	a.Connect(s)
	defer a.Disconnect()

	s.Publish(sine(1000, 1600))
	for range 10 {
		a.Sample()
	}
	loud := a.Sample()[8]

	s.Publish(make([]byte, 3200))
	first := a.Sample()[8]
	if first <= 0 {
		t.Error("smoothing should hold energy for a frame after silence")
	}
	if first > loud {
		t.Errorf("smoothed value grew: %f > %f", first, loud)
	}
}
