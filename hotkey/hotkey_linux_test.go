//go:build linux

package hotkey

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestComboState(t *testing.T) {
	type ev struct {
		code  uint16
		value int32
		want  edge
	}
	for _, tt := range []struct {
		name   string
		events []ev
	}{
		{"full combo", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
			{keySpace, 2, edgeNone},
			{keySpace, keyRelease, edgeUp},
		}},
		{"right modifiers", []ev{
			{keyRShift, keyPress, edgeNone},
			{keyRCtrl, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
		}},
		{"modifiers released first", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keySpace, keyPress, edgeDown},
			{keyLCtrl, keyRelease, edgeNone},
			{keyLShift, keyRelease, edgeNone},
			{keySpace, keyRelease, edgeUp},
		}},
		{"space alone", []ev{
			{keySpace, keyPress, edgeNone},
			{keySpace, keyRelease, edgeNone},
		}},
		{"ctrl only", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keySpace, keyPress, edgeNone},
			{keySpace, keyRelease, edgeNone},
		}},
		{"shift released before space", []ev{
			{keyLCtrl, keyPress, edgeNone},
			{keyLShift, keyPress, edgeNone},
			{keyLShift, keyRelease, edgeNone},
			{keySpace, keyPress, edgeNone},
		}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			var c comboState
			for i, e := range tt.events {
				if got := c.feed(e.code, e.value); got != e.want {
					t.Fatalf("event %d (%d=%d): edge %d, want %d", i, e.code, e.value, got, e.want)
				}
			}
		})
	}
}

func TestFindKeyboards(t *testing.T) {
	dev, sys := t.TempDir(), t.TempDir()
	write := func(name, caps string) {
		t.Helper()
		os.WriteFile(filepath.Join(dev, name), nil, 0o600)
		dir := filepath.Join(sys, name, "device", "capabilities")
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		os.WriteFile(filepath.Join(dir, "key"), []byte(caps+"\n"), 0o644)
	}

	if _, err := findKeyboards(dev, sys); !errors.Is(err, errNoKeyboard) {
		t.Fatalf("empty dir: err = %v, want errNoKeyboard", err)
	}

	write("event0", "3 0 0 0 0 0 0 0") // wider than 10 chars: keyboard
	write("event1", "4")               // power button
	os.WriteFile(filepath.Join(dev, "mice"), nil, 0o600)

	got, err := findKeyboards(dev, sys)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != filepath.Join(dev, "event0") {
		t.Errorf("keyboards = %v", got)
	}

	if _, err := findKeyboards(filepath.Join(dev, "missing"), sys); err == nil {
		t.Error("expected error for a missing device dir")
	}
}

func TestRegisterFailsWithoutPanicking(t *testing.T) {
	if _, err := os.Stat("/dev/input"); err == nil {
		t.Skip("host has input devices")
	}
	hk := New()
	if err := hk.Register(); err == nil {
		t.Error("Register succeeded without /dev/input")
	}
	hk.Unregister()
	hk.Unregister()
}
