//go:build linux

package hotkey

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Linux reads key events straight from /dev/input, which works without an X
// server but needs the user in the input group.

const (
	evKey      = 1
	keyPress   = 1
	keyRelease = 0
	keyLCtrl   = 29
	keyRCtrl   = 97
	keyLShift  = 42
	keyRShift  = 54
	keySpace   = 57
)

// struct input_event on 64-bit: 16 bytes of timeval, then type, code, value.
const inputEventSize = 24

var errNoKeyboard = errors.New("no keyboard devices found (is the user in the 'input' group?)")

type evdevHotkey struct {
	keydown chan struct{}
	keyup   chan struct{}

	files []*os.File
	stop  chan struct{}
	once  sync.Once
}

// New returns the Ctrl+Shift+Space hotkey read from every keyboard device.
func New() Hotkey {
	return &evdevHotkey{
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func (h *evdevHotkey) Register() error {
	keyboards, err := findKeyboards("/dev/input", "/sys/class/input")
	if err != nil {
		return fmt.Errorf("register %s: %w", Combo, err)
	}
	for _, path := range keyboards {
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		h.files = append(h.files, f)
		go h.readEvents(f)
	}
	if len(h.files) == 0 {
		return fmt.Errorf("register %s: cannot open any of %d keyboard(s) (run: sudo usermod -aG input $USER, then re-login)",
			Combo, len(keyboards))
	}
	return nil
}

func (h *evdevHotkey) readEvents(f *os.File) {
	buf := make([]byte, inputEventSize*16)
	var combo comboState
	for {
		n, err := f.Read(buf)
		if err != nil {
			return
		}
		for i := 0; i+inputEventSize <= n; i += inputEventSize {
			evType := binary.LittleEndian.Uint16(buf[i+16:])
			if evType != evKey {
				continue
			}
			code := binary.LittleEndian.Uint16(buf[i+18:])
			value := int32(binary.LittleEndian.Uint32(buf[i+20:]))
			switch combo.feed(code, value) {
			case edgeDown:
				h.signal(h.keydown)
			case edgeUp:
				h.signal(h.keyup)
			}
		}
	}
}

func (h *evdevHotkey) signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	case <-h.stop:
	default:
	}
}

func (h *evdevHotkey) Unregister() {
	h.once.Do(func() {
		close(h.stop)
		// Closing the files unblocks the readers.
		for _, f := range h.files {
			f.Close()
		}
	})
}

func (h *evdevHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *evdevHotkey) Keyup() <-chan struct{}   { return h.keyup }

type edge int

const (
	edgeNone edge = iota
	edgeDown
	edgeUp
)

// comboState tracks modifiers for one device. Space counts only while both
// Ctrl and Shift are held; its release ends the combo whatever the modifiers
// are doing by then. Autorepeat (value 2) is ignored.
type comboState struct {
	ctrl, shift, space bool
}

func (c *comboState) feed(code uint16, value int32) edge {
	if value != keyPress && value != keyRelease {
		return edgeNone
	}
	pressed := value == keyPress
	switch code {
	case keyLCtrl, keyRCtrl:
		c.ctrl = pressed
	case keyLShift, keyRShift:
		c.shift = pressed
	case keySpace:
		switch {
		case pressed && !c.space && c.ctrl && c.shift:
			c.space = true
			return edgeDown
		case !pressed && c.space:
			c.space = false
			return edgeUp
		}
	}
	return edgeNone
}

// findKeyboards lists eventN nodes under devDir whose key capability bitmap in
// sysDir is wide enough to be a keyboard rather than a power button.
func findKeyboards(devDir, sysDir string) ([]string, error) {
	entries, err := os.ReadDir(devDir)
	if err != nil {
		return nil, fmt.Errorf("scanning input devices: %w", err)
	}
	var keyboards []string
	for _, e := range entries {
		if !strings.HasPrefix(e.Name(), "event") {
			continue
		}
		caps, err := os.ReadFile(filepath.Join(sysDir, e.Name(), "device", "capabilities", "key"))
		if err != nil {
			continue
		}
		if len(strings.TrimSpace(string(caps))) > 10 {
			keyboards = append(keyboards, filepath.Join(devDir, e.Name()))
		}
	}
	if len(keyboards) == 0 {
		return nil, errNoKeyboard
	}
	return keyboards, nil
}
