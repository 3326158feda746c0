//go:build !linux

package hotkey

import (
	"fmt"
	"sync"

	"golang.design/x/hotkey"
)

type systemHotkey struct {
	hk      *hotkey.Hotkey
	keydown chan struct{}
	keyup   chan struct{}

	quit chan struct{}
	once sync.Once
}

// New returns the system-wide Ctrl+Shift+Space hotkey. On macOS it must be
// registered from the main thread.
func New() Hotkey {
	return &systemHotkey{
		hk:      hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeySpace),
		keydown: make(chan struct{}, 1),
		keyup:   make(chan struct{}, 1),
		quit:    make(chan struct{}),
	}
}

func (h *systemHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return fmt.Errorf("register %s: %w", Combo, err)
	}
	go h.forward()
	return nil
}

func (h *systemHotkey) forward() {
	for {
		var out chan struct{}
		select {
		case <-h.hk.Keydown():
			out = h.keydown
		case <-h.hk.Keyup():
			out = h.keyup
		case <-h.quit:
			return
		}
		select {
		case out <- struct{}{}:
		case <-h.quit:
			return
		}
	}
}

func (h *systemHotkey) Unregister() {
	h.once.Do(func() {
		close(h.quit)
		h.hk.Unregister()
	})
}

func (h *systemHotkey) Keydown() <-chan struct{} { return h.keydown }
func (h *systemHotkey) Keyup() <-chan struct{}   { return h.keyup }
