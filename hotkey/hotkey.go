// Package hotkey turns a global key combination into session intents.
package hotkey

// Combo is the key combination New registers.
const Combo = "Ctrl+Shift+Space"

type Hotkey interface {
	Register() error
	Unregister()
	Keydown() <-chan struct{}
	Keyup() <-chan struct{}
}
