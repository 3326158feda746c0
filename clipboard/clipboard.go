// Package clipboard copies the last transcript to the system clipboard.
package clipboard

import (
	"errors"
	"fmt"

	cb "github.com/atotto/clipboard"
)

var ErrEmpty = errors.New("clipboard: nothing to copy")

// Available reports whether a clipboard backend was found (xclip, xsel or
// wl-copy on Linux).
func Available() bool { return !cb.Unsupported }

func Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	if err := cb.WriteAll(text); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}
