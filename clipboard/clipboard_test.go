package clipboard

import (
	"errors"
	"testing"
)

func TestCopyEmpty(t *testing.T) {
	if err := Copy(""); !errors.Is(err, ErrEmpty) {
		t.Fatalf("Copy(\"\") = %v, want ErrEmpty", err)
	}
}
