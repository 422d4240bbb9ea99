//go:build !windows

package overlay

import (
	"errors"
	"testing"
)

func TestNewHotkeyUnsupported(t *testing.T) {
	tr, err := NewHotkey("f8")
	if !errors.Is(err, ErrUnsupported) {
		t.Fatalf("expected ErrUnsupported got %v", err)
	}
	if tr != nil {
		t.Fatalf("expected nil trigger got %v", tr)
	}
}
