//go:build !windows

package overlay

// NewHotkey needs a global keyboard hook, which only the Windows build
// carries. Everywhere else the caller gets ErrUnsupported and should fall
// back to the HTTP and WebSocket triggers.
func NewHotkey(key string) (Trigger, error) {
	return nil, ErrUnsupported
}
