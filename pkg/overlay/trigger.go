package overlay

import "errors"

// ErrUnsupported is returned by NewHotkey on platforms without a global
// keyboard hook. The server logs it and keeps running; scans then come in
// through the HTTP and WebSocket triggers only.
var ErrUnsupported = errors.New("hotkey trigger not supported on this platform")

// Trigger delivers out-of-band scan requests, standing in for the floating
// capture button the phone overlay shows on top of the game.
type Trigger interface {
	// Start begins listening. It fails if the hook cannot be installed.
	Start() error
	// Stop removes the hook and closes the request channel.
	Stop()
	// Requests yields one value per trigger press. Presses that arrive
	// while a scan is running may be dropped; they are never queued.
	Requests() <-chan struct{}
}
