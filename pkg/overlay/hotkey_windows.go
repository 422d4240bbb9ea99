//go:build windows

package overlay

import (
	"fmt"
	"strings"
	"sync"

	"github.com/moutend/go-hook/pkg/keyboard"
	"github.com/moutend/go-hook/pkg/types"
	"github.com/rs/zerolog/log"
)

var vkCodes = map[string]types.VKCode{
	"f1": types.VK_F1, "f2": types.VK_F2, "f3": types.VK_F3, "f4": types.VK_F4,
	"f5": types.VK_F5, "f6": types.VK_F6, "f7": types.VK_F7, "f8": types.VK_F8,
	"f9": types.VK_F9, "f10": types.VK_F10, "f11": types.VK_F11, "f12": types.VK_F12,
}

// HotkeyTrigger turns a global function-key press into a scan request via a
// low-level keyboard hook.
type HotkeyTrigger struct {
	key      string
	vk       types.VKCode
	events   chan types.KeyboardEvent
	requests chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHotkey builds a trigger for the named function key (f1..f12).
func NewHotkey(key string) (Trigger, error) {
	name := strings.ToLower(strings.TrimSpace(key))
	vk, ok := vkCodes[name]
	if !ok {
		return nil, fmt.Errorf("unsupported hotkey %q (want f1..f12)", key)
	}
	return &HotkeyTrigger{
		key:      name,
		vk:       vk,
		events:   make(chan types.KeyboardEvent, 100),
		requests: make(chan struct{}, 1),
		done:     make(chan struct{}),
	}, nil
}

func (h *HotkeyTrigger) Start() error {
	if err := keyboard.Install(nil, h.events); err != nil {
		return fmt.Errorf("install keyboard hook: %w", err)
	}
	go h.watch()
	log.Info().Str("key", h.key).Msg("hotkey trigger armed")
	return nil
}

func (h *HotkeyTrigger) watch() {
	for {
		select {
		case <-h.done:
			close(h.requests)
			return
		case event := <-h.events:
			if event.Message != types.WM_KEYDOWN || event.VKCode != h.vk {
				continue
			}
			select {
			case h.requests <- struct{}{}:
			default:
				// a scan request is already pending; presses are not queued
			}
		}
	}
}

func (h *HotkeyTrigger) Stop() {
	h.stopOnce.Do(func() {
		_ = keyboard.Uninstall()
		close(h.done)
	})
}

func (h *HotkeyTrigger) Requests() <-chan struct{} {
	return h.requests
}
