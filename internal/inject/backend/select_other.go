//go:build !linux

package backend

import "fmt"

// Select on non-Linux platforms only supports the pty narration backend;
// uinput and the Wayland virtual-input protocol are both Linux-specific.
func Select(kind string, width, height int32) (Backend, error) {
	switch kind {
	case "pty", "auto", "":
		return NewPTYBackend(width, height)
	default:
		return nil, fmt.Errorf("backend: %q backend is not available on this platform", kind)
	}
}
