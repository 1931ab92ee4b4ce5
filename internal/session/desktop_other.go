//go:build !linux

package session

import "errors"

// DesktopBridge is unavailable outside Linux; org.freedesktop.ScreenSaver
// is a Linux desktop-bus interface with no portable equivalent here.
type DesktopBridge struct{}

// NewDesktopBridge always fails on non-Linux platforms.
func NewDesktopBridge() (*DesktopBridge, error) {
	return nil, errors.New("session: desktop screensaver bridge is only available on linux")
}

func (d *DesktopBridge) SetScreenSaverActive(active bool) error { return nil }

func (d *DesktopBridge) Close() error { return nil }
