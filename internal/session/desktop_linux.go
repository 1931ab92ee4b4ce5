//go:build linux

package session

import (
	"context"
	"fmt"

	"github.com/godbus/dbus/v5"
)

// screenSaverBusName/Path/Interface are the standard freedesktop.org
// screensaver bridge, present on GNOME/KDE/most compositors.
const (
	screenSaverBusName  = "org.freedesktop.ScreenSaver"
	screenSaverBusPath  = "/org/freedesktop/ScreenSaver"
	screenSaverIface    = "org.freedesktop.ScreenSaver"
)

// DesktopBridge forwards the server's CSEC notifications to the local
// desktop's idle-inhibit mechanism: while the secondary screen reports its
// screensaver as active, this machine's own screensaver is inhibited too
// (and released when the server's screensaver deactivates), so a shared
// keyboard/mouse session doesn't get two independently-timed lock screens.
type DesktopBridge struct {
	conn    *dbus.Conn
	cookie  uint32
	active  bool
}

// NewDesktopBridge connects to the session bus. Returns an error if no bus
// is available (e.g. running headless); callers should treat that as
// optional functionality, not fatal.
func NewDesktopBridge() (*DesktopBridge, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session: connecting to session bus: %w", err)
	}

	return &DesktopBridge{conn: conn}, nil
}

// SetScreenSaverActive implements the CSEC handler: true inhibits the local
// screensaver, false releases a previously-acquired inhibition.
func (b *DesktopBridge) SetScreenSaverActive(active bool) error {
	if active == b.active {
		return nil
	}

	obj := b.conn.Object(screenSaverBusName, dbus.ObjectPath(screenSaverBusPath))

	if active {
		var cookie uint32

		call := obj.CallWithContext(context.Background(), screenSaverIface+".Inhibit", 0,
			"barrierscreen", "remote session screensaver active")
		if call.Err != nil {
			return fmt.Errorf("session: dbus Inhibit: %w", call.Err)
		}

		if err := call.Store(&cookie); err != nil {
			return fmt.Errorf("session: dbus Inhibit reply: %w", err)
		}

		b.cookie = cookie
		b.active = true

		return nil
	}

	call := obj.CallWithContext(context.Background(), screenSaverIface+".UnInhibit", 0, b.cookie)
	if call.Err != nil {
		return fmt.Errorf("session: dbus UnInhibit: %w", call.Err)
	}

	b.active = false

	return nil
}

// Close releases the dbus connection.
func (b *DesktopBridge) Close() error {
	return b.conn.Close()
}
