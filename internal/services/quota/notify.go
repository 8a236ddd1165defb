package quota

import "github.com/gen2brain/beeep"

// DesktopNotifier raises quota alerts as desktop notifications.
type DesktopNotifier struct{}

// Notify implements Notifier.
func (DesktopNotifier) Notify(title, body string) error {
	return beeep.Notify(title, body, "")
}
