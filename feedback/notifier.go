package feedback

import (
	"github.com/gen2brain/beeep"

	"voicebutton/log"
)

// Notifier raises desktop notifications for toasts at or above MinLevel.
type Notifier struct {
	Title    string
	MinLevel Level

	notify func(title, message string, icon any) error
}

func NewNotifier(title string, minLevel Level) *Notifier {
	return &Notifier{Title: title, MinLevel: minLevel, notify: beeep.Notify}
}

func (n *Notifier) Cue(Cue) {}

func (n *Notifier) Toast(level Level, message string) {
	if level < n.MinLevel || message == "" {
		return
	}
	go func() {
		if err := n.notify(n.Title, message, ""); err != nil {
			log.Warnf("notify: %v", err)
		}
	}()
}
