package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/tonehq/tonectl/pkg/types"
)

// Notifier shows short title plus detail messages to the user
type Notifier interface {
	Notify(n types.Notification)
}

// Success, Info, Warning and Error are shorthands over a Notifier
func Success(n Notifier, title, detail string) {
	n.Notify(types.Notification{Level: types.NotifySuccess, Title: title, Detail: detail})
}

func Info(n Notifier, title, detail string) {
	n.Notify(types.Notification{Level: types.NotifyInfo, Title: title, Detail: detail})
}

func Warning(n Notifier, title, detail string) {
	n.Notify(types.Notification{Level: types.NotifyWarning, Title: title, Detail: detail})
}

func Error(n Notifier, title, detail string) {
	n.Notify(types.Notification{Level: types.NotifyError, Title: title, Detail: detail})
}

// ConsoleNotifier prints notifications, one per line
type ConsoleNotifier struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleNotifier writes to out
func NewConsoleNotifier(out io.Writer) *ConsoleNotifier {
	return &ConsoleNotifier{out: out}
}

var levelPrefix = map[types.NotificationLevel]string{
	types.NotifySuccess: "✅",
	types.NotifyInfo:    "ℹ️ ",
	types.NotifyWarning: "⚠️ ",
	types.NotifyError:   "❌",
}

func (c *ConsoleNotifier) Notify(n types.Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prefix := levelPrefix[n.Level]
	if n.Detail == "" {
		fmt.Fprintf(c.out, "%s %s\n", prefix, n.Title)
		return
	}
	fmt.Fprintf(c.out, "%s %s: %s\n", prefix, n.Title, n.Detail)
}

// Recorder keeps every notification in memory
type Recorder struct {
	mu    sync.Mutex
	items []types.Notification
}

func (r *Recorder) Notify(n types.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// Notifications returns a copy of everything recorded so far
func (r *Recorder) Notifications() []types.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]types.Notification(nil), r.items...)
}

// Last returns the most recent notification
func (r *Recorder) Last() (types.Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return types.Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset forgets every notification
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Multi fans a notification out to several notifiers
type Multi []Notifier

func (m Multi) Notify(n types.Notification) {
	for _, target := range m {
		target.Notify(n)
	}
}
