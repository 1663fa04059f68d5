package reminder

import (
	"context"
	"sync"
	"time"

	"trackamole/internal/utils"
)

const (
	reminderID = 1
	title      = "Time for a Skin Check"
	body       = "Keep Track-A-Mole updated by checking your moles today."
)

// Notification is one scheduled local notification.
type Notification struct {
	ID    int
	Title string
	Body  string
	At    time.Time
}

// Notifier is the platform notification backend.
type Notifier interface {
	CancelAll(ctx context.Context) error
	Schedule(ctx context.Context, n Notification) error
}

// Service keeps exactly one pending reminder in line with the schedule.
type Service struct {
	notifier Notifier
	log      *utils.Logger
	now      func() time.Time
}

func NewService(n Notifier, log *utils.Logger) *Service {
	return &Service{notifier: n, log: log, now: time.Now}
}

// Configure cancels any pending reminder and, when enabled, registers the
// next one. It returns the registered fire time, zero when disabled.
func (s *Service) Configure(ctx context.Context, sched Schedule) (time.Time, error) {
	if sched.Enabled {
		if err := sched.Validate(); err != nil {
			return time.Time{}, err
		}
	}
	if err := s.notifier.CancelAll(ctx); err != nil {
		return time.Time{}, err
	}
	if !sched.Enabled {
		s.log.Info("reminders disabled")
		return time.Time{}, nil
	}
	at, err := sched.Next(s.now())
	if err != nil {
		return time.Time{}, err
	}
	if err := s.notifier.Schedule(ctx, Notification{ID: reminderID, Title: title, Body: body, At: at}); err != nil {
		return time.Time{}, err
	}
	s.log.Infof("next reminder at %s", at.Format(time.RFC1123))
	return at, nil
}

// LogNotifier records notifications in memory and logs them. It backs the
// CLI where no platform notification service exists.
type LogNotifier struct {
	log *utils.Logger

	mu      sync.Mutex
	pending []Notification
}

func NewLogNotifier(log *utils.Logger) *LogNotifier { return &LogNotifier{log: log} }

func (n *LogNotifier) CancelAll(context.Context) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.pending) > 0 {
		n.log.Infof("cancelled %d pending reminders", len(n.pending))
	}
	n.pending = nil
	return nil
}

func (n *LogNotifier) Schedule(_ context.Context, note Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.pending = append(n.pending, note)
	n.log.Infof("scheduled %q for %s", note.Title, note.At.Format(time.RFC1123))
	return nil
}

// Pending returns the scheduled notifications.
func (n *LogNotifier) Pending() []Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Notification(nil), n.pending...)
}
