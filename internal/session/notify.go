package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Kind classifies a notification.
type Kind string

const (
	KindError   Kind = "error"
	KindSuccess Kind = "success"
	KindInfo    Kind = "info"
)

// Notification is a user-facing signal such as a toast.
type Notification struct {
	ID      uuid.UUID `json:"id"`
	Kind    Kind      `json:"kind"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
	At      time.Time `json:"at"`
}

// Notifier receives notifications.
type Notifier interface {
	Notify(Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Notify sends one notification to the configured Notifier.
func (s *Session) Notify(kind Kind, message string, err error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(Notification{
		ID:      uuid.New(),
		Kind:    kind,
		Message: message,
		Err:     err,
		At:      time.Now(),
	})
}

// DefaultRecorderMax is the number of notifications a Recorder keeps when
// Max is unset.
const DefaultRecorderMax = 100

// Recorder is a Notifier that keeps the newest Max notifications it receives.
type Recorder struct {
	Max int

	mu  sync.Mutex
	all []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	limit := r.Max
	if limit <= 0 {
		limit = DefaultRecorderMax
	}
	r.all = append(r.all, n)
	if len(r.all) > limit {
		r.all = r.all[len(r.all)-limit:]
	}
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.all...)
}

// Count returns the number of recorded notifications of kind k.
func (r *Recorder) Count(k Kind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, x := range r.all {
		if x.Kind == k {
			n++
		}
	}
	return n
}
