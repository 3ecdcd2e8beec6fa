// Package notify delivers short user-facing status messages. There is a
// single slot: a later message replaces the earlier one.
package notify

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Notifier shows a message. Calls must not block.
type Notifier interface {
	Show(message string)
}

// Func adapts a function to Notifier.
type Func func(message string)

func (f Func) Show(message string) { f(message) }

// Message is the content of the slot.
type Message struct {
	Text string    `json:"text"`
	Seq  uint64    `json:"seq"`
	At   time.Time `json:"at"`
}

// Slot keeps only the latest message.
type Slot struct {
	mu     sync.RWMutex
	latest Message
	seq    uint64
}

func NewSlot() *Slot {
	return &Slot{}
}

func (s *Slot) Show(message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	s.latest = Message{Text: message, Seq: s.seq, At: time.Now()}
}

// Latest returns the current message and false when nothing was shown yet.
func (s *Slot) Latest() (Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.seq > 0
}

// LogNotifier writes every message to the log.
type LogNotifier struct {
	logger *logrus.Logger
}

func NewLogNotifier(logger *logrus.Logger) *LogNotifier {
	if logger == nil {
		logger = logrus.New()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Show(message string) {
	n.logger.WithField("notification", true).Info("🔔 " + message)
}

// Multi fans a message out to every notifier.
type Multi []Notifier

func (m Multi) Show(message string) {
	for _, n := range m {
		if n != nil {
			n.Show(message)
		}
	}
}
