package session

import (
	"time"

	"github.com/p-n-ai/little-star/internal/narration"
)

// EventType names a session event.
type EventType string

const (
	EventState     EventType = "state"
	EventSpeak     EventType = "speak"
	EventCancel    EventType = "cancel"
	EventCelebrate EventType = "celebrate"
)

// Celebration describes a confetti burst. No emojis means the plain effect.
type Celebration struct {
	Emojis    []string `json:"emojis,omitempty"`
	Particles int      `json:"particles,omitempty"`
}

// Event is pushed to the learner's devices.
type Event struct {
	Type        EventType            `json:"type"`
	Session     string               `json:"session"`
	At          time.Time            `json:"at"`
	State       *Snapshot            `json:"state,omitempty"`
	Utterance   *narration.Utterance `json:"utterance,omitempty"`
	Celebration *Celebration         `json:"celebration,omitempty"`
}

// Publisher delivers events. Publish must not block.
type Publisher interface {
	Publish(ev Event)
}

type nopPublisher struct{}

func (nopPublisher) Publish(Event) {}

// speechSink turns narration into speak and cancel events for one session.
type speechSink struct {
	session string
	pub     Publisher
}

func (s speechSink) Cancel() {
	s.pub.Publish(Event{Type: EventCancel, Session: s.session, At: time.Now()})
}

func (s speechSink) Speak(u narration.Utterance) {
	s.pub.Publish(Event{Type: EventSpeak, Session: s.session, At: time.Now(), Utterance: &u})
}
