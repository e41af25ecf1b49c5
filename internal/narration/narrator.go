package narration

import (
	"strings"
	"sync"
)

// Utterance is one narration request.
type Utterance struct {
	ID    uint64  `json:"id"`
	Text  string  `json:"text"`
	Lang  string  `json:"lang"`
	Rate  float64 `json:"rate"`
	Voice string  `json:"voice,omitempty"`
}

// Synthesizer is the speech capability. Implementations must not block.
type Synthesizer interface {
	Cancel()
	Speak(u Utterance)
}

// Narrator owns the current utterance slot for one learner. Each Speak cancels whatever is
// in flight and replaces it.
type Narrator struct {
	mu      sync.Mutex
	synth   Synthesizer
	voices  []Voice
	current *Utterance
	seq     uint64
}

// NewNarrator creates a Narrator. A nil synth makes narration silent.
func NewNarrator(synth Synthesizer) *Narrator {
	return &Narrator{synth: synth}
}

// SetVoices replaces the voices reported by the device.
func (n *Narrator) SetVoices(voices []Voice) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.voices = append([]Voice(nil), voices...)
}

// Voices returns the voices reported by the device.
func (n *Narrator) Voices() []Voice {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]Voice(nil), n.voices...)
}

// Speak cancels the current utterance and starts text. Blank text only cancels.
func (n *Narrator) Speak(text, lang string, rate float64) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.synth == nil {
		return
	}
	n.synth.Cancel()
	n.current = nil

	if strings.TrimSpace(text) == "" {
		return
	}

	n.seq++
	u := Utterance{ID: n.seq, Text: text, Lang: lang, Rate: rate}
	if v, ok := SelectVoice(n.voices, lang); ok {
		u.Voice = v.Name
	}
	n.current = &u
	n.synth.Speak(u)
}

// Stop cancels the current utterance.
func (n *Narrator) Stop() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.synth == nil || n.current == nil {
		return
	}
	n.synth.Cancel()
	n.current = nil
}

// Current returns the utterance occupying the slot.
func (n *Narrator) Current() (Utterance, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.current == nil {
		return Utterance{}, false
	}
	return *n.current, true
}
