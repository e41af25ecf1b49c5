package narration

import (
	"testing"
)

type recordingSynth struct {
	events []string
	spoken []Utterance
}

func (r *recordingSynth) Cancel() { r.events = append(r.events, "cancel") }

func (r *recordingSynth) Speak(u Utterance) {
	r.events = append(r.events, "speak:"+u.Text)
	r.spoken = append(r.spoken, u)
}

func TestNarrator_SpeakReplacesCurrent(t *testing.T) {
	synth := &recordingSynth{}
	n := NewNarrator(synth)

	n.Speak("one", "en-US", 0.8)
	n.Speak("two", "en-US", 0.8)

	want := []string{"cancel", "speak:one", "cancel", "speak:two"}
	if len(synth.events) != len(want) {
		t.Fatalf("events = %v, want %v", synth.events, want)
	}
	for i := range want {
		if synth.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, synth.events[i], want[i])
		}
	}

	cur, ok := n.Current()
	if !ok || cur.Text != "two" {
		t.Errorf("Current() = %+v, %v; want two", cur, ok)
	}
	if cur.ID <= synth.spoken[0].ID {
		t.Errorf("utterance ids should increase: %d then %d", synth.spoken[0].ID, cur.ID)
	}
}

func TestNarrator_VoiceAndRate(t *testing.T) {
	synth := &recordingSynth{}
	n := NewNarrator(synth)
	n.SetVoices([]Voice{{Name: "Google US English", Lang: "en-US"}})

	n.Speak("cat", "en-US", 1.2)

	u := synth.spoken[0]
	if u.Voice != "Google US English" || u.Lang != "en-US" || u.Rate != 1.2 {
		t.Errorf("utterance = %+v", u)
	}

	n.Speak("貓", "zh-TW", 1.0)
	if synth.spoken[1].Voice != "" {
		t.Errorf("no zh-TW voice reported, want platform default, got %q", synth.spoken[1].Voice)
	}
}

func TestNarrator_BlankTextOnlyCancels(t *testing.T) {
	synth := &recordingSynth{}
	n := NewNarrator(synth)

	n.Speak("hello", "en-US", 1)
	n.Speak("   ", "en-US", 1)

	if len(synth.spoken) != 1 {
		t.Errorf("spoken = %d, want 1", len(synth.spoken))
	}
	if _, ok := n.Current(); ok {
		t.Error("slot should be empty after blank speak")
	}
}

func TestNarrator_Stop(t *testing.T) {
	synth := &recordingSynth{}
	n := NewNarrator(synth)

	n.Stop()
	if len(synth.events) != 0 {
		t.Errorf("Stop() on empty slot emitted %v", synth.events)
	}

	n.Speak("hi", "en-US", 1)
	n.Stop()
	if synth.events[len(synth.events)-1] != "cancel" {
		t.Errorf("last event = %q, want cancel", synth.events[len(synth.events)-1])
	}
}

func TestNarrator_NilSynthIsSilent(t *testing.T) {
	n := NewNarrator(nil)
	n.Speak("hello", "en-US", 1)
	n.Stop()
	if _, ok := n.Current(); ok {
		t.Error("nil synthesizer should never occupy the slot")
	}
}

func TestNarrator_VoicesCopy(t *testing.T) {
	n := NewNarrator(nil)
	in := []Voice{{Name: "A", Lang: "en-US"}}
	n.SetVoices(in)
	in[0].Name = "B"
	if n.Voices()[0].Name != "A" {
		t.Error("SetVoices should copy its input")
	}
}
