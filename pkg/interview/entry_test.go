package interview

import "testing"

func TestTranscriptExchanges(t *testing.T) {
	tr := Transcript{
		{Speaker: SpeakerCandidate, Text: "early"},
		{Speaker: SpeakerInterviewer, Text: "Q1", IsQuestion: true},
		{Speaker: SpeakerCandidate, Text: "A1"},
		{Speaker: SpeakerInterviewer, Text: "closing"},
		{Speaker: SpeakerCandidate, Text: "A2"},
		{Speaker: SpeakerCandidate, Text: "A3"},
	}
	got := tr.Exchanges()
	want := []Exchange{
		{Question: "N/A", Answer: "early"},
		{Question: "Q1", Answer: "A1"},
		{Question: "closing", Answer: "A2"},
		{Question: "closing", Answer: "A3"},
	}
	if len(got) != len(want) {
		t.Fatalf("expected %d exchanges, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("exchange %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if tr.QuestionCount() != 1 {
		t.Fatalf("expected 1 question, got %d", tr.QuestionCount())
	}
}

func TestTranscriptRender(t *testing.T) {
	tr := Transcript{
		{Speaker: SpeakerInterviewer, Text: "Hi", IsQuestion: true},
		{Speaker: SpeakerCandidate, Text: "Hello"},
	}
	if got, want := tr.Render(), "Interviewer: Hi\nYou: Hello"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestTranscriptClone(t *testing.T) {
	tr := Transcript{{Speaker: SpeakerCandidate, Text: "a"}}
	c := tr.Clone()
	c[0].Text = "b"
	if tr[0].Text != "a" {
		t.Fatalf("clone shares storage")
	}
}

func TestTriggers(t *testing.T) {
	word := NewTriggers(TriggerModeWord)
	cases := []struct {
		text string
		exit bool
	}{
		{"exit", true},
		{"EXIT", true},
		{"ok, Exit please", true},
		{"I was exiting the room", false},
		{"the exits were blocked", false},
	}
	for _, tc := range cases {
		if got := word.IsExit(tc.text); got != tc.exit {
			t.Fatalf("word IsExit(%q) = %v, want %v", tc.text, got, tc.exit)
		}
	}
	if !word.IsGoodbye("Good-bye and good luck") || !word.IsGoodbye("GOODBYE") {
		t.Fatalf("expected goodbye variants to match")
	}

	sub := NewTriggers(TriggerModeSubstring)
	if !sub.IsExit("I was exiting the room") {
		t.Fatalf("substring mode should match inside words")
	}

	var zero Triggers
	if !zero.IsExit("exit") || zero.IsExit("exiting") {
		t.Fatalf("zero value should behave like word mode")
	}
}

func TestPhaseTransitions(t *testing.T) {
	var m phaseMachine
	if err := m.Transition(PhaseClosing, "budget"); err != nil {
		t.Fatalf("questioning->closing: %v", err)
	}
	if err := m.Transition(PhaseQuestioning, "back"); err == nil {
		t.Fatalf("closing->questioning must be rejected")
	}
	if err := m.Transition(PhaseTerminated, "exit"); err != nil {
		t.Fatalf("closing->terminated: %v", err)
	}
	if err := m.Transition(PhaseClosing, "again"); err == nil {
		t.Fatalf("terminated is final")
	}
}
