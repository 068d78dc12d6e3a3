package interview

import "strings"

// Speaker identifies who authored a transcript entry.
type Speaker string

const (
	SpeakerInterviewer Speaker = "interviewer"
	SpeakerCandidate   Speaker = "candidate"
)

// Entry is one turn of the conversation.
type Entry struct {
	Speaker    Speaker `json:"speaker"`
	Text       string  `json:"text"`
	IsQuestion bool    `json:"is_question,omitempty"`
}

// Transcript is the ordered conversation. Entries are only ever appended.
type Transcript []Entry

// Exchange pairs a candidate answer with the question it responded to.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// QuestionCount is the number of interviewer entries flagged as questions.
func (t Transcript) QuestionCount() int {
	n := 0
	for _, e := range t {
		if e.Speaker == SpeakerInterviewer && e.IsQuestion {
			n++
		}
	}
	return n
}

// LastInterviewerText returns the text of the most recent interviewer entry.
func (t Transcript) LastInterviewerText() string {
	for i := len(t) - 1; i >= 0; i-- {
		if t[i].Speaker == SpeakerInterviewer {
			return t[i].Text
		}
	}
	return ""
}

// Exchanges pairs every candidate entry with the nearest interviewer entry
// before it. Answers with no preceding interviewer entry get "N/A".
func (t Transcript) Exchanges() []Exchange {
	var out []Exchange
	question := ""
	for _, e := range t {
		switch e.Speaker {
		case SpeakerInterviewer:
			question = e.Text
		case SpeakerCandidate:
			q := question
			if q == "" {
				q = "N/A"
			}
			out = append(out, Exchange{Question: q, Answer: e.Text})
		}
	}
	return out
}

// Render formats the transcript as "Interviewer:" / "You:" lines.
func (t Transcript) Render() string {
	var sb strings.Builder
	for i, e := range t {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if e.Speaker == SpeakerInterviewer {
			sb.WriteString("Interviewer: ")
		} else {
			sb.WriteString("You: ")
		}
		sb.WriteString(e.Text)
	}
	return sb.String()
}

// Clone returns a copy that shares nothing with t.
func (t Transcript) Clone() Transcript {
	if t == nil {
		return nil
	}
	out := make(Transcript, len(t))
	copy(out, t)
	return out
}
