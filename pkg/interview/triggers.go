package interview

import (
	"regexp"
	"strings"
)

const (
	TriggerModeWord      = "word"
	TriggerModeSubstring = "substring"
)

// Triggers detects the phrases that end an interview.
type Triggers struct {
	exit    *regexp.Regexp
	goodbye *regexp.Regexp
}

// NewTriggers builds matchers for mode. Word mode only matches whole words,
// so "exiting" or "goodbyes" in an answer do not end the session; substring
// mode matches anywhere in the text.
func NewTriggers(mode string) Triggers {
	if strings.EqualFold(strings.TrimSpace(mode), TriggerModeSubstring) {
		return Triggers{
			exit:    regexp.MustCompile(`(?i)exit`),
			goodbye: regexp.MustCompile(`(?i)goodbye`),
		}
	}
	return Triggers{
		exit:    regexp.MustCompile(`(?i)\bexit\b`),
		goodbye: regexp.MustCompile(`(?i)\bgood[\s-]?bye\b`),
	}
}

func (t Triggers) IsExit(text string) bool {
	if t.exit == nil {
		return NewTriggers(TriggerModeWord).IsExit(text)
	}
	return t.exit.MatchString(text)
}

func (t Triggers) IsGoodbye(text string) bool {
	if t.goodbye == nil {
		return NewTriggers(TriggerModeWord).IsGoodbye(text)
	}
	return t.goodbye.MatchString(text)
}
