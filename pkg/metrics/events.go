package metrics

import "context"

// Event names shared by producers and observers.
const (
	EventSessionStart = "session_start"
	EventSessionEnd   = "session_end"

	EventEntryAppended    = "entry_appended"
	EventPhaseChange      = "phase_change"
	EventTurnChange       = "turn_change"
	EventAnswerCommitted  = "answer_committed"
	EventFollowUpDone     = "followup_done"
	EventFollowUpFallback = "followup_fallback"

	EventListenStart      = "listen_start"
	EventListenStop       = "listen_stop"
	EventRecognitionError = "recognition_error"
	EventAudioIn          = "audio_in"

	EventSpeechStart     = "speech_start"
	EventSpeechEnd       = "speech_end"
	EventSynthesisFailed = "synthesis_failed"
	EventAudioOut        = "audio_out"

	EventLLMDone       = "llm_done"
	EventRateLimit     = "rate_limit"
	EventBreakerOpen   = "breaker_open"
	EventBreakerClose  = "breaker_close"
	EventBreakerDenied = "breaker_denied"

	EventReportReady  = "report_ready"
	EventReportFailed = "report_failed"
)

// TagSession is the tag carrying the interview session id.
const TagSession = "session_id"

type sessionKey struct{}

// WithSession returns a context carrying the session id used to tag events.
func WithSession(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionKey{}, sessionID)
}

// SessionFrom returns the session id stored by WithSession.
func SessionFrom(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
