package errorsx

// ReasonCode is a short machine-readable error reason.
type ReasonCode string

const (
	ReasonUnknown ReasonCode = "unknown"

	ReasonFollowUp        ReasonCode = "followup_generate"
	ReasonFollowUpTimeout ReasonCode = "followup_timeout"
	ReasonAssessment      ReasonCode = "assessment_generate"
	ReasonFeedback        ReasonCode = "feedback_generate"
	ReasonDecode          ReasonCode = "collaborator_decode"
	ReasonValidate        ReasonCode = "collaborator_validate"

	ReasonLLMGenerate  ReasonCode = "llm_generate"
	ReasonLLMRateLimit ReasonCode = "llm_rate_limit"

	ReasonSTTConnect     ReasonCode = "stt_connect"
	ReasonSTTSend        ReasonCode = "stt_send"
	ReasonSTTRecognition ReasonCode = "stt_recognition"

	ReasonTTSConnect     ReasonCode = "tts_connect"
	ReasonTTSSynthesize  ReasonCode = "tts_synthesize"
	ReasonTTSRateLimit   ReasonCode = "tts_rate_limit"
	ReasonTTSCircuitOpen ReasonCode = "tts_circuit_open"
	ReasonPlayback       ReasonCode = "playback"

	ReasonTransportSend     ReasonCode = "transport_send"
	ReasonTransportProtocol ReasonCode = "transport_protocol"

	ReasonArchiveWrite  ReasonCode = "archive_write"
	ReasonEventsPublish ReasonCode = "events_publish"
	ReasonJobDesc       ReasonCode = "jobdesc_extract"
)
