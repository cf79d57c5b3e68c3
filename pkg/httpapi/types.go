package httpapi

import "time"

// TurnView is one history entry as rendered in responses.
type TurnView struct {
	Question  string    `json:"question"`
	Answer    string    `json:"answer"`
	Language  string    `json:"language,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AskResponse is the reply to /v1/ask. Audio is base64 encoded and
// only present when speech synthesis succeeded.
type AskResponse struct {
	SessionHandle       string     `json:"session_handle"`
	AnswerText          string     `json:"answer_text"`
	Audio               string     `json:"audio,omitempty"`
	AudioFormat         string     `json:"audio_format,omitempty"`
	ConversationHistory []TurnView `json:"conversation_history"`
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of /health.
type HealthResponse struct {
	Status         string  `json:"status"`
	Uptime         float64 `json:"uptime"`
	ActiveSessions int     `json:"active_sessions"`
	Timestamp      int64   `json:"timestamp"`
}

// InfoResponse is the body of /info.
type InfoResponse struct {
	Name           string `json:"name"`
	Version        string `json:"version"`
	Provider       string `json:"provider"`
	Model          string `json:"model"`
	SpeechEnabled  bool   `json:"speech_enabled"`
	SessionTTLMins int    `json:"session_ttl_minutes"`
}

// ChatResponse is the reply to /v1/chat, the artifact-free question
// endpoint.
type ChatResponse struct {
	AnswerText  string `json:"answer_text"`
	Language    string `json:"language,omitempty"`
	Audio       string `json:"audio,omitempty"`
	AudioFormat string `json:"audio_format,omitempty"`
}

// TranslateResponse is the body of a successful /v1/translate.
type TranslateResponse struct {
	TranslatedText string `json:"translated_text"`
}

// SpeechResponse is the body of a successful /v1/speech. Audio is
// base64 encoded MP3.
type SpeechResponse struct {
	Audio       string `json:"audio"`
	AudioFormat string `json:"audio_format"`
}
