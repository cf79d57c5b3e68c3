package httpapi

import (
	"encoding/base64"
	"errors"
	"io"
	"net/http"
	"strings"

	"careassist/internal/observability"
	"careassist/pkg/answer"
	"careassist/pkg/artifact"
	"careassist/pkg/knowledge"
	"careassist/pkg/session"
)

// maxUploadBytes caps the size of an uploaded artifact.
const maxUploadBytes = 32 << 20

// handleAsk is the main entry point. A multipart request either uploads
// a file, which opens a new session, or carries a session_handle for a
// follow-up question against an earlier upload.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "/v1/ask", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		s.writeError(w, "/v1/ask", http.StatusBadRequest, "invalid multipart request")
		return
	}

	question := strings.TrimSpace(r.FormValue("question"))
	if question == "" {
		s.writeError(w, "/v1/ask", http.StatusBadRequest, "question is required")
		return
	}

	target := strings.TrimSpace(r.FormValue("target_language"))
	handle := strings.TrimSpace(r.FormValue("session_handle"))

	file, header, err := r.FormFile("file")
	hasFile := err == nil
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		s.writeError(w, "/v1/ask", http.StatusBadRequest, "invalid file upload")
		return
	}

	if hasFile && handle != "" {
		file.Close()
		s.writeError(w, "/v1/ask", http.StatusBadRequest, "provide either a file or a session_handle, not both")
		return
	}
	if !hasFile && handle == "" {
		s.writeError(w, "/v1/ask", http.StatusBadRequest, "either a file or a session_handle is required")
		return
	}

	if hasFile {
		defer file.Close()

		data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes))
		if err != nil {
			s.writeError(w, "/v1/ask", http.StatusBadRequest, "failed to read uploaded file")
			return
		}
		if len(data) == 0 {
			s.writeError(w, "/v1/ask", http.StatusBadRequest, "uploaded file is empty")
			return
		}

		kind, mime := artifact.DetectKind(header.Filename, data)
		art := &artifact.Artifact{
			Filename: header.Filename,
			Bytes:    data,
			Kind:     kind,
			MIME:     mime,
		}

		handle, err = s.sessions.Reserve(header.Filename)
		if err != nil {
			s.writeError(w, "/v1/ask", http.StatusInternalServerError, "failed to open session")
			return
		}

		kc, err := s.builder.Build(r.Context(), art)
		if err != nil {
			s.sessions.Abort(handle)
			s.answerError(w, "/v1/ask", err)
			return
		}

		if err := s.sessions.Activate(handle, kc); err != nil {
			kc.Close()
			s.answerError(w, "/v1/ask", err)
			return
		}
	}

	s.answerSession(w, r, "/v1/ask", handle, question, target)
}

// handleChat answers a free-standing question with no uploaded
// artifact and no session. Useful for general questions before or
// alongside a document conversation.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "/v1/chat", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	prompt := strings.TrimSpace(r.FormValue("prompt"))
	if prompt == "" {
		s.writeError(w, "/v1/chat", http.StatusBadRequest, "prompt is required")
		return
	}
	target := strings.TrimSpace(r.FormValue("target_language"))

	result, err := s.pipeline.Chat(r.Context(), prompt, target)
	if err != nil {
		s.answerError(w, "/v1/chat", err)
		return
	}

	resp := ChatResponse{
		AnswerText: result.Text,
		Language:   result.Language,
	}
	if len(result.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(result.Audio)
		resp.AudioFormat = result.AudioFormat
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// answerSession runs a question through the pipeline against the
// session's context and appends the completed turn. The session lock is
// released around the provider call so other requests on the same
// handle are not blocked behind outbound I/O, then taken again to
// record the turn.
func (s *Server) answerSession(w http.ResponseWriter, r *http.Request, path, handle, question, target string) {
	sess, release, err := s.sessions.Acquire(handle)
	if err != nil {
		s.answerError(w, path, err)
		return
	}
	kctx := sess.Context
	past := s.sessions.HistorySnapshot(sess)
	release()

	result, err := s.pipeline.Answer(r.Context(), answer.Request{
		Context:        kctx,
		Question:       question,
		TargetLanguage: target,
		History:        past,
	})
	if err != nil {
		observability.RecordTurn(false)
		s.answerError(w, path, err)
		return
	}

	// The session may have expired while the provider was running.
	sess, release, err = s.sessions.Acquire(handle)
	if err != nil {
		observability.RecordTurn(false)
		s.answerError(w, path, err)
		return
	}
	defer release()

	if err := s.sessions.AppendTurn(sess, session.Turn{
		Question: question,
		Answer:   result.Text,
		Language: result.Language,
	}); err != nil {
		observability.RecordTurn(false)
		s.answerError(w, path, err)
		return
	}
	observability.RecordTurn(true)

	history := s.sessions.HistorySnapshot(sess)
	views := make([]TurnView, len(history))
	for i, turn := range history {
		views[i] = TurnView{
			Question:  turn.Question,
			Answer:    turn.Answer,
			Language:  turn.Language,
			Timestamp: turn.Timestamp,
		}
	}

	resp := AskResponse{
		SessionHandle:       handle,
		AnswerText:          result.Text,
		ConversationHistory: views,
	}
	if len(result.Audio) > 0 {
		resp.Audio = base64.StdEncoding.EncodeToString(result.Audio)
		resp.AudioFormat = result.AudioFormat
	}

	s.writeJSON(w, http.StatusOK, resp)
}

// handleTranslate exposes the translator directly.
func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "/v1/translate", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	text := r.FormValue("text")
	source := strings.TrimSpace(r.FormValue("source_language"))
	target := strings.TrimSpace(r.FormValue("target_language"))
	if strings.TrimSpace(text) == "" {
		s.writeError(w, "/v1/translate", http.StatusBadRequest, "text is required")
		return
	}
	if target == "" {
		s.writeError(w, "/v1/translate", http.StatusBadRequest, "target_language is required")
		return
	}

	out, err := s.pipeline.Translate(r.Context(), text, source, target)
	if err != nil {
		s.writeError(w, "/v1/translate", http.StatusInternalServerError, "translation failed")
		return
	}

	s.writeJSON(w, http.StatusOK, TranslateResponse{TranslatedText: out})
}

// handleSpeech exposes speech synthesis directly.
func (s *Server) handleSpeech(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, "/v1/speech", http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	text := r.FormValue("text")
	lang := strings.TrimSpace(r.FormValue("language"))
	if strings.TrimSpace(text) == "" {
		s.writeError(w, "/v1/speech", http.StatusBadRequest, "text is required")
		return
	}

	audio, err := s.pipeline.Synthesize(r.Context(), text, lang)
	if err != nil {
		s.writeError(w, "/v1/speech", http.StatusInternalServerError, "speech synthesis failed")
		return
	}

	s.writeJSON(w, http.StatusOK, SpeechResponse{
		Audio:       base64.StdEncoding.EncodeToString(audio),
		AudioFormat: answer.AudioFormatMP3,
	})
}

// answerError maps domain errors to HTTP statuses. Client mistakes are
// 400, dead or unknown sessions are 404, everything else is 500.
func (s *Server) answerError(w http.ResponseWriter, path string, err error) {
	switch {
	case errors.Is(err, session.ErrInvalidHandle),
		errors.Is(err, session.ErrTooManyTurns),
		errors.Is(err, knowledge.ErrEmptyContent),
		errors.Is(err, knowledge.ErrNoHeader):
		s.writeError(w, path, http.StatusBadRequest, err.Error())
	case errors.Is(err, session.ErrNotFound):
		s.writeError(w, path, http.StatusNotFound, err.Error())
	default:
		s.writeError(w, path, http.StatusInternalServerError, err.Error())
	}
}
