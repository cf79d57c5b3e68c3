package answer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"careassist/internal/observability"
	"careassist/pkg/artifact"
	"careassist/pkg/knowledge"
	"careassist/pkg/language"
	"careassist/pkg/session"
)

const systemPrompt = `You are a careful assistant answering questions about a document the user uploaded.
Answer using only the provided document content. If the content does not
cover the question, say so instead of guessing. Keep answers short and
plain.`

const chatSystemPrompt = `You are a careful healthcare assistant. Answer the user's question in
short, plain language. Recommend seeing a clinician for anything that
needs diagnosis or treatment decisions.`

// Config controls generation parameters for the pipeline.
type Config struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopK        int
}

// Request is one question against a session's grounding context.
type Request struct {
	Context        *knowledge.Context
	Question       string
	TargetLanguage string
	History        []session.Turn
}

// Result is the produced answer. Audio is only set when speech synthesis
// is configured and succeeded.
type Result struct {
	Text        string
	Language    string
	Audio       []byte
	AudioFormat string
}

// Pipeline turns a question plus grounding context into an answer.
// Generation is required; translation and speech degrade gracefully,
// falling back to the untranslated text and omitting audio.
type Pipeline struct {
	provider    LLMProvider
	translator  Translator
	synthesizer Synthesizer
	cfg         Config
	logger      zerolog.Logger
}

// NewPipeline creates a pipeline. translator may be nil to skip
// translation entirely, synthesizer may be nil to skip speech.
func NewPipeline(provider LLMProvider, translator Translator, synthesizer Synthesizer, cfg Config, logger zerolog.Logger) *Pipeline {
	observability.EnsureRegistered()

	if translator == nil {
		translator = NoopTranslator{}
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}

	return &Pipeline{
		provider:    provider,
		translator:  translator,
		synthesizer: synthesizer,
		cfg:         cfg,
		logger:      logger,
	}
}

// Answer runs the full pipeline for req.
func (p *Pipeline) Answer(ctx context.Context, req Request) (*Result, error) {
	if req.Context == nil {
		return nil, ErrNoGrounding
	}

	target := req.TargetLanguage
	if target == "" {
		target, _ = language.Detect(req.Question)
	}

	grounding, err := p.grounding(ctx, req)
	if err != nil {
		observability.RecordAnswerError("retrieval")
		return nil, err
	}

	messages := make([]Message, 0, len(req.History)*2+1)
	for _, turn := range req.History {
		messages = append(messages,
			Message{Role: "user", Content: turn.Question},
			Message{Role: "assistant", Content: turn.Answer},
		)
	}
	messages = append(messages, Message{Role: "user", Content: req.Question})

	start := time.Now()
	response, err := p.provider.Complete(ctx, CompletionRequest{
		Model:        p.cfg.Model,
		Messages:     messages,
		Temperature:  p.cfg.Temperature,
		MaxTokens:    p.cfg.MaxTokens,
		SystemPrompt: systemPrompt + "\n\nDocument content:\n" + grounding,
	})
	observability.RecordAnswer(p.provider.Provider(), time.Since(start))
	if err != nil {
		observability.RecordAnswerError("completion")
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		observability.RecordAnswerError("completion")
		return nil, fmt.Errorf("%w: provider returned empty answer", ErrDependency)
	}

	return p.localize(ctx, text, req.Context.Language, target), nil
}

// Chat answers a free-standing question without any uploaded artifact.
// The reply is translated and voiced the same way session answers are.
func (p *Pipeline) Chat(ctx context.Context, question, targetLanguage string) (*Result, error) {
	target := targetLanguage
	if target == "" {
		target, _ = language.Detect(question)
	}

	start := time.Now()
	response, err := p.provider.Complete(ctx, CompletionRequest{
		Model:        p.cfg.Model,
		Messages:     []Message{{Role: "user", Content: question}},
		Temperature:  p.cfg.Temperature,
		MaxTokens:    p.cfg.MaxTokens,
		SystemPrompt: chatSystemPrompt,
	})
	observability.RecordAnswer(p.provider.Provider(), time.Since(start))
	if err != nil {
		observability.RecordAnswerError("completion")
		return nil, fmt.Errorf("%w: %v", ErrDependency, err)
	}

	text := strings.TrimSpace(response.Content)
	if text == "" {
		observability.RecordAnswerError("completion")
		return nil, fmt.Errorf("%w: provider returned empty answer", ErrDependency)
	}

	return p.localize(ctx, text, "", target), nil
}

// localize translates text into target and attaches audio when speech is
// configured. Both steps degrade to the untranslated or silent result.
func (p *Pipeline) localize(ctx context.Context, text, source, target string) *Result {
	translated, err := p.translator.Translate(ctx, text, source, target)
	if err != nil {
		observability.RecordAnswerError("translation")
		p.logger.Warn().Err(err).Str("target", target).Msg("Translation failed, returning original text")
		translated = text
	}

	result := &Result{
		Text:     translated,
		Language: target,
	}

	if p.synthesizer != nil {
		audio, err := p.synthesizer.Synthesize(ctx, translated, target)
		if err != nil {
			observability.RecordAnswerError("speech")
			p.logger.Warn().Err(err).Msg("Speech synthesis failed, omitting audio")
		} else {
			result.Audio = audio
			result.AudioFormat = AudioFormatMP3
		}
	}

	return result
}

func (p *Pipeline) grounding(ctx context.Context, req Request) (string, error) {
	switch req.Context.Kind {
	case artifact.KindTable:
		if req.Context.Table == nil {
			return "", ErrNoGrounding
		}
		return req.Context.Table.Render(), nil
	default:
		if req.Context.Index == nil {
			return "", ErrNoGrounding
		}

		fragments, err := req.Context.Index.Search(ctx, req.Question, p.cfg.TopK)
		if err != nil {
			return "", fmt.Errorf("retrieval failed: %w", err)
		}

		parts := make([]string, len(fragments))
		for i, f := range fragments {
			parts[i] = f.Content
		}
		return strings.Join(parts, "\n\n"), nil
	}
}

// Translate exposes the pipeline's translator for direct use.
func (p *Pipeline) Translate(ctx context.Context, text, source, target string) (string, error) {
	return p.translator.Translate(ctx, text, source, target)
}

// Synthesize exposes the pipeline's synthesizer for direct use. Returns
// an error when speech is not configured.
func (p *Pipeline) Synthesize(ctx context.Context, text, lang string) ([]byte, error) {
	if p.synthesizer == nil {
		return nil, fmt.Errorf("speech synthesis is not configured")
	}
	return p.synthesizer.Synthesize(ctx, text, lang)
}
