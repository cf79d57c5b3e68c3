package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"careassist/internal/config"
	"careassist/internal/logger"
	"careassist/pkg/answer"
	"careassist/pkg/httpapi"
	"careassist/pkg/knowledge"
	"careassist/pkg/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the careassist HTTP server",
	Long: `Run the careassist HTTP server in the foreground.
The server accepts document uploads on /v1/ask and answers questions
against them until the process is interrupted.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	loader := config.NewLoader(cfgFile)
	cfg, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	lg, err := logger.New(logger.Config{
		Level:   cfg.Logging.Level,
		File:    cfg.Logging.File,
		Console: cfg.Logging.Console,
		Pretty:  cfg.Logging.Pretty,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer lg.Close()
	log := lg.GetZerolog()

	provider, err := answer.NewProvider(cfg.AI.Provider, cfg.AI.APIKey)
	if err != nil {
		return err
	}

	var embedder knowledge.EmbeddingProvider
	if cfg.Knowledge.EmbeddingModel != "" {
		embedder = knowledge.NewOpenAIEmbedder(os.Getenv("OPENAI_API_KEY"), cfg.Knowledge.EmbeddingModel)
	}

	builder, err := knowledge.NewBuilder(knowledge.BuilderConfig{
		ChunkSize:    cfg.Knowledge.ChunkSize,
		ChunkOverlap: cfg.Knowledge.ChunkOverlap,
		HeadRows:     cfg.Knowledge.HeadRows,
		IndexDir:     filepath.Join(cfg.DataDir, "indexes"),
	}, embedder, log)
	if err != nil {
		return fmt.Errorf("failed to create context builder: %w", err)
	}

	sessions := session.NewManager(session.Config{
		TTL:      cfg.Session.TTL(),
		MaxTurns: cfg.Session.MaxTurns,
		Logger:   log,
	})
	defer sessions.Close()

	var translator answer.Translator
	if cfg.Translate.Endpoint != "" {
		translator = answer.NewHTTPTranslator(cfg.Translate.Endpoint, time.Duration(cfg.Translate.TimeoutSeconds)*time.Second)
	}

	var synthesizer answer.Synthesizer
	if cfg.Speech.Enabled && cfg.Speech.Endpoint != "" {
		synthesizer = answer.NewHTTPSynthesizer(cfg.Speech.Endpoint, time.Duration(cfg.Speech.TimeoutSeconds)*time.Second)
	}

	pipeline := answer.NewPipeline(provider, translator, synthesizer, answer.Config{
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		TopK:        cfg.Knowledge.TopK,
	}, log)

	server, err := httpapi.NewServer(cfg.Server, sessions, builder, pipeline, httpapi.InfoResponse{
		Name:           "careassist",
		Version:        version,
		Provider:       cfg.AI.Provider,
		Model:          cfg.AI.Model,
		SpeechEnabled:  synthesizer != nil,
		SessionTTLMins: cfg.Session.TTLMinutes,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
	}

	return server.Stop()
}
