package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/google/uuid"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/sony/gobreaker/v2"

	"github.com/joseph-ayodele/pet-health-tracker/internal/common"
	"github.com/joseph-ayodele/pet-health-tracker/internal/entity"
)

// Config for the Claude-backed analyzer.
type Config struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Timeout   time.Duration

	// Breaker: consecutive failures before the circuit opens, and how long it stays open.
	BreakerFailures uint32
	BreakerCooldown time.Duration
}

// ConfigFrom maps the analysis section of the application config.
func ConfigFrom(c common.AnalysisConfig) Config {
	return Config{
		APIKey:    c.APIKey,
		BaseURL:   c.BaseURL,
		Model:     c.Model,
		MaxTokens: c.MaxTokens,
		Timeout:   c.Timeout,
	}
}

// ClaudeAnalyzer calls the Anthropic Messages API behind a circuit breaker.
type ClaudeAnalyzer struct {
	client  sdk.Client
	cfg     Config
	breaker *gobreaker.CircuitBreaker[string]
	schema  *jsonschema.Schema
	log     *slog.Logger
}

// NewClaudeAnalyzer builds the analyzer. The SDK's own retries are disabled; the queue owns retry policy.
func NewClaudeAnalyzer(cfg Config, logger *slog.Logger) (*ClaudeAnalyzer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, common.NewAppError("CONFIG_ERROR", "analysis.api_key is required", common.ErrInvalidInput)
	}
	if cfg.Model == "" {
		cfg.Model = "claude-haiku-4-5-20251001"
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 1024
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 3
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	schema, err := compileSchema(assessmentSchema())
	if err != nil {
		return nil, fmt.Errorf("compile assessment schema: %w", err)
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	a := &ClaudeAnalyzer{
		client: sdk.NewClient(opts...),
		cfg:    cfg,
		schema: schema,
		log:    logger,
	}
	a.breaker = gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "anthropic-messages",
		MaxRequests: 1,
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// Malformed replies are the model's fault, not the endpoint's.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrInvalidResponse)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("analysis.breaker.state", "name", name, "from", from.String(), "to", to.String())
		},
	})
	return a, nil
}

// Analyze asks the assistant for an assessment of report and renders it.
func (a *ClaudeAnalyzer) Analyze(ctx context.Context, report entity.HealthReport) (string, error) {
	rid := uuid.NewString()
	start := time.Now()
	log := common.LoggerFromContext(ctx, a.log).With("req_id", rid, "report_id", report.ID)

	if a.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.Timeout)
		defer cancel()
	}

	log.Info("analysis.start", "model", a.cfg.Model, "parameters", len(report.Parameters))

	text, err := a.breaker.Execute(func() (string, error) {
		return a.complete(ctx, BuildUserPrompt(report))
	})
	if err != nil {
		log.Error("analysis.request_failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return "", fmt.Errorf("analysis request: %w", err)
	}

	raw, ok := extractJSONObject(text)
	if !ok {
		log.Error("analysis.no_json", "reply_len", len(text))
		return "", fmt.Errorf("%w: no JSON object in reply", ErrInvalidResponse)
	}
	assessment, err := decodeAssessment(a.schema, raw)
	if err != nil {
		log.Error("analysis.invalid", "error", err, "content", string(raw))
		return "", err
	}

	log.Info("analysis.ok",
		"urgency", assessment.Urgency,
		"concerns", len(assessment.Concerns),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return Render(assessment), nil
}

// complete sends one user turn and returns the concatenated text blocks of the reply.
func (a *ClaudeAnalyzer) complete(ctx context.Context, prompt string) (string, error) {
	msg, err := a.client.Messages.New(ctx, sdk.MessageNewParams{
		Model:     sdk.Model(a.cfg.Model),
		MaxTokens: a.cfg.MaxTokens,
		System:    []sdk.TextBlockParam{{Text: systemPrompt}},
		Messages: []sdk.MessageParam{
			sdk.NewUserMessage(sdk.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: empty reply (stop_reason=%s)", ErrInvalidResponse, msg.StopReason)
	}
	return b.String(), nil
}
