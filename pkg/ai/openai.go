package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"
	"github.com/santhosh-tekuri/jsonschema/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	aiDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "evaluation_duration_seconds",
		Help:      "Duration of AI evaluation requests",
	}, []string{"model"})

	aiFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "gema",
		Subsystem: "ai",
		Name:      "evaluation_failures_total",
		Help:      "Number of AI evaluation failures",
	}, []string{"model"})
)

const evaluationSchemaURL = "mem://evaluation.schema.json"

const evaluationSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["correct", "score", "feedback"],
  "properties": {
    "correct": {"type": "boolean"},
    "score": {"type": "number", "minimum": 0, "maximum": 1},
    "feedback": {"type": "string"}
  }
}`

// OpenAIConfig defines configuration options for the OpenAI evaluator.
type OpenAIConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float32
	Logger      zerolog.Logger
}

// OpenAIEvaluator implements Evaluator against the OpenAI chat completion API.
type OpenAIEvaluator struct {
	client *openai.Client
	cfg    OpenAIConfig
	schema *jsonschema.Schema
	tracer trace.Tracer
	logger zerolog.Logger
}

// NewOpenAIEvaluator builds a new evaluator using the provided configuration.
func NewOpenAIEvaluator(cfg OpenAIConfig) (*OpenAIEvaluator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 256
	}

	schema, err := compileEvaluationSchema()
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger.GetLevel() == zerolog.Disabled {
		logger = zerolog.Nop()
	}

	config := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		config.BaseURL = cfg.BaseURL
	}

	return &OpenAIEvaluator{
		client: openai.NewClientWithConfig(config),
		cfg:    cfg,
		schema: schema,
		tracer: otel.Tracer("github.com/noah-isme/gema-lms-api/pkg/ai/openai"),
		logger: logger.With().Str("component", "openai_evaluator").Logger(),
	}, nil
}

func compileEvaluationSchema() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(evaluationSchemaURL, strings.NewReader(evaluationSchema)); err != nil {
		return nil, fmt.Errorf("load evaluation schema: %w", err)
	}
	schema, err := compiler.Compile(evaluationSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("compile evaluation schema: %w", err)
	}
	return schema, nil
}

// Evaluate sends the answer to OpenAI and parses the JSON verdict.
func (e *OpenAIEvaluator) Evaluate(parent context.Context, input AnswerInput) (EvaluationResult, error) {
	ctx, span := e.tracer.Start(parent, "openai.evaluate", trace.WithAttributes(
		attribute.String("model", e.cfg.Model),
	))
	defer span.End()

	start := time.Now()
	request := openai.ChatCompletionRequest{
		Model:       e.cfg.Model,
		MaxTokens:   e.cfg.MaxTokens,
		Temperature: e.cfg.Temperature,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: evaluatorSystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: buildUserPrompt(input)},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{Type: openai.ChatCompletionResponseFormatTypeJSONObject},
	}

	resp, err := e.client.CreateChatCompletion(ctx, request)
	aiDuration.WithLabelValues(e.cfg.Model).Observe(time.Since(start).Seconds())
	if err != nil {
		return EvaluationResult{}, e.fail(span, fmt.Errorf("openai evaluate: %w", err))
	}
	if len(resp.Choices) == 0 {
		return EvaluationResult{}, e.fail(span, fmt.Errorf("no choices returned from openai"))
	}

	result, err := e.parseEvaluationResponse(strings.TrimSpace(resp.Choices[0].Message.Content))
	if err != nil {
		return EvaluationResult{}, e.fail(span, err)
	}

	result.Raw = map[string]interface{}{
		"usage": resp.Usage,
	}
	span.SetAttributes(attribute.Bool("correct", result.Correct))
	return result, nil
}

func (e *OpenAIEvaluator) fail(span trace.Span, err error) error {
	aiFailures.WithLabelValues(e.cfg.Model).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	e.logger.Warn().Err(err).Msg("answer evaluation failed")
	return err
}

func evaluatorSystemPrompt() string {
	return "You grade short school answers. Respond with a JSON object containing correct (boolean), " +
		"score (0-1) and feedback (one or two sentences addressed to the student)."
}

func buildUserPrompt(input AnswerInput) string {
	builder := strings.Builder{}
	if input.AssignmentTitle != "" {
		builder.WriteString("# Assignment\n")
		builder.WriteString(input.AssignmentTitle)
		builder.WriteString("\n\n")
	}
	builder.WriteString("## Question\n")
	builder.WriteString(input.Question)
	builder.WriteString("\n\n## Expected Answer\n")
	builder.WriteString(input.ExpectedAnswer)
	builder.WriteString("\n\n## Student Answer\n")
	builder.WriteString(input.Answer)
	builder.WriteString("\nReturn JSON.")
	return builder.String()
}

func (e *OpenAIEvaluator) parseEvaluationResponse(content string) (EvaluationResult, error) {
	var document interface{}
	if err := json.Unmarshal([]byte(content), &document); err != nil {
		return EvaluationResult{}, fmt.Errorf("parse evaluation json: %w", err)
	}
	if err := e.schema.Validate(document); err != nil {
		return EvaluationResult{}, fmt.Errorf("evaluation response rejected: %w", err)
	}

	var result EvaluationResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		return EvaluationResult{}, fmt.Errorf("decode evaluation: %w", err)
	}
	return result, nil
}
