package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github/itish2003/autorag/config"
	"github/itish2003/autorag/logger"
)

// Embedder turns text into a vector. An empty vector with a nil error means
// embedding is unavailable and the caller should skip the item.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// TextGenerator produces free-form text from a prompt.
type TextGenerator interface {
	Available() bool
	Generate(ctx context.Context, prompt string) (string, error)
}

// FileReader turns raw file bytes into plain text using a model.
type FileReader interface {
	Available() bool
	ReadFile(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ErrModelUnavailable is returned by generation calls when no API key is set.
var ErrModelUnavailable = errors.New("generation model is not configured")

// GeminiClient wraps the Gemini API behind a rate limiter and circuit breaker.
// A client built without an API key reports Available() == false and returns
// empty results instead of calling out.
type GeminiClient struct {
	client     *genai.Client
	textModel  string
	embedModel string
	dimension  int
	breaker    *gobreaker.CircuitBreaker
	limiter    *rate.Limiter
}

var (
	_ Embedder      = (*GeminiClient)(nil)
	_ TextGenerator = (*GeminiClient)(nil)
	_ FileReader    = (*GeminiClient)(nil)
)

// NewGeminiClient creates the Gemini client. Without an API key it returns a
// client whose Available reports false.
func NewGeminiClient(ctx context.Context, cfg *config.Config) (*GeminiClient, error) {
	gc := &GeminiClient{
		textModel:  cfg.GeminiTextModel,
		embedModel: cfg.GeminiEmbedModel,
		dimension:  cfg.VectorDimension,
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		logger.Warn("GEMINI_API_KEY not set; embedding, generation and extraction are disabled")
		return gc, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	gc.client = client

	rpm := cfg.GeminiRPM
	if rpm <= 0 {
		rpm = 60
	}
	burst := rpm / 10
	if burst < 1 {
		burst = 1
	}
	gc.limiter = rate.NewLimiter(rate.Limit(float64(rpm)/60.0), burst)
	gc.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiAPI",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
	logger.Info("Gemini client ready", "text_model", gc.textModel, "embed_model", gc.embedModel, "rpm", rpm)
	return gc, nil
}

func (g *GeminiClient) Available() bool {
	return g != nil && g.client != nil
}

// Embed returns the embedding of text, or an empty vector when the client is
// not configured, the text is blank, or the API returned no embedding.
func (g *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if !g.Available() || strings.TrimSpace(text) == "" {
		return nil, nil
	}
	dim := int32(g.dimension)
	out, err := g.call(ctx, "gemini.embed", func(ctx context.Context) (any, error) {
		resp, err := g.client.Models.EmbedContent(ctx, g.embedModel, genai.Text(text), &genai.EmbedContentConfig{
			OutputDimensionality: &dim,
		})
		if err != nil {
			return nil, err
		}
		if resp == nil || len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
			return []float32(nil), nil
		}
		return resp.Embeddings[0].Values, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	return out.([]float32), nil
}

func (g *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !g.Available() {
		return "", ErrModelUnavailable
	}
	out, err := g.call(ctx, "gemini.generate", func(ctx context.Context) (any, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.textModel, genai.Text(prompt), nil)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(resp.Text()), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return out.(string), nil
}

// ReadFile sends the file inline and asks the model for its plain text.
func (g *GeminiClient) ReadFile(ctx context.Context, data []byte, mimeType string) (string, error) {
	if !g.Available() {
		return "", nil
	}
	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	out, err := g.call(ctx, "gemini.extract", func(ctx context.Context) (any, error) {
		contents := []*genai.Content{
			genai.NewContentFromParts([]*genai.Part{
				genai.NewPartFromBytes(data, mimeType),
				genai.NewPartFromText(extractionPrompt),
			}, genai.RoleUser),
		}
		resp, err := g.client.Models.GenerateContent(ctx, g.textModel, contents, nil)
		if err != nil {
			return nil, err
		}
		return strings.TrimSpace(resp.Text()), nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to extract text: %w", err)
	}
	return out.(string), nil
}

// call runs fn under the rate limiter and circuit breaker inside a span.
func (g *GeminiClient) call(ctx context.Context, op string, fn func(context.Context) (any, error)) (any, error) {
	ctx, span := otel.Tracer("autorag/gemini").Start(ctx, op)
	defer span.End()

	if err := g.limiter.Wait(ctx); err != nil {
		span.SetAttributes(attribute.Bool("gemini.rate_limited", true))
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	result, err := g.breaker.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			span.SetAttributes(attribute.Bool("gemini.circuit_breaker_open", true))
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}
