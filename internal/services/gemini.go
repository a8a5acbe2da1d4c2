package services

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/genai"

	"alfredoptarigan/idoneidad-checker/internal/models"
)

// ModelClient sends one prompt to the hosted model and returns its raw text.
type ModelClient interface {
	Generate(ctx context.Context, prompt *Prompt) (string, error)
	GenerateWithRetry(ctx context.Context, prompt *Prompt, maxAttempts int) (string, error)
}

type GeminiOptions struct {
	APIKey          string
	Model           string
	Temperature     float32
	MaxOutputTokens int32
	Timeout         time.Duration
}

type geminiService struct {
	client    *genai.Client
	modelName string
	options   GeminiOptions
}

func NewGeminiService(ctx context.Context, opts GeminiOptions) (ModelClient, error) {
	if strings.TrimSpace(opts.APIKey) == "" {
		return nil, errors.New("gemini API key is required")
	}
	if opts.Model == "" {
		opts.Model = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create gemini client")
	}

	return &geminiService{
		client:    client,
		modelName: opts.Model,
		options:   opts,
	}, nil
}

// Generate implements ModelClient.
func (g *geminiService) Generate(ctx context.Context, prompt *Prompt) (string, error) {
	if g.options.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.options.Timeout)
		defer cancel()
	}

	contents, config := BuildGeminiRequest(prompt, g.options)

	logger := log.WithFields(log.Fields{
		"model":  g.modelName,
		"mode":   prompt.Mode,
		"chars":  len(prompt.Text()),
		"images": prompt.ImageCount(),
	})
	logger.Info("Sending prompt to Gemini")

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, contents, config)
	if err != nil {
		logger.WithError(err).Error("Gemini API error")
		return "", errors.Wrap(err, "failed to generate content")
	}

	if resp == nil {
		return "", errors.Wrap(ErrEmptyResponse, "nil response")
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", errors.Wrapf(ErrEmptyResponse, "blocked: %s", resp.PromptFeedback.BlockReason)
		}
		return "", ErrEmptyResponse
	}

	logger.WithField("response_chars", len(text)).Info("Gemini response received")
	return text, nil
}

// GenerateWithRetry implements ModelClient.
func (g *geminiService) GenerateWithRetry(ctx context.Context, prompt *Prompt, maxAttempts int) (string, error) {
	return generateWithRetry(ctx, g, prompt, maxAttempts)
}

func generateWithRetry(ctx context.Context, client ModelClient, prompt *Prompt, maxAttempts int) (string, error) {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		result, err := client.Generate(ctx, prompt)
		if err == nil {
			return result, nil
		}
		lastErr = err

		select {
		case <-ctx.Done():
			return "", errors.Wrap(ctx.Err(), "context cancelled")
		default:
		}

		if attempt < maxAttempts {
			log.WithError(err).WithField("attempt", attempt).Warn("Model call failed, retrying")
		}
	}

	if maxAttempts == 1 {
		return "", lastErr
	}
	return "", errors.Wrapf(lastErr, "failed after %d attempts", maxAttempts)
}

// BuildGeminiRequest converts a prompt into genai contents and generation
// config. Structured prompts request JSON constrained by ComplianceSchema.
func BuildGeminiRequest(prompt *Prompt, opts GeminiOptions) ([]*genai.Content, *genai.GenerateContentConfig) {
	parts := make([]*genai.Part, 0, len(prompt.Segments))
	for _, s := range prompt.Segments {
		switch s.Kind {
		case SegmentImage:
			parts = append(parts, genai.NewPartFromBytes(s.Data, s.MIMEType))
		default:
			parts = append(parts, genai.NewPartFromText(s.Text))
		}
	}

	temperature := opts.Temperature
	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: opts.MaxOutputTokens,
	}

	if prompt.System != "" {
		config.SystemInstruction = genai.NewContentFromText(prompt.System, genai.RoleUser)
	}

	if prompt.Mode == models.ModeStructured {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = ComplianceSchema()
	}

	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}, config
}

// ComplianceSchema describes models.ComplianceResult for structured output.
func ComplianceSchema() *genai.Schema {
	str := func(desc string) *genai.Schema {
		return &genai.Schema{Type: genai.TypeString, Description: desc}
	}

	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"nombre":          str("Nombre del candidato"),
			"cedula":          str("Número de identificación"),
			"concepto_final":  {Type: genai.TypeString, Enum: []string{"CUMPLE", "NO CUMPLE"}},
			"idoneidad_texto": str("CONCLUSIÓN: [CUMPLE/NO CUMPLE]. Justificación detallada."),
			"formacion_texto": str("Título profesional, fecha de grado y tarjeta profesional si aplica"),
			"experiencia_lista": {
				Type: genai.TypeArray,
				Items: &genai.Schema{
					Type: genai.TypeObject,
					Properties: map[string]*genai.Schema{
						"empresa":      str("Nombre de la empresa"),
						"fecha_inicio": str("DD/MM/AAAA"),
						"fecha_fin":    str("DD/MM/AAAA"),
						"meses":        {Type: genai.TypeInteger},
						"dias":         {Type: genai.TypeInteger},
						"validada":     {Type: genai.TypeString, Enum: []string{"SI", "NO"}},
					},
					Required: []string{"empresa", "fecha_inicio", "fecha_fin", "meses", "dias", "validada"},
				},
			},
			"analisis_detallado_markdown": str("Tabla resumen en Markdown"),
		},
		Required: []string{"nombre", "cedula", "concepto_final", "idoneidad_texto", "formacion_texto", "experiencia_lista", "analisis_detallado_markdown"},
	}
}
