package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/jarvis-assistant/jarvis-back/internal/ai"
	"github.com/jarvis-assistant/jarvis-back/internal/cache"
	"github.com/rs/zerolog"
)

const (
	DefaultGeoModel     = "google/gemini-2.5-flash"
	DefaultGeoMaxTokens = 2000

	geoPromptVersion = "geo_v1"

	geoSystemPrompt = `Du bist ein Experte für Geolokalisierung von Bildern, ähnlich wie GeoSpy. Analysiere das Bild und versuche den genauen Aufnahmeort zu bestimmen.

Achte auf:
- Straßenschilder, Wegweiser, Werbetafeln (Sprache, Schrift)
- Architekturstil der Gebäude
- Vegetation und Landschaft
- Fahrzeuge und Nummernschilder
- Kleidung und kulturelle Hinweise
- Sonnenstand/Schatten für Breitengrad
- Marken, Logos, Geschäfte
- Strommasten, Straßenlampen-Design
- Bodenmarkierungen und Verkehrszeichen

Antworte im folgenden JSON-Format:
{
  "location": {
    "country": "Land",
    "region": "Region/Bundesland",
    "city": "Stadt (falls erkennbar)",
    "area": "Genauere Gegend/Stadtteil (falls erkennbar)",
    "coordinates": {
      "lat": null oder Schätzung,
      "lng": null oder Schätzung
    }
  },
  "confidence": "hoch/mittel/niedrig",
  "evidence": [
    "Beweis 1: Beschreibung",
    "Beweis 2: Beschreibung"
  ],
  "analysis": "Ausführliche Erklärung der Analyse",
  "alternativeLocations": [
    {
      "location": "Alternative Möglichkeit",
      "reason": "Warum auch möglich"
    }
  ]
}`

	geoUserPrompt = "Analysiere dieses Bild und bestimme wo auf der Welt es aufgenommen wurde. " +
		"Sei so präzise wie möglich und erkläre deine Schlussfolgerungen."
)

var (
	jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)\\s*```")
	anyFencePattern  = regexp.MustCompile("(?s)```\\s*(.*?)\\s*```")
)

// Completer is the buffered side of the AI gateway.
type Completer interface {
	Available() bool
	Complete(ctx context.Context, request ai.CompletionRequest) (ai.CompletionResult, error)
}

type GeoDependencies struct {
	Client    Completer
	Cache     cache.Cache
	Model     string
	MaxTokens int
	Logger    zerolog.Logger
}

type GeoService struct {
	client    Completer
	cache     cache.Cache
	model     string
	maxTokens int
	logger    zerolog.Logger
}

type GeoResult struct {
	Data     json.RawMessage
	ModelID  string
	CacheHit bool
	Parsed   bool
}

func NewGeoService(deps GeoDependencies) *GeoService {
	if strings.TrimSpace(deps.Model) == "" {
		deps.Model = DefaultGeoModel
	}
	if deps.MaxTokens <= 0 {
		deps.MaxTokens = DefaultGeoMaxTokens
	}
	if deps.Cache == nil {
		deps.Cache = cache.NewMemoryCache(cache.Config{})
	}
	return &GeoService{
		client:    deps.Client,
		cache:     deps.Cache,
		model:     deps.Model,
		maxTokens: deps.MaxTokens,
		logger:    deps.Logger,
	}
}

// Analyze asks the vision model where image was taken. image is a data
// URL or an http(s) URL.
func (s *GeoService) Analyze(ctx context.Context, image string) (GeoResult, error) {
	image = strings.TrimSpace(image)
	if image == "" {
		return GeoResult{}, fmt.Errorf("%w: Image is required", ErrInvalidInput)
	}
	if s.client == nil || !s.client.Available() {
		return GeoResult{}, ai.ErrConfiguration
	}

	signature := cache.Signature(geoPromptVersion, s.model, image)
	if cached, ok, err := s.cache.Get(ctx, signature); err != nil {
		s.logger.Warn().Err(err).Msg("geo cache read failed")
	} else if ok {
		return GeoResult{Data: cached, ModelID: s.model, CacheHit: true, Parsed: true}, nil
	}

	s.logger.Info().Str("model_id", s.model).Msg("starting geo-location analysis")
	result, err := s.client.Complete(ctx, ai.CompletionRequest{
		Model:     s.model,
		System:    geoSystemPrompt,
		User:      geoUserContent(image),
		MaxTokens: s.maxTokens,
	})
	if err != nil {
		return GeoResult{}, fmt.Errorf("geo analysis: %w", err)
	}

	data, parsed := parseGeoAnalysis(result.Text)
	if parsed {
		if err := s.cache.Set(ctx, signature, data); err != nil {
			s.logger.Warn().Err(err).Msg("geo cache write failed")
		}
	} else {
		s.logger.Warn().Msg("geo analysis was not valid JSON, returning text fallback")
	}

	s.logger.Info().
		Str("model_id", result.ModelID).
		Int("total_tokens", result.Usage.TotalTokens).
		Bool("parsed", parsed).
		Msg("geo-analysis completed")

	return GeoResult{Data: data, ModelID: result.ModelID, Parsed: parsed}, nil
}

func geoUserContent(image string) []map[string]any {
	return []map[string]any{
		{"type": "text", "text": geoUserPrompt},
		{"type": "image_url", "image_url": map[string]string{"url": image}},
	}
}

// parseGeoAnalysis extracts JSON from a ```json fence, a bare fence or the
// raw text. When that fails the text is wrapped in a low-confidence
// fallback object.
func parseGeoAnalysis(text string) (json.RawMessage, bool) {
	candidate := text
	if match := jsonFencePattern.FindStringSubmatch(text); match != nil {
		candidate = match[1]
	} else if match := anyFencePattern.FindStringSubmatch(text); match != nil {
		candidate = match[1]
	}

	candidate = strings.TrimSpace(candidate)
	if json.Valid([]byte(candidate)) {
		return json.RawMessage(candidate), true
	}

	fallback, _ := json.Marshal(map[string]any{
		"analysis":   text,
		"location":   map[string]string{"country": "Unbekannt"},
		"confidence": "niedrig",
		"evidence":   []string{},
	})
	return fallback, false
}
