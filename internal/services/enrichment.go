package services

import (
  "context"
  "encoding/json"
  "fmt"
  "strings"

  "github.com/edulens/edulens-backend/internal/logger"
  "github.com/edulens/edulens-backend/internal/types"
)

// Enrichment provenance modes, recorded for logging and tests.
const (
  EnrichmentModeModel         = "model"
  EnrichmentModeParseFallback = "parse_fallback"
  EnrichmentModeTemplate      = "template"
)

type EnrichmentResult struct {
  Content  string
  Analysis types.EnrichedAnalysis
  Mode     string
}

// EnrichmentService turns a transcript into structured study material. It
// mirrors the orchestrator's degrade-never-fail policy: a malformed model
// response yields a best-effort artifact and a failed model call yields a
// fully templated one, so enrichment never fails the job.
type EnrichmentService interface {
  Enrich(ctx context.Context, transcript, safeTitle, safeCourse string) EnrichmentResult
}

type enrichmentService struct {
  log     *logger.Logger
  ai      OpenAIClient
  prompts *PromptBuilder
}

func NewEnrichmentService(baseLog *logger.Logger, ai OpenAIClient, prompts *PromptBuilder) EnrichmentService {
  return &enrichmentService{
    log:     baseLog.With("service", "EnrichmentService"),
    ai:      ai,
    prompts: prompts,
  }
}

// enrichmentWire is the JSON shape requested from the model.
type enrichmentWire struct {
  Content  string                 `json:"content"`
  Analysis types.EnrichedAnalysis `json:"analysis"`
}

func (s *enrichmentService) Enrich(ctx context.Context, transcript, safeTitle, safeCourse string) EnrichmentResult {
  system, user := s.prompts.EnrichmentPrompts(transcript, safeTitle, safeCourse)

  raw, err := s.ai.GenerateText(ctx, system, user)
  if err != nil {
    s.log.Warn("Enrichment model call failed, using templated enrichment", "error", err.Error())
    return s.templated(transcript, safeTitle, safeCourse)
  }

  var wire enrichmentWire
  if parseErr := json.Unmarshal([]byte(stripCodeFences(raw)), &wire); parseErr != nil {
    s.log.Warn("Enrichment response was not valid JSON, wrapping raw text", "error", parseErr.Error())
    return EnrichmentResult{
      Content:  raw,
      Analysis: minimalAnalysis(transcript, safeTitle),
      Mode:     EnrichmentModeParseFallback,
    }
  }

  if strings.TrimSpace(wire.Content) == "" {
    wire.Content = raw
  }
  fillAnalysisDefaults(&wire.Analysis, transcript, safeTitle)

  return EnrichmentResult{
    Content:  wire.Content,
    Analysis: wire.Analysis,
    Mode:     EnrichmentModeModel,
  }
}

func (s *enrichmentService) templated(transcript, safeTitle, safeCourse string) EnrichmentResult {
  content := fmt.Sprintf(
    "Study notes for %q (%s)\n\n%s",
    safeTitle, safeCourse, excerpt(transcript, 1500),
  )
  return EnrichmentResult{
    Content:  content,
    Analysis: minimalAnalysis(transcript, safeTitle),
    Mode:     EnrichmentModeTemplate,
  }
}

func minimalAnalysis(transcript, safeTitle string) types.EnrichedAnalysis {
  analysis := types.EnrichedAnalysis{
    Summary:   excerpt(transcript, 300),
    KeyTopics: []string{safeTitle},
  }
  fillAnalysisDefaults(&analysis, transcript, safeTitle)
  return analysis
}

// fillAnalysisDefaults guarantees every analysis field is populated, whatever
// the model returned.
func fillAnalysisDefaults(a *types.EnrichedAnalysis, transcript, safeTitle string) {
  if strings.TrimSpace(a.Summary) == "" {
    a.Summary = excerpt(transcript, 300)
  }
  if len(a.KeyTopics) == 0 {
    a.KeyTopics = []string{safeTitle}
  }
  switch a.Difficulty {
  case types.DifficultyBeginner, types.DifficultyIntermediate, types.DifficultyAdvanced:
  default:
    a.Difficulty = types.DifficultyIntermediate
  }
  if len(a.Recommendations) == 0 {
    a.Recommendations = []string{
      "Review the transcript and highlight the main concepts",
      "Summarize each section in your own words",
      "Revisit the material again within a week to reinforce it",
    }
  }
  if strings.TrimSpace(a.Structure.Introduction) == "" {
    a.Structure.Introduction = "Overview of " + safeTitle
  }
  if strings.TrimSpace(a.Structure.Development) == "" {
    a.Structure.Development = "Step-by-step development of the core concepts"
  }
  if strings.TrimSpace(a.Structure.Examples) == "" {
    a.Structure.Examples = "Worked examples applying the concepts"
  }
  if strings.TrimSpace(a.Structure.Conclusion) == "" {
    a.Structure.Conclusion = "Key takeaways and suggested next steps"
  }
}

// stripCodeFences removes a surrounding markdown fence so a fenced JSON
// payload still parses strictly.
func stripCodeFences(s string) string {
  trimmed := strings.TrimSpace(s)
  if !strings.HasPrefix(trimmed, "```") {
    return trimmed
  }
  trimmed = strings.TrimPrefix(trimmed, "```json")
  trimmed = strings.TrimPrefix(trimmed, "```")
  trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
  return strings.TrimSpace(trimmed)
}

func excerpt(s string, maxRunes int) string {
  s = strings.TrimSpace(s)
  runes := []rune(s)
  if len(runes) <= maxRunes {
    return s
  }
  return strings.TrimSpace(string(runes[:maxRunes])) + "..."
}
