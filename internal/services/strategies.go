package services

import (
  "context"
  "fmt"
  "strings"
  "time"

  "github.com/edulens/edulens-backend/internal/types"
)

// TranscriptRequest carries everything a strategy may need. Title and course
// fields are already sanitized.
type TranscriptRequest struct {
  JobID      string
  SafeTitle  string
  SafeCourse string
  FileName   string
  FileData   []byte
  MimeType   string
}

type TranscriptResult struct {
  Text   string
  Source string
}

// TranscriptStrategy is one fallback tier in the ordered transcription
// sequence. A returned error demotes the pipeline to the next strategy;
// there is no retry at this level.
type TranscriptStrategy interface {
  Name() string
  Attempt(ctx context.Context, req *TranscriptRequest) (*TranscriptResult, error)
}

// ---- Optional tier 0: GCP Speech-to-Text ----

type gcpSpeechStrategy struct {
  speech  SpeechProviderService
  timeout time.Duration
}

func (s *gcpSpeechStrategy) Name() string { return "cloud speech transcription" }

func (s *gcpSpeechStrategy) Attempt(ctx context.Context, req *TranscriptRequest) (*TranscriptResult, error) {
  // The speech API only accepts bare audio; video containers demote to the
  // multimodal tier.
  if !strings.HasPrefix(strings.ToLower(req.MimeType), "audio/") {
    return nil, fmt.Errorf("speech provider does not accept %q", req.MimeType)
  }
  ctx, cancel := context.WithTimeout(ctx, s.timeout)
  defer cancel()

  text, err := s.speech.TranscribeAudioBytes(ctx, req.FileData, req.MimeType)
  if err != nil {
    return nil, err
  }
  return &TranscriptResult{Text: text, Source: types.TranscriptSourceGCPSpeech}, nil
}

// ---- Tier 1: direct multimodal transcription ----

type multimodalStrategy struct {
  ai      OpenAIClient
  prompts *PromptBuilder
  timeout time.Duration
}

func (s *multimodalStrategy) Name() string { return "direct multimodal transcription" }

func (s *multimodalStrategy) Attempt(ctx context.Context, req *TranscriptRequest) (*TranscriptResult, error) {
  ctx, cancel := context.WithTimeout(ctx, s.timeout)
  defer cancel()

  instruction := s.prompts.MultimodalInstruction(req.SafeTitle, req.SafeCourse)
  text, err := s.ai.TranscribeFile(ctx, instruction, req.FileName, req.FileData, req.MimeType)
  if err != nil {
    return nil, err
  }
  text = strings.TrimSpace(text)
  if text == "" {
    return nil, fmt.Errorf("multimodal transcription returned empty text")
  }
  return &TranscriptResult{Text: text, Source: types.TranscriptSourceMultimodal}, nil
}

// ---- Tier 2: context-only generative fallback ----

type contextFallbackStrategy struct {
  ai      OpenAIClient
  prompts *PromptBuilder
  timeout time.Duration
}

func (s *contextFallbackStrategy) Name() string { return "context-generated fallback transcript" }

func (s *contextFallbackStrategy) Attempt(ctx context.Context, req *TranscriptRequest) (*TranscriptResult, error) {
  ctx, cancel := context.WithTimeout(ctx, s.timeout)
  defer cancel()

  system, user := s.prompts.ContextFallbackPrompts(req.SafeTitle, req.SafeCourse)
  text, err := s.ai.GenerateText(ctx, system, user)
  if err != nil {
    return nil, err
  }
  text = strings.TrimSpace(text)
  if text == "" {
    return nil, fmt.Errorf("context fallback returned empty text")
  }
  return &TranscriptResult{Text: text, Source: types.TranscriptSourceContextFallback}, nil
}

// ---- Tier 3: canned default ----

// cannedStrategy closes the fallback chain. It performs no I/O and never
// fails, so the pipeline always ends with some transcript.
type cannedStrategy struct {
  prompts *PromptBuilder
}

func (s *cannedStrategy) Name() string { return "default transcript template" }

func (s *cannedStrategy) Attempt(ctx context.Context, req *TranscriptRequest) (*TranscriptResult, error) {
  return &TranscriptResult{
    Text:   s.prompts.CannedTranscript(req.SafeTitle, req.SafeCourse),
    Source: types.TranscriptSourceCannedDefault,
  }, nil
}
