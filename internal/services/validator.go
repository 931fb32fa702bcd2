package services

import (
  "errors"
  "fmt"
  "strings"
)

// Stable client-facing rejection reasons. Tests and API consumers key off
// these strings; change them deliberately.
var (
  ErrUnsupportedFileType = errors.New("unsupported file type: only the configured video and audio formats are accepted")
  ErrFileTooLarge        = errors.New("file exceeds the maximum allowed upload size")
  ErrFileEmpty           = errors.New("file is empty")
)

type ValidatorConfig struct {
  AllowedMimeTypes []string
  MaxUploadBytes   int64
}

func DefaultValidatorConfig() ValidatorConfig {
  return ValidatorConfig{
    AllowedMimeTypes: []string{
      "video/mp4",
      "video/mpeg",
      "video/quicktime",
      "video/webm",
      "video/x-msvideo",
      "audio/mpeg",
      "audio/mp4",
      "audio/wav",
      "audio/webm",
    },
    MaxUploadBytes: 100 << 20,
  }
}

// InputValidator gates uploads before any job record or external call
// exists. Pure function of its inputs and configuration: rules run in order,
// first failure wins.
type InputValidator struct {
  allowed map[string]bool
  maxSize int64
}

func NewInputValidator(cfg ValidatorConfig) *InputValidator {
  allowed := make(map[string]bool, len(cfg.AllowedMimeTypes))
  for _, mt := range cfg.AllowedMimeTypes {
    mt = strings.TrimSpace(strings.ToLower(mt))
    if mt != "" {
      allowed[mt] = true
    }
  }
  return &InputValidator{allowed: allowed, maxSize: cfg.MaxUploadBytes}
}

func (v *InputValidator) Validate(mimeType string, sizeBytes int64) error {
  normalized := strings.ToLower(strings.TrimSpace(mimeType))
  // Strip any content-type parameters (e.g. "video/mp4; codecs=...").
  if idx := strings.Index(normalized, ";"); idx >= 0 {
    normalized = strings.TrimSpace(normalized[:idx])
  }
  if !v.allowed[normalized] {
    return fmt.Errorf("%w (got %q)", ErrUnsupportedFileType, mimeType)
  }
  if sizeBytes > v.maxSize {
    return fmt.Errorf("%w (%d bytes, limit %d)", ErrFileTooLarge, sizeBytes, v.maxSize)
  }
  if sizeBytes == 0 {
    return ErrFileEmpty
  }
  return nil
}
