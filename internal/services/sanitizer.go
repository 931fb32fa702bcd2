package services

import (
  "regexp"
  "strings"

  "github.com/edulens/edulens-backend/internal/logger"
)

type injectionRule struct {
  Label string
  Re    *regexp.Regexp
}

// Signatures of prompt-manipulation attempts. Three families: instruction
// override, role redefinition, markdown/code-fence abuse. Matched input is
// replaced wholesale, never partially cleaned.
var defaultInjectionRules = []injectionRule{
  {Label: "ignore instructions", Re: regexp.MustCompile(`(?i)ignore\s+(all\s+|any\s+)?(previous|prior|above|earlier)\s+instructions?`)},
  {Label: "disregard instructions", Re: regexp.MustCompile(`(?i)disregard\s+(all\s+|any\s+)?(previous|prior|above|earlier)?\s*(instructions?|rules?|prompts?)`)},
  {Label: "forget instructions", Re: regexp.MustCompile(`(?i)forget\s+(everything|all)\s+(before|above|previous)`)},
  {Label: "override instructions", Re: regexp.MustCompile(`(?i)(new|updated|real)\s+instructions?\s*:`)},
  {Label: "reveal secrets", Re: regexp.MustCompile(`(?i)(reveal|print|show|leak)\s+(your\s+)?(system\s+prompt|secrets?|credentials?|api\s*keys?)`)},
  {Label: "role redefinition", Re: regexp.MustCompile(`(?i)you\s+are\s+(now|no\s+longer)\s`)},
  {Label: "act as", Re: regexp.MustCompile(`(?i)\b(act|behave|respond)\s+as\s+(a\s+|an\s+|the\s+)?(system|assistant|admin|root|developer)`)},
  {Label: "pretend", Re: regexp.MustCompile(`(?i)pretend\s+(to\s+be|you\s+are)`)},
  {Label: "system role marker", Re: regexp.MustCompile(`(?i)\b(system|assistant)\s*:\s`)},
  {Label: "code fence", Re: regexp.MustCompile("```")},
  {Label: "chat template token", Re: regexp.MustCompile(`(?i)<\|[a-z_]+\|>`)},
}

// Characters stripped during normalization. Brackets, braces, backslashes
// and quotes are the usual carriers of template or markup escapes.
var strippedCharsRE = regexp.MustCompile("[\\[\\]{}()<>\\\\\"'`]")

// Markdown structuring characters that would let user text restructure a
// prompt table or heading.
var markdownCharsRE = regexp.MustCompile(`[|#*_~]`)

var whitespaceRE = regexp.MustCompile(`\s+`)

const (
  sanitizeEllipsis = "..."
  // Substituted when a signature only becomes visible after normalization.
  safePlaceholder = "untitled content"
)

type SanitizerConfig struct {
  // ExtraPatterns are additional signature regexes appended to the built-in
  // rule set, typically sourced from SANITIZER_EXTRA_PATTERNS.
  ExtraPatterns []string
}

// MetadataSanitizer neutralizes adversarial free-text fields before they are
// interpolated into any model prompt. Sanitization always happens before
// templating, never after.
type MetadataSanitizer struct {
  log   *logger.Logger
  rules []injectionRule
}

func NewMetadataSanitizer(baseLog *logger.Logger, cfg SanitizerConfig) *MetadataSanitizer {
  rules := make([]injectionRule, 0, len(defaultInjectionRules)+len(cfg.ExtraPatterns))
  rules = append(rules, defaultInjectionRules...)
  for _, pattern := range cfg.ExtraPatterns {
    re, err := regexp.Compile(pattern)
    if err != nil {
      if baseLog != nil {
        baseLog.Warn("Skipping invalid sanitizer pattern", "pattern", pattern, "error", err)
      }
      continue
    }
    rules = append(rules, injectionRule{Label: "extra: " + pattern, Re: re})
  }
  var log *logger.Logger
  if baseLog != nil {
    log = baseLog.With("service", "MetadataSanitizer")
  }
  return &MetadataSanitizer{log: log, rules: rules}
}

// Detect returns the label of the first matching injection signature, or ""
// when the text is clean.
func (s *MetadataSanitizer) Detect(text string) string {
  for _, r := range s.rules {
    if r.Re.MatchString(text) {
      return r.Label
    }
  }
  return ""
}

// Sanitize returns text safe for prompt interpolation. Detected-malicious
// input is replaced with fallback outright; clean input is normalized,
// re-checked, and truncated to maxLength (plus the ellipsis marker).
func (s *MetadataSanitizer) Sanitize(text, fallback string, maxLength int) string {
  if strings.TrimSpace(text) == "" {
    return fallback
  }

  if label := s.Detect(text); label != "" {
    if s.log != nil {
      s.log.Warn("Rejected metadata field", "signature", label)
    }
    return fallback
  }

  cleaned := strippedCharsRE.ReplaceAllString(text, "")
  cleaned = markdownCharsRE.ReplaceAllString(cleaned, "")
  cleaned = whitespaceRE.ReplaceAllString(cleaned, " ")
  cleaned = strings.TrimSpace(cleaned)
  if cleaned == "" {
    return fallback
  }

  // Defense in depth: stripping can surface a signature that the raw text
  // obscured (e.g. "ig[nore] previous instructions").
  if label := s.Detect(cleaned); label != "" {
    if s.log != nil {
      s.log.Warn("Rejected metadata field after normalization", "signature", label)
    }
    return safePlaceholder
  }

  if maxLength > 0 {
    runes := []rune(cleaned)
    if len(runes) > maxLength {
      cleaned = string(runes[:maxLength]) + sanitizeEllipsis
    }
  }
  return cleaned
}
