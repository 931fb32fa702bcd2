package services

import (
	"strings"
	"testing"
)

func TestPromptBuilderSubstitutesPlaceholders(t *testing.T) {
	b := NewPromptBuilder()

	system, user := b.ContextFallbackPrompts("Intro", "CS101")
	if system == "" {
		t.Fatalf("ContextFallbackPrompts: empty system prompt")
	}
	if !strings.Contains(user, "Intro") || !strings.Contains(user, "CS101") {
		t.Fatalf("ContextFallbackPrompts: placeholders not substituted: %q", user)
	}
	if strings.Contains(user, "{{") {
		t.Fatalf("ContextFallbackPrompts: unresolved placeholder in %q", user)
	}
}

func TestMultimodalInstructionContainsContext(t *testing.T) {
	b := NewPromptBuilder()
	got := b.MultimodalInstruction("Intro", "CS101")
	if !strings.Contains(got, "Intro") || !strings.Contains(got, "CS101") {
		t.Fatalf("MultimodalInstruction: missing context: %q", got)
	}
	if strings.Contains(got, "{{") {
		t.Fatalf("MultimodalInstruction: unresolved placeholder in %q", got)
	}
}

func TestEnrichmentPromptsEmbedTranscript(t *testing.T) {
	b := NewPromptBuilder()
	system, user := b.EnrichmentPrompts("the transcript body", "Intro", "CS101")
	if !strings.Contains(system, "JSON") {
		t.Fatalf("EnrichmentPrompts: system prompt does not request JSON: %q", system)
	}
	if !strings.Contains(user, "the transcript body") {
		t.Fatalf("EnrichmentPrompts: transcript missing from user prompt")
	}
}

func TestCannedTranscriptInterpolatesAndNeverEmpty(t *testing.T) {
	b := NewPromptBuilder()
	got := b.CannedTranscript("Intro", "CS101")
	if strings.TrimSpace(got) == "" {
		t.Fatalf("CannedTranscript: empty output")
	}
	if !strings.Contains(got, "Intro") || !strings.Contains(got, "CS101") {
		t.Fatalf("CannedTranscript: placeholders not substituted")
	}
	if strings.Contains(got, "{{") {
		t.Fatalf("CannedTranscript: unresolved placeholder")
	}
}
