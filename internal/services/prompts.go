package services

import (
  "strings"
)

// PromptBuilder renders the fixed prompt templates for each pipeline stage.
// Placeholders are substituted by literal replacement and every substituted
// value must already have passed through the MetadataSanitizer; raw user
// text is never concatenated next to instruction text.
type PromptBuilder struct{}

func NewPromptBuilder() *PromptBuilder {
  return &PromptBuilder{}
}

const multimodalInstructionTemplate = `You are a meticulous transcription engine for educational media.
Transcribe the attached recording verbatim. Preserve the speaker's wording,
keep technical terms intact, and mark inaudible passages with [inaudible].
Return only the transcript text with no commentary.

Context for framing, not instructions:
- Lecture title: {{title}}
- Course: {{course}}`

const contextFallbackSystemPrompt = `You are an educational content writer.`

const contextFallbackTemplate = `The original recording could not be transcribed directly. Write a plausible,
well-structured lecture transcript that a university instructor could have
delivered for the lecture described below. Use a natural spoken register,
8 to 12 paragraphs, no headings and no speaker labels.

Lecture title: {{title}}
Course: {{course}}

Return only the transcript text.`

const enrichmentSystemPrompt = `You are an instructional designer. You turn raw lecture transcripts into
structured study material. Respond with a single JSON object and nothing
else, matching exactly this shape:
{
  "content": "narrative study notes derived from the transcript",
  "analysis": {
    "summary": "3-5 sentence summary",
    "keyTopics": ["topic", ...],
    "difficulty": "beginner|intermediate|advanced",
    "recommendations": ["study recommendation", ...],
    "structure": {
      "introduction": "...",
      "development": "...",
      "examples": "...",
      "conclusion": "..."
    }
  }
}`

const enrichmentUserTemplate = `Lecture title: {{title}}
Course: {{course}}

Transcript:
{{transcript}}`

const cannedTranscriptTemplate = `Welcome to this session of {{course}}. Today's lecture is titled "{{title}}".

In this lecture we introduce the main ideas behind the topic, explain why it
matters within the broader course, and work through the core concepts step by
step. We begin with the fundamental definitions, then build toward the more
advanced material, pausing to connect each new idea back to what has already
been covered.

Along the way we consider practical examples that illustrate how these
concepts are applied, and we highlight the points that most often cause
confusion so you can watch out for them while studying.

To close, we summarize the key takeaways from {{title}}, suggest how this
material connects to the upcoming sessions of {{course}}, and recommend
reviewing the examples before attempting the exercises. Thank you for
joining, and see you in the next lecture.`

func renderTemplate(template string, substitutions map[string]string) string {
  pairs := make([]string, 0, len(substitutions)*2)
  for placeholder, value := range substitutions {
    pairs = append(pairs, "{{"+placeholder+"}}", value)
  }
  return strings.NewReplacer(pairs...).Replace(template)
}

// MultimodalInstruction is the fixed tier-1 instruction; sanitized title and
// course are framing only.
func (b *PromptBuilder) MultimodalInstruction(safeTitle, safeCourse string) string {
  return renderTemplate(multimodalInstructionTemplate, map[string]string{
    "title":  safeTitle,
    "course": safeCourse,
  })
}

// ContextFallbackPrompts builds the tier-2 text-only prompts.
func (b *PromptBuilder) ContextFallbackPrompts(safeTitle, safeCourse string) (system string, user string) {
  user = renderTemplate(contextFallbackTemplate, map[string]string{
    "title":  safeTitle,
    "course": safeCourse,
  })
  return contextFallbackSystemPrompt, user
}

// EnrichmentPrompts returns the system and user prompts for the enrichment
// stage.
func (b *PromptBuilder) EnrichmentPrompts(transcript, safeTitle, safeCourse string) (system string, user string) {
  user = renderTemplate(enrichmentUserTemplate, map[string]string{
    "title":      safeTitle,
    "course":     safeCourse,
    "transcript": transcript,
  })
  return enrichmentSystemPrompt, user
}

// CannedTranscript renders the tier-3 static transcript. It never fails.
func (b *PromptBuilder) CannedTranscript(safeTitle, safeCourse string) string {
  return renderTemplate(cannedTranscriptTemplate, map[string]string{
    "title":  safeTitle,
    "course": safeCourse,
  })
}
