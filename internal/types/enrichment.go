package types

// EnrichedAnalysis is the structured pedagogical artifact derived from a
// transcript. All fields are always populated; when the model output cannot
// be parsed the generator fills defaults instead of leaving holes.
type EnrichedAnalysis struct {
	Summary         string          `json:"summary"`
	KeyTopics       []string        `json:"keyTopics"`
	Difficulty      string          `json:"difficulty"`
	Recommendations []string        `json:"recommendations"`
	Structure       LessonStructure `json:"structure"`
}

// LessonStructure is the four-part pedagogical breakdown of a lecture.
type LessonStructure struct {
	Introduction string `json:"introduction"`
	Development  string `json:"development"`
	Examples     string `json:"examples"`
	Conclusion   string `json:"conclusion"`
}

const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)
