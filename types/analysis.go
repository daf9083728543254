package types

// QuestionType classifies a detected on-screen question.
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMatching     QuestionType = "matching"
	QuestionGrouping     QuestionType = "grouping"
	QuestionFillInBlank  QuestionType = "fill_in_blank"
	QuestionMultiSelect  QuestionType = "multi_select"
)

// BoundingBox is a normalized rectangle with coordinates in [0,1],
// following the ymin/xmin/ymax/xmax convention of the vision backend.
type BoundingBox struct {
	YMin float64 `json:"ymin"`
	XMin float64 `json:"xmin"`
	YMax float64 `json:"ymax"`
	XMax float64 `json:"xmax"`
}

// Center returns the normalized center point of the box.
func (b BoundingBox) Center() (x, y float64) {
	return (b.XMin + b.XMax) / 2, (b.YMin + b.YMax) / 2
}

// IsZero reports whether the box is unset.
func (b BoundingBox) IsZero() bool {
	return b.YMin == 0 && b.XMin == 0 && b.YMax == 0 && b.XMax == 0
}

// OptionRecord is one answer option of a detected question.
// Confidence is per-option; a question may carry zero, one, or several
// options marked correct (multi-select).
type OptionRecord struct {
	Text       string       `json:"text"`
	IsCorrect  bool         `json:"is_correct"`
	Confidence float64      `json:"confidence"` // in [0,1]
	Box        *BoundingBox `json:"bounding_box,omitempty"`
}

// QuestionRecord is one question detected in a frame.
type QuestionRecord struct {
	Type          QuestionType   `json:"type"`
	QuestionText  string         `json:"question_text"`
	Options       []OptionRecord `json:"options"`
	Reasoning     string         `json:"reasoning,omitempty"`
	BoundingBox   BoundingBox    `json:"bounding_box"`
	NextButtonBox *BoundingBox   `json:"next_button_box,omitempty"`
}

// CorrectOption returns the first option marked correct, or nil.
func (q *QuestionRecord) CorrectOption() *OptionRecord {
	for i := range q.Options {
		if q.Options[i].IsCorrect {
			return &q.Options[i]
		}
	}
	return nil
}

// AnalysisResult is the outcome of one vision analysis call. It is
// constructed once per call and never mutated afterwards; the controller
// holds at most the latest one.
type AnalysisResult struct {
	HasQuestion bool             `json:"has_question"`
	Questions   []QuestionRecord `json:"questions"`
	Err         *Error           `json:"error,omitempty"`

	// Provenance: which model variant actually answered, after how many tries.
	ModelUsed string `json:"model_used,omitempty"`
	Attempts  int    `json:"attempts,omitempty"`
}

// ChangeVerdict is the change oracle's judgement of two frames.
type ChangeVerdict struct {
	IsNew       bool   `json:"is_new"`
	CurrentText string `json:"current_text,omitempty"`
	Reason      string `json:"reason,omitempty"`
}
