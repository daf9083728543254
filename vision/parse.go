package vision

import (
	"encoding/json"
	"strings"

	"github.com/screenwise/screenwise/types"
)

// Wire shapes for model answers. Bounding boxes arrive as 4-element
// [ymin, xmin, ymax, xmax] arrays per the backend's detection convention.

type wireOption struct {
	Text        string    `json:"text"`
	IsCorrect   bool      `json:"is_correct"`
	Confidence  float64   `json:"confidence"`
	BoundingBox []float64 `json:"bounding_box"`
}

type wireQuestion struct {
	Type          string       `json:"type"`
	QuestionText  string       `json:"question_text"`
	Options       []wireOption `json:"options"`
	Reasoning     string       `json:"reasoning"`
	BoundingBox   []float64    `json:"bounding_box"`
	NextButtonBox []float64    `json:"next_button_box"`
}

type wireAnalysis struct {
	HasQuestion bool           `json:"has_question"`
	Questions   []wireQuestion `json:"questions"`
}

type wireVerdict struct {
	IsNew       bool   `json:"is_new"`
	CurrentText string `json:"current_text"`
	Reason      string `json:"reason"`
}

type wireSelected struct {
	Selected bool `json:"selected"`
}

// stripFences removes a markdown code fence if the model wrapped its JSON
// in one despite the response mime type.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// parseAnalysis decodes the analyzer's completion into the shared result
// type. A completion that is not valid JSON is a malformed answer, which
// the analyzer treats as retryable.
func parseAnalysis(completion string) (*types.AnalysisResult, error) {
	var wire wireAnalysis
	if err := json.Unmarshal([]byte(stripFences(completion)), &wire); err != nil {
		return nil, types.NewError(types.ErrMalformedAnswer, "analysis response is not valid JSON").
			WithRetryable(true).WithCause(err)
	}

	result := &types.AnalysisResult{
		HasQuestion: wire.HasQuestion,
		Questions:   make([]types.QuestionRecord, 0, len(wire.Questions)),
	}
	for _, q := range wire.Questions {
		record := types.QuestionRecord{
			Type:         questionType(q.Type),
			QuestionText: q.QuestionText,
			Reasoning:    q.Reasoning,
			BoundingBox:  toBox(q.BoundingBox),
		}
		if box := toBox(q.NextButtonBox); !box.IsZero() {
			record.NextButtonBox = &box
		}
		for _, opt := range q.Options {
			rec := types.OptionRecord{
				Text:       opt.Text,
				IsCorrect:  opt.IsCorrect,
				Confidence: clamp01(opt.Confidence),
			}
			if box := toBox(opt.BoundingBox); !box.IsZero() {
				rec.Box = &box
			}
			record.Options = append(record.Options, rec)
		}
		result.Questions = append(result.Questions, record)
	}

	if len(result.Questions) == 0 {
		result.HasQuestion = false
	}
	return result, nil
}

// parseVerdict decodes the change oracle's completion.
func parseVerdict(completion string) (*types.ChangeVerdict, error) {
	var wire wireVerdict
	if err := json.Unmarshal([]byte(stripFences(completion)), &wire); err != nil {
		return nil, types.NewError(types.ErrMalformedAnswer, "oracle response is not valid JSON").WithCause(err)
	}
	return &types.ChangeVerdict{
		IsNew:       wire.IsNew,
		CurrentText: wire.CurrentText,
		Reason:      wire.Reason,
	}, nil
}

// parseSelected decodes the verifier's completion.
func parseSelected(completion string) (bool, error) {
	var wire wireSelected
	if err := json.Unmarshal([]byte(stripFences(completion)), &wire); err != nil {
		return false, types.NewError(types.ErrMalformedAnswer, "verifier response is not valid JSON").WithCause(err)
	}
	return wire.Selected, nil
}

func questionType(s string) types.QuestionType {
	switch types.QuestionType(s) {
	case types.QuestionSingleChoice, types.QuestionMatching, types.QuestionGrouping,
		types.QuestionFillInBlank, types.QuestionMultiSelect:
		return types.QuestionType(s)
	default:
		return types.QuestionSingleChoice
	}
}

func toBox(coords []float64) types.BoundingBox {
	if len(coords) != 4 {
		return types.BoundingBox{}
	}
	return types.BoundingBox{
		YMin: clamp01(coords[0]),
		XMin: clamp01(coords[1]),
		YMax: clamp01(coords[2]),
		XMax: clamp01(coords[3]),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
