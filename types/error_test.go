package types

import (
	"errors"
	"testing"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrModelOverloaded, "model overloaded").
		WithCause(root).
		WithRetryable(true).
		WithModel("vision-pro")

	if GetErrorCode(err) != ErrModelOverloaded {
		t.Fatalf("expected code %s, got %s", ErrModelOverloaded, GetErrorCode(err))
	}
	if !IsRetryable(err) {
		t.Fatalf("expected retryable")
	}
	if !errors.Is(err, root) {
		t.Fatalf("expected errors.Is unwrap to root")
	}
	if got := err.Error(); got == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestIsQuotaExhausted(t *testing.T) {
	t.Parallel()

	if IsQuotaExhausted(NewError(ErrModelOverloaded, "overloaded")) {
		t.Fatalf("overloaded must not count as quota exhaustion")
	}
	if !IsQuotaExhausted(NewError(ErrQuotaExceeded, "quota exceeded")) {
		t.Fatalf("expected quota exhaustion")
	}
	if IsQuotaExhausted(errors.New("plain")) {
		t.Fatalf("plain errors carry no code")
	}
}

func TestQuestionRecord_CorrectOption(t *testing.T) {
	t.Parallel()

	q := QuestionRecord{
		Options: []OptionRecord{
			{Text: "3", IsCorrect: false, Confidence: 0.2},
			{Text: "4", IsCorrect: true, Confidence: 0.95},
			{Text: "5", IsCorrect: true, Confidence: 0.4},
		},
	}
	opt := q.CorrectOption()
	if opt == nil || opt.Text != "4" {
		t.Fatalf("expected first correct option, got %+v", opt)
	}

	none := QuestionRecord{Options: []OptionRecord{{Text: "a"}}}
	if none.CorrectOption() != nil {
		t.Fatalf("expected nil when nothing is marked correct")
	}
}

func TestBoundingBox_Center(t *testing.T) {
	t.Parallel()

	b := BoundingBox{YMin: 0.2, XMin: 0.4, YMax: 0.6, XMax: 0.8}
	x, y := b.Center()
	if x != 0.6 || y != 0.4 {
		t.Fatalf("unexpected center (%v, %v)", x, y)
	}
	if b.IsZero() {
		t.Fatalf("box is not zero")
	}
	if !(BoundingBox{}).IsZero() {
		t.Fatalf("zero box must report IsZero")
	}
}
