package model

import (
	"errors"
	"testing"
)

func TestQuestionValidate(t *testing.T) {
	tests := []struct {
		name    string
		q       Question
		wantErr bool
	}{
		{"single choice without options", Question{ID: "q", Type: QuestionSingleChoice, Marks: 1, CorrectAnswer: "B"}, false},
		{"single choice answer among options", Question{ID: "q", Type: QuestionSingleChoice, Marks: 1, CorrectAnswer: " b ",
			Options: []Option{{ID: "A"}, {ID: "B"}}}, false},
		{"single choice answer not an option", Question{ID: "q", Type: QuestionSingleChoice, Marks: 1, CorrectAnswer: "D",
			Options: []Option{{ID: "A"}, {ID: "B"}}}, true},
		{"single choice missing answer", Question{ID: "q", Type: QuestionSingleChoice, Marks: 1}, true},
		{"short text", Question{ID: "q", Type: QuestionShortText, Marks: 2, CorrectAnswer: "osmosis"}, false},
		{"true false bad value", Question{ID: "q", Type: QuestionTrueFalse, Marks: 1, CorrectAnswer: "yes"}, true},
		{"multi choice none correct", Question{ID: "q", Type: QuestionMultiChoice, Marks: 1,
			Options: []Option{{ID: "A"}, {ID: "B"}}}, true},
		{"multi choice duplicate option", Question{ID: "q", Type: QuestionMultiChoice, Marks: 1,
			Options: []Option{{ID: "A", Correct: true}, {ID: "A"}}}, true},
		{"long text needs no answer", Question{ID: "q", Type: QuestionLongText, Marks: 10}, false},
		{"zero marks", Question{ID: "q", Type: QuestionLongText, Marks: 0}, true},
		{"unknown type", Question{ID: "q", Type: "essay", Marks: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.q.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidQuestion) {
					t.Errorf("Validate() = %v, want ErrInvalidQuestion", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}
