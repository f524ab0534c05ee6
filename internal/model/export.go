package model

import "time"

// AttemptExport is the top-level JSON structure for attempt result export.
type AttemptExport struct {
	ExportedAt    time.Time       `json:"exported_at"`
	QuestionSetID string          `json:"question_set_id,omitempty"`
	Status        AttemptStatus   `json:"status,omitempty"`
	Results       []LearnerResult `json:"results"`
}

// LearnerResult holds one attempt's data for export.
type LearnerResult struct {
	AttemptID          string         `json:"attempt_id"`
	LearnerID          string         `json:"learner_id"`
	QuestionSetID      string         `json:"question_set_id"`
	AttemptNumber      int            `json:"attempt_number"`
	Status             AttemptStatus  `json:"status"`
	SubmittedAt        *time.Time     `json:"submitted_at,omitempty"`
	GradedAt           *time.Time     `json:"graded_at,omitempty"`
	TotalMarksObtained float64        `json:"total_marks_obtained"`
	AutoGradedMarks    float64        `json:"auto_graded_marks"`
	ManualGradedMarks  float64        `json:"manual_graded_marks"`
	MaxMarks           float64        `json:"max_marks"`
	Percentage         float64        `json:"percentage"`
	PendingManual      int            `json:"pending_manual"`
	Answers            []AnswerExport `json:"answers"`
}

// AnswerExport holds per-answer data for export.
type AnswerExport struct {
	QuestionID         string       `json:"question_id"`
	Type               QuestionType `json:"type"`
	Marks              float64      `json:"marks"`
	SelectedOptions    []string     `json:"selected_options,omitempty"`
	TextAnswer         string       `json:"text_answer,omitempty"`
	AttachmentRef      string       `json:"attachment_ref,omitempty"`
	MarksObtained      float64      `json:"marks_obtained"`
	IsCorrect          bool         `json:"is_correct"`
	NeedsManualGrading bool         `json:"needs_manual_grading"`
	AutoGraded         bool         `json:"auto_graded"`
	Feedback           string       `json:"feedback"`
	GradedBy           string       `json:"graded_by,omitempty"`
}

// QuestionSetImport is the JSON shape of a question set file.
type QuestionSetImport struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}
