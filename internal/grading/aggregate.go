package grading

import (
	"time"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// Totals is the attempt-level fold of answer results.
type Totals struct {
	Total     float64
	Auto      float64
	Manual    float64
	AllGraded bool
	Pending   int
}

// Summarize folds results into totals. Marks are partitioned by AutoGraded;
// AllGraded holds when no result needs manual grading.
func Summarize(results []model.AnswerResult) Totals {
	t := Totals{AllGraded: true}
	for _, r := range results {
		t.Total += r.MarksObtained
		if r.AutoGraded {
			t.Auto += r.MarksObtained
		} else {
			t.Manual += r.MarksObtained
		}
		if r.NeedsManualGrading {
			t.AllGraded = false
			t.Pending++
		}
	}
	t.Total = round2(t.Total)
	t.Auto = round2(t.Auto)
	t.Manual = round2(t.Manual)
	return t
}

// Aggregate recomputes the attempt's totals and status from its answers'
// results. An answer without a result counts as pending.
//
// GradedAt is stamped with now only on the transition into graded; running
// Aggregate again on a graded attempt leaves the timestamp alone. It reports
// whether the status changed.
func Aggregate(a *model.Attempt, now time.Time) bool {
	results := make([]model.AnswerResult, 0, len(a.Answers))
	missing := 0
	for _, ans := range a.Answers {
		if ans.Result == nil {
			missing++
			continue
		}
		results = append(results, *ans.Result)
	}
	t := Summarize(results)

	a.TotalMarksObtained = t.Total
	a.AutoGradedMarks = t.Auto
	a.ManualGradedMarks = t.Manual

	prev := a.Status
	if t.AllGraded && missing == 0 {
		if prev != model.StatusGraded && a.GradedAt == nil {
			ts := now
			a.GradedAt = &ts
		}
		a.Status = model.StatusGraded
	} else {
		a.Status = model.StatusSubmitted
	}
	return prev != a.Status
}
