package grading

import (
	"fmt"
	"math"
	"strings"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

func gradeShortText(q model.Question, a model.Answer) model.AnswerResult {
	submitted := normalize(a.TextAnswer)
	if submitted == "" {
		return result(q, 0, false, false, FeedbackNoAnswer)
	}
	if submitted == normalize(q.CorrectAnswer) {
		return result(q, q.Marks, true, false, FeedbackCorrect)
	}

	matched, total := keywordHits(submitted, q.Keywords)
	if total > 0 {
		fraction := float64(matched) / float64(total)
		if fraction >= KeywordThreshold {
			// Keyword credit is provisional: it is always surfaced for
			// teacher confirmation, even at full coverage.
			return result(q, round2(fraction*q.Marks), matched == total, true,
				fmt.Sprintf(FeedbackKeywordsTemplate, matched, total))
		}
	}
	return result(q, 0, false, true, FeedbackFlagged)
}

func gradeManual(q model.Question) model.AnswerResult {
	return result(q, 0, false, true, FeedbackManualRequired)
}

// keywordHits counts keywords contained in text. Blank keywords are ignored.
func keywordHits(text string, keywords []string) (matched, total int) {
	for _, k := range keywords {
		k = normalize(k)
		if k == "" {
			continue
		}
		total++
		if strings.Contains(text, k) {
			matched++
		}
	}
	return matched, total
}

// normalize lower-cases and trims s.
func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func clamp(v, limit float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > limit {
		return limit
	}
	return v
}
