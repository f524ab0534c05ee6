package grading

import (
	"fmt"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

func gradeSingleChoice(q model.Question, a model.Answer) model.AnswerResult {
	token, ok := singleToken(a)
	if ok && token == normalize(q.CorrectAnswer) {
		return result(q, q.Marks, true, false, FeedbackCorrect)
	}
	return result(q, 0, false, false, FeedbackIncorrect)
}

func gradeTrueFalse(q model.Question, a model.Answer) model.AnswerResult {
	want := normalize(q.CorrectAnswer)
	token := normalize(a.TextAnswer)
	if token == "" {
		token, _ = singleToken(a)
	}
	if token != "" && token == want {
		return result(q, q.Marks, true, false, FeedbackCorrect)
	}
	return result(q, 0, false, false, fmt.Sprintf(FeedbackTrueFalseWrong, want))
}

// singleToken returns the one submitted choice. Several distinct selections
// on a single-answer question count as no valid token.
func singleToken(a model.Answer) (string, bool) {
	sel := toSet(a.SelectedOptions)
	switch len(sel) {
	case 0:
		t := normalize(a.TextAnswer)
		return t, t != ""
	case 1:
		for k := range sel {
			return k, true
		}
	}
	return "", false
}

func gradeMultiChoice(q model.Question, a model.Answer, correctIDs []string) model.AnswerResult {
	selected := toSet(a.SelectedOptions)
	if len(selected) == 0 {
		return result(q, 0, false, false, FeedbackNoSelection)
	}
	correctSet := toSet(correctIDs)
	if len(correctSet) == 0 {
		return result(q, 0, false, false, FeedbackIncorrect)
	}

	correct, incorrect := 0, 0
	for s := range selected {
		if _, ok := correctSet[s]; ok {
			correct++
		} else {
			incorrect++
		}
	}

	fraction := float64(correct-incorrect) / float64(len(correctSet))
	if fraction < 0 {
		fraction = 0
	}
	marks := round2(fraction * q.Marks)
	isCorrect := correct == len(correctSet) && incorrect == 0

	if isCorrect {
		return result(q, marks, true, false, FeedbackAllCorrect)
	}
	return result(q, marks, false, false, fmt.Sprintf(FeedbackPartialTemplate, correct, incorrect))
}

func toSet(arr []string) map[string]struct{} {
	m := make(map[string]struct{}, len(arr))
	for _, s := range arr {
		s = normalize(s)
		if s == "" {
			continue
		}
		m[s] = struct{}{}
	}
	return m
}
