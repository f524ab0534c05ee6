package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
	"unicode/utf8"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

//go:embed templates/*.txt
var templateFS embed.FS

// maxAnswerRunes bounds the learner text sent to the model.
const maxAnswerRunes = 10000

var (
	learnerAnswerRegex      = regexp.MustCompile(`(?i)</?\s*learner-answer\b[^>]*>`)
	systemInstructionsRegex = regexp.MustCompile(`(?i)</?\s*system-instructions\b[^>]*>`)
)

// PromptVariant represents a grading prompt variant.
type PromptVariant string

const (
	// PromptStrict is a strict grading variant for core subjects.
	PromptStrict PromptVariant = "strict"
	// PromptStandard is the default grading variant.
	PromptStandard PromptVariant = "standard"
	// PromptLenient is a lenient grading variant for electives.
	PromptLenient PromptVariant = "lenient"
)

var variants = []PromptVariant{PromptStrict, PromptStandard, PromptLenient}

var (
	loadOnce  sync.Once
	loadErr   error
	templates map[PromptVariant]*template.Template
)

// IsValidVariant checks if a prompt variant name is valid.
func IsValidVariant(v string) bool {
	for _, known := range variants {
		if PromptVariant(v) == known {
			return true
		}
	}
	return false
}

// SuggestData holds template data for suggestion prompts.
type SuggestData struct {
	QuestionType string
	Prompt       string
	MaxMarks     string
	SampleAnswer string
	Keywords     []string
	Answer       string
}

// Load parses the embedded prompt templates once.
func Load() error {
	return LoadFS(templateFS)
}

// LoadFS parses suggest_<variant>.txt templates from fsys. Only the first
// call has an effect.
func LoadFS(fsys fs.FS) error {
	loadOnce.Do(func() {
		parsed := make(map[PromptVariant]*template.Template, len(variants))
		for _, v := range variants {
			name := "templates/suggest_" + string(v) + ".txt"
			content, err := fs.ReadFile(fsys, name)
			if err != nil {
				loadErr = fmt.Errorf("read prompt file %s: %w", name, err)
				return
			}
			tmpl, err := template.New(string(v)).
				Funcs(template.FuncMap{"join": strings.Join}).
				Parse(string(content))
			if err != nil {
				loadErr = fmt.Errorf("parse prompt template %s: %w", name, err)
				return
			}
			parsed[v] = tmpl
		}
		templates = parsed
	})
	return loadErr
}

// BuildSuggestPrompt renders the prompt asking for a suggested mark.
func BuildSuggestPrompt(variant PromptVariant, q model.Question, ans model.Answer) (string, error) {
	if templates == nil {
		if loadErr != nil {
			return "", fmt.Errorf("templates load failed: %w", loadErr)
		}
		return "", fmt.Errorf("templates not initialized: call Load first")
	}
	tmpl, ok := templates[variant]
	if !ok {
		return "", fmt.Errorf("invalid prompt variant: %s", variant)
	}

	data := SuggestData{
		QuestionType: string(q.Type),
		Prompt:       q.Prompt,
		MaxMarks:     strconv.FormatFloat(q.Marks, 'f', -1, 64),
		SampleAnswer: q.SampleAnswer,
		Keywords:     q.Keywords,
		Answer:       SanitizeAnswer(answerText(ans)),
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func answerText(ans model.Answer) string {
	text := ans.TextAnswer
	if ans.AttachmentRef != "" {
		text = strings.TrimSpace(text + "\n[attachment: " + ans.AttachmentRef + "]")
	}
	return text
}

// SanitizeAnswer strips prompt delimiter tags from learner text and
// truncates it.
func SanitizeAnswer(answer string) string {
	answer = learnerAnswerRegex.ReplaceAllString(answer, "")
	answer = systemInstructionsRegex.ReplaceAllString(answer, "")
	answer = strings.TrimSpace(answer)

	if answer == "" {
		return "[No answer provided]"
	}

	if utf8.RuneCountInString(answer) > maxAnswerRunes {
		runes := []rune(answer)
		answer = string(runes[:maxAnswerRunes]) + "\n\n[Answer truncated due to length]"
	}
	return answer
}
