package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/maryayun81-byte/v0-edu-flow-school-system-2-sub001/internal/model"
)

// ErrSourceChanged refuses a re-import whose content differs from the first.
// It also matches model.ErrInvalidInput.
var ErrSourceChanged = fmt.Errorf("%w: source changed since last import", model.ErrInvalidInput)

// ImportOutcome reports what ImportQuestionSet did with a document.
type ImportOutcome string

const (
	ImportCreated   ImportOutcome = "created"
	ImportUnchanged ImportOutcome = "unchanged"
)

// ImportQuestionSet parses a question set JSON document and stores it.
// The sha256 of data is recorded under source (the set id when source is
// empty). Re-importing identical content is a no-op; changed content for an
// already imported source is refused so existing attempts keep the questions
// they were graded against.
func (s *Store) ImportQuestionSet(ctx context.Context, source string, data []byte) (model.QuestionSet, ImportOutcome, error) {
	var in model.QuestionSetImport
	if err := json.Unmarshal(data, &in); err != nil {
		return model.QuestionSet{}, "", &model.ValidationError{Field: "question_set", Msg: err.Error(), Err: model.ErrInvalidInput}
	}
	set := model.QuestionSet{ID: in.ID, Title: in.Title, Questions: in.Questions}
	if source == "" {
		source = "set:" + set.ID
	}

	hash := sha256sum(data)
	stored, err := s.ImportedFileHash(ctx, source)
	if err != nil {
		return set, "", fmt.Errorf("check import status for %s: %w", source, err)
	}
	if stored == hash {
		return set, ImportUnchanged, nil
	}
	if stored != "" {
		return set, "", &model.ValidationError{
			Field: source,
			Msg:   "changed since last import; existing attempts depend on it",
			Err:   ErrSourceChanged,
		}
	}

	if err := set.Validate(); err != nil {
		return set, "", err
	}
	err = s.WithTx(ctx, func(tx *Tx) error {
		if err := tx.InsertQuestionSet(ctx, set); err != nil {
			return err
		}
		if err := tx.SetMetadata(ctx, importKey(source), hash); err != nil {
			return fmt.Errorf("record import for %s: %w", source, err)
		}
		return nil
	})
	if err != nil {
		return set, "", err
	}
	return set, ImportCreated, nil
}

func sha256sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
