package extract

import (
	"context"

	"github.com/fyrsmithlabs/lexd/internal/entity"
)

// Recognizer is implemented by external named-entity recognizers (an NLP
// sidecar, a hosted NER API). Returned candidates carry SourceNLP and the
// recognizer's own confidence; the merger decides whether they survive.
//
// Implementations must return byte offsets into text.
type Recognizer interface {
	Recognize(ctx context.Context, text string) ([]entity.ClassifiedEntity, error)
}
