package registry

import (
	"context"
	"time"

	"github.com/skelly-dev/sigreg/internal/selector"
)

// Signature is a persisted canonical function signature. The selector and
// its hex/bytes views are always derived from TextSignature.
type Signature struct {
	ID            string    `json:"id"`
	TextSignature string    `json:"text_signature"`
	CreatedAt     time.Time `json:"created_at"`
}

func (s Signature) Selector() selector.Selector {
	return selector.Compute(s.TextSignature)
}

// HexSignature returns the 0x-prefixed lowercase selector.
func (s Signature) HexSignature() string {
	return s.Selector().Hex()
}

// BytesSignature returns the raw 4 selector bytes.
func (s Signature) BytesSignature() []byte {
	return s.Selector().Bytes()
}

// ListOptions pages through signatures ordered by canonical text.
type ListOptions struct {
	Offset int
	Limit  int // 0 means no limit
}

// Store is the persistence collaborator. InsertUnique must be atomic with
// respect to the uniqueness of TextSignature and return ErrAlreadyExists
// when another record already holds the text.
type Store interface {
	FindByText(ctx context.Context, text string) (Signature, bool, error)
	FindBySelector(ctx context.Context, sel selector.Selector) ([]Signature, error)
	InsertUnique(ctx context.Context, sig Signature) (Signature, error)
	List(ctx context.Context, opts ListOptions) ([]Signature, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// Outcome classifies one import attempt in a batch.
type Outcome int

const (
	OutcomeImported Outcome = iota
	OutcomeDuplicate
	OutcomeUnparseable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeImported:
		return "imported"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeUnparseable:
		return "unparseable"
	default:
		return "unknown"
	}
}
