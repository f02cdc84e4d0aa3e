package repo

import (
	"context"
	"errors"

	"github.com/AlexSolari/botFramework-sub000/internal/biz/domain"
)

// ErrMalformedDocument is returned when a persisted state document cannot
// be decoded. This is fatal for the action's document: it is never silently
// discarded.
var ErrMalformedDocument = errors.New("malformed state document")

// StateRepo persists one document per action key, mapping tenant id to that
// action's state record. A missing document is normal and reads as empty;
// writes replace the document wholesale.
type StateRepo interface {
	// LoadDocument reads the full record set for one action. Absence of the
	// document yields an empty map, not an error.
	LoadDocument(ctx context.Context, actionKey string) (map[string]*domain.ActionState, error)

	// SaveDocument atomically replaces the full record set for one action.
	SaveDocument(ctx context.Context, actionKey string, doc map[string]*domain.ActionState) error

	// ListActionKeys lists keys with a persisted document (for debugging).
	ListActionKeys(ctx context.Context) ([]string, error)

	// Close releases the underlying storage.
	Close() error
}
