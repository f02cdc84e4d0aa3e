package domain

import "time"

// ActionState is the per-(action, tenant) record owned by the state store.
// Stateful actions keep arbitrary extra fields under Custom; values survive
// a JSON round trip, so they are limited to JSON-representable types.
type ActionState struct {
	LastExecutedAt   time.Time      `json:"last_executed_at"`
	PinnedMessageIDs []string       `json:"pinned_message_ids,omitempty"`
	Custom           map[string]any `json:"custom,omitempty"`
}

// NewActionState returns the default-constructed state. A missing record is
// always equivalent to this value, never an error.
func NewActionState() *ActionState {
	return &ActionState{}
}

// Clone returns a deep copy, so the canonical record in the store cannot be
// corrupted through a handed-out working copy or frozen snapshot.
func (s *ActionState) Clone() *ActionState {
	if s == nil {
		return NewActionState()
	}
	out := &ActionState{LastExecutedAt: s.LastExecutedAt}
	if s.PinnedMessageIDs != nil {
		out.PinnedMessageIDs = append([]string(nil), s.PinnedMessageIDs...)
	}
	if s.Custom != nil {
		out.Custom = deepCopyMap(s.Custom)
	}
	return out
}

// Pin records a pinned resource identifier, once.
func (s *ActionState) Pin(messageID string) {
	for _, id := range s.PinnedMessageIDs {
		if id == messageID {
			return
		}
	}
	s.PinnedMessageIDs = append(s.PinnedMessageIDs, messageID)
}

// Unpin removes a pinned resource identifier.
func (s *ActionState) Unpin(messageID string) {
	for i, id := range s.PinnedMessageIDs {
		if id == messageID {
			s.PinnedMessageIDs = append(s.PinnedMessageIDs[:i], s.PinnedMessageIDs[i+1:]...)
			return
		}
	}
}

// Set stores a custom field.
func (s *ActionState) Set(key string, value any) {
	if s.Custom == nil {
		s.Custom = make(map[string]any)
	}
	s.Custom[key] = value
}

// Get reads a custom field.
func (s *ActionState) Get(key string) (any, bool) {
	v, ok := s.Custom[key]
	return v, ok
}

func deepCopyMap(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = deepCopyValue(e)
		}
		return out
	default:
		return v
	}
}
