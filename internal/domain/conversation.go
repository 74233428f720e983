package domain

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one exchange unit of a conversation.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Conversation is an ordered sequence of turns.
type Conversation []Turn

// Clone returns an independent copy of the conversation.
func (c Conversation) Clone() Conversation {
	if c == nil {
		return nil
	}
	out := make(Conversation, len(c))
	copy(out, c)
	return out
}

// With returns a copy of the conversation with t appended.
// The receiver is never modified.
func (c Conversation) With(t Turn) Conversation {
	out := make(Conversation, len(c), len(c)+1)
	copy(out, c)
	return append(out, t)
}

// Selection is the ordered set of sale ids the user explicitly marked
// as the target of the next update or delete.
type Selection struct {
	ids []string
}

// NewSelection builds a selection from ids, dropping blanks and duplicates.
func NewSelection(ids ...string) Selection {
	var s Selection
	for _, id := range ids {
		s.Add(id)
	}
	return s
}

// Add marks id as selected. Adding an id twice is a no-op.
func (s *Selection) Add(id string) {
	if id == "" || s.Contains(id) {
		return
	}
	s.ids = append(s.ids, id)
}

// Remove unmarks id.
func (s *Selection) Remove(id string) {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i:i], s.ids[i+1:]...)
			return
		}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.ids = nil
}

// Contains reports whether id is selected.
func (s Selection) Contains(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

// IDs returns a copy of the selected ids in selection order.
func (s Selection) IDs() []string {
	out := make([]string, len(s.ids))
	copy(out, s.ids)
	return out
}

// Len returns the number of selected ids.
func (s Selection) Len() int {
	return len(s.ids)
}

// First returns the earliest selected id.
func (s Selection) First() (string, bool) {
	if len(s.ids) == 0 {
		return "", false
	}
	return s.ids[0], true
}
