package timeline

import (
	"chat-sync/domain"
	"time"

	"github.com/samber/lo"
)

// Outcome tells what a mutation did to the timeline.
type Outcome int

const (
	NotFound Outcome = iota
	Applied
	// Ignored means the target exists but the mutation does not apply to it,
	// e.g. editing a tombstone.
	Ignored
)

func (o Outcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Ignored:
		return "ignored"
	default:
		return "not_found"
	}
}

// IndexOf returns the position of id in the timeline or -1.
func IndexOf(timeline []domain.Message, id string) int {
	_, i, ok := lo.FindIndexOf(timeline, func(m domain.Message) bool {
		return m.ID == id
	})
	if !ok {
		return -1
	}
	return i
}

// replaceAt returns a copy of timeline with position i replaced by m.
func replaceAt(timeline []domain.Message, i int, m domain.Message) []domain.Message {
	res := make([]domain.Message, len(timeline))
	copy(res, timeline)
	res[i] = m
	return res
}

// Edit sets the text of id and stamps editedAt.
func Edit(timeline []domain.Message, id, text string, editedAt time.Time) ([]domain.Message, Outcome) {
	i := IndexOf(timeline, id)
	if i < 0 {
		return timeline, NotFound
	}
	if timeline[i].Deleted {
		return timeline, Ignored
	}
	m := timeline[i].Clone()
	m.Text = text
	m.EditedAt = lo.ToPtr(editedAt)
	return replaceAt(timeline, i, m), Applied
}

// Delete tombstones id. A tombstone is never deleted twice.
func Delete(timeline []domain.Message, id string) ([]domain.Message, Outcome) {
	i := IndexOf(timeline, id)
	if i < 0 {
		return timeline, NotFound
	}
	if timeline[i].Deleted {
		return timeline, Ignored
	}
	return replaceAt(timeline, i, timeline[i].Tombstone()), Applied
}

// SetReactions replaces the reaction state of id wholesale.
func SetReactions(timeline []domain.Message, id string, reactions domain.Reactions) ([]domain.Message, Outcome) {
	i := IndexOf(timeline, id)
	if i < 0 {
		return timeline, NotFound
	}
	if timeline[i].Deleted {
		return timeline, Ignored
	}
	m := timeline[i].Clone()
	m.Reactions = domain.NormalizeReactions(reactions)
	return replaceAt(timeline, i, m), Applied
}

// StampRead records readerID on every live message it did not author, sent
// no later than readAt and not yet read by it. It returns how many messages
// were stamped.
func StampRead(timeline []domain.Message, readerID string, readAt time.Time) ([]domain.Message, int) {
	var res []domain.Message
	stamped := 0
	for i, m := range timeline {
		if m.Deleted || m.Pending || m.IsFrom(readerID) || m.Timestamp.After(readAt) {
			continue
		}
		if _, read := m.ReadBy[readerID]; read {
			continue
		}
		if res == nil {
			res = make([]domain.Message, len(timeline))
			copy(res, timeline)
		}
		c := m.Clone()
		if c.ReadBy == nil {
			c.ReadBy = make(map[string]time.Time, 1)
		}
		c.ReadBy[readerID] = readAt
		res[i] = c
		stamped++
	}
	if res == nil {
		return timeline, 0
	}
	return res, stamped
}

// Withdraw removes a tentative message. Admitted messages are never withdrawn.
func Withdraw(timeline []domain.Message, id string) ([]domain.Message, Outcome) {
	i := IndexOf(timeline, id)
	if i < 0 {
		return timeline, NotFound
	}
	if !timeline[i].Pending {
		return timeline, Ignored
	}
	res := make([]domain.Message, 0, len(timeline)-1)
	res = append(res, timeline[:i]...)
	return append(res, timeline[i+1:]...), Applied
}

// CountInbound counts live messages in the timeline not authored by localUserID.
func CountInbound(timeline []domain.Message, localUserID string) int {
	return lo.CountBy(timeline, func(m domain.Message) bool {
		return !m.Deleted && !m.Pending && !m.IsFrom(localUserID)
	})
}
