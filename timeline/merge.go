package timeline

import (
	"chat-sync/domain"
	"sort"
)

// Known reports whether a message id was already admitted somewhere.
type Known func(id string) bool

// MergeResult is the outcome of merging candidates into a timeline.
type MergeResult struct {
	Timeline []domain.Message
	Admitted []domain.Message
	// Skipped holds ids rejected because they were already known.
	Skipped []string
	// Overwritten holds ids found in the timeline although the index did not
	// know them. The existing entry is kept.
	Overwritten []string
}

// Changed reports whether the merge produced a different timeline.
func (r MergeResult) Changed() bool {
	return len(r.Admitted) > 0
}

// ResolveKey returns the conversation a message belongs to. Messages without
// an explicit key belong to the participant that is not the local user.
func ResolveKey(msg domain.Message, localUserID string) (domain.ConversationKey, bool) {
	if msg.ConversationKey != "" {
		return msg.ConversationKey, true
	}
	switch {
	case msg.SenderID != "" && msg.SenderID != localUserID:
		return domain.ConversationKey(msg.SenderID), true
	case msg.RecipientID != "" && msg.RecipientID != localUserID:
		return domain.ConversationKey(msg.RecipientID), true
	default:
		return "", false
	}
}

// Insert returns a new timeline with msg placed after every message whose
// timestamp is not after msg's (tail of the equal run).
func Insert(timeline []domain.Message, msg domain.Message) []domain.Message {
	i := sort.Search(len(timeline), func(i int) bool {
		return timeline[i].Timestamp.After(msg.Timestamp)
	})
	res := make([]domain.Message, 0, len(timeline)+1)
	res = append(res, timeline[:i]...)
	res = append(res, msg)
	res = append(res, timeline[i:]...)
	return res
}

// MergeArrival admits a single real-time message into the timeline of key.
func MergeArrival(timeline []domain.Message, msg domain.Message, key domain.ConversationKey, known Known) MergeResult {
	if known(msg.ID) {
		return MergeResult{Timeline: timeline, Skipped: []string{msg.ID}}
	}
	if IndexOf(timeline, msg.ID) >= 0 {
		return MergeResult{Timeline: timeline, Overwritten: []string{msg.ID}}
	}
	msg = msg.Clone()
	msg.ConversationKey = key
	return MergeResult{
		Timeline: Insert(timeline, msg),
		Admitted: []domain.Message{msg},
	}
}

// MergePage merges a fetched history page into the timeline of key.
// Only messages absent from the index are added; what is already present is
// never replaced. Self-sent messages without a recipient are attributed to key.
func MergePage(timeline []domain.Message, page []domain.Message, key domain.ConversationKey, localUserID string, known Known) MergeResult {
	res := MergeResult{Timeline: timeline}
	seen := make(map[string]struct{}, len(page))
	var candidates []domain.Message
	for _, m := range page {
		if _, dup := seen[m.ID]; dup || known(m.ID) {
			res.Skipped = append(res.Skipped, m.ID)
			continue
		}
		seen[m.ID] = struct{}{}
		if IndexOf(timeline, m.ID) >= 0 {
			res.Overwritten = append(res.Overwritten, m.ID)
			continue
		}
		m = m.Clone()
		m.ConversationKey = key
		if m.SenderID == localUserID && m.RecipientID == "" {
			m.RecipientID = string(key)
		}
		candidates = append(candidates, m)
	}
	if len(candidates) == 0 {
		return res
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Timestamp.Before(candidates[j].Timestamp)
	})
	res.Timeline = mergeSorted(timeline, candidates)
	res.Admitted = candidates
	return res
}

// mergeSorted interleaves two timestamp-sorted slices. On equal timestamps the
// existing entry comes first.
func mergeSorted(existing, incoming []domain.Message) []domain.Message {
	res := make([]domain.Message, 0, len(existing)+len(incoming))
	i, j := 0, 0
	for i < len(existing) && j < len(incoming) {
		if incoming[j].Timestamp.Before(existing[i].Timestamp) {
			res = append(res, incoming[j])
			j++
			continue
		}
		res = append(res, existing[i])
		i++
	}
	res = append(res, existing[i:]...)
	return append(res, incoming[j:]...)
}

// IsOrdered reports whether timestamps never decrease along the timeline.
func IsOrdered(timeline []domain.Message) bool {
	return sort.SliceIsSorted(timeline, func(i, j int) bool {
		return timeline[i].Timestamp.Before(timeline[j].Timestamp)
	})
}
