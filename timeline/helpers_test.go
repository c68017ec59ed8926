package timeline

import (
	"chat-sync/domain"
	"time"

	"github.com/samber/lo"
)

const me = "me"

var epoch = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func at(seconds int) time.Time {
	return epoch.Add(time.Duration(seconds) * time.Second)
}

func inbound(id string, seconds int) domain.Message {
	return domain.Message{ID: id, SenderID: "bob", RecipientID: me, Text: "text " + id, Timestamp: at(seconds), Kind: domain.KindUser}
}

func outbound(id string, seconds int) domain.Message {
	return domain.Message{ID: id, SenderID: me, RecipientID: "bob", Text: "text " + id, Timestamp: at(seconds), Kind: domain.KindUser}
}

func ids(timeline []domain.Message) []string {
	return lo.Map(timeline, func(m domain.Message, _ int) string { return m.ID })
}

func knownFrom(index *IdentityIndex) Known {
	return index.Has
}
