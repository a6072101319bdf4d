package inbox

import (
	"sort"

	"memochat/models"
)

// Inbox returns messages addressed to self.
func Inbox(messages []models.DecryptedMessage, self string) []models.DecryptedMessage {
	out := make([]models.DecryptedMessage, 0)
	for _, msg := range messages {
		if msg.RecipientAddress == self {
			out = append(out, msg)
		}
	}
	return out
}

// Sent returns messages sent by self.
func Sent(messages []models.DecryptedMessage, self string) []models.DecryptedMessage {
	out := make([]models.DecryptedMessage, 0)
	for _, msg := range messages {
		if msg.SenderAddress == self {
			out = append(out, msg)
		}
	}
	return out
}

// GroupConversations groups messages involving self by partner address,
// most recently active partner first. Messages within a conversation are
// ordered oldest first.
func GroupConversations(messages []models.DecryptedMessage, self string) []models.Conversation {
	byPartner := make(map[string]*models.Conversation)
	for _, msg := range messages {
		var partner string
		switch {
		case msg.SenderAddress == self:
			partner = msg.RecipientAddress
		case msg.RecipientAddress == self:
			partner = msg.SenderAddress
		default:
			continue
		}

		conv, ok := byPartner[partner]
		if !ok {
			conv = &models.Conversation{PartnerAddress: partner}
			byPartner[partner] = conv
		}
		conv.Messages = append(conv.Messages, msg)
		if msg.SenderAddress != self {
			conv.InboundCount++
		}
	}

	out := make([]models.Conversation, 0, len(byPartner))
	for _, conv := range byPartner {
		sort.SliceStable(conv.Messages, func(i, j int) bool {
			a, b := conv.Messages[i], conv.Messages[j]
			if a.BlockTime != b.BlockTime {
				return a.BlockTime < b.BlockTime
			}
			return a.Signature < b.Signature
		})
		conv.LastMessage = conv.Messages[len(conv.Messages)-1]
		out = append(out, *conv)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastMessage, out[j].LastMessage
		if a.BlockTime != b.BlockTime {
			return a.BlockTime > b.BlockTime
		}
		return out[i].PartnerAddress < out[j].PartnerAddress
	})
	return out
}
