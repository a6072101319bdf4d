package models

// Conversation groups the messages exchanged with one partner address.
type Conversation struct {
	PartnerAddress string             `json:"partner"`
	Messages       []DecryptedMessage `json:"messages"`
	LastMessage    DecryptedMessage   `json:"last_message"`
	InboundCount   int                `json:"inbound_count"`
}
