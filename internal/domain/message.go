package domain

// IncomingMessage is a single message addressed to the bot, either a direct
// mention or a direct message. It is transient and never persisted.
type IncomingMessage struct {
	SenderID string // canonical upper-case slack ID
	Text     string
}

// NewIncomingMessage builds a message from a validated platform event.
func NewIncomingMessage(senderID, text string) (IncomingMessage, error) {
	id, err := NormalizeID("sender", senderID)
	if err != nil {
		return IncomingMessage{}, err
	}
	return IncomingMessage{SenderID: id, Text: text}, nil
}
