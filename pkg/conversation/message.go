package conversation

// Message is a decoded conversation event.
type Message struct {
	// ConversationID is the conversation the event was recorded for.
	ConversationID ID `json:"conversation_id"`

	// Pointer is where the event was recorded.
	Pointer Pointer `json:"pointer"`

	// Index is the event's position among the logs recorded at Pointer.
	Index uint `json:"index"`

	// Prev is the Pointer of the previous event in the conversation, or
	// NoPointer for the first one.
	Prev Pointer `json:"prev"`

	// Text is the message payload.
	Text string `json:"text"`
}
