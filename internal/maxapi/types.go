package maxapi

// User is a Max platform user
type User struct {
	UserID   int64  `json:"user_id"`
	Name     string `json:"name"`
	Username string `json:"username,omitempty"`
	IsBot    bool   `json:"is_bot"`
}

// Chat is a Max chat or dialog
type Chat struct {
	ChatID int64  `json:"chat_id"`
	Type   string `json:"type"`
	Title  string `json:"title,omitempty"`
}

// ChatMember is a user inside a chat with membership attributes
type ChatMember struct {
	User
	IsAdmin bool `json:"is_admin"`
}

// Recipient describes where a message was sent
type Recipient struct {
	ChatID   int64  `json:"chat_id,omitempty"`
	ChatType string `json:"chat_type,omitempty"`
	UserID   int64  `json:"user_id,omitempty"`
}

// MessageBody carries the message identifier and text
type MessageBody struct {
	Mid  string `json:"mid"`
	Seq  int64  `json:"seq"`
	Text string `json:"text"`
}

// Message is a message in a chat
type Message struct {
	Sender    User        `json:"sender"`
	Recipient Recipient   `json:"recipient"`
	Timestamp int64       `json:"timestamp"` // unix millis
	Body      MessageBody `json:"body"`
}

// Update is one long-poll event. Only the payloads the bot consumes are
// modeled; unknown update types are skipped by the caller.
type Update struct {
	UpdateType string   `json:"update_type"`
	Timestamp  int64    `json:"timestamp"`
	Message    *Message `json:"message,omitempty"`
	Chat       *Chat    `json:"chat,omitempty"`
	User       *User    `json:"user,omitempty"`
}

// Update types the bot reacts to
const (
	UpdateTypeMessageCreated = "message_created"
	UpdateTypeBotAdded       = "bot_added"
	UpdateTypeBotRemoved     = "bot_removed"
)

// UpdateList is the GET /updates response: a batch of updates plus the
// marker to resume from
type UpdateList struct {
	Updates []Update `json:"updates"`
	Marker  *int64   `json:"marker,omitempty"`
}

// NewMessageBody is the POST /messages request payload
type NewMessageBody struct {
	Text string `json:"text"`
}

type sendMessageResponse struct {
	Message Message `json:"message"`
}

type chatMembersResponse struct {
	Members []ChatMember `json:"members"`
	Marker  *int64       `json:"marker,omitempty"`
}
