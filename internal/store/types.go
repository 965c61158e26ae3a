package store

// Room is a chat room with a summary of its latest message.
type Room struct {
	Slug               string
	Name               string
	LastMessageAt      int64
	LastMessagePreview string
}

// Message is a persisted chat message. CreatedAt is unix milliseconds.
type Message struct {
	ID           int64
	Room         string
	SenderID     string
	SenderName   string
	SenderAvatar string
	Body         string
	MessageType  string
	MediaURL     string
	ReplyTo      *int64
	CreatedAt    int64
}
