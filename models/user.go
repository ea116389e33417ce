package models

// User is a counterpart user record from the backend roster.
type User struct {
	ID     string `json:"_id"`
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Avatar string `json:"avatar,omitempty"`
}

// Preview is the last-message summary shown for a conversation.
type Preview struct {
	Content   string `json:"content"`
	Unread    bool   `json:"isUnread"`
	Timestamp int64  `json:"timestamp"`
}
