package model

import "time"

// Message represents a simplified Discord channel message used by the runner.
type Message struct {
	MessageID  string
	ChannelID  string
	AuthorID   string
	AuthorName string
	AuthorBot  bool
	Text       string
	CreateTime time.Time
}

// User is the account the runner is logged in as.
type User struct {
	ID       string
	Username string
	Bot      bool
}
