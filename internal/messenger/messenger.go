// Package messenger abstracts the chat platform so the engines can be
// tested without network access.
package messenger

import "context"

// Button is one inline reply option under a message.
type Button struct {
	Label string
	Data  string
}

// Message is a fully rendered prompt ready for delivery.
type Message struct {
	Title   string
	Body    string
	Buttons []Button
}

// Text flattens the message into the markup the platform expects.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}
	return m.Title + "\n\n" + m.Body
}

type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
	SendWithButtons(ctx context.Context, chatID int64, text string, buttons []Button) error
	SendToGroup(ctx context.Context, groupID int64, text string) error
	CheckChannelMembership(ctx context.Context, userID int64) (bool, error)
	RemoveFromGroup(ctx context.Context, groupID, userID int64) error
	RestoreToGroup(ctx context.Context, groupID, userID int64) error
}
