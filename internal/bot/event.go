package bot

import (
	"context"
	"fmt"

	"github.com/dyluth/stockpanel/internal/notice"
)

// EventType discriminates inbound gateway events.
type EventType string

const (
	EventCommand     EventType = "command"
	EventButton      EventType = "button"
	EventSelect      EventType = "select"
	EventModalSubmit EventType = "modal_submit"
	EventMessage     EventType = "message"
)

// Validate checks if the EventType is a valid enum value.
func (t EventType) Validate() error {
	switch t {
	case EventCommand, EventButton, EventSelect, EventModalSubmit, EventMessage:
		return nil
	default:
		return fmt.Errorf("unknown event type: %q", t)
	}
}

// Attachment is a file attached to a chat message.
type Attachment struct {
	URL         string `json:"url"`
	Filename    string `json:"filename,omitempty"`
	ContentType string `json:"content_type,omitempty"`
}

// Event is one user action delivered by the chat gateway.
type Event struct {
	Type EventType `json:"type"`

	// InteractionID is set for commands, buttons, selects and modal submits;
	// replies and modals are addressed to it.
	InteractionID string `json:"interaction_id,omitempty"`
	// Name is the slash command name.
	Name string `json:"name,omitempty"`
	// CustomID is the control, select or modal id.
	CustomID string `json:"custom_id,omitempty"`

	UserID        string   `json:"user_id"`
	UserTag       string   `json:"user_tag,omitempty"`
	ChannelID     string   `json:"channel_id"`
	GuildIconURL  string   `json:"guild_icon_url,omitempty"`
	MemberRoleIDs []string `json:"member_role_ids,omitempty"`

	// Values holds the chosen select options.
	Values []string `json:"values,omitempty"`
	// Fields holds modal inputs by input id.
	Fields map[string]string `json:"fields,omitempty"`

	// MessageID is the chat message the event came from: the message carrying
	// a clicked control, or the inbound chat message itself.
	MessageID   string       `json:"message_id,omitempty"`
	Content     string       `json:"content,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Bot         bool         `json:"bot,omitempty"`
}

// Validate checks the fields every event needs.
func (e *Event) Validate() error {
	if err := e.Type.Validate(); err != nil {
		return err
	}
	if e.UserID == "" {
		return fmt.Errorf("user_id cannot be empty")
	}
	if e.ChannelID == "" {
		return fmt.Errorf("channel_id cannot be empty")
	}
	return nil
}

// userName prefers the tag the platform reported.
func (e *Event) userName() string {
	if e.UserTag != "" {
		return e.UserTag
	}
	return e.UserID
}

// Messenger is the outbound side of the chat gateway.
type Messenger interface {
	// Send posts msg in a channel and returns a reference for later edits.
	Send(ctx context.Context, channelID string, msg notice.Message) (string, error)
	Edit(ctx context.Context, channelID, ref string, msg notice.Message) error
	Delete(ctx context.Context, channelID, ref string) error
	// Reply answers an interaction, visible to the acting user only.
	Reply(ctx context.Context, interactionID string, msg notice.Message) error
	ShowModal(ctx context.Context, interactionID string, modal notice.Modal) error
}

// Source delivers inbound events.
type Source interface {
	Events() <-chan *Event
	Errors() <-chan error
}
