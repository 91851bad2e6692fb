// Package notice builds the content-only payloads the bot hands to the chat
// gateway: notices (embeds), interactive controls and modal forms. Rendering
// is the gateway's concern.
package notice

import "time"

// Category is the color class a renderer maps to a concrete color.
type Category string

const (
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	CategoryInfo    Category = "info"
	CategoryPanel   Category = "panel"
)

// Field is a named block inside a notice.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Notice is one structured notification.
type Notice struct {
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Fields      []Field   `json:"fields,omitempty"`
	Category    Category  `json:"category"`
	Timestamp   time.Time `json:"timestamp"`
	Footer      string    `json:"footer,omitempty"`
	Thumbnail   string    `json:"thumbnail,omitempty"`
}

// Style hints how a control is drawn.
type Style string

const (
	StylePrimary   Style = "primary"
	StyleSecondary Style = "secondary"
	StyleSuccess   Style = "success"
	StyleDanger    Style = "danger"
)

// Control is a clickable button.
type Control struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Style Style  `json:"style"`
}

// Option is one entry of a select menu.
type Option struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
}

// Select is a single-choice menu.
type Select struct {
	ID          string   `json:"id"`
	Placeholder string   `json:"placeholder,omitempty"`
	Options     []Option `json:"options"`
}

// Row groups controls, or holds one select menu.
type Row struct {
	Controls []Control `json:"controls,omitempty"`
	Select   *Select   `json:"select,omitempty"`
}

// Message is what the bot sends, edits into place or replies with.
type Message struct {
	Content   string   `json:"content,omitempty"`
	Notices   []Notice `json:"notices,omitempty"`
	Rows      []Row    `json:"rows,omitempty"`
	Ephemeral bool     `json:"ephemeral,omitempty"`
	// ExpireAfter asks the renderer to delete the message after the delay.
	ExpireAfter time.Duration `json:"expire_after,omitempty"`
}

// TextInput is one short text field of a modal.
type TextInput struct {
	ID          string `json:"id"`
	Label       string `json:"label"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
}

// Modal is a form shown in response to an interaction.
type Modal struct {
	ID     string      `json:"id"`
	Title  string      `json:"title"`
	Inputs []TextInput `json:"inputs"`
}

// Of wraps notices in a message.
func Of(notices ...Notice) Message {
	return Message{Notices: notices}
}

// Expiring wraps notices in a message the renderer removes after d.
func Expiring(d time.Duration, notices ...Notice) Message {
	return Message{Notices: notices, ExpireAfter: d}
}
