package transport

import "context"

type UpdateKind string

const (
	UpdateMessage  UpdateKind = "message"
	UpdateCallback UpdateKind = "callback"
)

// Update is a transport-neutral inbound event.
// Exactly one of Message/Callback is set, matching Kind.
type Update struct {
	Kind     UpdateKind
	Message  *Message
	Callback *Callback
}

type Message struct {
	ID        int
	ChatID    int64
	FromID    int64
	FirstName string
	Username  string
	Text      string
}

type Callback struct {
	ID        string
	ChatID    int64
	FromID    int64
	MessageID int
	Data      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	// ReplyMarkup carries adapter-specific keyboard markup
	// (Telegram: *telebot.ReplyMarkup).
	ReplyMarkup any
}

// Adapter is the chat transport consumed by the dispatcher.
// Implementations must be safe for concurrent use once Start has returned.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	EditText(ctx context.Context, ref MessageRef, text string, opt *SendOptions) error
	DeleteText(ctx context.Context, ref MessageRef) error
	AnswerCallback(ctx context.Context, callbackID string, text string, alert bool) error
}

// MembershipChecker is implemented by adapters that can answer whether a
// user belongs to a chat/channel. The dispatcher uses it for the forced
// subscription check.
type MembershipChecker interface {
	IsChatMember(ctx context.Context, chat string, userID int64) (bool, error)
}
