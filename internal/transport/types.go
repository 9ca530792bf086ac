package transport

import "context"

type UpdateKind string

const (
	UpdateMessage     UpdateKind = "message"
	UpdateCallback    UpdateKind = "callback"
	UpdateJoinRequest UpdateKind = "join_request"
	UpdateChannelPost UpdateKind = "channel_post"
)

type Update struct {
	Kind        UpdateKind
	Message     *Message
	Callback    *Callback
	JoinRequest *JoinRequest
	ChannelPost *ChannelPost
}

type Message struct {
	ID           int
	ChatID       int64
	FromID       int64
	FromUsername string
	Text         string
	Caption      string
	PhotoID      string // file id of the largest photo size (empty if none)
	VideoID      string
	IsGroup      bool
}

type Callback struct {
	ID        string
	FromID    int64
	ChatID    int64
	MessageID int
	Data      string
}

// JoinRequest is a pending request to join a chat (typically the restricted group).
type JoinRequest struct {
	ChatID       int64
	FromID       int64
	FromUsername string
}

// ChannelPost is a message posted to a channel the bot is a member of.
// AlbumID groups the parts of a multi-part (media group) post; it is empty
// for standalone posts.
type ChannelPost struct {
	ChatID    int64
	MessageID int
	AlbumID   string
	Text      string
}

type ChatTarget struct {
	ChatID int64
}

type MessageRef struct {
	ChatID    int64
	MessageID int
}

// MemberStatus is the platform's view of an account's standing in a chat.
type MemberStatus string

const (
	StatusOwner         MemberStatus = "creator"
	StatusAdministrator MemberStatus = "administrator"
	StatusMember        MemberStatus = "member"
	StatusRestricted    MemberStatus = "restricted"
	StatusLeft          MemberStatus = "left"
	StatusBanned        MemberStatus = "kicked"
)

// Button is a single inline keyboard button. Exactly one of Data or URL
// should be set.
type Button struct {
	Text string
	Data string
	URL  string
}

type SendOptions struct {
	ParseMode      string
	DisablePreview bool
	Buttons        [][]Button
}

// Adapter abstracts the messaging platform client. All methods are safe for
// concurrent use. Blocking calls honor ctx cancellation.
type Adapter interface {
	Start(ctx context.Context, out chan<- Update) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) (MessageRef, error)
	SendPhoto(ctx context.Context, to ChatTarget, fileID, caption string) (MessageRef, error)
	SendVideo(ctx context.Context, to ChatTarget, fileID, caption string) (MessageRef, error)
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error

	// MemberStatus queries an account's standing in a chat.
	MemberStatus(ctx context.Context, chatID, userID int64) (MemberStatus, error)

	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	DeclineJoinRequest(ctx context.Context, chatID, userID int64) error

	// Expel removes an account from a chat while leaving it free to rejoin
	// later (platform-wise: ban followed immediately by unban).
	Expel(ctx context.Context, chatID, userID int64) error

	// Probe performs a lightweight interaction with an account to detect
	// whether the bot can still reach it (blocked bot, deleted account, ...).
	Probe(ctx context.Context, userID int64) error
}
