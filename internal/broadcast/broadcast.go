// Package broadcast fans out "new post" notifications to every stored
// subscriber, pruning subscribers that reject delivery.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"gatebot/internal/dedup"
	"gatebot/internal/storage"
	"gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// ErrPermissionDenied is returned when a non-designated identity invokes an
// administrator-only operation. No side effects have occurred.
var ErrPermissionDenied = errors.New("permission denied")

// ErrEmptyPost is returned when an authored post carries neither text nor media.
var ErrEmptyPost = errors.New("post has no content")

type Config struct {
	// ChannelID is the reference channel authored posts are published to.
	ChannelID int64
	// ChannelUsername builds the canonical https://t.me/<username>/<id> link.
	ChannelUsername string
	// AdminID is the only identity allowed to author posts.
	AdminID int64
	// RatePerSec caps notification sends. <= 0 selects 25, just under
	// Telegram's bot-wide ceiling.
	RatePerSec int
}

// PostEvent is a new message observed on the reference channel. AlbumID is
// set when the message is one part of a multi-part post.
type PostEvent struct {
	MessageID int
	AlbumID   string
}

// Content is an administrator-authored post: text, or a photo/video with an
// optional caption.
type Content struct {
	Text    string
	PhotoID string
	VideoID string
	Caption string
}

func (c Content) empty() bool {
	return strings.TrimSpace(c.Text) == "" && c.PhotoID == "" && c.VideoID == ""
}

// Report summarizes one fan-out.
type Report struct {
	// Skipped is set when the dedup guard suppressed the event entirely.
	Skipped   bool
	Attempted int
	Delivered int
	Pruned    int
}

// Sender is the slice of the platform adapter the engine needs.
type Sender interface {
	SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error)
	SendPhoto(ctx context.Context, to transport.ChatTarget, fileID, caption string) (transport.MessageRef, error)
	SendVideo(ctx context.Context, to transport.ChatTarget, fileID, caption string) (transport.MessageRef, error)
}

type Engine struct {
	cfg     Config
	sender  Sender
	store   storage.Store
	guard   *dedup.Guard
	limiter *rate.Limiter
	log     logx.Logger
}

func NewEngine(cfg Config, sender Sender, store storage.Store, guard *dedup.Guard, log logx.Logger) *Engine {
	rps := cfg.RatePerSec
	if rps <= 0 {
		rps = 25
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Engine{
		cfg:     cfg,
		sender:  sender,
		store:   store,
		guard:   guard,
		limiter: rate.NewLimiter(rate.Limit(rps), rps),
		log:     log,
	}
}

// Publish notifies every subscriber about a post that appeared on the
// reference channel. Parts of one multi-part post past the first are
// reported as skipped with no further action.
//
// Delivery failures are routine (blocked bots, deleted accounts): they are
// logged and answered by pruning the subscriber, never escalated. Only store
// failures abort the fan-out.
func (e *Engine) Publish(ctx context.Context, ev PostEvent) (Report, error) {
	// Two suppression keys: the message id catches the echoed update for a
	// post this bot itself authored, the album id catches repeated parts of
	// a multi-part post.
	if !e.guard.ShouldProcess(messageKey(ev.MessageID)) || !e.guard.ShouldProcess(albumKey(ev.AlbumID)) {
		e.log.Debug("post already handled, skipping",
			logx.String("album_id", ev.AlbumID), logx.Int("message_id", ev.MessageID))
		return Report{Skipped: true}, nil
	}
	url := e.postURL(ev.MessageID)
	e.log.Info("new channel post", logx.String("url", url))
	return e.fanOut(ctx, url)
}

// PublishAuthoredPost publishes administrator content to the reference
// channel, then fans out the same notification as Publish. Callers other
// than the designated administrator get ErrPermissionDenied and nothing
// happens.
func (e *Engine) PublishAuthoredPost(ctx context.Context, actorID int64, content Content) (Report, error) {
	if actorID != e.cfg.AdminID {
		return Report{}, ErrPermissionDenied
	}
	if content.empty() {
		return Report{}, ErrEmptyPost
	}

	to := transport.ChatTarget{ChatID: e.cfg.ChannelID}
	var (
		ref transport.MessageRef
		err error
	)
	switch {
	case content.PhotoID != "":
		ref, err = e.sender.SendPhoto(ctx, to, content.PhotoID, content.Caption)
	case content.VideoID != "":
		ref, err = e.sender.SendVideo(ctx, to, content.VideoID, content.Caption)
	default:
		ref, err = e.sender.SendText(ctx, to, content.Text, nil)
	}
	if err != nil {
		return Report{}, fmt.Errorf("publish to channel: %w", err)
	}

	// Mark the authored message so its echoed channel-post update does not
	// trigger a second fan-out.
	e.guard.ShouldProcess(messageKey(ref.MessageID))

	return e.fanOut(ctx, e.postURL(ref.MessageID))
}

func (e *Engine) fanOut(ctx context.Context, url string) (Report, error) {
	ids, err := e.store.List(ctx)
	if err != nil {
		return Report{}, err
	}

	var rep Report
	text := "New post on the channel: " + url
	for _, id := range ids {
		if err := e.limiter.Wait(ctx); err != nil {
			return rep, err
		}
		rep.Attempted++
		_, err := e.sender.SendText(ctx, transport.ChatTarget{ChatID: id}, text, &transport.SendOptions{DisablePreview: false})
		if err == nil {
			rep.Delivered++
			continue
		}
		e.log.Info("delivery rejected, pruning subscriber",
			logx.Int64("user_id", id), logx.Err(err))
		if rerr := e.store.Remove(ctx, id); rerr != nil {
			return rep, rerr
		}
		rep.Pruned++
	}

	e.log.Info("broadcast finished",
		logx.Int("attempted", rep.Attempted),
		logx.Int("delivered", rep.Delivered),
		logx.Int("pruned", rep.Pruned))
	return rep, nil
}

func (e *Engine) postURL(messageID int) string {
	return fmt.Sprintf("https://t.me/%s/%d", e.cfg.ChannelUsername, messageID)
}

func messageKey(messageID int) string {
	return fmt.Sprintf("msg:%d", messageID)
}

func albumKey(albumID string) string {
	if albumID == "" {
		return "" // no group id: every message is independently significant
	}
	return "album:" + albumID
}
