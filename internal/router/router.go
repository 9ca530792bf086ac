// Package router dispatches platform updates to the admission controller,
// broadcast engine and sweeper, and implements the bot's command surface.
package router

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"

	"gatebot/internal/admission"
	"gatebot/internal/broadcast"
	"gatebot/internal/storage"
	"gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

const checkSubscriptionCallback = "check_subscription"

type Config struct {
	AdminID         int64
	AdminUsername   string
	ChannelID       int64
	ChannelUsername string
	GroupID         int64
	GroupInviteLink string
}

// Sweeper is the slice of the reconciliation sweeper the router needs.
type Sweeper interface {
	Sweep(ctx context.Context) (int, error)
}

type Router struct {
	cfg       Config
	adapter   transport.Adapter
	admission *admission.Controller
	engine    *broadcast.Engine
	sweeper   Sweeper
	store     storage.Store
	log       logx.Logger
}

func New(cfg Config, adapter transport.Adapter, adm *admission.Controller, engine *broadcast.Engine, sweeper Sweeper, store storage.Store, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Router{
		cfg:       cfg,
		adapter:   adapter,
		admission: adm,
		engine:    engine,
		sweeper:   sweeper,
		store:     store,
		log:       log,
	}
}

// Run consumes updates until ctx is cancelled or the channel closes. Every
// update is handled on its own goroutine so a slow broadcast cannot stall an
// incoming join request.
func (r *Router) Run(ctx context.Context, updates <-chan transport.Update) {
	for {
		select {
		case <-ctx.Done():
			return
		case up, ok := <-updates:
			if !ok {
				return
			}
			go r.dispatch(ctx, up)
		}
	}
}

func (r *Router) dispatch(ctx context.Context, up transport.Update) {
	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("panic in update handler",
				logx.Any("panic", rec), logx.String("stack", string(debug.Stack())))
		}
	}()
	r.Handle(ctx, up)
}

// Handle routes a single update.
func (r *Router) Handle(ctx context.Context, up transport.Update) {
	switch up.Kind {
	case transport.UpdateJoinRequest:
		if up.JoinRequest == nil || up.JoinRequest.ChatID != r.cfg.GroupID {
			return
		}
		if _, err := r.admission.HandleJoinRequest(ctx, *up.JoinRequest); err != nil {
			r.log.Error("join request handling failed",
				logx.Int64("user_id", up.JoinRequest.FromID), logx.Err(err))
		}

	case transport.UpdateChannelPost:
		if up.ChannelPost == nil || up.ChannelPost.ChatID != r.cfg.ChannelID {
			return
		}
		ev := broadcast.PostEvent{MessageID: up.ChannelPost.MessageID, AlbumID: up.ChannelPost.AlbumID}
		if _, err := r.engine.Publish(ctx, ev); err != nil {
			r.log.Error("channel post broadcast failed",
				logx.Int("message_id", ev.MessageID), logx.Err(err))
		}

	case transport.UpdateCallback:
		if up.Callback != nil && up.Callback.Data == checkSubscriptionCallback {
			r.handleCheckCallback(ctx, up.Callback)
		}

	case transport.UpdateMessage:
		if up.Message != nil {
			r.handleMessage(ctx, up.Message)
		}
	}
}

func (r *Router) handleCheckCallback(ctx context.Context, cb *transport.Callback) {
	ok, err := r.admission.HandleDirectCheck(ctx, cb.FromID)
	if err != nil {
		r.log.Error("direct check failed", logx.Int64("user_id", cb.FromID), logx.Err(err))
	}
	if !ok {
		if err := r.adapter.AnswerCallback(ctx, cb.ID, "You are not subscribed to the channel yet.", true); err != nil {
			r.log.Warn("callback answer failed", logx.Err(err))
		}
		return
	}
	if err := r.adapter.AnswerCallback(ctx, cb.ID, "Check passed!", false); err != nil {
		r.log.Warn("callback answer failed", logx.Err(err))
	}
	text := "Thanks for subscribing!"
	if r.cfg.GroupInviteLink != "" {
		text += " You can now join the group: " + r.cfg.GroupInviteLink
	}
	r.reply(ctx, cb.ChatID, text)
}

func (r *Router) handleMessage(ctx context.Context, m *transport.Message) {
	cmd, args := parseCommand(m)
	if cmd == "" {
		return
	}

	switch cmd {
	case "start":
		r.handleStart(ctx, m)
	case "post":
		r.handlePost(ctx, m, args)
	case "check_users":
		r.handleCheckUsers(ctx, m)
	case "list_users":
		r.handleListUsers(ctx, m)
	}
}

// parseCommand extracts "/cmd args" from a message's text, or from its
// caption for media messages. It returns an empty command for non-command
// messages. A "@botname" suffix on the command is ignored.
func parseCommand(m *transport.Message) (cmd, args string) {
	src := m.Text
	if src == "" {
		src = m.Caption
	}
	src = strings.TrimSpace(src)
	if !strings.HasPrefix(src, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(src[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}

func (r *Router) handleStart(ctx context.Context, m *transport.Message) {
	text := fmt.Sprintf(
		"Hi! Subscribe to the channel first: https://t.me/%s\nThen tap \"Check subscription\".",
		r.cfg.ChannelUsername,
	)
	opt := &transport.SendOptions{
		Buttons: [][]transport.Button{
			{{Text: "Check subscription", Data: checkSubscriptionCallback}},
		},
	}
	if r.cfg.AdminUsername != "" {
		opt.Buttons = append(opt.Buttons, []transport.Button{
			{Text: "Message the admin", URL: "https://t.me/" + r.cfg.AdminUsername},
		})
	}
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: m.ChatID}, text, opt); err != nil {
		r.log.Warn("start reply failed", logx.Err(err))
	}
}

func (r *Router) handlePost(ctx context.Context, m *transport.Message, args string) {
	if !r.isAdmin(m.FromID) {
		r.reply(ctx, m.ChatID, "This command is available to the administrator only.")
		return
	}

	content := broadcast.Content{Text: args, PhotoID: m.PhotoID, VideoID: m.VideoID}
	if content.PhotoID != "" || content.VideoID != "" {
		// For media the command came from the caption; the remainder is the
		// published caption.
		content.Text = ""
		content.Caption = args
	}

	rep, err := r.engine.PublishAuthoredPost(ctx, m.FromID, content)
	switch {
	case errors.Is(err, broadcast.ErrPermissionDenied):
		r.reply(ctx, m.ChatID, "This command is available to the administrator only.")
	case errors.Is(err, broadcast.ErrEmptyPost):
		r.reply(ctx, m.ChatID, "Provide post text or attach a photo/video.")
	case err != nil:
		r.log.Error("authored post failed", logx.Err(err))
		r.reply(ctx, m.ChatID, "Publishing failed, see logs.")
	default:
		r.reply(ctx, m.ChatID, fmt.Sprintf(
			"Post published. Notified %d of %d subscribers (%d pruned).",
			rep.Delivered, rep.Attempted, rep.Pruned))
	}
}

func (r *Router) handleCheckUsers(ctx context.Context, m *transport.Message) {
	if !r.isAdmin(m.FromID) {
		r.reply(ctx, m.ChatID, "This command is available to the administrator only.")
		return
	}

	ids, err := r.store.List(ctx)
	if err != nil {
		r.log.Error("subscriber list failed", logx.Err(err))
		r.reply(ctx, m.ChatID, "Subscriber check failed, see logs.")
		return
	}
	if len(ids) == 0 {
		r.reply(ctx, m.ChatID, "The subscriber list is empty. Nothing to check.")
		return
	}

	removed, err := r.sweeper.Sweep(ctx)
	if err != nil {
		r.log.Error("manual sweep failed", logx.Err(err))
		r.reply(ctx, m.ChatID, "Subscriber check failed, see logs.")
		return
	}
	r.reply(ctx, m.ChatID, fmt.Sprintf("Check finished. Removed subscribers: %d", removed))
}

func (r *Router) handleListUsers(ctx context.Context, m *transport.Message) {
	if !r.isAdmin(m.FromID) {
		r.reply(ctx, m.ChatID, "This command is available to the administrator only.")
		return
	}

	ids, err := r.store.List(ctx)
	if err != nil {
		r.log.Error("subscriber list failed", logx.Err(err))
		r.reply(ctx, m.ChatID, "Listing failed, see logs.")
		return
	}
	if len(ids) == 0 {
		r.reply(ctx, m.ChatID, "The subscriber list is empty.")
		return
	}
	var b strings.Builder
	b.WriteString("Subscribers:")
	for _, id := range ids {
		b.WriteString("\n")
		b.WriteString(strconv.FormatInt(id, 10))
	}
	r.reply(ctx, m.ChatID, b.String())
}

func (r *Router) isAdmin(userID int64) bool { return userID == r.cfg.AdminID }

func (r *Router) reply(ctx context.Context, chatID int64, text string) {
	if _, err := r.adapter.SendText(ctx, transport.ChatTarget{ChatID: chatID}, text, nil); err != nil {
		r.log.Warn("reply failed", logx.Int64("chat_id", chatID), logx.Err(err))
	}
}
