// Package transporttest provides an in-memory Adapter for tests.
package transporttest

import (
	"context"
	"sync"

	"gatebot/internal/transport"
)

type SentText struct {
	ChatID int64
	Text   string
	Opt    *transport.SendOptions
}

type SentMedia struct {
	ChatID  int64
	FileID  string
	Caption string
}

type Expelled struct {
	ChatID int64
	UserID int64
}

type Answer struct {
	CallbackID string
	Text       string
	Alert      bool
}

// Fake records every adapter call and lets tests inject per-call behavior
// through the *Fn hooks. The zero value succeeds on everything.
type Fake struct {
	mu sync.Mutex

	SendTextFn     func(to transport.ChatTarget, text string) error
	MemberStatusFn func(chatID, userID int64) (transport.MemberStatus, error)
	ProbeFn        func(userID int64) error
	ExpelFn        func(chatID, userID int64) error
	ApproveFn      func(chatID, userID int64) error
	DeclineFn      func(chatID, userID int64) error

	Texts    []SentText
	Photos   []SentMedia
	Videos   []SentMedia
	Answers  []Answer
	Approved []int64
	Declined []int64
	Expels   []Expelled
	Probes   []int64

	MemberStatusCalls int

	nextMessageID int
}

var _ transport.Adapter = (*Fake)(nil)

func (f *Fake) Start(ctx context.Context, out chan<- transport.Update) error { return nil }
func (f *Fake) Stop(ctx context.Context) error                               { return nil }

func (f *Fake) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) (transport.MessageRef, error) {
	f.mu.Lock()
	fn := f.SendTextFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(to, text); err != nil {
			return transport.MessageRef{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Texts = append(f.Texts, SentText{ChatID: to.ChatID, Text: text, Opt: opt})
	f.nextMessageID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextMessageID}, nil
}

func (f *Fake) SendPhoto(ctx context.Context, to transport.ChatTarget, fileID, caption string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Photos = append(f.Photos, SentMedia{ChatID: to.ChatID, FileID: fileID, Caption: caption})
	f.nextMessageID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextMessageID}, nil
}

func (f *Fake) SendVideo(ctx context.Context, to transport.ChatTarget, fileID, caption string) (transport.MessageRef, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Videos = append(f.Videos, SentMedia{ChatID: to.ChatID, FileID: fileID, Caption: caption})
	f.nextMessageID++
	return transport.MessageRef{ChatID: to.ChatID, MessageID: f.nextMessageID}, nil
}

func (f *Fake) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Answers = append(f.Answers, Answer{CallbackID: callbackID, Text: text, Alert: alert})
	return nil
}

func (f *Fake) MemberStatus(ctx context.Context, chatID, userID int64) (transport.MemberStatus, error) {
	f.mu.Lock()
	f.MemberStatusCalls++
	fn := f.MemberStatusFn
	f.mu.Unlock()
	if fn != nil {
		return fn(chatID, userID)
	}
	return transport.StatusMember, nil
}

func (f *Fake) ApproveJoinRequest(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	fn := f.ApproveFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(chatID, userID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Approved = append(f.Approved, userID)
	return nil
}

func (f *Fake) DeclineJoinRequest(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	fn := f.DeclineFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(chatID, userID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Declined = append(f.Declined, userID)
	return nil
}

func (f *Fake) Expel(ctx context.Context, chatID, userID int64) error {
	f.mu.Lock()
	fn := f.ExpelFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(chatID, userID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Expels = append(f.Expels, Expelled{ChatID: chatID, UserID: userID})
	return nil
}

func (f *Fake) Probe(ctx context.Context, userID int64) error {
	f.mu.Lock()
	fn := f.ProbeFn
	f.mu.Unlock()
	if fn != nil {
		if err := fn(userID); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Probes = append(f.Probes, userID)
	return nil
}

// TextsTo returns the texts sent to one chat.
func (f *Fake) TextsTo(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, t := range f.Texts {
		if t.ChatID == chatID {
			out = append(out, t.Text)
		}
	}
	return out
}
