package broadcast

import (
	"context"
	"errors"
	"testing"

	"gatebot/internal/dedup"
	"gatebot/internal/storage"
	"gatebot/internal/transport"
	"gatebot/internal/transport/transporttest"
	logx "gatebot/pkg/logx"
)

const (
	channelID int64 = -100999
	adminID   int64 = 42
)

func newEngine(fake *transporttest.Fake, store storage.Store) *Engine {
	return NewEngine(Config{
		ChannelID:       channelID,
		ChannelUsername: "refchannel",
		AdminID:         adminID,
	}, fake, store, dedup.New(0, 0), logx.Nop())
}

func seed(t *testing.T, store *storage.Memory, ids ...int64) {
	t.Helper()
	for _, id := range ids {
		if err := store.Add(context.Background(), id); err != nil {
			t.Fatalf("seed %d: %v", id, err)
		}
	}
}

func TestPublishPrunesRejectingSubscribers(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 1, 2, 3)

	fake := &transporttest.Fake{
		SendTextFn: func(to transport.ChatTarget, text string) error {
			if to.ChatID == 2 {
				return errors.New("telegram: bot was blocked by the user")
			}
			return nil
		},
	}
	e := newEngine(fake, store)

	rep, err := e.Publish(context.Background(), PostEvent{MessageID: 10})
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if rep.Skipped {
		t.Fatal("first sighting must not be skipped")
	}
	if rep.Attempted != 3 || rep.Delivered != 2 || rep.Pruned != 1 {
		t.Fatalf("report = %+v, want attempted=3 delivered=2 pruned=1", rep)
	}
	if store.Has(2) {
		t.Fatal("rejecting subscriber must be pruned")
	}
	if !store.Has(1) || !store.Has(3) {
		t.Fatal("delivered subscribers must stay")
	}
}

func TestPublishNotificationText(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 5)
	fake := &transporttest.Fake{}
	e := newEngine(fake, store)

	if _, err := e.Publish(context.Background(), PostEvent{MessageID: 77}); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	got := fake.TextsTo(5)
	if len(got) != 1 || got[0] != "New post on the channel: https://t.me/refchannel/77" {
		t.Fatalf("notification = %q", got)
	}
}

func TestPublishSkipsRepeatedAlbumParts(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 5)
	fake := &transporttest.Fake{}
	e := newEngine(fake, store)

	first, err := e.Publish(context.Background(), PostEvent{MessageID: 20, AlbumID: "a1"})
	if err != nil || first.Skipped {
		t.Fatalf("first part: %+v, %v", first, err)
	}
	second, err := e.Publish(context.Background(), PostEvent{MessageID: 21, AlbumID: "a1"})
	if err != nil {
		t.Fatalf("second part: %v", err)
	}
	if !second.Skipped || second.Attempted != 0 {
		t.Fatalf("second part of the album must be skipped, got %+v", second)
	}
	if n := len(fake.TextsTo(5)); n != 1 {
		t.Fatalf("subscriber notified %d times, want 1", n)
	}
}

func TestPublishDistinctSinglePosts(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 5)
	fake := &transporttest.Fake{}
	e := newEngine(fake, store)

	for _, id := range []int{30, 31} {
		rep, err := e.Publish(context.Background(), PostEvent{MessageID: id})
		if err != nil || rep.Skipped {
			t.Fatalf("message %d: %+v, %v", id, rep, err)
		}
	}
	if n := len(fake.TextsTo(5)); n != 2 {
		t.Fatalf("subscriber notified %d times, want 2", n)
	}
}

func TestAuthoredPostPermissionDenied(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 5)
	fake := &transporttest.Fake{}
	e := newEngine(fake, store)

	_, err := e.PublishAuthoredPost(context.Background(), adminID+1, Content{Text: "hi"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
	if len(fake.Texts)+len(fake.Photos)+len(fake.Videos) != 0 {
		t.Fatal("denied caller must produce no sends")
	}
	if !store.Has(5) {
		t.Fatal("denied caller must not touch the subscriber set")
	}
}

func TestAuthoredPostEmpty(t *testing.T) {
	t.Parallel()

	e := newEngine(&transporttest.Fake{}, storage.NewMemory())
	if _, err := e.PublishAuthoredPost(context.Background(), adminID, Content{Text: "   "}); !errors.Is(err, ErrEmptyPost) {
		t.Fatalf("err = %v, want ErrEmptyPost", err)
	}
}

func TestAuthoredPhotoPublishedThenFannedOut(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 5)
	fake := &transporttest.Fake{}
	e := newEngine(fake, store)

	rep, err := e.PublishAuthoredPost(context.Background(), adminID, Content{PhotoID: "file123", Caption: "look"})
	if err != nil {
		t.Fatalf("PublishAuthoredPost: %v", err)
	}
	if rep.Attempted != 1 || rep.Delivered != 1 {
		t.Fatalf("report = %+v", rep)
	}
	if len(fake.Photos) != 1 || fake.Photos[0].ChatID != channelID || fake.Photos[0].FileID != "file123" {
		t.Fatalf("channel photo = %+v", fake.Photos)
	}
	if n := len(fake.TextsTo(5)); n != 1 {
		t.Fatalf("subscriber notified %d times, want 1", n)
	}
}

// The channel echoes an authored post back as a channel-post update; that
// echo must not trigger a second fan-out.
func TestAuthoredPostEchoSuppressed(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 5)
	fake := &transporttest.Fake{}
	e := newEngine(fake, store)

	if _, err := e.PublishAuthoredPost(context.Background(), adminID, Content{Text: "fresh"}); err != nil {
		t.Fatalf("PublishAuthoredPost: %v", err)
	}
	// The fake assigned message id 1 to the channel send.
	rep, err := e.Publish(context.Background(), PostEvent{MessageID: 1})
	if err != nil {
		t.Fatalf("Publish echo: %v", err)
	}
	if !rep.Skipped {
		t.Fatal("echoed channel post must be skipped")
	}
	if n := len(fake.TextsTo(5)); n != 1 {
		t.Fatalf("subscriber notified %d times, want 1", n)
	}
}

func TestPublishListFailureAborts(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	wantErr := errors.New("db locked")
	store.FailList = func() error { return wantErr }
	e := newEngine(&transporttest.Fake{}, store)

	if _, err := e.Publish(context.Background(), PostEvent{MessageID: 50}); !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
}

func TestPublishRemoveFailureAborts(t *testing.T) {
	t.Parallel()

	store := storage.NewMemory()
	seed(t, store, 1)
	wantErr := errors.New("db locked")
	store.FailRemove = func(userID int64) error { return wantErr }

	fake := &transporttest.Fake{
		SendTextFn: func(to transport.ChatTarget, text string) error {
			return errors.New("telegram: user is deactivated")
		},
	}
	e := newEngine(fake, store)

	rep, err := e.Publish(context.Background(), PostEvent{MessageID: 60})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if rep.Pruned != 0 {
		t.Fatalf("pruned = %d, want 0 when the removal itself failed", rep.Pruned)
	}
}
