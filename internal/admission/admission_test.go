package admission

import (
	"context"
	"errors"
	"testing"

	"gatebot/internal/membership"
	"gatebot/internal/storage"
	"gatebot/internal/transport"
	"gatebot/internal/transport/transporttest"
	logx "gatebot/pkg/logx"
)

type stubOracle struct {
	member bool
	calls  int
}

func (o *stubOracle) IsMember(ctx context.Context, userID int64) bool {
	o.calls++
	return o.member
}

const groupID int64 = -100200

func newController(oracle Oracle, gate *transporttest.Fake, store storage.Store) *Controller {
	return NewController(Config{GroupID: groupID}, oracle, gate, store, logx.Nop())
}

func TestJoinRequestApproved(t *testing.T) {
	t.Parallel()

	gate := &transporttest.Fake{}
	store := storage.NewMemory()
	c := newController(&stubOracle{member: true}, gate, store)

	d, err := c.HandleJoinRequest(context.Background(), transport.JoinRequest{ChatID: groupID, FromID: 7})
	if err != nil {
		t.Fatalf("HandleJoinRequest: %v", err)
	}
	if d != Approved {
		t.Fatalf("decision = %s, want approved", d)
	}
	if len(gate.Approved) != 1 || gate.Approved[0] != 7 {
		t.Fatalf("approved = %v", gate.Approved)
	}
	if len(gate.Declined) != 0 {
		t.Fatalf("unexpected declines: %v", gate.Declined)
	}
	if !store.Has(7) {
		t.Fatal("approved user must be recorded as a subscriber")
	}
}

func TestJoinRequestDeclinedWithoutMutation(t *testing.T) {
	t.Parallel()

	gate := &transporttest.Fake{}
	store := storage.NewMemory()
	c := newController(&stubOracle{member: false}, gate, store)

	d, err := c.HandleJoinRequest(context.Background(), transport.JoinRequest{ChatID: groupID, FromID: 8})
	if err != nil {
		t.Fatalf("HandleJoinRequest: %v", err)
	}
	if d != Declined {
		t.Fatalf("decision = %s, want declined", d)
	}
	if len(gate.Declined) != 1 || gate.Declined[0] != 8 {
		t.Fatalf("declined = %v", gate.Declined)
	}
	if len(gate.Approved) != 0 {
		t.Fatalf("unexpected approvals: %v", gate.Approved)
	}
	if store.Len() != 0 {
		t.Fatal("a declined request must not touch the subscriber set")
	}
}

func TestJoinRequestIdempotent(t *testing.T) {
	t.Parallel()

	gate := &transporttest.Fake{}
	store := storage.NewMemory()
	c := newController(&stubOracle{member: true}, gate, store)

	req := transport.JoinRequest{ChatID: groupID, FromID: 9}
	for i := 0; i < 3; i++ {
		if _, err := c.HandleJoinRequest(context.Background(), req); err != nil {
			t.Fatalf("round %d: %v", i, err)
		}
	}
	if store.Len() != 1 {
		t.Fatalf("subscriber count = %d, want 1", store.Len())
	}
}

// A failing oracle backend must read as "not subscribed": the request is
// declined and nothing is stored.
func TestJoinRequestFailedOracleDeclines(t *testing.T) {
	t.Parallel()

	gate := &transporttest.Fake{
		MemberStatusFn: func(chatID, userID int64) (transport.MemberStatus, error) {
			return "", errors.New("telegram: timeout")
		},
	}
	store := storage.NewMemory()
	oracle := membership.NewOracle(membership.Config{ChannelID: -100}, gate, logx.Nop())
	c := newController(oracle, gate, store)

	d, err := c.HandleJoinRequest(context.Background(), transport.JoinRequest{ChatID: groupID, FromID: 10})
	if err != nil {
		t.Fatalf("HandleJoinRequest: %v", err)
	}
	if d != Declined {
		t.Fatalf("decision = %s, want declined", d)
	}
	if store.Len() != 0 {
		t.Fatal("fail-closed decline must not mutate the subscriber set")
	}
}

func TestJoinRequestStoreFailurePropagates(t *testing.T) {
	t.Parallel()

	gate := &transporttest.Fake{}
	store := storage.NewMemory()
	wantErr := errors.New("disk full")
	store.FailAdd = func(userID int64) error { return wantErr }
	c := newController(&stubOracle{member: true}, gate, store)

	d, err := c.HandleJoinRequest(context.Background(), transport.JoinRequest{ChatID: groupID, FromID: 11})
	if !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want %v", err, wantErr)
	}
	if d != Approved {
		t.Fatalf("decision = %s, want approved even when the record fails", d)
	}
}

func TestDirectCheck(t *testing.T) {
	t.Parallel()

	t.Run("member", func(t *testing.T) {
		t.Parallel()
		gate := &transporttest.Fake{}
		store := storage.NewMemory()
		c := newController(&stubOracle{member: true}, gate, store)

		ok, err := c.HandleDirectCheck(context.Background(), 21)
		if err != nil || !ok {
			t.Fatalf("HandleDirectCheck = %v, %v", ok, err)
		}
		if !store.Has(21) {
			t.Fatal("passing check must record the subscriber")
		}
		if len(gate.Approved)+len(gate.Declined) != 0 {
			t.Fatal("a direct check must not touch join requests")
		}
	})

	t.Run("non-member", func(t *testing.T) {
		t.Parallel()
		gate := &transporttest.Fake{}
		store := storage.NewMemory()
		c := newController(&stubOracle{member: false}, gate, store)

		ok, err := c.HandleDirectCheck(context.Background(), 22)
		if err != nil || ok {
			t.Fatalf("HandleDirectCheck = %v, %v", ok, err)
		}
		if store.Len() != 0 {
			t.Fatal("failing check must not record anything")
		}
	})
}
