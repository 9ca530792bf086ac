// Package admission decides whether join requests to the restricted group
// are approved, based on reference-channel membership.
package admission

import (
	"context"

	"gatebot/internal/storage"
	"gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

type Decision int

const (
	Declined Decision = iota
	Approved
)

func (d Decision) String() string {
	if d == Approved {
		return "approved"
	}
	return "declined"
}

// Oracle answers the membership question (fail-closed).
type Oracle interface {
	IsMember(ctx context.Context, userID int64) bool
}

// Gate is the slice of the platform adapter that acts on join requests.
type Gate interface {
	ApproveJoinRequest(ctx context.Context, chatID, userID int64) error
	DeclineJoinRequest(ctx context.Context, chatID, userID int64) error
}

type Config struct {
	// GroupID is the restricted group that join requests target.
	GroupID int64
}

type Controller struct {
	cfg    Config
	oracle Oracle
	gate   Gate
	store  storage.Store
	log    logx.Logger
}

func NewController(cfg Config, oracle Oracle, gate Gate, store storage.Store, log logx.Logger) *Controller {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Controller{cfg: cfg, oracle: oracle, gate: gate, store: store, log: log}
}

// HandleJoinRequest resolves a pending join request with a single oracle
// query. No retry: a transient oracle failure reads as "not subscribed" and
// declines; the user can simply re-request.
//
// Approve/decline call failures are logged and not retried; a store failure
// is returned (the approval side effect, if already issued, is not rolled
// back).
func (c *Controller) HandleJoinRequest(ctx context.Context, req transport.JoinRequest) (Decision, error) {
	log := c.log.With(logx.Int64("user_id", req.FromID), logx.String("username", req.FromUsername))

	if !c.oracle.IsMember(ctx, req.FromID) {
		if err := c.gate.DeclineJoinRequest(ctx, c.cfg.GroupID, req.FromID); err != nil {
			log.Warn("join request decline call failed", logx.Err(err))
		}
		log.Info("join request declined")
		return Declined, nil
	}

	if err := c.gate.ApproveJoinRequest(ctx, c.cfg.GroupID, req.FromID); err != nil {
		log.Warn("join request approve call failed", logx.Err(err))
	}
	if err := c.store.Add(ctx, req.FromID); err != nil {
		return Approved, err
	}
	log.Info("join request approved")
	return Approved, nil
}

// HandleDirectCheck is the user-initiated variant ("check my subscription"):
// the same oracle decision with no join-request side effect. A passing check
// records the user as a subscriber.
func (c *Controller) HandleDirectCheck(ctx context.Context, userID int64) (bool, error) {
	if !c.oracle.IsMember(ctx, userID) {
		return false, nil
	}
	if err := c.store.Add(ctx, userID); err != nil {
		return true, err
	}
	c.log.Info("subscription confirmed", logx.Int64("user_id", userID))
	return true, nil
}
