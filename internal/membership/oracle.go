// Package membership answers one question: is this account currently a
// member of the reference channel?
package membership

import (
	"context"
	"time"

	"gatebot/internal/transport"
	logx "gatebot/pkg/logx"
)

// StatusSource is the slice of the platform adapter the oracle needs.
type StatusSource interface {
	MemberStatus(ctx context.Context, chatID, userID int64) (transport.MemberStatus, error)
}

type Config struct {
	// ChannelID is the reference channel whose membership gates access.
	ChannelID int64
	// CallTimeout bounds each status query so a hung transport cannot stall
	// admission or a sweep. 0 means the 10s default.
	CallTimeout time.Duration
}

type Oracle struct {
	cfg    Config
	source StatusSource
	log    logx.Logger
}

func NewOracle(cfg Config, source StatusSource, log logx.Logger) *Oracle {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Oracle{cfg: cfg, source: source, log: log}
}

// IsMember reports whether the account is a member (or administrator, or
// owner) of the reference channel.
//
// Fail-closed: a failed query maps to false, because this result gates entry
// to a restricted group and the caller cannot tell "not subscribed" apart
// from "unreachable". The error is logged, never returned.
func (o *Oracle) IsMember(ctx context.Context, userID int64) bool {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.CallTimeout)
	defer cancel()

	status, err := o.source.MemberStatus(ctx, o.cfg.ChannelID, userID)
	if err != nil {
		o.log.Warn("membership query failed; treating as not subscribed",
			logx.Int64("user_id", userID), logx.Err(err))
		return false
	}
	switch status {
	case transport.StatusMember, transport.StatusAdministrator, transport.StatusOwner:
		return true
	default:
		return false
	}
}
