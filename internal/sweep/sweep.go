// Package sweep periodically re-validates every stored subscriber.
//
// Admission only validates at entry time; the sweep is the one mechanism
// that notices subscribers who later unsubscribed from the reference
// channel or became unreachable.
package sweep

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"gatebot/internal/storage"
	logx "gatebot/pkg/logx"
)

const defaultSchedule = "0 */4 * * *"

// Oracle answers the membership question (fail-closed).
type Oracle interface {
	IsMember(ctx context.Context, userID int64) bool
}

// Moderator is the slice of the platform adapter that evicts and probes.
type Moderator interface {
	// Expel removes the account from the chat but leaves it free to rejoin.
	Expel(ctx context.Context, chatID, userID int64) error
	// Probe checks that the account can still be reached.
	Probe(ctx context.Context, userID int64) error
}

type Config struct {
	// GroupID is the restricted group failing subscribers are expelled from.
	GroupID int64
	// Schedule is a cron spec or descriptor; empty selects every 4 hours.
	Schedule string
	// CallTimeout bounds each probe call. 0 means the 10s default.
	CallTimeout time.Duration
}

type Sweeper struct {
	cfg    Config
	oracle Oracle
	mod    Moderator
	store  storage.Store
	log    logx.Logger

	mu sync.Mutex
	c  *cron.Cron
}

func New(cfg Config, oracle Oracle, mod Moderator, store storage.Store, log logx.Logger) *Sweeper {
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Sweeper{cfg: cfg, oracle: oracle, mod: mod, store: store, log: log}
}

// Sweep re-validates the current subscriber snapshot and returns how many
// subscribers were removed. Revoke failures are logged and do not block the
// rest of the sweep; only store failures abort it.
func (s *Sweeper) Sweep(ctx context.Context) (int, error) {
	ids, err := s.store.List(ctx)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		s.log.Debug("sweep: no subscribers")
		return 0, nil
	}

	removed := 0
	for _, id := range ids {
		subscribed := s.oracle.IsMember(ctx, id)
		reachable := s.probe(ctx, id)
		if subscribed && reachable {
			continue
		}

		if err := s.store.Remove(ctx, id); err != nil {
			return removed, err
		}
		removed++

		if err := s.mod.Expel(ctx, s.cfg.GroupID, id); err != nil {
			s.log.Warn("group expel failed", logx.Int64("user_id", id), logx.Err(err))
		} else {
			s.log.Info("subscriber removed from group",
				logx.Int64("user_id", id),
				logx.Bool("subscribed", subscribed),
				logx.Bool("reachable", reachable))
		}
	}

	s.log.Info("sweep finished", logx.Int("checked", len(ids)), logx.Int("removed", removed))
	return removed, nil
}

func (s *Sweeper) probe(ctx context.Context, userID int64) bool {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.CallTimeout)
	defer cancel()
	if err := s.mod.Probe(ctx, userID); err != nil {
		s.log.Debug("subscriber unreachable", logx.Int64("user_id", userID), logx.Err(err))
		return false
	}
	return true
}

// Start registers the periodic sweep. The schedule accepts both 5-field and
// 6-field (with seconds) cron specs plus descriptors like "@every 4h".
func (s *Sweeper) Start(ctx context.Context) error {
	spec := s.cfg.Schedule
	if spec == "" {
		spec = defaultSchedule
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	_, err := c.AddFunc(spec, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			s.log.Error("scheduled sweep failed", logx.Err(err))
		}
	})
	if err != nil {
		return errors.New("invalid sweep schedule " + spec + ": " + err.Error())
	}

	s.mu.Lock()
	if s.c != nil {
		s.mu.Unlock()
		return errors.New("sweeper already started")
	}
	s.c = c
	s.mu.Unlock()

	c.Start()
	s.log.Info("sweep scheduled", logx.String("spec", spec))
	return nil
}

// Stop halts the schedule and waits for an in-flight sweep, bounded by ctx.
func (s *Sweeper) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.c
	s.c = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	done := c.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}
