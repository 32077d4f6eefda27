package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/cenkalti/backoff.v1"

	"discord-code-runner/internal/config"
	"discord-code-runner/internal/model"
	"discord-code-runner/internal/report"
	"discord-code-runner/internal/store"
)

// startWindow bounds how old a message may be on a channel's first poll.
const startWindow = 30 * time.Minute

// Transport is the chat service the runner polls and replies through.
type Transport interface {
	Me(ctx context.Context) (model.User, error)
	FetchMessages(ctx context.Context, channelID, after string) ([]model.Message, error)
	SendText(ctx context.Context, channelID, text string) error
}

type App struct {
	cfg     config.Runtime
	chat    Transport
	handler *Handler
	allow   *config.AllowList
	store   *store.JSONStore
	state   store.State
	self    model.User
	logger  *zap.Logger
	now     func() time.Time
}

func New(cfg config.Runtime, chat Transport, allow *config.AllowList, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	h, err := NewHandler(cfg, logger)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, chat, h, allow, logger)
}

func newApp(cfg config.Runtime, chat Transport, h *Handler, allow *config.AllowList, logger *zap.Logger) (*App, error) {
	st := store.NewJSONStore(filepath.Join(cfg.WorkDir, "state.json"))
	state, err := st.Load()
	if err != nil {
		return nil, err
	}
	if allow == nil {
		allow, _ = config.LoadAllowList("")
	}
	return &App{
		cfg:     cfg,
		chat:    chat,
		handler: h,
		allow:   allow,
		store:   st,
		state:   state,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Run polls every configured channel until ctx is done. Failed polls are
// retried with exponential backoff.
func (a *App) Run(ctx context.Context) error {
	me, err := a.chat.Me(ctx)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	a.self = me
	a.logger.Info(me.Username+" is connected!", zap.String("user_id", me.ID))
	if err := a.allow.Watch(ctx, a.logger); err != nil {
		a.logger.Warn("allowlist watch disabled", zap.Error(err))
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = a.cfg.PollInterval
	b.MaxInterval = 2 * time.Minute
	b.MaxElapsedTime = 0
	b.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
		wait := a.cfg.PollInterval
		if err := a.pollOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			wait = b.NextBackOff()
			a.logger.Warn("poll error", zap.Error(err), zap.Duration("retry_in", wait))
		} else {
			b.Reset()
		}
		timer.Reset(wait)
	}
}

func (a *App) pollOnce(ctx context.Context) error {
	var errs []error
	for _, ch := range a.cfg.Channels {
		if err := a.pollChannel(ctx, ch); err != nil {
			errs = append(errs, fmt.Errorf("channel %s: %w", ch, err))
		}
	}
	a.state.LastPollUnix = a.now().Unix()
	if err := a.store.Save(a.state); err != nil {
		errs = append(errs, fmt.Errorf("save state: %w", err))
	}
	return errors.Join(errs...)
}

func (a *App) pollChannel(ctx context.Context, channelID string) error {
	cursor := a.state.Cursors[channelID]
	for {
		msgs, err := a.chat.FetchMessages(ctx, channelID, cursor)
		if err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		a.handleBatch(ctx, a.pending(msgs, cursor == ""))
		cursor = msgs[len(msgs)-1].MessageID
		a.state.Cursors[channelID] = cursor
	}
}

// pending drops messages already handled, written by bots (the runner
// included) or, on a channel's first poll, older than startWindow.
func (a *App) pending(msgs []model.Message, firstPoll bool) []model.Message {
	out := make([]model.Message, 0, len(msgs))
	oldest := a.now().Add(-startWindow)
	for _, msg := range msgs {
		if _, seen := a.state.Processed[msg.MessageID]; seen {
			continue
		}
		if msg.AuthorBot || msg.AuthorID == a.self.ID {
			continue
		}
		if firstPoll && msg.CreateTime.Before(oldest) {
			continue
		}
		out = append(out, msg)
	}
	return out
}

// handleBatch handles msgs concurrently, at most cfg.Workers at a time.
func (a *App) handleBatch(ctx context.Context, msgs []model.Message) {
	var g errgroup.Group
	g.SetLimit(max(a.cfg.Workers, 1))
	for _, msg := range msgs {
		g.Go(func() error {
			a.handleMessage(ctx, msg)
			return nil
		})
	}
	_ = g.Wait()
	now := a.now().Unix()
	for _, msg := range msgs {
		a.state.Processed[msg.MessageID] = now
	}
}

func (a *App) handleMessage(ctx context.Context, msg model.Message) {
	if !a.handler.Matches(msg.Text) {
		return
	}
	log := a.logger.With(zap.String("channel_id", msg.ChannelID), zap.String("message_id", msg.MessageID))
	reply := report.Denied()
	if a.allow.Allowed(msg.AuthorID) {
		var ok bool
		if reply, ok = a.handler.Handle(ctx, msg); !ok {
			return
		}
	} else {
		log.Info("command from user not on allowlist", zap.String("author_id", msg.AuthorID))
	}
	if err := a.chat.SendText(ctx, msg.ChannelID, reply); err != nil {
		log.Error("Error sending message", zap.Error(err))
	}
}
