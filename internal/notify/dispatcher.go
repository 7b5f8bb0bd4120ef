// Package notify fans push notifications out to every registered device of a
// set of recipients. Delivery is best effort and at most once.
package notify

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"relay-chat/internal/domain/user"
	"relay-chat/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Notification is one delivery request for one device token.
type Notification struct {
	Token  string
	Title  string
	Body   string
	ChatID string
}

type Sender interface {
	Send(ctx context.Context, n Notification) error
}

// TokenSource resolves a recipient's device tokens.
type TokenSource interface {
	GetPushTokens(ctx context.Context, uid string) ([]user.PushToken, error)
}

type Config struct {
	Timeout     time.Duration
	Concurrency int
}

type Dispatcher struct {
	tokens TokenSource
	sender Sender
	cfg    Config
	log    *logger.Logger
	wg     sync.WaitGroup
}

func NewDispatcher(tokens TokenSource, sender Sender, cfg Config, log *logger.Logger) *Dispatcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Dispatcher{tokens: tokens, sender: sender, cfg: cfg, log: log}
}

// Dispatch starts delivery and returns immediately. The work is detached
// from ctx cancellation and bounded by the configured timeout; ctx values
// are kept for logging. The returned task may be ignored.
func (d *Dispatcher) Dispatch(ctx context.Context, recipients []string, title, body, chatID string) *Task {
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.cfg.Timeout)
	task := newTask(cancel)
	task.report.Recipients = len(recipients)

	if len(recipients) == 0 || d.sender == nil {
		task.finish()
		return task
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer task.finish()
		d.run(runCtx, task, recipients, title, body, chatID)
	}()
	return task
}

// Wait blocks until every dispatched task has finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context, task *Task, recipients []string, title, body, chatID string) {
	log := d.log.Ctx(ctx).With(zap.String("chat_id", chatID))

	var g errgroup.Group
	g.SetLimit(d.cfg.Concurrency)
	for _, uid := range recipients {
		tokens, err := d.tokens.GetPushTokens(ctx, uid)
		if err != nil {
			log.Warn("resolving push tokens failed", zap.String("recipient", uid), zap.Error(err))
			continue
		}
		for _, tok := range tokens {
			n := Notification{Token: tok.Token, Title: title, Body: body, ChatID: chatID}
			atomic.AddInt64(&task.attempted, 1)
			g.Go(func() error {
				if err := d.sender.Send(ctx, n); err != nil {
					atomic.AddInt64(&task.failed, 1)
					log.Warn("push delivery failed", zap.String("recipient", uid), zap.Error(err))
					return nil
				}
				atomic.AddInt64(&task.delivered, 1)
				return nil
			})
		}
	}
	_ = g.Wait()
}
