// Package poller implements the dequeue-polling consumer loop for the
// restore request store: claim the next pending request, hand it to a
// handler, and record the resulting status.
package poller

import (
	"context"
	"errors"
	"time"

	"github.com/restoremgr/store/restore"
)

// Store is the subset of the restore request store the poller uses.
// It is satisfied by the dynamodb package's Client.
type Store interface {
	ClaimNextPending(ctx context.Context) (*restore.Request, error)
	Update(ctx context.Context, req *restore.Request) error
}

// Handler processes one claimed restore request and returns the status
// to record for it. A returned error marks the request FAILED.
type Handler func(ctx context.Context, req *restore.Request) (restore.Status, error)

// Poller is a single-consumer pull loop over a [Store]. Use [New] to
// create one and [Poller.Run] to start it.
type Poller struct {
	store   Store
	handler Handler
	opts    *Options
}

// New creates a new Poller that feeds claimed requests to handler.
func New(store Store, handler Handler, opts ...Option) *Poller {
	options := newOptions()

	for _, o := range opts {
		o(options)
	}

	return &Poller{
		store:   store,
		handler: handler,
		opts:    options,
	}
}

// Run starts the pull loop and blocks until the context is cancelled,
// at which point it returns the context's error.
//
// When the queue is empty or the store fails, the wait between polls
// doubles from the configured interval up to the configured maximum,
// and resets as soon as work is found. Store and handler failures are
// logged and never stop the loop.
func (p *Poller) Run(ctx context.Context) error {
	if p.store == nil {
		return errors.New("store cannot be nil")
	}

	if p.handler == nil {
		return errors.New("handler cannot be nil")
	}

	if err := p.opts.validate(); err != nil {
		return err
	}

	log := p.opts.logger

	log.Info().Dur("interval", p.opts.interval).Msg("poller starting")

	backoff := p.opts.interval

	for {
		if err := ctx.Err(); err != nil {
			log.Info().Msg("poller stopping")
			return err
		}

		req, err := p.store.ClaimNextPending(ctx)
		if err != nil {
			log.Error().Err(err).Msg("failed to claim next pending restore request")

			if err := p.wait(ctx, backoff); err != nil {
				return err
			}

			backoff = min(backoff*2, p.opts.maxBackoff)
			continue
		}

		if req == nil {
			log.Debug().Msg("no pending restore requests")

			if err := p.wait(ctx, backoff); err != nil {
				return err
			}

			backoff = min(backoff*2, p.opts.maxBackoff)
			continue
		}

		backoff = p.opts.interval

		p.process(ctx, req)
	}
}

func (p *Poller) process(ctx context.Context, req *restore.Request) {
	log := p.opts.logger.With().Str("locator", req.StatusLocationURI).Logger()

	status, err := p.handler(ctx, req)
	if err != nil {
		log.Error().Err(err).Msg("restore request handler failed")
		status = restore.StatusFailed
	}

	req.Status = status

	if err := p.store.Update(ctx, req); err != nil {
		log.Error().Err(err).Str("status", string(status)).Msg("failed to record restore request status")
		return
	}

	log.Info().Str("status", string(status)).Msg("restore request processed")
}

func (p *Poller) wait(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}
