package services

import (
	"context"
	"errors"
	"time"

	tgclient "github.com/advisorkit/consultant-backend/internal/clients/telegram"
	"github.com/advisorkit/consultant-backend/internal/logger"
	pkgerr "github.com/advisorkit/consultant-backend/internal/pkg/errors"
	"github.com/advisorkit/consultant-backend/internal/repos"
)

const (
	DefaultReconcileInterval = time.Hour
	reconnectBackoffCap      = time.Minute
)

// TelegramWatcher owns the live subscription and the periodic reconciler for
// all active rooms. Both paths funnel into the same save-and-index unit, so
// overlap between them is harmless.
type TelegramWatcher struct {
	sess     tgclient.Session
	sync     TelegramSyncService
	rooms    repos.ChatRoomRepo
	interval time.Duration
	log      *logger.Logger
}

func NewTelegramWatcher(
	sess tgclient.Session,
	sync TelegramSyncService,
	rooms repos.ChatRoomRepo,
	interval time.Duration,
	log *logger.Logger,
) *TelegramWatcher {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &TelegramWatcher{
		sess:     sess,
		sync:     sync,
		rooms:    rooms,
		interval: interval,
		log:      log.With("service", "TelegramWatcher"),
	}
}

// Run connects and stays connected until ctx is cancelled, reconnecting with
// exponential backoff on transport failures. An unauthorized session is
// fatal and returned to the caller.
func (w *TelegramWatcher) Run(ctx context.Context) error {
	w.sess.Subscribe(w.handleLive)

	backoff := time.Second
	for {
		err := w.sess.Run(ctx, func(ctx context.Context) error {
			backoff = time.Second

			// close the gap left by downtime before trusting live delivery
			if err := w.sync.CatchupAll(ctx, w.sess); err != nil && ctx.Err() == nil {
				w.log.Error("initial catch-up failed", "error", err.Error())
			}

			ticker := time.NewTicker(w.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-ticker.C:
					if err := w.sync.CatchupAll(ctx, w.sess); err != nil && ctx.Err() == nil {
						w.log.Error("reconciler pass failed", "error", err.Error())
					}
				}
			}
		})

		if ctx.Err() != nil {
			return nil
		}
		if errors.Is(err, tgclient.ErrNotAuthorized) {
			return err
		}

		w.log.Warn("telegram session dropped, reconnecting",
			"backoff", backoff.String(),
			"error", err.Error(),
		)
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > reconnectBackoffCap {
			backoff = reconnectBackoffCap
		}
	}
}

// handleLive stores one live message if its room is watched and active.
func (w *TelegramWatcher) handleLive(ctx context.Context, msg tgclient.Message) error {
	room, err := w.rooms.GetByID(ctx, nil, msg.ChatID)
	if err != nil {
		if errors.Is(err, pkgerr.ErrNotFound) {
			return nil
		}
		return err
	}
	if !room.IsActive {
		return nil
	}

	saved, err := w.sync.SaveAndIndexMessage(ctx, msg)
	if err != nil {
		return err
	}
	if saved {
		w.log.Debug("live message stored", "chat_id", msg.ChatID, "message_id", msg.MessageID)
	}
	return nil
}
