// Package relay fans cursor and content messages out between the
// participants of each document, remembers every document's latest
// snapshot for late joiners, and backs snapshots up to a store.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"github.com/dannyswat/vcursor"
	"github.com/dannyswat/vcursor/internal/store"
	"github.com/dannyswat/vcursor/transport/redisch"
)

type Options struct {
	// Store persists snapshots. Nil keeps them in memory only.
	Store store.Store
	// Redis, when set, routes every message through Pub/Sub so that several
	// relay instances can serve the same document.
	Redis  redis.UniversalClient
	Logger *slog.Logger
	// BackupInterval is how often dirty snapshots are saved. Defaults to
	// five seconds.
	BackupInterval time.Duration
}

type Relay struct {
	opts     Options
	logger   *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	rooms map[string]*room
}

func New(opts Options) *Relay {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.BackupInterval <= 0 {
		opts.BackupInterval = 5 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Relay{
		opts:   opts,
		logger: opts.Logger.With("component", "relay"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		ctx:    ctx,
		cancel: cancel,
		rooms:  make(map[string]*room),
	}
}

// room returns the room for docID, creating it (and loading its snapshot)
// on first use.
func (r *Relay) room(ctx context.Context, docID string) (*room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rm, ok := r.rooms[docID]; ok {
		return rm, nil
	}

	rm := newRoom(docID, r.logger)
	if r.opts.Store != nil {
		content, err := r.opts.Store.Load(ctx, docID)
		switch {
		case errors.Is(err, store.ErrNotFound):
		case err != nil:
			return nil, err
		default:
			if err := rm.seed(content); err != nil {
				return nil, fmt.Errorf("stored snapshot of %s: %w", docID, err)
			}
		}
	}

	if r.opts.Redis != nil {
		ch, err := redisch.Subscribe(r.ctx, r.opts.Redis, docID, r.logger)
		if err != nil {
			return nil, err
		}
		for _, t := range messageTypes {
			ch.On(t, rm.deliver)
		}
		rm.backplane = ch
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			if err := ch.Run(r.ctx); err != nil && !errors.Is(err, context.Canceled) {
				r.logger.Error("redis subscription ended", "doc", docID, "err", err)
			}
		}()
	}

	r.rooms[docID] = rm
	return rm, nil
}

var messageTypes = []vcursor.MessageType{
	vcursor.MsgCursorPosition,
	vcursor.MsgRequestCursorRefresh,
	vcursor.MsgRequestCursorRefreshAll,
	vcursor.MsgRealtimeContentUpdate,
	vcursor.MsgParticipantLeft,
}

// ServeWS upgrades the request and relays messages for docID until the
// connection closes.
func (r *Relay) ServeWS(w http.ResponseWriter, req *http.Request, docID string) {
	rm, err := r.room(req.Context(), docID)
	if err != nil {
		r.logger.Error("failed to open room", "doc", docID, "err", err)
		http.Error(w, "failed to open document", http.StatusInternalServerError)
		return
	}
	ws, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.logger.Error("failed to upgrade", "err", err)
		return
	}

	c := newConn(ws)
	rm.join(c)
	r.logger.Info("participant connected", "doc", docID, "conns", rm.size())

	done := make(chan struct{})
	go func() {
		c.writePump()
		close(done)
	}()
	c.readPump(func(m vcursor.Message) {
		c.observe(m)
		r.publish(rm, m)
	})

	for _, id := range rm.leave(c) {
		r.publish(rm, vcursor.Message{
			Type:      vcursor.MsgParticipantLeft,
			Departure: &vcursor.Departure{ParticipantID: id, Timestamp: time.Now()},
		})
	}
	<-done
	r.logger.Info("participant disconnected", "doc", docID, "conns", rm.size())
}

func (r *Relay) publish(rm *room, m vcursor.Message) {
	if rm.backplane == nil {
		rm.deliver(m)
		return
	}
	if err := rm.backplane.Send(m); err != nil {
		r.logger.Error("failed to publish", "doc", rm.id, "type", m.Type, "err", err)
	}
}

// Snapshot returns the latest known HTML of docID.
func (r *Relay) Snapshot(ctx context.Context, docID string) (string, bool, error) {
	rm, err := r.room(ctx, docID)
	if err != nil {
		return "", false, err
	}
	s, ok := rm.latest()
	return s, ok, nil
}

// ReplaceSnapshot sets the content of docID and sends it to every
// participant as a full replacement.
func (r *Relay) ReplaceSnapshot(ctx context.Context, docID, content string) error {
	rm, err := r.room(ctx, docID)
	if err != nil {
		return err
	}
	canonical, err := canonicalize(content)
	if err != nil {
		return err
	}
	r.publish(rm, vcursor.Message{
		Type:    vcursor.MsgRealtimeContentUpdate,
		Content: relayUpdate(canonical),
	})
	return nil
}

// Backup saves every snapshot changed since the previous backup.
func (r *Relay) Backup(ctx context.Context) error {
	if r.opts.Store == nil {
		return nil
	}
	r.mu.Lock()
	rooms := make([]*room, 0, len(r.rooms))
	for _, rm := range r.rooms {
		rooms = append(rooms, rm)
	}
	r.mu.Unlock()

	var errs []error
	for _, rm := range rooms {
		content, version, ok := rm.dirtySnapshot()
		if !ok {
			continue
		}
		if err := r.opts.Store.Save(ctx, rm.id, content); err != nil {
			errs = append(errs, err)
			continue
		}
		rm.markSaved(version)
		r.logger.Info("backed up", "doc", rm.id)
	}
	return errors.Join(errs...)
}

// Run backs snapshots up periodically until ctx is done, then once more.
func (r *Relay) Run(ctx context.Context) error {
	t := time.NewTicker(r.opts.BackupInterval)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			if err := r.Backup(ctx); err != nil {
				r.logger.Error("failed to back up", "err", err)
			}
		case <-ctx.Done():
			return r.Backup(context.Background())
		}
	}
}

// Close stops Redis subscriptions and disconnects every participant.
func (r *Relay) Close() {
	r.cancel()
	r.mu.Lock()
	for _, rm := range r.rooms {
		rm.close()
	}
	r.mu.Unlock()
	r.wg.Wait()
}
