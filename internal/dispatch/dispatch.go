// Package dispatch turns inbound chat messages into broker operations. It
// owns the conversation state machine, the command table, and the rendering
// of outcomes into chat text. Messages from the same user are processed
// strictly in order; different users proceed independently.
package dispatch

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"infobroker/internal/admin"
	"infobroker/internal/catalog"
	"infobroker/internal/ledger"
	"infobroker/internal/pipeline"
	"infobroker/internal/platform/metrics"
	"infobroker/internal/ports"
	"infobroker/internal/session"
	"infobroker/internal/user"
	"infobroker/pkg/audit"
)

// Keyboard selects which reply keyboard the transport renders.
type Keyboard int

const (
	KeyboardNone Keyboard = iota
	KeyboardMain
	KeyboardMainAdmin // main menu with the admin panel row
	KeyboardAdmin
	KeyboardCancel
)

// Reply is one outbound chat message.
type Reply struct {
	Text     string
	Keyboard Keyboard
}

// Sender delivers replies. Implemented by the transport adapter.
type Sender interface {
	Send(ctx context.Context, chatID int64, reply Reply) error
}

// Message is one inbound chat message.
type Message struct {
	UserID    int64
	Username  string
	FirstName string
	LastName  string
	Text      string
}

type handler func(ctx context.Context, msg Message) error

// queueDepth bounds how many unprocessed messages one user can have in
// flight before the poll loop blocks on them.
const queueDepth = 64

// defaultQueueIdle is how long a user's queue worker lingers after its last
// message before it tears itself down.
const defaultQueueIdle = 5 * time.Minute

type queued struct {
	ctx context.Context
	msg Message
}

// userQueue serializes one user's messages. pending counts messages handed
// to the queue but not yet processed; the worker exits only when it is zero.
type userQueue struct {
	ch      chan queued
	pending int
}

// Dispatcher routes messages. The command table is closed at construction;
// unknown text falls through to the classifier and then to a menu hint.
type Dispatcher struct {
	catalog         *catalog.Catalog
	pipeline        *pipeline.Pipeline
	controller      *admin.Controller
	ledger          *ledger.Service
	users           ports.UserStore
	sessions        session.Store
	sender          Sender
	publisher       audit.Publisher
	metrics         *metrics.Metrics
	logger          *slog.Logger
	adminID         int64
	startingCredits int64

	commands  map[string]handler
	queueIdle time.Duration

	mu     sync.Mutex
	queues map[int64]*userQueue
}

func New(
	cat *catalog.Catalog,
	pipe *pipeline.Pipeline,
	controller *admin.Controller,
	led *ledger.Service,
	users ports.UserStore,
	sessions session.Store,
	sender Sender,
	publisher audit.Publisher,
	m *metrics.Metrics,
	logger *slog.Logger,
	adminID, startingCredits int64,
) *Dispatcher {
	d := &Dispatcher{
		catalog:         cat,
		pipeline:        pipe,
		controller:      controller,
		ledger:          led,
		users:           users,
		sessions:        sessions,
		sender:          sender,
		publisher:       publisher,
		metrics:         m,
		logger:          logger,
		adminID:         adminID,
		startingCredits: startingCredits,
		queueIdle:       defaultQueueIdle,
		queues:          make(map[int64]*userQueue),
	}
	d.commands = d.buildCommandTable()
	return d
}

// Enqueue hands a message to the sender's serial queue, starting the queue
// worker on first contact. The transport poll loop calls this synchronously,
// so arrival order is captured before any concurrency begins; messages from
// the same user are processed strictly in that order.
func (d *Dispatcher) Enqueue(ctx context.Context, msg Message) {
	d.mu.Lock()
	q, ok := d.queues[msg.UserID]
	if !ok {
		q = &userQueue{ch: make(chan queued, queueDepth)}
		d.queues[msg.UserID] = q
		go d.drain(msg.UserID, q)
	}
	q.pending++
	d.mu.Unlock()
	q.ch <- queued{ctx: ctx, msg: msg}
}

// drain is the per-user queue worker. After queueIdle with nothing pending
// it removes the queue and exits; the next message recreates both.
func (d *Dispatcher) drain(userID int64, q *userQueue) {
	idle := time.NewTimer(d.queueIdle)
	defer idle.Stop()
	for {
		select {
		case item := <-q.ch:
			if err := d.OnMessage(item.ctx, item.msg); err != nil {
				d.logger.ErrorContext(item.ctx, "handle message", "user_id", userID, "error", err)
			}
			d.mu.Lock()
			q.pending--
			d.mu.Unlock()
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(d.queueIdle)
		case <-idle.C:
			d.mu.Lock()
			if q.pending == 0 {
				delete(d.queues, userID)
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			idle.Reset(d.queueIdle)
		}
	}
}

// OnMessage processes one inbound message end to end. It runs on the user's
// queue worker, one message at a time per user.
func (d *Dispatcher) OnMessage(ctx context.Context, msg Message) error {
	d.metrics.MessagesHandled.Inc()

	u := &user.User{ID: msg.UserID, Username: msg.Username, FirstName: msg.FirstName, LastName: msg.LastName}
	created, err := d.users.GetOrCreate(ctx, u, d.startingCredits)
	if err != nil {
		return err
	}
	if created {
		d.metrics.UsersCreated.Inc()
		d.publisher.Emit(ctx, audit.Event{Action: audit.ActionUserCreated, UserID: msg.UserID, Amount: d.startingCredits})
		d.logger.InfoContext(ctx, "user created", "user_id", msg.UserID)
	}
	if err := d.users.TouchActivity(ctx, msg.UserID, time.Now()); err != nil {
		d.logger.WarnContext(ctx, "touch activity", "user_id", msg.UserID, "error", err)
	}

	text := strings.TrimSpace(msg.Text)

	// The cancellation token wins from any state.
	if isCancel(text) {
		if err := d.sessions.Clear(ctx, msg.UserID); err != nil {
			return err
		}
		return d.send(ctx, msg.UserID, Reply{Text: cancelledText, Keyboard: d.mainKeyboard(msg.UserID)})
	}

	state, err := d.sessions.Get(ctx, msg.UserID)
	if err != nil {
		return err
	}
	if !state.Idle() {
		// Any text in a pending state consumes the attempt.
		if err := d.sessions.Clear(ctx, msg.UserID); err != nil {
			return err
		}
		switch state.Pending {
		case session.PendingServiceInput:
			return d.runLookup(ctx, msg.UserID, state.ServiceKey, text)
		case session.PendingAdminInput:
			// Admin identity is re-verified at consumption time.
			if msg.UserID != d.adminID {
				return nil
			}
			return d.handleAdminInput(ctx, msg, state.AdminAction, text)
		}
	}

	if h, ok := d.commands[text]; ok {
		return h(ctx, msg)
	}

	if _, ok := d.catalog.Match(text); ok {
		return d.runLookup(ctx, msg.UserID, "", text)
	}

	banned, err := d.users.IsBanned(ctx, msg.UserID)
	if err != nil {
		return err
	}
	if banned {
		return nil
	}
	return d.send(ctx, msg.UserID, Reply{Text: chooseOptionText, Keyboard: d.mainKeyboard(msg.UserID)})
}

func (d *Dispatcher) send(ctx context.Context, userID int64, reply Reply) error {
	if err := d.sender.Send(ctx, userID, reply); err != nil {
		d.logger.ErrorContext(ctx, "send reply", "user_id", userID, "error", err)
		return err
	}
	return nil
}

// mainKeyboard is the admin-aware main menu.
func (d *Dispatcher) mainKeyboard(userID int64) Keyboard {
	if userID == d.adminID {
		return KeyboardMainAdmin
	}
	return KeyboardMain
}

func isCancel(text string) bool {
	lower := strings.ToLower(text)
	return lower == "cancel" || lower == "/cancel" || text == ButtonCancel
}
