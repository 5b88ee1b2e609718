package session

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/hammerline/auction-backend/internal/engine"
	"github.com/hammerline/auction-backend/pkg/types"
	"github.com/shopspring/decimal"
)

// Recorder receives terminal bids and completed sales for the append-only
// audit log. Implementations must not block; they are called from the
// session loop.
type Recorder interface {
	RecordBid(bid engine.Bid, reason string)
	RecordSale(sale engine.Sale)
}

type Msg interface{ isSessionMsg() }

// Join registers a connection under a role and delivers its bootstrap
// snapshot to Outbox.
type Join struct {
	ConnID   string
	Role     Role
	BidderID string
	Name     string
	Outbox   chan types.ServerMessage
}

func (Join) isSessionMsg() {}

type Leave struct{ ConnID string }

func (Leave) isSessionMsg() {}

type FromClient struct {
	ConnID string
	Cmd    engine.Command
}

func (FromClient) isSessionMsg() {}

// RecordSale is the checkout-collaborator seam: a sale completed outside the
// live engine (POST /auction/record-sale) triggers the lotSold broadcast and
// state clear without a clerk connection.
type RecordSale struct {
	Amount   decimal.Decimal
	Winner   string
	IsOnline bool
}

func (RecordSale) isSessionMsg() {}

type StateQuery struct {
	Reply chan View
}

func (StateQuery) isSessionMsg() {}

type Shutdown struct{}

func (Shutdown) isSessionMsg() {}

// View reflects internal state without data races; used by the status
// endpoint and tests.
type View struct {
	Version     int
	State       engine.State
	BidderCount int
	ClerkCount  int
}

// Session is the auction session actor: a single goroutine owns the
// AuctionState and the connection registry, so every state transition runs
// as one critical section.
type Session struct {
	inbox   chan Msg
	state   engine.State
	version int
	reg     *registry
	rec     Recorder
	log     *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(parent context.Context, initial engine.State, rec Recorder, log *zap.Logger) *Session {
	ctx, cancel := context.WithCancel(parent)

	if log == nil {
		log = zap.NewNop()
	}
	s := &Session{
		inbox:  make(chan Msg, 64),
		state:  initial,
		reg:    newRegistry(),
		rec:    rec,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go s.loop()
	return s
}

func (s *Session) Inbox() chan<- Msg { return s.inbox }

// Done is closed once the loop has exited; after that no more commands are
// processed and the Recorder receives no further calls.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) loop() {
	defer close(s.done)
	for {
		select {
		case <-s.ctx.Done():
			s.shutdown()
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case Join:
				s.handleJoin(msg)

			case Leave:
				s.handleLeave(msg)

			case FromClient:
				s.handleCommand(msg)

			case RecordSale:
				// Pre-authorized: the HTTP host is trusted the way a clerk is.
				s.apply(engine.Command{
					Type:     engine.CmdMarkSold,
					Amount:   msg.Amount,
					Winner:   msg.Winner,
					IsOnline: msg.IsOnline,
				}, "")

			case StateQuery:
				msg.Reply <- View{
					Version:     s.version,
					State:       s.state,
					BidderCount: s.reg.countByRole(RoleBidder),
					ClerkCount:  s.reg.countByRole(RoleClerk),
				}

			case Shutdown:
				s.shutdown()
				return
			}
		}
	}
}

func (s *Session) handleJoin(msg Join) {
	if !s.reg.register(msg.ConnID, msg.Role, msg.BidderID, msg.Name, msg.Outbox) {
		// One role per connection lifetime; no role upgrade.
		s.trySend(msg.ConnID, msg.Outbox, types.ServerMessage{
			Type:    types.MsgBidError,
			Message: "connection already registered under a different role",
		})
		return
	}

	switch msg.Role {
	case RoleClerk:
		s.trySend(msg.ConnID, msg.Outbox, types.ServerMessage{
			Type:      types.MsgFullState,
			FullState: s.fullSnapshot(),
		})
	default:
		s.trySend(msg.ConnID, msg.Outbox, types.ServerMessage{
			Type:  types.MsgAuctionState,
			State: s.redactedSnapshot(),
		})
		s.broadcastCounts()
	}

	s.log.Info("client registered",
		zap.String("conn", msg.ConnID),
		zap.String("role", string(msg.Role)),
		zap.String("bidder_id", msg.BidderID))
}

func (s *Session) handleLeave(msg Leave) {
	c := s.reg.get(msg.ConnID)
	if c == nil {
		return
	}
	s.reg.deregister(msg.ConnID)
	close(c.outbox)
	if c.role == RoleBidder {
		// Pending bids from this bidder stay in the queue; only the count moves.
		s.broadcastCounts()
	}
	s.log.Info("client deregistered", zap.String("conn", msg.ConnID), zap.String("role", string(c.role)))
}

func (s *Session) handleCommand(msg FromClient) {
	c := s.reg.get(msg.ConnID)
	if c == nil {
		// The transport already answers pre-registration traffic with a
		// direct error (ws.Handler's "register first"); what lands here is a
		// command in flight from a connection dropped moments ago. There is
		// no outbox left to signal, so the drop is logged only.
		s.log.Warn("command from unregistered connection",
			zap.String("conn", msg.ConnID),
			zap.String("cmd", string(msg.Cmd.Type)))
		return
	}

	required, ok := commandRole(msg.Cmd.Type)
	if !ok {
		s.trySend(msg.ConnID, c.outbox, types.ServerMessage{Type: types.MsgBidError, Message: "unsupported command"})
		return
	}
	if c.role != required {
		// Authorization denied: dropped, signalled to the caller only.
		s.trySend(msg.ConnID, c.outbox, types.ServerMessage{Type: types.MsgBidError, Message: "not authorized"})
		s.log.Warn("authorization denied",
			zap.String("conn", msg.ConnID),
			zap.String("role", string(c.role)),
			zap.String("cmd", string(msg.Cmd.Type)))
		return
	}

	cmd := msg.Cmd
	cmd.ConnID = msg.ConnID
	if cmd.Type == engine.CmdSubmitBid {
		// Identity is server-authoritative: taken from the registry, never
		// from the wire payload.
		cmd.BidderID = c.bidderID
		cmd.BidderName = c.name
	}

	s.apply(cmd, msg.ConnID)
}

// apply runs a command through the engine, adopts the new state, records
// terminal bids, and fans out the resulting events. senderConn may be empty
// for host-initiated commands.
func (s *Session) apply(cmd engine.Command, senderConn string) {
	events, newState, err := engine.Apply(s.state, cmd)
	if err != nil {
		if errors.Is(err, engine.ErrBidNotFound) {
			// Already resolved or never existed; tolerated.
			s.log.Info("stale bid reference", zap.String("bid_id", cmd.BidID), zap.String("cmd", string(cmd.Type)))
			return
		}
		if c := s.reg.get(senderConn); c != nil {
			s.trySend(senderConn, c.outbox, types.ServerMessage{Type: types.MsgBidError, Message: err.Error()})
		}
		return
	}

	s.state = newState
	s.version++

	for _, ev := range events {
		s.record(ev, cmd.Reason)
		s.route(ev)
	}
}

func (s *Session) record(ev engine.Event, reason string) {
	if s.rec == nil {
		return
	}
	switch ev.Type {
	case engine.EvtBidAccepted:
		s.rec.RecordBid(*ev.Bid, "")
	case engine.EvtBidRejected:
		s.rec.RecordBid(*ev.Bid, reason)
	case engine.EvtLotSold:
		s.rec.RecordSale(*ev.Sale)
	}
}

// route delivers one event to its audience, at most once per connection.
// A full outbox drops that client; delivery to the rest continues.
func (s *Session) route(ev engine.Event) {
	msg := s.toMessage(ev)

	droppedBidder := false
	for connID, c := range s.reg.clients {
		if !matches(ev.Audience, connID, c.role) {
			continue
		}
		if !s.trySend(connID, c.outbox, msg) && c.role == RoleBidder {
			droppedBidder = true
		}
	}
	if droppedBidder {
		s.broadcastCounts()
	}
}

// trySend is a non-blocking send. A slow or full client is dropped from the
// registry and its outbox closed so the transport writer unwinds.
func (s *Session) trySend(connID string, ch chan types.ServerMessage, msg types.ServerMessage) bool {
	select {
	case ch <- msg:
		return true
	default:
		close(ch)
		s.reg.deregister(connID)
		s.log.Warn("dropping slow client", zap.String("conn", connID))
		return false
	}
}

func (s *Session) broadcastCounts() {
	counts := &types.CountsPayload{
		Bidders: s.reg.countByRole(RoleBidder),
		Clerks:  s.reg.countByRole(RoleClerk),
	}
	msg := types.ServerMessage{Type: types.MsgBiddersCount, Counts: counts}
	for connID, c := range s.reg.clients {
		if c.role == RoleClerk {
			s.trySend(connID, c.outbox, msg)
		}
	}
}

func (s *Session) shutdown() {
	for id, c := range s.reg.clients {
		close(c.outbox)
		s.reg.deregister(id)
	}
	s.cancel()
}

func matches(a engine.Audience, connID string, role Role) bool {
	switch a.Kind {
	case engine.AudienceAll:
		return true
	case engine.AudienceBidders:
		return role == RoleBidder
	case engine.AudienceClerks:
		return role == RoleClerk
	case engine.AudienceConn:
		return a.ConnID == connID
	default:
		return false
	}
}

// commandRole maps a command to the role allowed to issue it. Everything
// except bid submission is clerk-privileged.
func commandRole(t engine.CommandType) (Role, bool) {
	switch t {
	case engine.CmdSubmitBid:
		return RoleBidder, true
	case engine.CmdAcceptBid, engine.CmdRejectBid, engine.CmdSetLot,
		engine.CmdStartAuction, engine.CmdUpdateBid, engine.CmdMarkSold,
		engine.CmdEndAuction:
		return RoleClerk, true
	default:
		return "", false
	}
}
