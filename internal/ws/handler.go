package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hammerline/auction-backend/internal/engine"
	"github.com/hammerline/auction-backend/internal/session"
	"github.com/hammerline/auction-backend/pkg/types"
)

const writeTimeout = 3 * time.Second

type Options struct {
	OriginPatterns []string
	OutboxSize     int
}

// Handler upgrades the connection and bridges it to the session actor: a
// reader loop turning frames into commands, and a writer goroutine draining
// the connection's outbox.
func Handler(sess *session.Session, opts Options, log *zap.Logger) http.HandlerFunc {
	if log == nil {
		log = zap.NewNop()
	}
	outboxSize := opts.OutboxSize
	if outboxSize <= 0 {
		outboxSize = 16
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		connID := uuid.NewString()
		outbox := make(chan types.ServerMessage, outboxSize)
		registered := false

		// On exit: a registered connection leaves through the session, which
		// closes the outbox; an unregistered one was never shared with the
		// session, so the handler closes it itself to unwind the writer.
		defer func() {
			if registered {
				sess.Inbox() <- session.Leave{ConnID: connID}
			} else {
				close(outbox)
			}
		}()

		// Writer goroutine. The session closes the outbox when it drops or
		// shuts down this client; closing the transport then unblocks the
		// reader.
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for msg := range outbox {
				payload, err := json.Marshal(msg)
				if err != nil {
					log.Error("marshal server message", zap.Error(err))
					continue
				}
				ctx, cancel := context.WithTimeout(writeCtx, writeTimeout)
				_ = conn.Write(ctx, websocket.MessageText, payload)
				cancel()
			}
			conn.Close(websocket.StatusGoingAway, "session closed")
		}()

		// Reader loop.
		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					return
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			if role, ok := registerRole(cm.Type); ok {
				sess.Inbox() <- session.Join{
					ConnID:   connID,
					Role:     role,
					BidderID: cm.ID,
					Name:     cm.Name,
					Outbox:   outbox,
				}
				registered = true
				continue
			}

			if !registered {
				writeError(r.Context(), conn, "register first")
				continue
			}

			cmd, ok := toCommand(cm)
			if !ok {
				writeError(r.Context(), conn, "unknown type")
				continue
			}

			sess.Inbox() <- session.FromClient{ConnID: connID, Cmd: cmd}
		}
	}
}

func registerRole(msgType string) (session.Role, bool) {
	switch msgType {
	case types.MsgRegisterBidder:
		return session.RoleBidder, true
	case types.MsgRegisterClerk:
		return session.RoleClerk, true
	default:
		return "", false
	}
}

func toCommand(m types.ClientMessage) (engine.Command, bool) {
	switch m.Type {
	case types.MsgBidSubmit:
		return engine.Command{Type: engine.CmdSubmitBid, Amount: m.Amount}, true

	case types.MsgBidAccept:
		return engine.Command{Type: engine.CmdAcceptBid, BidID: m.BidID}, true

	case types.MsgBidReject:
		return engine.Command{Type: engine.CmdRejectBid, BidID: m.BidID, Reason: m.Reason}, true

	case types.MsgAuctionSetLot:
		if m.Lot == nil {
			return engine.Command{}, false
		}
		return engine.Command{
			Type: engine.CmdSetLot,
			Lot: engine.Lot{
				Number:      m.Lot.Number,
				Description: m.Lot.Description,
				StartingBid: m.StartingBid,
			},
		}, true

	case types.MsgAuctionStart:
		if m.Lot == nil {
			return engine.Command{}, false
		}
		return engine.Command{
			Type: engine.CmdStartAuction,
			Lot: engine.Lot{
				Number:      m.Lot.Number,
				Description: m.Lot.Description,
				StartingBid: m.StartingBid,
			},
			Increment: m.Increment,
		}, true

	case types.MsgUpdateBid:
		return engine.Command{
			Type:       engine.CmdUpdateBid,
			Amount:     m.Amount,
			Source:     engine.BidOrigin(m.Source),
			BidderName: m.Name,
		}, true

	case types.MsgAuctionSold:
		return engine.Command{
			Type:     engine.CmdMarkSold,
			Amount:   m.Amount,
			Winner:   m.Winner,
			IsOnline: m.IsOnline,
		}, true

	case types.MsgAuctionEnd:
		return engine.Command{Type: engine.CmdEndAuction}, true

	default:
		return engine.Command{}, false
	}
}

func writeError(ctx context.Context, conn *websocket.Conn, message string) {
	payload, _ := json.Marshal(types.ServerMessage{Type: types.MsgBidError, Message: message})
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	_ = conn.Write(wctx, websocket.MessageText, payload)
}
