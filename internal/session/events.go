package session

import (
	"github.com/hammerline/auction-backend/internal/engine"
	"github.com/hammerline/auction-backend/pkg/types"
)

// toMessage converts an engine event to its wire form. Recipients get value
// copies; nothing here aliases engine state.
func (s *Session) toMessage(ev engine.Event) types.ServerMessage {
	switch ev.Type {
	case engine.EvtBidConfirmed:
		return types.ServerMessage{Type: types.MsgBidConfirmed, Bid: bidPayload(ev.Bid)}

	case engine.EvtNewBid:
		return types.ServerMessage{Type: types.MsgBidNew, Bid: bidPayload(ev.Bid)}

	case engine.EvtBidAccepted:
		return types.ServerMessage{Type: types.MsgBidAccepted, Bid: bidPayload(ev.Bid)}

	case engine.EvtBidRejected:
		return types.ServerMessage{Type: types.MsgBidRejected, Bid: bidPayload(ev.Bid), Reason: ev.Reason}

	case engine.EvtBidUpdate:
		amount := ev.CurrentBid
		return types.ServerMessage{
			Type:       types.MsgBidUpdate,
			CurrentBid: &amount,
			Source:     string(ev.Source),
			BidderName: ev.BidderName,
		}

	case engine.EvtStarted:
		amount := ev.CurrentBid
		return types.ServerMessage{Type: types.MsgAuctionStarted, Lot: lotPayload(ev.Lot), CurrentBid: &amount}

	case engine.EvtLotChanged:
		amount := ev.CurrentBid
		return types.ServerMessage{Type: types.MsgLotChanged, Lot: lotPayload(ev.Lot), CurrentBid: &amount}

	case engine.EvtLotSold:
		return types.ServerMessage{
			Type: types.MsgLotSold,
			Sale: &types.SalePayload{
				LotNumber:   ev.Sale.LotNumber,
				Description: ev.Sale.Description,
				Amount:      ev.Sale.Amount,
				Winner:      ev.Sale.Winner,
				IsOnline:    ev.Sale.IsOnline,
			},
		}

	case engine.EvtEnded:
		return types.ServerMessage{Type: types.MsgAuctionEnded}

	default:
		return types.ServerMessage{Type: string(ev.Type)}
	}
}

// redactedSnapshot is the bidder bootstrap view: no pending queue, no other
// bidders' identities.
func (s *Session) redactedSnapshot() *types.StatePayload {
	return &types.StatePayload{
		IsLive:       s.state.IsLive,
		Lot:          lotPayload(s.state.CurrentLot),
		CurrentBid:   s.state.CurrentBid,
		BidIncrement: s.state.BidIncrement,
		BidderCount:  s.reg.countByRole(RoleBidder),
	}
}

// fullSnapshot is the clerk bootstrap view, pending queue included.
func (s *Session) fullSnapshot() *types.FullStatePayload {
	pending := make([]types.BidPayload, 0, len(s.state.PendingBids))
	for i := range s.state.PendingBids {
		pending = append(pending, *bidPayload(&s.state.PendingBids[i]))
	}
	return &types.FullStatePayload{
		IsLive:       s.state.IsLive,
		Lot:          lotPayload(s.state.CurrentLot),
		CurrentBid:   s.state.CurrentBid,
		BidIncrement: s.state.BidIncrement,
		PendingBids:  pending,
		Counts: types.CountsPayload{
			Bidders: s.reg.countByRole(RoleBidder),
			Clerks:  s.reg.countByRole(RoleClerk),
		},
	}
}

func bidPayload(b *engine.Bid) *types.BidPayload {
	if b == nil {
		return nil
	}
	return &types.BidPayload{
		ID:         b.ID,
		BidderID:   b.BidderID,
		BidderName: b.BidderName,
		Amount:     b.Amount,
		LotNumber:  b.LotNumber,
		Placed:     b.Placed,
		Status:     string(b.Status),
		Origin:     string(b.Origin),
	}
}

func lotPayload(l *engine.Lot) *types.LotPayload {
	if l == nil {
		return nil
	}
	return &types.LotPayload{
		Number:      l.Number,
		Description: l.Description,
		StartingBid: l.StartingBid,
	}
}
