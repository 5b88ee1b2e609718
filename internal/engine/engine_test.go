package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func liveState(currentBid, increment int64) State {
	s := NewState()
	s.IsLive = true
	s.CurrentLot = &Lot{Number: 7, Description: "walnut sideboard", StartingBid: decimal.NewFromInt(currentBid)}
	s.CurrentBid = decimal.NewFromInt(currentBid)
	s.BidIncrement = decimal.NewFromInt(increment)
	return s
}

func submit(t *testing.T, s State, connID string, amount int64) ([]Event, State) {
	t.Helper()
	events, next, err := Apply(s, Command{
		Type:       CmdSubmitBid,
		ConnID:     connID,
		BidderID:   "b-" + connID,
		BidderName: "Bidder " + connID,
		Amount:     decimal.NewFromInt(amount),
	})
	require.NoError(t, err)
	return events, next
}

func TestSubmitBid_NotLive(t *testing.T) {
	s := NewState()

	_, next, err := Apply(s, Command{Type: CmdSubmitBid, Amount: decimal.NewFromInt(10)})
	require.ErrorIs(t, err, ErrAuctionNotLive)
	require.Empty(t, next.PendingBids)
}

func TestSubmitBid_TooLow(t *testing.T) {
	s := liveState(100, 5)

	for _, amount := range []int64{95, 99, 100} {
		_, next, err := Apply(s, Command{Type: CmdSubmitBid, ConnID: "c1", Amount: decimal.NewFromInt(amount)})
		require.ErrorIs(t, err, ErrBidTooLow, "amount %d", amount)
		require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(100)))
		require.Empty(t, next.PendingBids)
	}
}

func TestSubmitBid_QueuesPendingAndRoutesEvents(t *testing.T) {
	s := liveState(100, 5)

	events, next := submit(t, s, "c1", 105)

	require.Len(t, next.PendingBids, 1)
	bid := next.PendingBids[0]
	require.Equal(t, BidPending, bid.Status)
	require.Equal(t, OriginOnline, bid.Origin)
	require.Equal(t, 7, bid.LotNumber)
	require.NotEmpty(t, bid.ID)
	require.True(t, bid.Amount.Equal(decimal.NewFromInt(105)))

	// Submission never moves the current bid; only acceptance does.
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(100)))

	confirmed := FindEvent(events, EvtBidConfirmed)
	require.NotNil(t, confirmed)
	require.Equal(t, ToConn("c1"), confirmed.Audience)

	newBid := FindEvent(events, EvtNewBid)
	require.NotNil(t, newBid)
	require.Equal(t, ToClerks(), newBid.Audience)
}

func TestSubmitBid_UniqueIDs(t *testing.T) {
	s := liveState(100, 5)

	_, s = submit(t, s, "c1", 105)
	_, s = submit(t, s, "c2", 110)
	_, s = submit(t, s, "c3", 115)

	seen := map[string]bool{}
	for _, b := range s.PendingBids {
		require.False(t, seen[b.ID], "duplicate bid id %s", b.ID)
		seen[b.ID] = true
	}
}

func TestAcceptBid_MovesCurrentBid(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)
	bidID := s.PendingBids[0].ID

	events, next, err := Apply(s, Command{Type: CmdAcceptBid, BidID: bidID})
	require.NoError(t, err)
	require.Empty(t, next.PendingBids)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(105)))

	accepted := FindEvent(events, EvtBidAccepted)
	require.NotNil(t, accepted)
	require.Equal(t, ToConn("c1"), accepted.Audience)
	require.Equal(t, BidAccepted, accepted.Bid.Status)

	update := FindEvent(events, EvtBidUpdate)
	require.NotNil(t, update)
	require.Equal(t, ToAll(), update.Audience)
	require.Equal(t, OriginOnline, update.Source)
	require.Equal(t, "Bidder c1", update.BidderName)
}

func TestAcceptBid_SecondResolutionIsNotFound(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)
	bidID := s.PendingBids[0].ID

	_, s, err := Apply(s, Command{Type: CmdAcceptBid, BidID: bidID})
	require.NoError(t, err)

	_, next, err := Apply(s, Command{Type: CmdAcceptBid, BidID: bidID})
	require.ErrorIs(t, err, ErrBidNotFound)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(105)))

	_, next, err = Apply(s, Command{Type: CmdRejectBid, BidID: bidID})
	require.ErrorIs(t, err, ErrBidNotFound)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(105)))
}

func TestAcceptBid_LeavesCompetingBidsPending(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)
	_, s = submit(t, s, "c2", 110)

	// Accepting one bid never auto-resolves the other; superseded bids stay
	// pending until the clerk rejects them.
	_, next, err := Apply(s, Command{Type: CmdAcceptBid, BidID: s.PendingBids[1].ID})
	require.NoError(t, err)
	require.Len(t, next.PendingBids, 1)
	require.Equal(t, s.PendingBids[0].ID, next.PendingBids[0].ID)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(110)))
}

func TestAcceptBid_ClerkResolutionIsUnconditional(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)
	_, s = submit(t, s, "c2", 110)
	lowID := s.PendingBids[0].ID
	highID := s.PendingBids[1].ID

	_, s, err := Apply(s, Command{Type: CmdAcceptBid, BidID: highID})
	require.NoError(t, err)
	require.True(t, s.CurrentBid.Equal(decimal.NewFromInt(110)))

	// Accepting the superseded bid afterwards is the clerk correcting the
	// record: the accepted amount is adopted as-is.
	_, next, err := Apply(s, Command{Type: CmdAcceptBid, BidID: lowID})
	require.NoError(t, err)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(105)))
	require.Empty(t, next.PendingBids)
}

func TestSubmitBid_BetweenLots(t *testing.T) {
	s := liveState(100, 5)
	_, s, err := Apply(s, Command{Type: CmdMarkSold, Amount: decimal.NewFromInt(100), Winner: "Floor", IsOnline: false})
	require.NoError(t, err)

	// Live with no lot attached: bids compete against a zero current bid.
	events, next := submit(t, s, "c1", 10)
	require.Len(t, next.PendingBids, 1)
	require.Equal(t, 0, next.PendingBids[0].LotNumber)
	require.True(t, ContainsEvent(events, EvtNewBid))
}

func TestRejectBid_NotifiesBidderOnly(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)
	bidID := s.PendingBids[0].ID

	events, next, err := Apply(s, Command{Type: CmdRejectBid, BidID: bidID, Reason: "floor bid stands"})
	require.NoError(t, err)
	require.Empty(t, next.PendingBids)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(100)))

	require.Len(t, events, 1)
	require.Equal(t, EvtBidRejected, events[0].Type)
	require.Equal(t, ToConn("c1"), events[0].Audience)
	require.Equal(t, "floor bid stands", events[0].Reason)
	require.Equal(t, BidRejected, events[0].Bid.Status)
}

func TestSetLot_AlwaysClearsPendingBids(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)
	_, s = submit(t, s, "c2", 120)

	events, next, err := Apply(s, Command{
		Type: CmdSetLot,
		Lot:  Lot{Number: 12, Description: "brass clock", StartingBid: decimal.NewFromInt(50)},
	})
	require.NoError(t, err)
	require.Empty(t, next.PendingBids)
	require.Equal(t, 12, next.CurrentLot.Number)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(50)))

	changed := FindEvent(events, EvtLotChanged)
	require.NotNil(t, changed)
	require.Equal(t, ToAll(), changed.Audience)
	require.Equal(t, 12, changed.Lot.Number)
	require.True(t, changed.CurrentBid.Equal(decimal.NewFromInt(50)))
}

func TestStartAuction(t *testing.T) {
	s := NewState()

	events, next, err := Apply(s, Command{
		Type:      CmdStartAuction,
		Lot:       Lot{Number: 1, Description: "oak dresser", StartingBid: decimal.NewFromInt(40)},
		Increment: decimal.NewFromInt(5),
	})
	require.NoError(t, err)
	require.True(t, next.IsLive)
	require.Equal(t, 1, next.CurrentLot.Number)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(40)))
	require.True(t, next.BidIncrement.Equal(decimal.NewFromInt(5)))
	require.True(t, ContainsEvent(events, EvtStarted))
}

func TestUpdateBid_FloorDefaultsAndMonotonicity(t *testing.T) {
	s := liveState(100, 5)

	_, _, err := Apply(s, Command{Type: CmdUpdateBid, Amount: decimal.NewFromInt(95)})
	require.ErrorIs(t, err, ErrBidTooLow)

	events, next, err := Apply(s, Command{Type: CmdUpdateBid, Amount: decimal.NewFromInt(110)})
	require.NoError(t, err)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(110)))

	update := FindEvent(events, EvtBidUpdate)
	require.NotNil(t, update)
	require.Equal(t, ToAll(), update.Audience)
	require.Equal(t, OriginFloor, update.Source)
}

func TestMarkSold_BroadcastsThenClears(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)

	events, next, err := Apply(s, Command{
		Type:     CmdMarkSold,
		Amount:   decimal.NewFromInt(105),
		Winner:   "Bidder c1",
		IsOnline: true,
	})
	require.NoError(t, err)

	sold := FindEvent(events, EvtLotSold)
	require.NotNil(t, sold)
	require.Equal(t, ToAll(), sold.Audience)
	require.Equal(t, 7, sold.Sale.LotNumber)
	require.Equal(t, "walnut sideboard", sold.Sale.Description)
	require.Equal(t, "Bidder c1", sold.Sale.Winner)
	require.True(t, sold.Sale.IsOnline)

	require.Nil(t, next.CurrentLot)
	require.True(t, next.CurrentBid.IsZero())
	require.Empty(t, next.PendingBids)
	require.True(t, next.IsLive, "sale ends the lot, not the auction")
}

func TestEndAuction_ClearsEverything(t *testing.T) {
	s := liveState(100, 5)
	_, s = submit(t, s, "c1", 105)

	events, next, err := Apply(s, Command{Type: CmdEndAuction})
	require.NoError(t, err)
	require.False(t, next.IsLive)
	require.Nil(t, next.CurrentLot)
	require.True(t, next.CurrentBid.IsZero())
	require.Empty(t, next.PendingBids)
	require.True(t, ContainsEvent(events, EvtEnded))
}

func TestUnsupportedCommand(t *testing.T) {
	_, _, err := Apply(NewState(), Command{Type: "Nonsense"})
	require.ErrorIs(t, err, ErrUnsupportedCommand)
}

// The walkthrough from the product side: live at 100/5, a 95 bid bounces, a
// 105 bid queues, acceptance moves the hammer to 105.
func TestBidFlowScenario(t *testing.T) {
	s := liveState(100, 5)

	_, next, err := Apply(s, Command{Type: CmdSubmitBid, ConnID: "c1", Amount: decimal.NewFromInt(95)})
	require.ErrorIs(t, err, ErrBidTooLow)
	require.True(t, next.CurrentBid.Equal(decimal.NewFromInt(100)))

	events, s2 := submit(t, s, "c1", 105)
	require.True(t, ContainsEvent(events, EvtNewBid))
	require.Len(t, s2.PendingBids, 1)

	events, s3, err := Apply(s2, Command{Type: CmdAcceptBid, BidID: s2.PendingBids[0].ID})
	require.NoError(t, err)
	require.True(t, s3.CurrentBid.Equal(decimal.NewFromInt(105)))

	update := FindEvent(events, EvtBidUpdate)
	require.NotNil(t, update)
	require.True(t, update.CurrentBid.Equal(decimal.NewFromInt(105)))
	require.Equal(t, OriginOnline, update.Source)
	require.Equal(t, "Bidder c1", update.BidderName)
}
