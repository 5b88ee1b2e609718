package engine

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var ErrAuctionNotLive = errors.New("auction is not live")
var ErrBidTooLow = errors.New("bid does not beat the current bid")
var ErrBidNotFound = errors.New("bid not found")
var ErrUnsupportedCommand = errors.New("unsupported command")

type BidStatus string

const (
	BidPending  BidStatus = "pending"
	BidAccepted BidStatus = "accepted"
	BidRejected BidStatus = "rejected"
)

type BidOrigin string

const (
	OriginOnline BidOrigin = "online"
	OriginFloor  BidOrigin = "floor"
)

type Lot struct {
	Number      int
	Description string
	StartingBid decimal.Decimal
}

type Bid struct {
	ID         string
	ConnID     string // connection the bid arrived on; notifications only
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
	LotNumber  int
	Placed     time.Time
	Status     BidStatus
	Origin     BidOrigin
}

type Sale struct {
	LotNumber   int
	Description string
	Amount      decimal.Decimal
	Winner      string
	IsOnline    bool
}

type State struct {
	IsLive       bool
	CurrentLot   *Lot
	CurrentBid   decimal.Decimal
	BidIncrement decimal.Decimal
	PendingBids  []Bid
}

func NewState() State {
	return State{
		CurrentBid:   decimal.Zero,
		BidIncrement: decimal.Zero,
	}
}

type CommandType string

const (
	CmdSubmitBid    CommandType = "SubmitBid"
	CmdAcceptBid    CommandType = "AcceptBid"
	CmdRejectBid    CommandType = "RejectBid"
	CmdSetLot       CommandType = "SetLot"
	CmdStartAuction CommandType = "StartAuction"
	CmdUpdateBid    CommandType = "UpdateBid"
	CmdMarkSold     CommandType = "MarkSold"
	CmdEndAuction   CommandType = "EndAuction"
)

type Command struct {
	Type       CommandType
	ConnID     string // submitting connection
	BidderID   string
	BidderName string
	Amount     decimal.Decimal
	BidID      string
	Reason     string
	Lot        Lot
	Increment  decimal.Decimal
	Source     BidOrigin // UpdateBid
	Winner     string    // MarkSold
	IsOnline   bool      // MarkSold
}

type EventType string

const (
	EvtBidConfirmed EventType = "BidConfirmed"
	EvtBidAccepted  EventType = "BidAccepted"
	EvtBidRejected  EventType = "BidRejected"
	EvtNewBid       EventType = "NewBid"
	EvtBidUpdate    EventType = "BidUpdate"
	EvtStarted      EventType = "Started"
	EvtLotChanged   EventType = "LotChanged"
	EvtLotSold      EventType = "LotSold"
	EvtEnded        EventType = "Ended"
)

// Audience selects which connections receive an event.
type Audience struct {
	Kind   AudienceKind
	ConnID string // set only for AudienceConn
}

type AudienceKind string

const (
	AudienceAll     AudienceKind = "all"
	AudienceBidders AudienceKind = "bidders"
	AudienceClerks  AudienceKind = "clerks"
	AudienceConn    AudienceKind = "conn"
)

func ToAll() Audience     { return Audience{Kind: AudienceAll} }
func ToBidders() Audience { return Audience{Kind: AudienceBidders} }
func ToClerks() Audience  { return Audience{Kind: AudienceClerks} }

func ToConn(id string) Audience { return Audience{Kind: AudienceConn, ConnID: id} }

type Event struct {
	Type       EventType
	Audience   Audience
	Bid        *Bid
	Reason     string
	CurrentBid decimal.Decimal
	Source     BidOrigin
	BidderName string
	Lot        *Lot
	Sale       *Sale
}

// Apply runs one command against the state and returns the events to fan out
// plus the new state. It never mutates s; the caller decides whether to adopt
// the returned state.
func Apply(s State, cmd Command) ([]Event, State, error) {
	newState := s

	switch cmd.Type {
	case CmdSubmitBid:
		if !s.IsLive {
			return nil, s, ErrAuctionNotLive
		}
		if cmd.Amount.LessThanOrEqual(s.CurrentBid) {
			return nil, s, ErrBidTooLow
		}

		bid := Bid{
			ID:         uuid.NewString(),
			ConnID:     cmd.ConnID,
			BidderID:   cmd.BidderID,
			BidderName: cmd.BidderName,
			Amount:     cmd.Amount,
			Placed:     time.Now().UTC(),
			Status:     BidPending,
			Origin:     OriginOnline,
		}
		if s.CurrentLot != nil {
			bid.LotNumber = s.CurrentLot.Number
		}

		newState.PendingBids = append(clonePending(s.PendingBids), bid)
		events := []Event{
			{Type: EvtBidConfirmed, Audience: ToConn(cmd.ConnID), Bid: &bid},
			{Type: EvtNewBid, Audience: ToClerks(), Bid: &bid},
		}
		return events, newState, nil

	case CmdAcceptBid:
		idx := findPending(s.PendingBids, cmd.BidID)
		if idx < 0 {
			return nil, s, ErrBidNotFound
		}

		bid := s.PendingBids[idx]
		bid.Status = BidAccepted
		newState.PendingBids = removePending(s.PendingBids, idx)
		newState.CurrentBid = bid.Amount

		events := []Event{
			{Type: EvtBidAccepted, Audience: ToConn(bid.ConnID), Bid: &bid},
			{Type: EvtBidUpdate, Audience: ToAll(), CurrentBid: bid.Amount, Source: OriginOnline, BidderName: bid.BidderName, Bid: &bid},
		}
		return events, newState, nil

	case CmdRejectBid:
		idx := findPending(s.PendingBids, cmd.BidID)
		if idx < 0 {
			return nil, s, ErrBidNotFound
		}

		bid := s.PendingBids[idx]
		bid.Status = BidRejected
		newState.PendingBids = removePending(s.PendingBids, idx)

		// No global broadcast: the floor continues uninterrupted.
		events := []Event{
			{Type: EvtBidRejected, Audience: ToConn(bid.ConnID), Bid: &bid, Reason: cmd.Reason},
		}
		return events, newState, nil

	case CmdSetLot:
		lot := cmd.Lot
		newState.CurrentLot = &lot
		newState.CurrentBid = lot.StartingBid
		newState.PendingBids = nil // bids against the previous lot are discarded

		events := []Event{
			{Type: EvtLotChanged, Audience: ToAll(), Lot: &lot, CurrentBid: lot.StartingBid},
		}
		return events, newState, nil

	case CmdStartAuction:
		lot := cmd.Lot
		newState.IsLive = true
		newState.CurrentLot = &lot
		newState.CurrentBid = lot.StartingBid
		newState.BidIncrement = cmd.Increment
		newState.PendingBids = nil

		events := []Event{
			{Type: EvtStarted, Audience: ToAll(), Lot: &lot, CurrentBid: lot.StartingBid},
		}
		return events, newState, nil

	case CmdUpdateBid:
		if !s.IsLive {
			return nil, s, ErrAuctionNotLive
		}
		// currentBid never decreases while a lot is active.
		if cmd.Amount.LessThan(s.CurrentBid) {
			return nil, s, ErrBidTooLow
		}

		newState.CurrentBid = cmd.Amount
		source := cmd.Source
		if source == "" {
			source = OriginFloor
		}
		events := []Event{
			{Type: EvtBidUpdate, Audience: ToAll(), CurrentBid: cmd.Amount, Source: source, BidderName: cmd.BidderName},
		}
		return events, newState, nil

	case CmdMarkSold:
		sale := Sale{
			Amount:   cmd.Amount,
			Winner:   cmd.Winner,
			IsOnline: cmd.IsOnline,
		}
		if s.CurrentLot != nil {
			sale.LotNumber = s.CurrentLot.Number
			sale.Description = s.CurrentLot.Description
		}

		newState.CurrentLot = nil
		newState.CurrentBid = decimal.Zero
		newState.PendingBids = nil

		// Persisting the sale record is the caller's job, not the engine's.
		events := []Event{
			{Type: EvtLotSold, Audience: ToAll(), Sale: &sale},
		}
		return events, newState, nil

	case CmdEndAuction:
		newState.IsLive = false
		newState.CurrentLot = nil
		newState.CurrentBid = decimal.Zero
		newState.PendingBids = nil

		events := []Event{
			{Type: EvtEnded, Audience: ToAll()},
		}
		return events, newState, nil

	default:
		return nil, s, ErrUnsupportedCommand
	}
}

func findPending(bids []Bid, id string) int {
	for i, b := range bids {
		if b.ID == id {
			return i
		}
	}
	return -1
}

func clonePending(bids []Bid) []Bid {
	out := make([]Bid, len(bids))
	copy(out, bids)
	return out
}

func removePending(bids []Bid, idx int) []Bid {
	out := make([]Bid, 0, len(bids)-1)
	out = append(out, bids[:idx]...)
	out = append(out, bids[idx+1:]...)
	return out
}
