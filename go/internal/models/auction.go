package models

import (
	"time"

	"github.com/google/uuid"
)

// AuctionStatus defines the lifecycle status of an auction.
type AuctionStatus string

const (
	AuctionStatusPending   AuctionStatus = "pending"
	AuctionStatusActive    AuctionStatus = "active"
	AuctionStatusEnded     AuctionStatus = "ended"
	AuctionStatusCancelled AuctionStatus = "cancelled"
)

// ItemStatus defines the lifecycle status of a single lot.
// Transitions only move forward: pending -> active -> ended.
type ItemStatus string

const (
	ItemStatusPending ItemStatus = "pending"
	ItemStatusActive  ItemStatus = "active"
	ItemStatusEnded   ItemStatus = "ended"
)

// ParticipantStatus defines whether a bidder is still in the room.
type ParticipantStatus string

const (
	ParticipantStatusActive ParticipantStatus = "active"
	ParticipantStatusLeft   ParticipantStatus = "left"
)

// Auction represents one auction session. Status changes are always
// server-confirmed; the client never transitions an auction on its own.
type Auction struct {
	ID          uuid.UUID     `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description,omitempty"`
	Status      AuctionStatus `json:"status"`
	StartedAt   *time.Time    `json:"started_at,omitempty"`
	EndedAt     *time.Time    `json:"ended_at,omitempty"`
}

// Item represents one auction lot.
type Item struct {
	ID           uuid.UUID  `json:"id"`
	AuctionID    uuid.UUID  `json:"auction_id"`
	LotNumber    int        `json:"lot_number"`
	Name         string     `json:"name"`
	Status       ItemStatus `json:"status"`
	CurrentPrice int64      `json:"current_price"`
	LastBidPrice int64      `json:"last_bid_price,omitempty"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	WinnerID     *uuid.UUID `json:"winner_id,omitempty"`
}

// Bid is immutable once created. IsWinning is recomputed server-side;
// the client stores it as received and never derives it locally.
type Bid struct {
	ID                int64     `json:"id"`
	ItemID            uuid.UUID `json:"item_id"`
	BidderID          uuid.UUID `json:"bidder_id"`
	BidderDisplayName string    `json:"bidder_display_name,omitempty"`
	Price             int64     `json:"price"`
	IsWinning         bool      `json:"is_winning"`
	CreatedAt         time.Time `json:"created_at"`
}

// PriceDisclosure is one entry of an item's append-only price history,
// kept newest-first.
type PriceDisclosure struct {
	ItemID      uuid.UUID `json:"item_id"`
	Price       int64     `json:"price"`
	DisclosedAt time.Time `json:"disclosed_at"`
}

// Participant is a bidder present in the auction room (admin view only).
type Participant struct {
	BidderID    uuid.UUID         `json:"bidder_id"`
	DisplayName string            `json:"display_name,omitempty"`
	Status      ParticipantStatus `json:"status"`
	JoinedAt    *time.Time        `json:"joined_at,omitempty"`
}
