package socket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/mcdev12/auctionlive/go/internal/models"
)

// EventType identifies a message on the auction channel.
type EventType string

// Wire events broadcast by the server.
const (
	EventPriceOpened       EventType = "price:opened"
	EventBidPlaced         EventType = "bid:placed"
	EventItemStarted       EventType = "item:started"
	EventItemEnded         EventType = "item:ended"
	EventParticipantJoined EventType = "participant:joined"
	EventParticipantLeft   EventType = "participant:left"
	EventAuctionStarted    EventType = "auction:started"
	EventAuctionEnded      EventType = "auction:ended"
	EventAuctionCancelled  EventType = "auction:cancelled"
)

// Protocol-level messages, handled inside the client and never republished.
const (
	eventPing      EventType = "ping"
	eventPong      EventType = "pong"
	eventSubscribe EventType = "subscribe"
)

// Local lifecycle events emitted by the Client itself.
const (
	EventConnected    EventType = "connected"
	EventDisconnected EventType = "disconnected"
	EventReconnecting EventType = "reconnecting"
	EventError        EventType = "error"
)

// Frame is the wire envelope for every message on the channel.
type Frame struct {
	Type    EventType       `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PriceOpenedPayload announces a new disclosed price for an item. Some
// broadcasts carry the timestamp flat, others nested in price_history.
type PriceOpenedPayload struct {
	ItemID       uuid.UUID               `json:"item_id"`
	Price        int64                   `json:"price"`
	OpenedAt     *time.Time              `json:"opened_at,omitempty"`
	PriceHistory *models.PriceDisclosure `json:"price_history,omitempty"`
}

// DisclosedAt resolves the disclosure timestamp across both dialects.
func (p *PriceOpenedPayload) DisclosedAt() time.Time {
	if p.OpenedAt != nil {
		return *p.OpenedAt
	}
	if p.PriceHistory != nil {
		return p.PriceHistory.DisclosedAt
	}
	return time.Time{}
}

// BidPlacedPayload carries a newly recorded bid. Points is only present on
// the frame addressed to the bidder who placed it, in either naming dialect.
type BidPlacedPayload struct {
	ItemID uuid.UUID       `json:"item_id"`
	Bid    models.Bid      `json:"bid"`
	Points json.RawMessage `json:"points,omitempty"`
}

// ItemStartedPayload announces an item going active. The flat fields and the
// nested item object are alternative dialects of the same broadcast.
type ItemStartedPayload struct {
	ItemID       uuid.UUID         `json:"item_id"`
	Status       models.ItemStatus `json:"status"`
	CurrentPrice int64             `json:"current_price"`
	StartedAt    *time.Time        `json:"started_at,omitempty"`
	Item         *models.Item      `json:"item,omitempty"`
}

// Flatten resolves the nested dialect into the flat fields.
func (p *ItemStartedPayload) Flatten() {
	if p.Item == nil {
		return
	}
	p.ItemID = p.Item.ID
	p.Status = p.Item.Status
	p.CurrentPrice = p.Item.CurrentPrice
	p.StartedAt = p.Item.StartedAt
}

// ItemEndedPayload announces an item closing, with the winner when one
// exists and, on the winner's frame, an updated points balance.
type ItemEndedPayload struct {
	ItemID   uuid.UUID         `json:"item_id"`
	Status   models.ItemStatus `json:"status"`
	WinnerID *uuid.UUID        `json:"winner_id,omitempty"`
	EndedAt  *time.Time        `json:"ended_at,omitempty"`
	Item     *models.Item      `json:"item,omitempty"`
	Points   json.RawMessage   `json:"points,omitempty"`
}

// Flatten resolves the nested dialect into the flat fields.
func (p *ItemEndedPayload) Flatten() {
	if p.Item == nil {
		return
	}
	p.ItemID = p.Item.ID
	p.Status = p.Item.Status
	p.WinnerID = p.Item.WinnerID
	p.EndedAt = p.Item.EndedAt
}

// ParticipantJoinedPayload announces a bidder entering the room.
type ParticipantJoinedPayload struct {
	Participant models.Participant `json:"participant"`
}

// ParticipantLeftPayload announces a bidder leaving the room.
type ParticipantLeftPayload struct {
	BidderID uuid.UUID `json:"bidder_id"`
}

// AuctionEndedPayload announces the auction closing.
type AuctionEndedPayload struct {
	AuctionID uuid.UUID            `json:"auction_id"`
	Status    models.AuctionStatus `json:"status"`
	EndedAt   *time.Time           `json:"ended_at,omitempty"`
}

// AuctionCancelledPayload carries the cancelled auction record.
type AuctionCancelledPayload struct {
	Auction models.Auction `json:"auction"`
}

// subscribePayload is the post-connect room join sent by bidder sessions.
type subscribePayload struct {
	AuctionID string `json:"auction_id"`
}

// ConnectedPayload accompanies the local connected event.
type ConnectedPayload struct {
	AuctionID string `json:"auction_id"`
}

// DisconnectedPayload accompanies the local disconnected event.
type DisconnectedPayload struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// ReconnectingPayload accompanies each reconnection attempt.
type ReconnectingPayload struct {
	Attempt int `json:"attempt"`
	Max     int `json:"max"`
}

// ErrorPayload carries a user-facing message for recoverable and terminal
// channel errors.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ParseEventPayload parses raw event data into the payload struct for the
// given wire event type. Unknown types yield (nil, nil) so callers can skip
// them without treating them as failures.
func ParseEventPayload(eventType EventType, data json.RawMessage) (interface{}, error) {
	switch eventType {
	case EventPriceOpened:
		var payload PriceOpenedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventBidPlaced:
		var payload BidPlacedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventItemStarted:
		var payload ItemStartedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		payload.Flatten()
		return payload, nil

	case EventItemEnded:
		var payload ItemEndedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		payload.Flatten()
		return payload, nil

	case EventParticipantJoined:
		var payload ParticipantJoinedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventParticipantLeft:
		var payload ParticipantLeftPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventAuctionEnded:
		var payload AuctionEndedPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	case EventAuctionCancelled:
		var payload AuctionCancelledPayload
		if err := json.Unmarshal(data, &payload); err != nil {
			return nil, err
		}
		return payload, nil

	default:
		return nil, nil // Unknown event type
	}
}
