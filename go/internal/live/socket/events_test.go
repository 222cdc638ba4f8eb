package socket

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctionlive/go/internal/models"
)

func TestParseEventPayload_UnknownTypeIsSkipped(t *testing.T) {
	parsed, err := ParseEventPayload(EventType("something:new"), json.RawMessage(`{"a":1}`))
	require.NoError(t, err)
	assert.Nil(t, parsed)
}

func TestParseEventPayload_MalformedReturnsError(t *testing.T) {
	_, err := ParseEventPayload(EventBidPlaced, json.RawMessage(`{`))
	require.Error(t, err)
}

func TestParseEventPayload_PriceOpenedDialects(t *testing.T) {
	itemID := uuid.New()
	openedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	flat := []byte(`{"item_id":"` + itemID.String() + `","price":500,"opened_at":"2026-03-01T12:00:00Z"}`)
	parsed, err := ParseEventPayload(EventPriceOpened, flat)
	require.NoError(t, err)
	p := parsed.(PriceOpenedPayload)
	assert.Equal(t, itemID, p.ItemID)
	assert.Equal(t, int64(500), p.Price)
	assert.Equal(t, openedAt, p.DisclosedAt())

	nested := []byte(`{"item_id":"` + itemID.String() + `","price":500,` +
		`"price_history":{"item_id":"` + itemID.String() + `","price":500,"disclosed_at":"2026-03-01T12:00:00Z"}}`)
	parsed, err = ParseEventPayload(EventPriceOpened, nested)
	require.NoError(t, err)
	p = parsed.(PriceOpenedPayload)
	assert.Equal(t, openedAt, p.DisclosedAt())
}

func TestParseEventPayload_ItemStartedNestedDialect(t *testing.T) {
	itemID := uuid.New()
	payload := []byte(`{"item":{"id":"` + itemID.String() + `","status":"active","current_price":0,"started_at":"2026-03-01T12:00:00Z"}}`)

	parsed, err := ParseEventPayload(EventItemStarted, payload)
	require.NoError(t, err)
	p := parsed.(ItemStartedPayload)
	assert.Equal(t, itemID, p.ItemID)
	assert.Equal(t, models.ItemStatusActive, p.Status)
	assert.Zero(t, p.CurrentPrice)
	require.NotNil(t, p.StartedAt)
}

func TestParseEventPayload_ItemEndedDialects(t *testing.T) {
	itemID := uuid.New()
	winnerID := uuid.New()

	flat := []byte(`{"item_id":"` + itemID.String() + `","status":"ended","winner_id":"` + winnerID.String() + `"}`)
	parsed, err := ParseEventPayload(EventItemEnded, flat)
	require.NoError(t, err)
	p := parsed.(ItemEndedPayload)
	assert.Equal(t, itemID, p.ItemID)
	require.NotNil(t, p.WinnerID)
	assert.Equal(t, winnerID, *p.WinnerID)

	nested := []byte(`{"item":{"id":"` + itemID.String() + `","status":"ended","winner_id":"` + winnerID.String() + `"}}`)
	parsed, err = ParseEventPayload(EventItemEnded, nested)
	require.NoError(t, err)
	p = parsed.(ItemEndedPayload)
	assert.Equal(t, itemID, p.ItemID)
	assert.Equal(t, models.ItemStatusEnded, p.Status)
	require.NotNil(t, p.WinnerID)
	assert.Equal(t, winnerID, *p.WinnerID)
}

func TestParseEventPayload_BidPlacedKeepsRawPoints(t *testing.T) {
	itemID := uuid.New()
	payload := []byte(`{"item_id":"` + itemID.String() + `","bid":{"id":7,"item_id":"` + itemID.String() + `","price":500},"points":{"total_points":1000,"available_points":500,"reserved_points":500}}`)

	parsed, err := ParseEventPayload(EventBidPlaced, payload)
	require.NoError(t, err)
	p := parsed.(BidPlacedPayload)
	assert.Equal(t, int64(7), p.Bid.ID)

	points, err := models.NormalizePoints(p.Points)
	require.NoError(t, err)
	assert.Equal(t, models.PointsBalance{Total: 1000, Available: 500, Reserved: 500}, points)
}
