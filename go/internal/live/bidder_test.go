package live

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcdev12/auctionlive/go/clients"
	"github.com/mcdev12/auctionlive/go/clients/auction_api_client"
	"github.com/mcdev12/auctionlive/go/internal/live/socket"
	"github.com/mcdev12/auctionlive/go/internal/models"
)

type fakeBidderAPI struct {
	mu sync.Mutex

	detail    *auction_api_client.AuctionDetailResponse
	detailErr error
	points    models.PointsBalance
	pointsErr error
	bids      map[uuid.UUID][]models.Bid

	placeBid func(ctx context.Context, itemID uuid.UUID, price int64) (*auction_api_client.PlaceBidResult, error)

	bidHistoryCalls int
}

func (f *fakeBidderAPI) GetAuctionDetail(ctx context.Context, auctionID uuid.UUID) (*auction_api_client.AuctionDetailResponse, error) {
	return f.detail, f.detailErr
}

func (f *fakeBidderAPI) GetPoints(ctx context.Context) (models.PointsBalance, error) {
	return f.points, f.pointsErr
}

func (f *fakeBidderAPI) GetBidHistory(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	f.mu.Lock()
	f.bidHistoryCalls++
	f.mu.Unlock()
	return f.bids[itemID], nil
}

func (f *fakeBidderAPI) PlaceBid(ctx context.Context, itemID uuid.UUID, price int64) (*auction_api_client.PlaceBidResult, error) {
	if f.placeBid != nil {
		return f.placeBid(ctx, itemID, price)
	}
	return nil, fmt.Errorf("no bid handler configured")
}

func (f *fakeBidderAPI) fetchCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bidHistoryCalls
}

// bidderFixture builds a session focused on an active item priced at 500
// with 1000 points available.
func bidderFixture() (*fakeBidderAPI, *BidderState, *socket.Dispatcher, models.Item) {
	auctionID := uuid.New()
	item := models.Item{
		ID: uuid.New(), AuctionID: auctionID, LotNumber: 1, Name: "lot one",
		Status: models.ItemStatusActive, CurrentPrice: 500,
	}
	api := &fakeBidderAPI{
		detail: &auction_api_client.AuctionDetailResponse{
			Auction: models.Auction{ID: auctionID, Status: models.AuctionStatusActive},
			Items:   []models.Item{item},
		},
		points: models.PointsBalance{Total: 1500, Available: 1000, Reserved: 500},
	}
	state := NewBidderState(api, uuid.New())
	dispatcher := socket.NewDispatcher()
	state.Bind(dispatcher)
	return api, state, dispatcher, item
}

func TestBidderInitialize_LoadsDetailAndPoints(t *testing.T) {
	api, state, _, item := bidderFixture()
	defer state.Unbind()
	api.bids = map[uuid.UUID][]models.Bid{item.ID: {{ID: 1, ItemID: item.ID, Price: 500}}}

	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	assert.Equal(t, models.PointsBalance{Total: 1500, Available: 1000, Reserved: 500}, state.Points())
	require.NotNil(t, state.CurrentItem())
	assert.Equal(t, item.ID, state.CurrentItem().ID)
	assert.Len(t, state.Bids(), 1)
	assert.False(t, state.Loading())
}

func TestBidderInitialize_PointsFailureIsFatal(t *testing.T) {
	api, state, _, _ := bidderFixture()
	defer state.Unbind()
	api.pointsErr = fmt.Errorf("balance unavailable")

	err := state.Initialize(context.Background(), api.detail.ID)
	require.Error(t, err)
	assert.Equal(t, "failed to load the auction", state.LastError())
	assert.Nil(t, state.Auction())
}

func TestBidderPlaceBid_OptimisticInsertThenBroadcastDeduplicates(t *testing.T) {
	api, state, dispatcher, item := bidderFixture()
	defer state.Unbind()
	bidderID := uuid.New()
	state.bidderID = bidderID
	recorded := models.Bid{
		ID: 42, ItemID: item.ID, BidderID: bidderID, Price: 500, IsWinning: true,
		CreatedAt: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	api.placeBid = func(ctx context.Context, itemID uuid.UUID, price int64) (*auction_api_client.PlaceBidResult, error) {
		return &auction_api_client.PlaceBidResult{
			Bid:    recorded,
			Points: &models.PointsBalance{Total: 1500, Available: 500, Reserved: 1000},
		}, nil
	}
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	require.NoError(t, state.PlaceBid(context.Background(), item.ID, 500))
	require.Len(t, state.Bids(), 1)
	assert.Equal(t, int64(1000), state.Points().Reserved)
	assert.True(t, state.HasBidAtCurrentPrice(item.ID))

	emitRaw(dispatcher, socket.EventBidPlaced,
		`{"item_id":%q,"bid":{"id":42,"item_id":%q,"bidder_id":%q,"price":500,"is_winning":true,"created_at":"2026-03-01T12:00:00Z"}}`,
		item.ID, item.ID, bidderID)

	require.Len(t, state.Bids(), 1, "the broadcast for our own bid must deduplicate")
	require.NotNil(t, state.CurrentItem())
	assert.Equal(t, int64(500), state.CurrentItem().LastBidPrice)
}

func TestBidderPlaceBid_FailureSurfacesServerReason(t *testing.T) {
	api, state, _, item := bidderFixture()
	defer state.Unbind()
	api.placeBid = func(ctx context.Context, itemID uuid.UUID, price int64) (*auction_api_client.PlaceBidResult, error) {
		return nil, &clients.APIError{Status: 409, Message: "bid price is no longer current"}
	}
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	err := state.PlaceBid(context.Background(), item.ID, 500)
	require.Error(t, err)
	assert.Equal(t, "bid price is no longer current", state.LastError())
	assert.Empty(t, state.Bids())
	assert.False(t, state.BidInFlight())
}

func TestBidderPlaceBid_RejectedWhileInFlight(t *testing.T) {
	api, state, _, item := bidderFixture()
	defer state.Unbind()
	release := make(chan struct{})
	api.placeBid = func(ctx context.Context, itemID uuid.UUID, price int64) (*auction_api_client.PlaceBidResult, error) {
		<-release
		return &auction_api_client.PlaceBidResult{
			Bid: models.Bid{ID: 1, ItemID: itemID, Price: price},
		}, nil
	}
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	done := make(chan error, 1)
	go func() { done <- state.PlaceBid(context.Background(), item.ID, 500) }()
	require.Eventually(t, state.BidInFlight, time.Second, time.Millisecond)

	err := state.PlaceBid(context.Background(), item.ID, 500)
	require.Error(t, err)
	assert.Equal(t, "a bid is already in progress", state.CannotBidReason())

	close(release)
	require.NoError(t, <-done)
	assert.False(t, state.BidInFlight())
}

// TestBidderCannotBidReason walks one item through its lifecycle and checks
// that the blocking reason tracks the highest-priority condition at each step.
func TestBidderCannotBidReason(t *testing.T) {
	auctionID := uuid.New()
	item := models.Item{ID: uuid.New(), AuctionID: auctionID, LotNumber: 1, Status: models.ItemStatusPending}
	bidderID := uuid.New()
	api := &fakeBidderAPI{
		detail: &auction_api_client.AuctionDetailResponse{
			Auction: models.Auction{ID: auctionID, Status: models.AuctionStatusActive},
			Items:   []models.Item{item},
		},
		points: models.PointsBalance{Total: 1000, Available: 1000},
	}
	state := NewBidderState(api, bidderID)
	dispatcher := socket.NewDispatcher()
	state.Bind(dispatcher)
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), auctionID))

	assert.Equal(t, "the item has not started yet", state.CannotBidReason())

	emitRaw(dispatcher, socket.EventItemStarted, `{"item_id":%q,"status":"active","current_price":0}`, item.ID)
	assert.Equal(t, "no price has been disclosed yet", state.CannotBidReason())

	emitRaw(dispatcher, socket.EventPriceOpened, `{"item_id":%q,"price":500}`, item.ID)
	assert.True(t, state.CanBid())
	assert.Empty(t, state.CannotBidReason())

	// Someone else bids at the current price; one bid per tier applies to
	// everything the session observed.
	emitRaw(dispatcher, socket.EventBidPlaced,
		`{"item_id":%q,"bid":{"id":1,"item_id":%q,"bidder_id":%q,"price":500,"created_at":"2026-03-01T12:00:00Z"}}`,
		item.ID, item.ID, uuid.New())
	assert.Equal(t, "you already bid at this price", state.CannotBidReason())

	// A new tier re-opens bidding, but this one costs more than we have.
	emitRaw(dispatcher, socket.EventPriceOpened, `{"item_id":%q,"price":1500}`, item.ID)
	assert.False(t, state.HasBidAtCurrentPrice(item.ID))
	assert.Equal(t, "not enough points available", state.CannotBidReason())

	// An affordable tier where our own bid is winning blocks on that first.
	emitRaw(dispatcher, socket.EventPriceOpened, `{"item_id":%q,"price":800}`, item.ID)
	emitRaw(dispatcher, socket.EventBidPlaced,
		`{"item_id":%q,"bid":{"id":2,"item_id":%q,"bidder_id":%q,"price":800,"is_winning":true,"created_at":"2026-03-01T12:01:00Z"}}`,
		item.ID, item.ID, bidderID)
	assert.Equal(t, "you are currently the winning bidder", state.CannotBidReason())

	emitRaw(dispatcher, socket.EventItemEnded, `{"item_id":%q,"status":"ended","winner_id":%q}`, item.ID, bidderID)
	assert.Equal(t, "the item has already ended", state.CannotBidReason())
}

func TestBidderCannotBidReason_NoItemSelected(t *testing.T) {
	auctionID := uuid.New()
	api := &fakeBidderAPI{
		detail: &auction_api_client.AuctionDetailResponse{
			Auction: models.Auction{ID: auctionID, Status: models.AuctionStatusActive},
		},
		points: models.PointsBalance{Total: 1000, Available: 1000},
	}
	state := NewBidderState(api, uuid.New())
	require.NoError(t, state.Initialize(context.Background(), auctionID))

	assert.Equal(t, "no item is selected", state.CannotBidReason())
	assert.False(t, state.CanBid())
}

func TestBidderOnBidPlaced_NormalizesEitherPointsDialect(t *testing.T) {
	api, state, dispatcher, item := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	emitRaw(dispatcher, socket.EventBidPlaced,
		`{"item_id":%q,"bid":{"id":1,"item_id":%q,"price":500,"created_at":"2026-03-01T12:00:00Z"},"points":{"total":1500,"available":500,"reserved":1000}}`,
		item.ID, item.ID)
	assert.Equal(t, models.PointsBalance{Total: 1500, Available: 500, Reserved: 1000}, state.Points())

	emitRaw(dispatcher, socket.EventBidPlaced,
		`{"item_id":%q,"bid":{"id":2,"item_id":%q,"price":600,"created_at":"2026-03-01T12:01:00Z"},"points":{"total_points":1500,"available_points":400,"reserved_points":1100}}`,
		item.ID, item.ID)
	assert.Equal(t, models.PointsBalance{Total: 1500, Available: 400, Reserved: 1100}, state.Points())
}

func TestBidderOnItemEnded_WonOutcome(t *testing.T) {
	api, state, dispatcher, item := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	// Reserved points consumed: total drops by the winning price.
	emitRaw(dispatcher, socket.EventItemEnded,
		`{"item_id":%q,"status":"ended","winner_id":%q,"points":{"total":1000,"available":1000,"reserved":0}}`,
		item.ID, uuid.New())

	outcome := state.LastOutcome()
	require.NotNil(t, outcome)
	assert.Equal(t, item.ID, outcome.ItemID)
	assert.True(t, outcome.Won)
	assert.Equal(t, int64(500), outcome.PointsConsumed)
	assert.Zero(t, outcome.PointsReleased)
	assert.Equal(t, models.PointsBalance{Total: 1000, Available: 1000}, state.Points())
}

func TestBidderOnItemEnded_ReleasedOutcome(t *testing.T) {
	api, state, dispatcher, item := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	// Lost: the reserve comes back, total unchanged.
	emitRaw(dispatcher, socket.EventItemEnded,
		`{"item_id":%q,"status":"ended","winner_id":%q,"points":{"total":1500,"available":1500,"reserved":0}}`,
		item.ID, uuid.New())

	outcome := state.LastOutcome()
	require.NotNil(t, outcome)
	assert.False(t, outcome.Won)
	assert.Equal(t, int64(500), outcome.PointsReleased)
	assert.Zero(t, outcome.PointsConsumed)
}

func TestBidderOnItemEnded_NoPointsNoOutcome(t *testing.T) {
	api, state, dispatcher, item := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	emitRaw(dispatcher, socket.EventItemEnded, `{"item_id":%q,"status":"ended"}`, item.ID)

	assert.Nil(t, state.LastOutcome())
	require.NotNil(t, state.CurrentItem())
	assert.Equal(t, models.ItemStatusEnded, state.CurrentItem().Status)
}

func TestBidderSelectItem_UnknownIDIsNoop(t *testing.T) {
	api, state, _, item := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))
	before := api.fetchCalls()

	state.SelectItem(context.Background(), uuid.New())

	assert.Equal(t, before, api.fetchCalls())
	require.NotNil(t, state.CurrentItem())
	assert.Equal(t, item.ID, state.CurrentItem().ID)
}

func TestBidderAuctionCancelled_Broadcast(t *testing.T) {
	api, state, dispatcher, _ := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))

	emitRaw(dispatcher, socket.EventAuctionCancelled,
		`{"auction":{"id":%q,"status":"cancelled","ended_at":"2026-03-01T12:00:00Z"}}`, api.detail.ID)

	require.NotNil(t, state.Auction())
	assert.Equal(t, models.AuctionStatusCancelled, state.Auction().Status)
	assert.NotNil(t, state.Auction().EndedAt)
}

func TestBidderReset(t *testing.T) {
	api, state, dispatcher, item := bidderFixture()
	defer state.Unbind()
	require.NoError(t, state.Initialize(context.Background(), api.detail.ID))
	emitRaw(dispatcher, socket.EventBidPlaced,
		`{"item_id":%q,"bid":{"id":1,"item_id":%q,"price":500,"created_at":"2026-03-01T12:00:00Z"}}`,
		item.ID, item.ID)
	require.Len(t, state.Bids(), 1)

	state.Reset()

	assert.Nil(t, state.Auction())
	assert.Empty(t, state.Items())
	assert.Nil(t, state.CurrentItem())
	assert.Empty(t, state.Bids())
	assert.Equal(t, models.PointsBalance{}, state.Points())
	assert.False(t, state.HasBidAtCurrentPrice(item.ID))
	assert.Nil(t, state.LastOutcome())
}
