package live

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionlive/go/clients/auction_api_client"
	"github.com/mcdev12/auctionlive/go/internal/live/socket"
	"github.com/mcdev12/auctionlive/go/internal/models"
)

// BidderAPI is the REST surface the bidder live view depends on.
type BidderAPI interface {
	GetAuctionDetail(ctx context.Context, auctionID uuid.UUID) (*auction_api_client.AuctionDetailResponse, error)
	GetPoints(ctx context.Context) (models.PointsBalance, error)
	GetBidHistory(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.Bid, error)
	PlaceBid(ctx context.Context, itemID uuid.UUID, price int64) (*auction_api_client.PlaceBidResult, error)
}

// ItemOutcome summarizes what an item:ended broadcast meant for this
// bidder's balance, so presentation code can notify without re-deriving.
type ItemOutcome struct {
	ItemID         uuid.UUID
	Won            bool
	PointsConsumed int64
	PointsReleased int64
}

// BidderState is the bidder-side live view of one auction: items, the
// focused item's bid history, and the caller's points balance. All balance
// payloads pass through the canonical normalization regardless of which
// endpoint or broadcast produced them.
type BidderState struct {
	liveState
	api      BidderAPI
	bidderID uuid.UUID

	points      models.PointsBalance
	bidInFlight bool
	// bidAtPrice marks items where a bid was observed at the still-current
	// price. The server allows one bid per price tier, so the gate stays up
	// until a new disclosure advances the price.
	bidAtPrice  map[uuid.UUID]bool
	lastOutcome *ItemOutcome
}

// NewBidderState creates a bidder live view. bidderID identifies the
// authenticated bidder so winning-bid checks refer to the caller's own bids.
func NewBidderState(api BidderAPI, bidderID uuid.UUID) *BidderState {
	return &BidderState{
		api:        api,
		bidderID:   bidderID,
		bidAtPrice: make(map[uuid.UUID]bool),
	}
}

// Initialize loads the auction detail and the points balance in parallel;
// both are required for a bidder session. Focus selection and the bid
// history fetch follow, with history failures logged and tolerated.
func (s *BidderState) Initialize(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	var (
		wg        sync.WaitGroup
		detail    *auction_api_client.AuctionDetailResponse
		points    models.PointsBalance
		detailErr error
		pointsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		detail, detailErr = s.api.GetAuctionDetail(ctx, auctionID)
	}()
	go func() {
		defer wg.Done()
		points, pointsErr = s.api.GetPoints(ctx)
	}()
	wg.Wait()

	if detailErr != nil || pointsErr != nil {
		s.mu.Lock()
		s.loading = false
		s.lastError = "failed to load the auction"
		s.mu.Unlock()
		return errors.Join(detailErr, pointsErr)
	}

	s.mu.Lock()
	auction := detail.Auction
	s.auction = &auction
	s.items = detail.Items
	s.points = points
	s.selectInitialFocusLocked()
	currentID := s.currentID
	s.mu.Unlock()

	if currentID != uuid.Nil {
		s.refreshBidHistory(ctx, currentID)
	}

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	return nil
}

// SelectItem switches focus to a known item and refetches its bid history.
// An unknown id is a no-op and issues no fetch.
func (s *BidderState) SelectItem(ctx context.Context, itemID uuid.UUID) {
	s.mu.Lock()
	if s.itemIndexLocked(itemID) == -1 {
		s.mu.Unlock()
		log.Warn().Str("item_id", itemID.String()).Msg("select ignored, item not found")
		return
	}
	s.currentID = itemID
	s.bids = nil
	s.mu.Unlock()

	s.refreshBidHistory(ctx, itemID)
}

// PlaceBid bids on an item at the given price. The recorded bid is applied
// optimistically with the same identity the bid:placed broadcast carries,
// so the later broadcast deduplicates instead of double-inserting.
func (s *BidderState) PlaceBid(ctx context.Context, itemID uuid.UUID, price int64) error {
	s.mu.Lock()
	if s.bidInFlight {
		s.mu.Unlock()
		return errors.New("a bid is already in progress")
	}
	s.bidInFlight = true
	s.lastError = ""
	s.mu.Unlock()

	result, err := s.api.PlaceBid(ctx, itemID, price)
	if err != nil {
		s.mu.Lock()
		s.bidInFlight = false
		s.mu.Unlock()
		s.commandError("failed to place the bid", err)
		return err
	}

	s.mu.Lock()
	s.bidInFlight = false
	if result.Points != nil {
		s.points = *result.Points
	}
	if s.currentID == itemID {
		s.insertBidLocked(result.Bid)
	}
	s.applyLastBidPriceLocked(itemID, result.Bid.Price)
	s.markBidAtPriceLocked(itemID, result.Bid.Price)
	s.mu.Unlock()
	return nil
}

// markBidAtPriceLocked raises the per-item single-bid-per-tier gate when an
// observed bid matches the item's still-current price.
func (s *BidderState) markBidAtPriceLocked(itemID uuid.UUID, bidPrice int64) {
	i := s.itemIndexLocked(itemID)
	if i == -1 || bidPrice <= 0 {
		return
	}
	if s.items[i].CurrentPrice == bidPrice {
		s.bidAtPrice[itemID] = true
	}
}

func (s *BidderState) refreshBidHistory(ctx context.Context, itemID uuid.UUID) {
	bids, err := s.api.GetBidHistory(ctx, itemID, auction_api_client.DefaultBidHistoryLimit, 0)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to fetch bid history")
		return
	}
	s.mu.Lock()
	if s.currentID == itemID {
		s.bids = bids
	}
	s.mu.Unlock()
}

// --- bidding gate ---

// CanBid reports whether a bid may be submitted for the focused item.
func (s *BidderState) CanBid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cannotBidReasonLocked() == ""
}

// CannotBidReason returns a stable, condition-specific message explaining
// why bidding is blocked, or "" when it is not. Conditions are checked in
// a fixed priority order.
func (s *BidderState) CannotBidReason() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cannotBidReasonLocked()
}

func (s *BidderState) cannotBidReasonLocked() string {
	item := s.currentItemCopyLocked()
	if item == nil {
		return "no item is selected"
	}
	if item.Status == models.ItemStatusPending {
		return "the item has not started yet"
	}
	if item.Status == models.ItemStatusEnded {
		return "the item has already ended"
	}
	if item.CurrentPrice <= 0 {
		return "no price has been disclosed yet"
	}
	if s.isOwnBidWinningLocked() {
		return "you are currently the winning bidder"
	}
	if s.bidAtPrice[item.ID] {
		return "you already bid at this price"
	}
	if !s.points.CanCover(item.CurrentPrice) {
		return "not enough points available"
	}
	if s.bidInFlight {
		return "a bid is already in progress"
	}
	return ""
}

// isOwnBidWinningLocked trusts the server-computed winning flag; the client
// never derives it.
func (s *BidderState) isOwnBidWinningLocked() bool {
	for i := range s.bids {
		if s.bids[i].IsWinning {
			return s.bids[i].BidderID == s.bidderID
		}
	}
	return false
}

// --- broadcast handlers ---

func (s *BidderState) onPriceOpened(payload interface{}) {
	p, ok := parsePayload[socket.PriceOpenedPayload](socket.EventPriceOpened, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyPriceLocked(p.ItemID, p.Price)
	// A new price tier re-opens bidding on this item.
	delete(s.bidAtPrice, p.ItemID)
}

func (s *BidderState) onBidPlaced(payload interface{}) {
	p, ok := parsePayload[socket.BidPlacedPayload](socket.EventBidPlaced, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(p.Points) > 0 {
		if points, err := models.NormalizePoints(p.Points); err == nil {
			s.points = points
		} else {
			log.Warn().Err(err).Msg("dropping malformed points payload")
		}
	}
	if s.currentID == p.ItemID {
		s.insertBidLocked(p.Bid)
	}
	s.applyLastBidPriceLocked(p.ItemID, p.Bid.Price)
	s.markBidAtPriceLocked(p.ItemID, p.Bid.Price)
}

func (s *BidderState) onItemStarted(payload interface{}) {
	p, ok := parsePayload[socket.ItemStartedPayload](socket.EventItemStarted, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyItemStartedLocked(p)
}

func (s *BidderState) onItemEnded(payload interface{}) {
	p, ok := parsePayload[socket.ItemEndedPayload](socket.EventItemEnded, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyItemEndedLocked(p)

	if len(p.Points) == 0 {
		return
	}
	points, err := models.NormalizePoints(p.Points)
	if err != nil {
		log.Warn().Err(err).Msg("dropping malformed points payload")
		return
	}
	previous := s.points
	s.points = points

	outcome := &ItemOutcome{ItemID: p.ItemID}
	switch {
	case points.Total < previous.Total:
		// Reserved points were consumed by the winning bid.
		outcome.Won = true
		outcome.PointsConsumed = previous.Total - points.Total
	case points.Available > previous.Available:
		outcome.PointsReleased = points.Available - previous.Available
	default:
		return
	}
	s.lastOutcome = outcome
}

func (s *BidderState) onAuctionEnded(payload interface{}) {
	p, ok := parsePayload[socket.AuctionEndedPayload](socket.EventAuctionEnded, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auction == nil || s.auction.ID != p.AuctionID {
		return
	}
	if p.Status != "" {
		s.auction.Status = p.Status
	}
	if p.EndedAt != nil {
		s.auction.EndedAt = p.EndedAt
	}
}

func (s *BidderState) onAuctionCancelled(payload interface{}) {
	p, ok := parsePayload[socket.AuctionCancelledPayload](socket.EventAuctionCancelled, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auction == nil || (p.Auction.ID != uuid.Nil && p.Auction.ID != s.auction.ID) {
		return
	}
	if p.Auction.Status != "" {
		s.auction.Status = p.Auction.Status
	}
	if p.Auction.EndedAt != nil {
		s.auction.EndedAt = p.Auction.EndedAt
	}
}

// Bind registers all broadcast and lifecycle handlers on the dispatcher.
func (s *BidderState) Bind(d *socket.Dispatcher) {
	s.bindLifecycle(d)
	s.subs = append(s.subs,
		d.On(socket.EventPriceOpened, s.onPriceOpened),
		d.On(socket.EventBidPlaced, s.onBidPlaced),
		d.On(socket.EventItemStarted, s.onItemStarted),
		d.On(socket.EventItemEnded, s.onItemEnded),
		d.On(socket.EventAuctionEnded, s.onAuctionEnded),
		d.On(socket.EventAuctionCancelled, s.onAuctionCancelled),
	)
}

// Unbind drops every registered handler so late events cannot mutate a
// discarded view.
func (s *BidderState) Unbind() {
	s.unbind()
}

// Reset tears the view down for reuse.
func (s *BidderState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetBaseLocked()
	s.points = models.PointsBalance{}
	s.bidInFlight = false
	s.bidAtPrice = make(map[uuid.UUID]bool)
	s.lastOutcome = nil
}

// Points returns the current normalized balance.
func (s *BidderState) Points() models.PointsBalance {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.points
}

// BidInFlight reports whether a bid request is outstanding.
func (s *BidderState) BidInFlight() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bidInFlight
}

// HasBidAtCurrentPrice reports whether the single-bid-per-tier gate is up
// for an item.
func (s *BidderState) HasBidAtCurrentPrice(itemID uuid.UUID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bidAtPrice[itemID]
}

// LastOutcome returns the most recent balance-affecting item outcome, or
// nil when none has been observed.
func (s *BidderState) LastOutcome() *ItemOutcome {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastOutcome == nil {
		return nil
	}
	outcome := *s.lastOutcome
	return &outcome
}
