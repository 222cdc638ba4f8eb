package live

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionlive/go/clients/auction_api_client"
	"github.com/mcdev12/auctionlive/go/internal/live/socket"
	"github.com/mcdev12/auctionlive/go/internal/models"
)

// AdminAPI is the REST surface the admin live view depends on.
type AdminAPI interface {
	GetAuctionDetail(ctx context.Context, auctionID uuid.UUID) (*auction_api_client.AuctionDetailResponse, error)
	GetParticipants(ctx context.Context, auctionID uuid.UUID) ([]models.Participant, error)
	GetBidHistory(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.Bid, error)
	GetPriceHistory(ctx context.Context, itemID uuid.UUID) ([]models.PriceDisclosure, error)
	StartItem(ctx context.Context, itemID uuid.UUID) (models.Item, error)
	OpenPrice(ctx context.Context, itemID uuid.UUID, price int64) (models.PriceDisclosure, error)
	EndItem(ctx context.Context, itemID uuid.UUID) (*auction_api_client.EndItemResponse, error)
	EndAuction(ctx context.Context, auctionID uuid.UUID) (models.Auction, error)
	CancelAuction(ctx context.Context, auctionID uuid.UUID) (models.Auction, error)
}

// AdminState is the admin-side live view of one auction: items, bid and
// price history for the focused lot, and the participant roster. Commands
// apply their result optimistically at the same granularity as the
// corresponding broadcast, so either arrival order yields the same state.
type AdminState struct {
	liveState
	api          AdminAPI
	participants []models.Participant
	priceHistory []models.PriceDisclosure
}

// NewAdminState creates an admin live view backed by the given API.
func NewAdminState(api AdminAPI) *AdminState {
	return &AdminState{api: api}
}

// Initialize loads the full snapshot for an auction: detail with items,
// then the roster and the focused item's histories. The secondary fetches
// run independently; a failure in one is logged and leaves partial data.
func (s *AdminState) Initialize(ctx context.Context, auctionID uuid.UUID) error {
	s.mu.Lock()
	s.loading = true
	s.lastError = ""
	s.mu.Unlock()

	detail, err := s.api.GetAuctionDetail(ctx, auctionID)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.lastError = "failed to load the auction"
		s.mu.Unlock()
		return err
	}

	s.mu.Lock()
	auction := detail.Auction
	s.auction = &auction
	s.items = detail.Items
	s.selectInitialFocusLocked()
	currentID := s.currentID
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.refreshParticipants(ctx, auctionID)
	}()
	if currentID != uuid.Nil {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.refreshBidHistory(ctx, currentID)
		}()
		go func() {
			defer wg.Done()
			s.refreshPriceHistory(ctx, currentID)
		}()
	}
	wg.Wait()

	s.mu.Lock()
	s.loading = false
	s.mu.Unlock()
	return nil
}

// SelectItem switches focus to a known item and refetches its histories.
// An unknown id is a no-op and issues no fetch.
func (s *AdminState) SelectItem(ctx context.Context, itemID uuid.UUID) {
	s.mu.Lock()
	if s.itemIndexLocked(itemID) == -1 {
		s.mu.Unlock()
		log.Warn().Str("item_id", itemID.String()).Msg("select ignored, item not found")
		return
	}
	s.currentID = itemID
	s.bids = nil
	s.priceHistory = nil
	s.mu.Unlock()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.refreshBidHistory(ctx, itemID)
	}()
	go func() {
		defer wg.Done()
		s.refreshPriceHistory(ctx, itemID)
	}()
	wg.Wait()
}

// StartItem opens bidding on an item. On success the result is applied
// with the same field set the item:started broadcast uses, focus moves to
// the item, and its histories restart empty.
func (s *AdminState) StartItem(ctx context.Context, itemID uuid.UUID) error {
	item, err := s.api.StartItem(ctx, itemID)
	if err != nil {
		s.commandError("failed to start the item", err)
		return err
	}

	s.mu.Lock()
	s.applyItemStartedLocked(socket.ItemStartedPayload{
		ItemID:       itemID,
		Status:       item.Status,
		CurrentPrice: item.CurrentPrice,
		StartedAt:    item.StartedAt,
	})
	s.currentID = itemID
	s.bids = nil
	s.priceHistory = nil
	s.mu.Unlock()

	s.refreshPriceHistory(ctx, itemID)
	return nil
}

// DisclosePrice reveals a new current price for an item.
func (s *AdminState) DisclosePrice(ctx context.Context, itemID uuid.UUID, price int64) error {
	disclosure, err := s.api.OpenPrice(ctx, itemID, price)
	if err != nil {
		s.commandError("price disclosure failed", err)
		return err
	}
	if disclosure.ItemID == uuid.Nil {
		disclosure.ItemID = itemID
	}
	if disclosure.Price == 0 {
		disclosure.Price = price
	}

	s.mu.Lock()
	s.prependDisclosureLocked(disclosure)
	s.applyPriceLocked(itemID, disclosure.Price)
	s.mu.Unlock()
	return nil
}

// EndItem closes bidding on an item and advances focus to the next pending
// lot, clearing focus when none remain. Returns the winner when one exists.
func (s *AdminState) EndItem(ctx context.Context, itemID uuid.UUID) (*auction_api_client.WinnerInfo, error) {
	resp, err := s.api.EndItem(ctx, itemID)
	if err != nil {
		s.commandError("failed to end the item", err)
		return nil, err
	}

	s.mu.Lock()
	ended := resp.Item
	if ended.ID == uuid.Nil {
		ended.ID = itemID
	}
	s.applyItemEndedLocked(socket.ItemEndedPayload{
		ItemID:   ended.ID,
		Status:   ended.Status,
		WinnerID: ended.WinnerID,
		EndedAt:  ended.EndedAt,
	})

	next := s.firstPendingLocked()
	if next != nil {
		s.currentID = next.ID
	} else {
		s.currentID = uuid.Nil
	}
	nextID := s.currentID
	s.bids = nil
	s.priceHistory = nil
	s.mu.Unlock()

	if nextID != uuid.Nil {
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			s.refreshBidHistory(ctx, nextID)
		}()
		go func() {
			defer wg.Done()
			s.refreshPriceHistory(ctx, nextID)
		}()
		wg.Wait()
	}
	return resp.Winner, nil
}

// EndAuction closes the whole auction.
func (s *AdminState) EndAuction(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.api.EndAuction(ctx, auctionID)
	if err != nil {
		s.commandError("failed to end the auction", err)
		return err
	}
	s.applyAuctionUpdate(auction)
	return nil
}

// CancelAuction aborts the whole auction.
func (s *AdminState) CancelAuction(ctx context.Context, auctionID uuid.UUID) error {
	auction, err := s.api.CancelAuction(ctx, auctionID)
	if err != nil {
		s.commandError("failed to cancel the auction", err)
		return err
	}
	s.applyAuctionUpdate(auction)
	return nil
}

func (s *AdminState) applyAuctionUpdate(update models.Auction) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.auction == nil || (update.ID != uuid.Nil && update.ID != s.auction.ID) {
		return
	}
	if update.Status != "" {
		s.auction.Status = update.Status
	}
	if update.StartedAt != nil {
		s.auction.StartedAt = update.StartedAt
	}
	if update.EndedAt != nil {
		s.auction.EndedAt = update.EndedAt
	}
}

// --- fetch helpers: failures are logged and leave partial data ---

func (s *AdminState) refreshParticipants(ctx context.Context, auctionID uuid.UUID) {
	participants, err := s.api.GetParticipants(ctx, auctionID)
	if err != nil {
		log.Error().Err(err).Str("auction_id", auctionID.String()).Msg("failed to fetch participants")
		return
	}
	s.mu.Lock()
	s.participants = participants
	s.mu.Unlock()
}

func (s *AdminState) refreshBidHistory(ctx context.Context, itemID uuid.UUID) {
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

func (s *AdminState) refreshPriceHistory(ctx context.Context, itemID uuid.UUID) {
	history, err := s.api.GetPriceHistory(ctx, itemID)
	if err != nil {
		log.Error().Err(err).Str("item_id", itemID.String()).Msg("failed to fetch price history")
		return
	}
	s.mu.Lock()
	if s.currentID == itemID {
		s.priceHistory = history
	}
	s.mu.Unlock()
}

// prependDisclosureLocked keeps the newest-first price history free of
// duplicates when the command response and the broadcast both deliver the
// same disclosure.
func (s *AdminState) prependDisclosureLocked(d models.PriceDisclosure) {
	for i := range s.priceHistory {
		existing := s.priceHistory[i]
		if existing.ItemID == d.ItemID && existing.Price == d.Price && existing.DisclosedAt.Equal(d.DisclosedAt) {
			return
		}
	}
	s.priceHistory = append([]models.PriceDisclosure{d}, s.priceHistory...)
}

// --- broadcast handlers ---

func (s *AdminState) onBidPlaced(payload interface{}) {
	p, ok := parsePayload[socket.BidPlacedPayload](socket.EventBidPlaced, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID == p.ItemID {
		s.insertBidLocked(p.Bid)
	}
	s.applyLastBidPriceLocked(p.ItemID, p.Bid.Price)
}

func (s *AdminState) onPriceOpened(payload interface{}) {
	p, ok := parsePayload[socket.PriceOpenedPayload](socket.EventPriceOpened, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentID == p.ItemID {
		s.prependDisclosureLocked(models.PriceDisclosure{
			ItemID:      p.ItemID,
			Price:       p.Price,
			DisclosedAt: p.DisclosedAt(),
		})
	}
	s.applyPriceLocked(p.ItemID, p.Price)
}

func (s *AdminState) onItemStarted(payload interface{}) {
	p, ok := parsePayload[socket.ItemStartedPayload](socket.EventItemStarted, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyItemStartedLocked(p)
}

func (s *AdminState) onItemEnded(payload interface{}) {
	p, ok := parsePayload[socket.ItemEndedPayload](socket.EventItemEnded, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyItemEndedLocked(p)
}

func (s *AdminState) onParticipantJoined(payload interface{}) {
	p, ok := parsePayload[socket.ParticipantJoinedPayload](socket.EventParticipantJoined, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].BidderID == p.Participant.BidderID {
			s.participants[i].Status = models.ParticipantStatusActive
			return
		}
	}
	s.participants = append(s.participants, p.Participant)
}

func (s *AdminState) onParticipantLeft(payload interface{}) {
	p, ok := parsePayload[socket.ParticipantLeftPayload](socket.EventParticipantLeft, payload)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.participants {
		if s.participants[i].BidderID == p.BidderID {
			s.participants[i].Status = models.ParticipantStatusLeft
			return
		}
	}
}

func (s *AdminState) onAuctionEnded(payload interface{}) {
	p, ok := parsePayload[socket.AuctionEndedPayload](socket.EventAuctionEnded, payload)
	if !ok {
		return
	}
	s.applyAuctionUpdate(models.Auction{ID: p.AuctionID, Status: p.Status, EndedAt: p.EndedAt})
}

func (s *AdminState) onAuctionCancelled(payload interface{}) {
	p, ok := parsePayload[socket.AuctionCancelledPayload](socket.EventAuctionCancelled, payload)
	if !ok {
		return
	}
	s.applyAuctionUpdate(p.Auction)
}

// Bind registers all broadcast and lifecycle handlers on the dispatcher.
func (s *AdminState) Bind(d *socket.Dispatcher) {
	s.bindLifecycle(d)
	s.subs = append(s.subs,
		d.On(socket.EventBidPlaced, s.onBidPlaced),
		d.On(socket.EventPriceOpened, s.onPriceOpened),
		d.On(socket.EventItemStarted, s.onItemStarted),
		d.On(socket.EventItemEnded, s.onItemEnded),
		d.On(socket.EventParticipantJoined, s.onParticipantJoined),
		d.On(socket.EventParticipantLeft, s.onParticipantLeft),
		d.On(socket.EventAuctionEnded, s.onAuctionEnded),
		d.On(socket.EventAuctionCancelled, s.onAuctionCancelled),
	)
}

// Unbind drops every registered handler so late events cannot mutate a
// discarded view.
func (s *AdminState) Unbind() {
	s.unbind()
}

// Reset tears the view down for reuse.
func (s *AdminState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resetBaseLocked()
	s.participants = nil
	s.priceHistory = nil
}

// Participants returns a copy of the roster.
func (s *AdminState) Participants() []models.Participant {
	s.mu.RLock()
	defer s.mu.RUnlock()
	participants := make([]models.Participant, len(s.participants))
	copy(participants, s.participants)
	return participants
}

// ActiveParticipantCount counts bidders still in the room.
func (s *AdminState) ActiveParticipantCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for i := range s.participants {
		if s.participants[i].Status == models.ParticipantStatusActive {
			count++
		}
	}
	return count
}

// PriceHistory returns a copy of the focused item's disclosure history.
func (s *AdminState) PriceHistory() []models.PriceDisclosure {
	s.mu.RLock()
	defer s.mu.RUnlock()
	history := make([]models.PriceDisclosure, len(s.priceHistory))
	copy(history, s.priceHistory)
	return history
}
