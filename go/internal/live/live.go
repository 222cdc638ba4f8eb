package live

import (
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionlive/go/clients"
	"github.com/mcdev12/auctionlive/go/internal/live/socket"
	"github.com/mcdev12/auctionlive/go/internal/models"
)

// ConnectionStatus is the channel health snapshot exposed to presentation
// code.
type ConnectionStatus struct {
	Connected            bool
	Reconnecting         bool
	ReconnectAttempt     int
	MaxReconnectAttempts int
}

// liveState is the shared core of the admin and bidder live views: the
// authoritative-as-known mirror of one auction. Every mutation path is
// keyed by entity identity so that a direct command response and the
// broadcast for the same change commute; applying the same payload twice
// is a no-op, never a duplicate entry or a double transition.
type liveState struct {
	mu        sync.RWMutex
	auction   *models.Auction
	items     []models.Item
	currentID uuid.UUID
	bids      []models.Bid
	loading   bool
	lastError string
	conn      ConnectionStatus
	subs      []*socket.Subscription
}

// --- locked helpers ---

func (s *liveState) itemIndexLocked(id uuid.UUID) int {
	for i := range s.items {
		if s.items[i].ID == id {
			return i
		}
	}
	return -1
}

// selectInitialFocusLocked picks the active item if one exists, else the
// first pending item, else leaves focus empty.
func (s *liveState) selectInitialFocusLocked() {
	s.currentID = uuid.Nil
	for i := range s.items {
		if s.items[i].Status == models.ItemStatusActive {
			s.currentID = s.items[i].ID
			return
		}
	}
	for i := range s.items {
		if s.items[i].Status == models.ItemStatusPending {
			s.currentID = s.items[i].ID
			return
		}
	}
}

func (s *liveState) firstPendingLocked() *models.Item {
	for i := range s.items {
		if s.items[i].Status == models.ItemStatusPending {
			return &s.items[i]
		}
	}
	return nil
}

// insertBidLocked prepends a bid to the newest-first history unless a bid
// with the same id is already recorded. This is what makes the optimistic
// insert from a command and the matching broadcast idempotent.
func (s *liveState) insertBidLocked(bid models.Bid) bool {
	for i := range s.bids {
		if s.bids[i].ID == bid.ID {
			return false
		}
	}
	s.bids = append([]models.Bid{bid}, s.bids...)
	return true
}

// applyItemStartedLocked merges a started transition. Missing items are a
// no-op; re-applying the same transition leaves the state unchanged.
func (s *liveState) applyItemStartedLocked(p socket.ItemStartedPayload) {
	i := s.itemIndexLocked(p.ItemID)
	if i == -1 {
		return
	}
	item := &s.items[i]
	if p.Status != "" {
		item.Status = p.Status
	}
	item.CurrentPrice = p.CurrentPrice
	if p.StartedAt != nil {
		item.StartedAt = p.StartedAt
	}
}

func (s *liveState) applyItemEndedLocked(p socket.ItemEndedPayload) {
	i := s.itemIndexLocked(p.ItemID)
	if i == -1 {
		return
	}
	item := &s.items[i]
	if p.Status != "" {
		item.Status = p.Status
	}
	if p.WinnerID != nil {
		item.WinnerID = p.WinnerID
	}
	if p.EndedAt != nil {
		item.EndedAt = p.EndedAt
	}
}

func (s *liveState) applyPriceLocked(itemID uuid.UUID, price int64) {
	i := s.itemIndexLocked(itemID)
	if i == -1 {
		return
	}
	s.items[i].CurrentPrice = price
}

func (s *liveState) applyLastBidPriceLocked(itemID uuid.UUID, price int64) {
	i := s.itemIndexLocked(itemID)
	if i == -1 {
		return
	}
	s.items[i].LastBidPrice = price
}

func (s *liveState) resetBaseLocked() {
	s.auction = nil
	s.items = nil
	s.currentID = uuid.Nil
	s.bids = nil
	s.loading = false
	s.lastError = ""
	s.conn = ConnectionStatus{}
}

// --- command error scoping ---

// commandError records an action-specific user-facing message, preferring
// the server's reason when the failure carried one.
func (s *liveState) commandError(action string, err error) {
	msg := action
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		msg = apiErr.Message
	}
	s.mu.Lock()
	s.lastError = msg
	s.mu.Unlock()
}

// --- channel lifecycle handlers ---

func (s *liveState) onConnected(interface{}) {
	s.mu.Lock()
	s.conn.Connected = true
	s.conn.Reconnecting = false
	s.conn.ReconnectAttempt = 0
	s.mu.Unlock()
}

func (s *liveState) onDisconnected(interface{}) {
	s.mu.Lock()
	s.conn.Connected = false
	s.mu.Unlock()
}

func (s *liveState) onReconnecting(payload interface{}) {
	p, ok := payload.(socket.ReconnectingPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	s.conn.Reconnecting = true
	s.conn.ReconnectAttempt = p.Attempt
	s.conn.MaxReconnectAttempts = p.Max
	s.mu.Unlock()
}

func (s *liveState) onChannelError(payload interface{}) {
	p, ok := payload.(socket.ErrorPayload)
	if !ok {
		return
	}
	s.mu.Lock()
	s.lastError = p.Message
	s.mu.Unlock()
}

func (s *liveState) bindLifecycle(d *socket.Dispatcher) {
	s.subs = append(s.subs,
		d.On(socket.EventConnected, s.onConnected),
		d.On(socket.EventDisconnected, s.onDisconnected),
		d.On(socket.EventReconnecting, s.onReconnecting),
		d.On(socket.EventError, s.onChannelError),
	)
}

func (s *liveState) unbind() {
	for _, sub := range s.subs {
		sub.Off()
	}
	s.subs = nil
}

// --- read access (snapshot copies) ---

func (s *liveState) Auction() *models.Auction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.auction == nil {
		return nil
	}
	a := *s.auction
	return &a
}

func (s *liveState) Items() []models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	items := make([]models.Item, len(s.items))
	copy(items, s.items)
	return items
}

func (s *liveState) CurrentItem() *models.Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.currentItemCopyLocked()
}

func (s *liveState) currentItemCopyLocked() *models.Item {
	if s.currentID == uuid.Nil {
		return nil
	}
	i := s.itemIndexLocked(s.currentID)
	if i == -1 {
		return nil
	}
	item := s.items[i]
	return &item
}

func (s *liveState) Bids() []models.Bid {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bids := make([]models.Bid, len(s.bids))
	copy(bids, s.bids)
	return bids
}

func (s *liveState) Connection() ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *liveState) LastError() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastError
}

// ClearError dismisses the recorded user-facing error.
func (s *liveState) ClearError() {
	s.mu.Lock()
	s.lastError = ""
	s.mu.Unlock()
}

func (s *liveState) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

// parsePayload coerces a dispatcher payload into the typed struct for a
// wire event. Anything unparseable is logged and skipped; a bad broadcast
// must never take down handling of subsequent messages.
func parsePayload[T any](eventType socket.EventType, payload interface{}) (T, bool) {
	var zero T
	raw, ok := payload.(json.RawMessage)
	if !ok {
		log.Warn().Str("event_type", string(eventType)).Msg("unexpected payload shape")
		return zero, false
	}
	parsed, err := socket.ParseEventPayload(eventType, raw)
	if err != nil {
		log.Warn().Err(err).Str("event_type", string(eventType)).Msg("dropping malformed event payload")
		return zero, false
	}
	value, ok := parsed.(T)
	if !ok {
		return zero, false
	}
	return value, true
}
