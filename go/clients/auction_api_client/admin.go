package auction_api_client

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/auctionlive/go/internal/models"
)

// AuctionDetailResponse is the full snapshot used to initialize a live view:
// the auction record with its items inlined.
type AuctionDetailResponse struct {
	models.Auction
	Items []models.Item `json:"items"`
}

type participantsResponse struct {
	Participants []models.Participant `json:"participants"`
}

type bidHistoryResponse struct {
	Total int64        `json:"total"`
	Bids  []models.Bid `json:"bids"`
}

type priceHistoryResponse struct {
	PriceHistory []models.PriceDisclosure `json:"price_history"`
}

type itemResponse struct {
	Item models.Item `json:"item"`
}

type openPriceResponse struct {
	PriceHistory models.PriceDisclosure `json:"price_history"`
}

type auctionResponse struct {
	Auction models.Auction `json:"auction"`
}

// WinnerInfo describes the winning bidder returned when an item ends.
type WinnerInfo struct {
	BidderID    uuid.UUID `json:"bidder_id"`
	DisplayName string    `json:"display_name,omitempty"`
	Price       int64     `json:"price"`
}

// EndItemResponse carries the ended item and its winner, when one exists.
type EndItemResponse struct {
	Item   models.Item `json:"item"`
	Winner *WinnerInfo `json:"winner,omitempty"`
}

type openPriceRequest struct {
	NewPrice int64 `json:"new_price"`
}

// GetAuctionDetail fetches the auction with its items.
func (c *AuctionApiClient) GetAuctionDetail(ctx context.Context, auctionID uuid.UUID) (*AuctionDetailResponse, error) {
	var response AuctionDetailResponse
	if err := c.GetJSON(ctx, auctionPath(auctionDetailEndpoint, auctionID), &response); err != nil {
		return nil, fmt.Errorf("failed to get auction detail: %w", err)
	}
	return &response, nil
}

// GetParticipants fetches the current roster for an auction.
func (c *AuctionApiClient) GetParticipants(ctx context.Context, auctionID uuid.UUID) ([]models.Participant, error) {
	var response participantsResponse
	if err := c.GetJSON(ctx, auctionPath(participantsEndpoint, auctionID), &response); err != nil {
		return nil, fmt.Errorf("failed to get participants: %w", err)
	}
	return response.Participants, nil
}

// GetBidHistory fetches an item's bid history, newest first.
func (c *AuctionApiClient) GetBidHistory(ctx context.Context, itemID uuid.UUID, limit, offset int) ([]models.Bid, error) {
	if limit <= 0 {
		limit = DefaultBidHistoryLimit
	}
	endpoint := fmt.Sprintf(bidHistoryEndpoint, itemID, limit, offset)
	var response bidHistoryResponse
	if err := c.GetJSON(ctx, endpoint, &response); err != nil {
		return nil, fmt.Errorf("failed to get bid history: %w", err)
	}
	return response.Bids, nil
}

// GetPriceHistory fetches an item's disclosed-price history, newest first.
func (c *AuctionApiClient) GetPriceHistory(ctx context.Context, itemID uuid.UUID) ([]models.PriceDisclosure, error) {
	var response priceHistoryResponse
	if err := c.GetJSON(ctx, itemPath(priceHistoryEndpoint, itemID), &response); err != nil {
		return nil, fmt.Errorf("failed to get price history: %w", err)
	}
	return response.PriceHistory, nil
}

// StartItem opens bidding on an item and returns the updated record.
func (c *AuctionApiClient) StartItem(ctx context.Context, itemID uuid.UUID) (models.Item, error) {
	var response itemResponse
	if err := c.PostJSON(ctx, itemPath(startItemEndpoint, itemID), nil, &response); err != nil {
		return models.Item{}, fmt.Errorf("failed to start item: %w", err)
	}
	return response.Item, nil
}

// OpenPrice discloses a new price for an item and returns the created
// disclosure entry.
func (c *AuctionApiClient) OpenPrice(ctx context.Context, itemID uuid.UUID, price int64) (models.PriceDisclosure, error) {
	var response openPriceResponse
	if err := c.PostJSON(ctx, itemPath(openPriceEndpoint, itemID), openPriceRequest{NewPrice: price}, &response); err != nil {
		return models.PriceDisclosure{}, fmt.Errorf("failed to open price: %w", err)
	}
	return response.PriceHistory, nil
}

// EndItem closes bidding on an item.
func (c *AuctionApiClient) EndItem(ctx context.Context, itemID uuid.UUID) (*EndItemResponse, error) {
	var response EndItemResponse
	if err := c.PostJSON(ctx, itemPath(endItemEndpoint, itemID), nil, &response); err != nil {
		return nil, fmt.Errorf("failed to end item: %w", err)
	}
	return &response, nil
}

// EndAuction closes the auction.
func (c *AuctionApiClient) EndAuction(ctx context.Context, auctionID uuid.UUID) (models.Auction, error) {
	var response auctionResponse
	if err := c.PostJSON(ctx, auctionPath(endAuctionEndpoint, auctionID), nil, &response); err != nil {
		return models.Auction{}, fmt.Errorf("failed to end auction: %w", err)
	}
	return response.Auction, nil
}

// CancelAuction aborts the auction.
func (c *AuctionApiClient) CancelAuction(ctx context.Context, auctionID uuid.UUID) (models.Auction, error) {
	var response auctionResponse
	if err := c.PostJSON(ctx, auctionPath(cancelAuctionEndpoint, auctionID), nil, &response); err != nil {
		return models.Auction{}, fmt.Errorf("failed to cancel auction: %w", err)
	}
	return response.Auction, nil
}
