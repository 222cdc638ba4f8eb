package auction_api_client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/mcdev12/auctionlive/go/internal/models"
)

type pointsResponse struct {
	Points json.RawMessage `json:"points"`
}

type placeBidResponse struct {
	Bid    models.Bid      `json:"bid"`
	Points json.RawMessage `json:"points"`
}

// PlaceBidResult is the normalized outcome of a bid request.
type PlaceBidResult struct {
	Bid    models.Bid
	Points *models.PointsBalance
}

type placeBidRequest struct {
	Price int64 `json:"price"`
}

// GetPoints fetches the caller's balance. The endpoint answers in the
// *_points naming dialect; the result is the canonical shape.
func (c *AuctionApiClient) GetPoints(ctx context.Context) (models.PointsBalance, error) {
	var response pointsResponse
	if err := c.GetJSON(ctx, pointsEndpoint, &response); err != nil {
		return models.PointsBalance{}, fmt.Errorf("failed to get points: %w", err)
	}
	if len(response.Points) == 0 {
		return models.PointsBalance{}, nil
	}
	points, err := models.NormalizePoints(response.Points)
	if err != nil {
		return models.PointsBalance{}, fmt.Errorf("failed to normalize points: %w", err)
	}
	return points, nil
}

// PlaceBid bids at the given price and returns the recorded bid together
// with the updated balance when the server includes one.
func (c *AuctionApiClient) PlaceBid(ctx context.Context, itemID uuid.UUID, price int64) (*PlaceBidResult, error) {
	var response placeBidResponse
	if err := c.PostJSON(ctx, itemPath(placeBidEndpoint, itemID), placeBidRequest{Price: price}, &response); err != nil {
		return nil, err
	}

	result := &PlaceBidResult{Bid: response.Bid}
	if len(response.Points) > 0 {
		points, err := models.NormalizePoints(response.Points)
		if err != nil {
			return nil, fmt.Errorf("failed to normalize points: %w", err)
		}
		result.Points = &points
	}
	return result, nil
}
