package auction_api_client

import (
	"fmt"

	"github.com/google/uuid"
)

// Endpoint paths. Field naming in the responses is not uniform across these
// endpoints (total vs total_points); the models package normalizes.
const (
	DefaultBidHistoryLimit = 50

	auctionDetailEndpoint = "/auctions/%s"
	participantsEndpoint  = "/auctions/%s/participants"
	endAuctionEndpoint    = "/auctions/%s/end"
	cancelAuctionEndpoint = "/auctions/%s/cancel"

	startItemEndpoint    = "/items/%s/start"
	openPriceEndpoint    = "/items/%s/price"
	endItemEndpoint      = "/items/%s/end"
	bidHistoryEndpoint   = "/items/%s/bids?limit=%d&offset=%d"
	priceHistoryEndpoint = "/items/%s/price-history"

	pointsEndpoint   = "/bidder/points"
	placeBidEndpoint = "/bidder/items/%s/bid"
)

func auctionPath(format string, auctionID uuid.UUID) string {
	return fmt.Sprintf(format, auctionID)
}

func itemPath(format string, itemID uuid.UUID) string {
	return fmt.Sprintf(format, itemID)
}
