package auction_api_client

import (
	"github.com/mcdev12/auctionlive/go/clients"
)

// AuctionApiClient talks to the auction REST surface: snapshot fetches for
// live-state initialization and the admin/bidder command endpoints.
type AuctionApiClient struct {
	*clients.BaseClient
}

// NewAuctionApiClient creates a client for the given API base URL. The token
// is the same opaque credential used for the live channel.
func NewAuctionApiClient(baseURL, token string) *AuctionApiClient {
	client := &AuctionApiClient{
		BaseClient: clients.NewBaseClient(baseURL),
	}

	if token != "" {
		client.SetAuthToken(token)
	}

	return client
}
