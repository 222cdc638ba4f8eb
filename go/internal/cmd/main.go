package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/auctionlive/go/clients/auction_api_client"
	"github.com/mcdev12/auctionlive/go/internal/live"
	"github.com/mcdev12/auctionlive/go/internal/live/socket"
)

// livefeed joins one auction's live channel and tails its events, with an
// initial snapshot fetched over REST. Useful for watching an auction from
// a terminal and for poking at a running backend.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: could not load .env file: %v\n", err)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if os.Getenv("LIVEFEED_DEBUG") != "" {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	config := resolveConfig()
	if config.Feed.AuctionID == "" {
		log.Fatal().Msg("AUCTION_ID is required")
	}
	auctionID, err := uuid.Parse(config.Feed.AuctionID)
	if err != nil {
		log.Fatal().Err(err).Msg("AUCTION_ID must be a UUID")
	}

	dispatcher := socket.NewDispatcher()
	printFeed(dispatcher)

	api := auction_api_client.NewAuctionApiClient(config.Feed.APIURL, config.Feed.Token)
	admin := live.NewAdminState(api)
	admin.Bind(dispatcher)
	defer admin.Unbind()

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := admin.Initialize(ctx, auctionID); err != nil {
		log.Warn().Err(err).Msg("snapshot fetch failed, tailing events only")
	}
	cancel()
	printSnapshot(admin)

	socketConfig := socket.DefaultConfig(config.Feed.WSURL)
	socketConfig.SubscribeOnConnect = config.Feed.Bidder
	client := socket.NewClient(socketConfig, dispatcher, clockwork.NewRealClock())
	client.Connect(config.Feed.Token, config.Feed.AuctionID)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info().Msg("shutting down")
	client.Disconnect()
}

func printSnapshot(admin *live.AdminState) {
	auction := admin.Auction()
	if auction == nil {
		return
	}
	title := color.New(color.Bold).Sprint(auction.Title)
	fmt.Printf("%s [%s]\n", title, auction.Status)
	for _, item := range admin.Items() {
		fmt.Printf("  lot %d: %s [%s] current price %d\n",
			item.LotNumber, item.Name, item.Status, item.CurrentPrice)
	}
}

func printFeed(dispatcher *socket.Dispatcher) {
	eventColors := map[socket.EventType]*color.Color{
		socket.EventPriceOpened:       color.New(color.FgCyan),
		socket.EventBidPlaced:         color.New(color.FgGreen),
		socket.EventItemStarted:       color.New(color.FgYellow),
		socket.EventItemEnded:         color.New(color.FgMagenta),
		socket.EventParticipantJoined: color.New(color.FgBlue),
		socket.EventParticipantLeft:   color.New(color.FgBlue),
		socket.EventAuctionEnded:      color.New(color.FgRed),
		socket.EventAuctionCancelled:  color.New(color.FgRed),
	}
	for eventType, c := range eventColors {
		eventType, c := eventType, c
		dispatcher.On(eventType, func(payload interface{}) {
			line := ""
			if raw, ok := payload.(json.RawMessage); ok {
				line = string(raw)
			}
			fmt.Printf("%s %s\n", c.Sprintf("%-20s", string(eventType)), line)
		})
	}

	dispatcher.On(socket.EventConnected, func(interface{}) {
		fmt.Println(color.GreenString("-- connected --"))
	})
	dispatcher.On(socket.EventDisconnected, func(interface{}) {
		fmt.Println(color.YellowString("-- disconnected --"))
	})
	dispatcher.On(socket.EventReconnecting, func(payload interface{}) {
		if p, ok := payload.(socket.ReconnectingPayload); ok {
			fmt.Println(color.YellowString("-- reconnecting %d/%d --", p.Attempt, p.Max))
		}
	})
	dispatcher.On(socket.EventError, func(payload interface{}) {
		if p, ok := payload.(socket.ErrorPayload); ok {
			fmt.Println(color.RedString("-- error: %s --", p.Message))
		}
	})
}
