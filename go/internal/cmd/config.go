package main

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config wires the livefeed tool to one auction. Values come from an
// optional YAML file overridden by environment variables.
type Config struct {
	Feed struct {
		WSURL     string `yaml:"ws_url"`
		APIURL    string `yaml:"api_url"`
		AuctionID string `yaml:"auction_id"`
		Token     string `yaml:"token"`
		Bidder    bool   `yaml:"bidder"`
	} `yaml:"feed"`
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &config, nil
}

// resolveConfig layers environment variables over the optional YAML file.
func resolveConfig() Config {
	var config Config
	if path := os.Getenv("LIVEFEED_CONFIG"); path != "" {
		if fileConfig, err := loadConfigFile(path); err == nil {
			config = *fileConfig
		} else {
			fmt.Fprintf(os.Stderr, "warning: %v\n", err)
		}
	}

	config.Feed.WSURL = getEnv("AUCTION_WS_URL", firstNonEmpty(config.Feed.WSURL, "ws://localhost/ws"))
	config.Feed.APIURL = getEnv("AUCTION_API_URL", firstNonEmpty(config.Feed.APIURL, "http://localhost/api"))
	config.Feed.AuctionID = getEnv("AUCTION_ID", config.Feed.AuctionID)
	config.Feed.Token = getEnv("AUCTION_TOKEN", config.Feed.Token)
	config.Feed.Bidder = getEnvAsBool("AUCTION_BIDDER", config.Feed.Bidder)
	return config
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
