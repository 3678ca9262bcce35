package config

import (
	"fmt"
)

type Config struct {
	ServerAddr     string
	DatabaseDSN    string
	AllowedOrigins []string
}

// NewConfig validates the pull server configuration. The push server
// uses NewPushConfig since it has no database.
func NewConfig(serverAddr, databaseDSN string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}
	if databaseDSN == "" {
		return nil, fmt.Errorf("database DSN cannot be empty")
	}

	return &Config{
		ServerAddr:     serverAddr,
		DatabaseDSN:    databaseDSN,
		AllowedOrigins: allowedOrigins,
	}, nil
}

func NewPushConfig(serverAddr string, allowedOrigins []string) (*Config, error) {
	if serverAddr == "" {
		return nil, fmt.Errorf("server address cannot be empty")
	}

	return &Config{
		ServerAddr:     serverAddr,
		AllowedOrigins: allowedOrigins,
	}, nil
}
