package walletapi

import (
	"fmt"
	"strings"
	"time"
)

const (
	defaultListenAddr     = ":8080"
	defaultLedgerBaseURL  = "http://localhost:5000"
	defaultAllowedOrigin  = "http://localhost:3000"
	defaultLedgerTimeout  = 15 * time.Second
	defaultHistoryLimit   = 20
	defaultReceiveQRPixel = 256
)

// Config aggregates runtime settings for the wallet façade.
type Config struct {
	ListenAddr     string
	LedgerBaseURL  string
	LedgerTimeout  time.Duration
	RedisAddr      string
	AllowedOrigins []string
	HistoryLimit   int
	ReceiveQRPixel int
}

// Validate ensures the configuration contains sane values.
func (cfg *Config) Validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultListenAddr)
	cfg.LedgerBaseURL = defaultIfEmpty(cfg.LedgerBaseURL, defaultLedgerBaseURL)
	if cfg.LedgerTimeout <= 0 {
		cfg.LedgerTimeout = defaultLedgerTimeout
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.ReceiveQRPixel <= 0 {
		cfg.ReceiveQRPixel = defaultReceiveQRPixel
	}
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return fmt.Errorf("listen addr is required")
	}
	if strings.TrimSpace(cfg.LedgerBaseURL) == "" {
		return fmt.Errorf("ledger base url is required")
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseAllowedOrigins splits comma-delimited origins into a slice.
func ParseAllowedOrigins(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
