package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// KeepAliveConfig configures the periodic self ping.
type KeepAliveConfig struct {
	URL      string
	Interval time.Duration
	Timeout  time.Duration
}

// KeepAliveService pings a URL on an interval so idle hosts do not sleep.
type KeepAliveService struct {
	cfg     KeepAliveConfig
	client  *http.Client
	metrics *MetricsService
	logger  *zap.Logger
}

// NewKeepAliveService constructs the pinger.
func NewKeepAliveService(cfg KeepAliveConfig, client *http.Client, metrics *MetricsService, logger *zap.Logger) *KeepAliveService {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Minute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeepAliveService{cfg: cfg, client: client, metrics: metrics, logger: logger}
}

// Enabled reports whether a target URL is configured.
func (s *KeepAliveService) Enabled() bool {
	return s != nil && s.cfg.URL != ""
}

// Run pings until ctx is cancelled. Failures are logged and never stop the loop.
func (s *KeepAliveService) Run(ctx context.Context) {
	if !s.Enabled() {
		return
	}
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	s.logger.Info("keep-alive started", zap.String("url", s.cfg.URL), zap.Duration("interval", s.cfg.Interval))
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("keep-alive stopped")
			return
		case <-ticker.C:
			if err := s.Ping(ctx); err != nil {
				s.logger.Warn("keep-alive ping failed", zap.String("url", s.cfg.URL), zap.Error(err))
			}
		}
	}
}

// Ping issues one GET against the configured URL.
func (s *KeepAliveService) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	err := s.ping(ctx)
	s.metrics.RecordKeepAlive(err == nil)
	return err
}

func (s *KeepAliveService) ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("build keep-alive request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("keep-alive request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("keep-alive status %d", resp.StatusCode)
	}
	return nil
}
