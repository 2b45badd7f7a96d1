// Package audit records admin actions (logins, moderation, edits, deletes)
// as structured entries and ships them to one or more destinations. Entries
// always reach the application log; a JSON-lines file and a webhook can be
// added through the audit config section.
package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/resourcehub/resourcehub/internal/config"
)

// LogEntry is one audit record.
type LogEntry struct {
	Timestamp  time.Time      `json:"timestamp"`
	Action     string         `json:"action"`
	Actor      string         `json:"actor,omitempty"`
	ResourceID string         `json:"resource_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	RequestID  string         `json:"request_id,omitempty"`
	StatusCode int            `json:"status_code,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Shipper delivers audit entries to a destination.
type Shipper interface {
	Ship(ctx context.Context, entry *LogEntry) error
	Close() error
}

// NewShipper builds the destinations named in cfg. The application log is
// always one of them.
func NewShipper(cfg *config.AuditConfig) (*MultiShipper, error) {
	shippers := []Shipper{NewLogShipper(slog.Default())}

	if cfg.File.Path != "" {
		fs, err := NewFileShipper(&cfg.File)
		if err != nil {
			return nil, fmt.Errorf("failed to create file shipper: %w", err)
		}
		shippers = append(shippers, fs)
	}
	if cfg.Webhook.URL != "" {
		shippers = append(shippers, NewWebhookShipper(&cfg.Webhook))
	}

	return NewMultiShipper(shippers...), nil
}

// MultiShipper fans an entry out to several shippers.
type MultiShipper struct {
	shippers []Shipper
	mu       sync.RWMutex
}

// NewMultiShipper combines shippers.
func NewMultiShipper(shippers ...Shipper) *MultiShipper {
	return &MultiShipper{shippers: shippers}
}

// Ship sends entry to every shipper. A failing shipper does not stop the
// others; all failures are joined into the returned error.
func (ms *MultiShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Ship(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every shipper.
func (ms *MultiShipper) Close() error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var errs []error
	for _, s := range ms.shippers {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogShipper writes entries to a slog logger.
type LogShipper struct {
	logger *slog.Logger
}

// NewLogShipper creates a shipper logging through logger.
func NewLogShipper(logger *slog.Logger) *LogShipper {
	return &LogShipper{logger: logger}
}

// Ship implements Shipper.
func (ls *LogShipper) Ship(ctx context.Context, entry *LogEntry) error {
	ls.logger.LogAttrs(ctx, slog.LevelInfo, "audit",
		slog.String("action", entry.Action),
		slog.String("actor", entry.Actor),
		slog.String("resource_id", entry.ResourceID),
		slog.String("ip", entry.IPAddress),
		slog.String("request_id", entry.RequestID),
		slog.Int("status", entry.StatusCode),
	)
	return nil
}

// Close implements Shipper.
func (ls *LogShipper) Close() error { return nil }

// WebhookShipper posts each entry as JSON.
type WebhookShipper struct {
	url    string
	client *http.Client
}

// NewWebhookShipper creates a webhook shipper. A zero timeout means 10s.
func NewWebhookShipper(cfg *config.AuditWebhookConfig) *WebhookShipper {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &WebhookShipper{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

// Ship implements Shipper.
func (ws *WebhookShipper) Ship(ctx context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ws.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ws.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Close implements Shipper.
func (ws *WebhookShipper) Close() error {
	ws.client.CloseIdleConnections()
	return nil
}

// FileShipper appends entries as JSON lines through a lumberjack logger,
// which rotates the file once it grows past MaxSizeMB. A zero MaxSizeMB
// disables rotation; a zero MaxBackups keeps every rotated file.
type FileShipper struct {
	out *lumberjack.Logger
	mu  sync.Mutex
}

// noRotationMB is large enough that lumberjack never rotates.
const noRotationMB = 1 << 20

// NewFileShipper checks that cfg.Path is writable and returns a shipper
// appending to it.
func NewFileShipper(cfg *config.AuditFileConfig) (*FileShipper, error) {
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- operator-configured path
	if err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}
	if err := file.Close(); err != nil {
		return nil, fmt.Errorf("failed to open audit log file: %w", err)
	}

	maxSize := cfg.MaxSizeMB
	if maxSize <= 0 {
		maxSize = noRotationMB
	}
	return &FileShipper{out: &lumberjack.Logger{
		Filename:   cfg.Path,
		MaxSize:    maxSize,
		MaxBackups: cfg.MaxBackups,
	}}, nil
}

// Ship implements Shipper.
func (fs *FileShipper) Ship(_ context.Context, entry *LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal audit entry: %w", err)
	}

	fs.mu.Lock()
	defer fs.mu.Unlock()
	if _, err := fs.out.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write audit entry: %w", err)
	}
	return nil
}

// Close closes the file.
func (fs *FileShipper) Close() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.out.Close()
}
