// Package file implements a Notifier that appends payloads to a JSON-lines file.
// It is meant for dry runs: nothing leaves the machine.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/ArionMiles/paynotify/pkg/api"
)

// Entry is one line of the output file.
type Entry struct {
	Seq     int         `json:"seq"`
	SentAt  time.Time   `json:"sentAt"`
	Payload api.Payload `json:"payload"`
}

// Notifier writes each payload as a JSON line.
type Notifier struct {
	filePath string
	mu       sync.Mutex
	seq      int
	now      func() time.Time
	logger   *slog.Logger
}

// Config holds configuration for the file notifier.
type Config struct {
	// FilePath is the path to the JSON-lines output file.
	FilePath string
}

// New creates a file notifier. The file is created on first send.
func New(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file path is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("file notifier initialized", "file", cfg.FilePath)
	return &Notifier{filePath: cfg.FilePath, now: time.Now, logger: logger}, nil
}

// Send appends p to the file and returns its sequence number within this process.
func (n *Notifier) Send(_ context.Context, p api.Payload) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	entry := Entry{Seq: n.seq + 1, SentAt: n.now(), Payload: p}
	data, err := json.Marshal(entry)
	if err != nil {
		return "", fmt.Errorf("marshaling payload: %w", err)
	}

	f, err := os.OpenFile(n.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return "", fmt.Errorf("opening notify file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return "", fmt.Errorf("writing notify file: %w", err)
	}

	n.seq++
	n.logger.Debug("wrote notification", "seq", n.seq, "headline", p.Headline)
	return fmt.Sprintf("line-%d", n.seq), nil
}

var _ api.Notifier = (*Notifier)(nil)
