package market

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/sugawarayuuta/sonnet"
	"go.uber.org/zap"
)

// LoadSnapshot reads a JSON snapshot file
func LoadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to read snapshot: %w", err)
	}
	return DecodeSnapshot(data)
}

// DecodeSnapshot decodes a JSON snapshot
func DecodeSnapshot(data []byte) (Snapshot, error) {
	var snap Snapshot
	if err := sonnet.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	if snap.TakenAt.IsZero() {
		snap.TakenAt = time.Now().UTC()
	}
	return snap, nil
}

// FileFeed re-reads a snapshot file on a fixed interval. It stands in for the
// streaming price collaborator when the engine runs from the CLI.
type FileFeed struct {
	path     string
	interval time.Duration
	logger   *zap.Logger
	seq      uint64
}

// NewFileFeed creates a feed polling path every interval
func NewFileFeed(path string, interval time.Duration, logger *zap.Logger) *FileFeed {
	return &FileFeed{
		path:     path,
		interval: interval,
		logger:   logger.Named("feed"),
	}
}

// Start delivers snapshots until ctx is cancelled. Unreadable files are
// logged and the tick is skipped. The returned channel is closed on exit.
func (f *FileFeed) Start(ctx context.Context) <-chan Snapshot {
	out := make(chan Snapshot)

	go func() {
		defer close(out)

		ticker := time.NewTicker(f.interval)
		defer ticker.Stop()

		for {
			f.deliver(ctx, out)

			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()

	return out
}

func (f *FileFeed) deliver(ctx context.Context, out chan<- Snapshot) {
	snap, err := LoadSnapshot(f.path)
	if err != nil {
		f.logger.Warn("Failed to load snapshot", zap.String("path", f.path), zap.Error(err))
		return
	}

	// Sequence numbers from the file are only trusted when they advance
	f.seq++
	if snap.Sequence < f.seq {
		snap.Sequence = f.seq
	}
	f.seq = snap.Sequence

	select {
	case out <- snap:
	case <-ctx.Done():
	}
}
