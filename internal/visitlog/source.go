// Package visitlog provides the raw visit-log feeds consumed by the analytics aggregator.
package visitlog

import (
	"context"
	"os"

	apperrors "github.com/kimhsiao/gosauna/backend/internal/errors"
	"github.com/kimhsiao/gosauna/backend/internal/models"
	"github.com/kimhsiao/gosauna/backend/internal/remote"
)

// Source fetches up to limit recent visit-log entries.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]models.VisitLogEntry, error)
}

// Ensure implementations satisfy Source at compile time.
var (
	_ Source = (*RemoteSource)(nil)
	_ Source = (*FileSource)(nil)
	_ Source = (*Mongo)(nil)
)

// LogFetcher is the part of the remote gateway RemoteSource needs.
type LogFetcher interface {
	VisitLogs(ctx context.Context, limit int) ([]models.VisitLogEntry, error)
}

// RemoteSource reads the tenant's app logs through the remote gateway.
type RemoteSource struct {
	gateway LogFetcher
}

// NewRemoteSource creates a RemoteSource.
func NewRemoteSource(gateway LogFetcher) *RemoteSource {
	return &RemoteSource{gateway: gateway}
}

func (s *RemoteSource) Fetch(ctx context.Context, limit int) ([]models.VisitLogEntry, error) {
	return s.gateway.VisitLogs(ctx, limit)
}

// FileSource reads an exported log payload from disk, in any shape the
// remote endpoint may return.
type FileSource struct {
	Path string
}

func (s *FileSource) Fetch(_ context.Context, limit int) ([]models.VisitLogEntry, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrNotFound, "failed to read visit log file", err)
	}
	entries := remote.DecodeVisitLogs(data)
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}
