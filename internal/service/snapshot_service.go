package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// ErrInvalidSnapshotType indicates an unknown snapshot tag.
var ErrInvalidSnapshotType = errors.New("invalid snapshot type")

const (
	defaultTrendLimit = 30
	maxTrendLimit     = 365
)

// SnapshotService archives the school aggregate and serves trend series.
type SnapshotService interface {
	Capture(ctx context.Context, snapshotType string) (models.SchoolStatsSnapshot, error)
	Trend(ctx context.Context, snapshotType string, limit int) (dto.TrendResponse, error)
}

type snapshotService struct {
	snapshots  repository.SnapshotRepository
	stats      repository.StatisticsRepository
	statistics StatisticsService
	logger     zerolog.Logger
	now        func() time.Time
}

// NewSnapshotService constructs the snapshot archiver.
func NewSnapshotService(snapshots repository.SnapshotRepository, stats repository.StatisticsRepository, statistics StatisticsService, logger zerolog.Logger) SnapshotService {
	return &snapshotService{
		snapshots:  snapshots,
		stats:      stats,
		statistics: statistics,
		logger:     logger.With().Str("component", "snapshot_service").Logger(),
		now:        time.Now,
	}
}

// Capture copies the current school aggregate into a new snapshot row, computing the
// aggregate first when none is stored yet.
func (s *snapshotService) Capture(ctx context.Context, snapshotType string) (models.SchoolStatsSnapshot, error) {
	if !validSnapshotType(snapshotType) {
		return models.SchoolStatsSnapshot{}, ErrInvalidSnapshotType
	}

	stats, err := s.stats.GetSchool(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		stats, err = s.statistics.RecalculateSchool(ctx)
	}
	if err != nil {
		return models.SchoolStatsSnapshot{}, fmt.Errorf("load school stats: %w", err)
	}

	snapshot := models.NewSchoolStatsSnapshot(stats, snapshotType, s.now().UTC())
	if err := s.snapshots.Create(ctx, &snapshot); err != nil {
		return models.SchoolStatsSnapshot{}, fmt.Errorf("store snapshot: %w", err)
	}

	s.logger.Info().Str("type", snapshotType).Uint("snapshot_id", snapshot.ID).Msg("school statistics snapshot captured")
	return snapshot, nil
}

// Trend returns the most recent snapshots of one type, oldest first.
func (s *snapshotService) Trend(ctx context.Context, snapshotType string, limit int) (dto.TrendResponse, error) {
	if snapshotType == "" {
		snapshotType = models.SnapshotDaily
	}
	if !validSnapshotType(snapshotType) {
		return dto.TrendResponse{}, ErrInvalidSnapshotType
	}
	if limit <= 0 {
		limit = defaultTrendLimit
	}
	if limit > maxTrendLimit {
		limit = maxTrendLimit
	}

	rows, err := s.snapshots.ListRecent(ctx, snapshotType, limit)
	if err != nil {
		return dto.TrendResponse{}, err
	}

	points := make([]dto.TrendPointResponse, 0, len(rows))
	for _, row := range rows {
		points = append(points, dto.NewTrendPoint(row))
	}
	return dto.TrendResponse{Type: snapshotType, Points: points}, nil
}

func validSnapshotType(snapshotType string) bool {
	switch snapshotType {
	case models.SnapshotDaily, models.SnapshotWeekly, models.SnapshotMonthly, models.SnapshotManual:
		return true
	default:
		return false
	}
}
