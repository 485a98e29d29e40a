package handler_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/handler"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/service"
)

// stubStatisticsService implements only the reads and the sweep; other calls panic.
type stubStatisticsService struct {
	service.StatisticsService

	sweepErr   error
	sweeps     int
	overview   dto.SchoolOverviewResponse
	assignment models.AssignmentStats
	class      models.ClassStats
	students   map[uint]dto.StudentStatisticsResponse
}

func (s *stubStatisticsService) RunSweep(context.Context) (dto.SweepReportResponse, error) {
	s.sweeps++
	if s.sweepErr != nil {
		return dto.SweepReportResponse{}, s.sweepErr
	}
	return dto.SweepReportResponse{
		Assignments:   dto.EntityCountResponse{Processed: 4},
		Students:      dto.EntityCountResponse{Processed: 2},
		SchoolUpdated: true,
	}, nil
}

func (s *stubStatisticsService) GetSchoolOverview(context.Context) (dto.SchoolOverviewResponse, error) {
	return s.overview, nil
}

func (s *stubStatisticsService) GetAssignmentStatistics(_ context.Context, id uint) (models.AssignmentStats, error) {
	if id != s.assignment.AssignmentID {
		return models.AssignmentStats{}, service.ErrAssignmentNotFound
	}
	return s.assignment, nil
}

func (s *stubStatisticsService) GetClassStatistics(_ context.Context, id uint) (models.ClassStats, error) {
	if id != s.class.ClassID {
		return models.ClassStats{}, service.ErrClassNotFound
	}
	return s.class, nil
}

func (s *stubStatisticsService) GetStudentStatistics(_ context.Context, id uint) (dto.StudentStatisticsResponse, error) {
	stats, ok := s.students[id]
	if !ok {
		return dto.StudentStatisticsResponse{}, service.ErrStudentNotFound
	}
	return stats, nil
}

func newAdminStatisticsApp(stats *stubStatisticsService, snapshots *stubSnapshotService) *fiber.App {
	h := handler.NewAdminStatisticsHandler(stats, snapshots, zerolog.Nop())
	app := fiber.New()
	app.Use(withUser(1, "admin"))
	h.Register(app.Group("/api/admin/statistics"))
	return app
}

func TestAdminStatisticsHandler_Refresh(t *testing.T) {
	stats := &stubStatisticsService{}
	app := newAdminStatisticsApp(stats, &stubSnapshotService{})

	resp := doRequest(t, app, http.MethodPost, "/api/admin/statistics/refresh", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeBody[dto.SweepReportResponse](t, resp)
	require.True(t, payload.Data.SchoolUpdated)
	require.Equal(t, 4, payload.Data.Assignments.Processed)
	require.Equal(t, 1, stats.sweeps)

	stats.sweepErr = errors.New("database unavailable")
	resp = doRequest(t, app, http.MethodPost, "/api/admin/statistics/refresh", nil)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	failure := decodeBody[map[string]interface{}](t, resp)
	require.False(t, failure.Success)
	require.Equal(t, "internal_error", failure.Error)
}

func TestAdminStatisticsHandler_SchoolOverview(t *testing.T) {
	stats := &stubStatisticsService{overview: dto.SchoolOverviewResponse{
		Stats:       models.SchoolStats{TotalStudents: 40, ActiveAssignments: 6, StudentsNeedingHelp: 3},
		NeedingHelp: dto.NeedsHelpBreakdown{Critical: 1, Warning: 2},
		GeneratedAt: time.Now().UTC(),
	}}
	app := newAdminStatisticsApp(stats, &stubSnapshotService{})

	resp := doRequest(t, app, http.MethodGet, "/api/admin/statistics/school", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payload := decodeBody[dto.SchoolOverviewResponse](t, resp)
	require.Equal(t, 40, payload.Data.Stats.TotalStudents)
	require.Equal(t, 2, payload.Data.NeedingHelp.Warning)
}

func TestAdminStatisticsHandler_Trend(t *testing.T) {
	snapshots := &stubSnapshotService{trend: dto.TrendResponse{
		Type: models.SnapshotDaily,
		Points: []dto.TrendPointResponse{
			{SnapshotType: models.SnapshotDaily, TotalStudents: 10},
			{SnapshotType: models.SnapshotDaily, TotalStudents: 11},
		},
	}}
	app := newAdminStatisticsApp(&stubStatisticsService{}, snapshots)

	resp := doRequest(t, app, http.MethodGet, "/api/admin/statistics/trend?type=daily&limit=2", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	payload := decodeBody[dto.TrendResponse](t, resp)
	require.Len(t, payload.Data.Points, 2)
	require.Equal(t, 11, payload.Data.Points[1].TotalStudents)

	resp = doRequest(t, app, http.MethodGet, "/api/admin/statistics/trend?type=yearly", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = doRequest(t, app, http.MethodGet, "/api/admin/statistics/trend?limit=abc", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
