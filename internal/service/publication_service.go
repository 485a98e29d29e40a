package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/noah-isme/gema-lms-api/internal/dto"
	"github.com/noah-isme/gema-lms-api/internal/events"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

// PublicationService activates assignments whose scheduled publish time has passed.
type PublicationService interface {
	PublishDue(ctx context.Context) (dto.PublicationResponse, error)
}

type publicationService struct {
	assignments repository.AssignmentRepository
	publisher   events.Publisher
	logger      zerolog.Logger
	now         func() time.Time
}

// NewPublicationService constructs the publication sweep.
func NewPublicationService(assignments repository.AssignmentRepository, publisher events.Publisher, logger zerolog.Logger) PublicationService {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &publicationService{
		assignments: assignments,
		publisher:   publisher,
		logger:      logger.With().Str("component", "publication_service").Logger(),
		now:         time.Now,
	}
}

// PublishDue flips every due assignment in one transaction. Each flip is conditional
// on the row still being inactive, so a concurrent sweep never logs an assignment twice.
func (s *publicationService) PublishDue(ctx context.Context) (dto.PublicationResponse, error) {
	now := s.now().UTC()
	response := dto.PublicationResponse{Published: []uint{}, CheckedAt: now}
	published := make([]models.Assignment, 0)

	err := s.assignments.Transaction(ctx, func(assignments repository.AssignmentRepository, activity repository.ActivityLogRepository) error {
		due, err := assignments.ListDueForPublication(ctx, now)
		if err != nil {
			return fmt.Errorf("list due assignments: %w", err)
		}

		for _, assignment := range due {
			activated, err := assignments.Activate(ctx, assignment.ID)
			if err != nil {
				return fmt.Errorf("activate assignment %d: %w", assignment.ID, err)
			}
			if !activated {
				response.AlreadyTaken++
				continue
			}

			entityID := assignment.ID
			entry := models.ActivityLog{
				ActorID:    assignment.TeacherID,
				ActorRole:  "system",
				Action:     models.ActivityActionAssignmentPublished,
				EntityType: "assignment",
				EntityID:   &entityID,
				Metadata: datatypes.JSONMap{
					"title":                assignment.Title,
					"scheduled_publish_at": assignment.ScheduledPublishAt,
					"published_at":         now,
				},
			}
			if err := activity.Create(ctx, &entry); err != nil {
				return fmt.Errorf("log publication of assignment %d: %w", assignment.ID, err)
			}
			published = append(published, assignment)
		}
		return nil
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("assignment publication sweep failed")
		return dto.PublicationResponse{}, err
	}

	for _, assignment := range published {
		response.Published = append(response.Published, assignment.ID)
		payload := map[string]interface{}{
			"assignment_id": assignment.ID,
			"teacher_id":    assignment.TeacherID,
			"title":         assignment.Title,
			"published_at":  now,
		}
		if assignment.ClassID != nil {
			payload["class_id"] = *assignment.ClassID
		}
		if err := s.publisher.Publish(ctx, events.TypeAssignmentPublished, payload); err != nil {
			s.logger.Warn().Err(err).Uint("assignment_id", assignment.ID).Msg("failed to publish assignment event")
		}
	}
	response.Count = len(response.Published)

	if response.Count > 0 {
		s.logger.Info().Int("published", response.Count).Msg("scheduled assignments published")
	}
	return response, nil
}
