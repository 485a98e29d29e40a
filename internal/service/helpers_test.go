package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/noah-isme/gema-lms-api/internal/analytics"
	"github.com/noah-isme/gema-lms-api/internal/models"
	"github.com/noah-isme/gema-lms-api/internal/repository"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

func ptrUint(v uint) *uint { return &v }

func setupServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open("file:svc_"+name+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(models.All()...))
	return db
}

// fixture wires real repositories over an in-memory database.
type fixture struct {
	t     *testing.T
	db    *gorm.DB
	ctx   context.Context
	repos StatisticsRepositories
	now   time.Time
}

func newFixture(t *testing.T) *fixture {
	db := setupServiceDB(t)
	return &fixture{
		t:   t,
		db:  db,
		ctx: context.Background(),
		repos: StatisticsRepositories{
			Stats:       repository.NewStatisticsRepository(db),
			Assignments: repository.NewAssignmentRepository(db),
			Progress:    repository.NewProgressRepository(db),
			Classes:     repository.NewClassRepository(db),
			Users:       repository.NewUserRepository(db),
			NeedsHelp:   repository.NewNeedsHelpRepository(db),
			Snapshots:   repository.NewSnapshotRepository(db),
		},
		now: time.Date(2024, 5, 20, 12, 0, 0, 0, time.UTC),
	}
}

func (f *fixture) user(role, name string) models.User {
	user := models.User{Name: name, Email: fmt.Sprintf("%s@school.test", strings.ToLower(name)), Role: role}
	require.NoError(f.t, f.db.Create(&user).Error)
	return user
}

func (f *fixture) class(teacherID uint, studentIDs ...uint) models.Class {
	class := models.Class{Name: fmt.Sprintf("class-%d", teacherID), TeacherID: teacherID}
	require.NoError(f.t, f.db.Create(&class).Error)
	for _, id := range studentIDs {
		require.NoError(f.t, f.db.Create(&models.ClassStudent{ClassID: class.ID, StudentID: id}).Error)
	}
	return class
}

func (f *fixture) assignment(teacherID uint, classID *uint, due time.Time, questions int) models.Assignment {
	assignment := models.Assignment{Title: fmt.Sprintf("assignment due %s", due.Format(time.RFC3339)), TeacherID: teacherID, ClassID: classID, DueDate: due, IsActive: true}
	for i := 0; i < questions; i++ {
		assignment.Questions = append(assignment.Questions, models.Question{Prompt: fmt.Sprintf("q%d", i+1), ExpectedAnswer: fmt.Sprintf("answer %d", i+1), Position: i})
	}
	require.NoError(f.t, f.db.Create(&assignment).Error)
	return assignment
}

// answer writes completed progress for the first n questions, the first correct of them correct.
func (f *fixture) answer(studentID uint, assignment models.Assignment, n, correct int, at time.Time) {
	for i := 0; i < n; i++ {
		row := models.Progress{
			StudentID:    studentID,
			AssignmentID: assignment.ID,
			QuestionID:   assignment.Questions[i].ID,
			Answer:       "x",
			IsCompleted:  true,
			IsCorrect:    i < correct,
			SubmittedAt:  at,
		}
		require.NoError(f.t, f.repos.Progress.Upsert(f.ctx, &row))
	}
}

func (f *fixture) statistics() *statisticsService {
	svc := NewStatisticsService(f.repos, nil, time.Minute, RetentionPolicy{}, testLogger()).(*statisticsService)
	svc.now = func() time.Time { return f.now }
	return svc
}

func (f *fixture) needsHelp(publisher *recordingPublisher, activity ActivityRecorder) *needsHelpService {
	svc := NewNeedsHelpService(
		f.repos.NeedsHelp, f.repos.Users, f.repos.Classes, f.repos.Assignments, f.repos.Progress,
		activity, publisher, nil, validator.New(), analytics.DefaultThresholds(), testLogger(),
	).(*needsHelpService)
	svc.now = func() time.Time { return f.now }
	return svc
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
	last   map[string]interface{}
}

func (p *recordingPublisher) Publish(_ context.Context, eventType string, payload map[string]interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
	p.last = payload
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	total := 0
	for _, e := range p.events {
		if e == eventType {
			total++
		}
	}
	return total
}
