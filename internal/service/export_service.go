package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sekolahku/roster-api/internal/models"
	appErrors "github.com/sekolahku/roster-api/pkg/errors"
	"github.com/sekolahku/roster-api/pkg/export"
	"github.com/sekolahku/roster-api/pkg/jobs"
	"github.com/sekolahku/roster-api/pkg/storage"
)

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportRequest describes an asynchronous timetable export.
// Exactly one of class_id or teacher_id selects the view to render.
type ExportRequest struct {
	TermID    string `json:"term_id" validate:"required"`
	ClassID   string `json:"class_id" validate:"required_without=TeacherID,excluded_with=TeacherID"`
	TeacherID string `json:"teacher_id" validate:"required_without=ClassID"`
	Format    string `json:"format" validate:"required,oneof=csv pdf"`
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	Workers   int
	Retries   int
}

// ExportService renders timetables to files in the background and hands out
// signed download links. Job state lives in memory; exports are cheap to
// re-request after a restart.
type ExportService struct {
	timetables *TimetableService
	storage    fileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	queue      *jobs.Queue
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        ExportConfig

	mu       sync.RWMutex
	jobsByID map[string]*models.ExportJob
}

// NewExportService constructs an ExportService and its worker queue. Call
// Start before enqueueing work and Stop on shutdown.
func NewExportService(timetables *TimetableService, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &ExportService{
		timetables: timetables,
		storage:    store,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		signer:     signer,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		jobsByID:   make(map[string]*models.ExportJob),
	}
	s.queue = jobs.NewQueue("timetable-exports", s.handle, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.Retries,
		Logger:     logger,
	})
	return s
}

// Start launches the background workers.
func (s *ExportService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// Stop drains the worker pool.
func (s *ExportService) Stop() {
	s.queue.Stop()
}

// Enqueue registers an export job and schedules it for rendering.
func (s *ExportService) Enqueue(ctx context.Context, req ExportRequest) (*models.ExportJob, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}

	job := &models.ExportJob{
		ID:        uuid.NewString(),
		Format:    strings.ToLower(req.Format),
		ClassID:   req.ClassID,
		TeacherID: req.TeacherID,
		TermID:    req.TermID,
		Status:    models.ExportStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.jobsByID[job.ID] = job
	s.mu.Unlock()

	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "timetable-export"}); err != nil {
		s.mu.Lock()
		delete(s.jobsByID, job.ID)
		s.mu.Unlock()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export")
	}

	return s.snapshot(job.ID), nil
}

// Status returns the current state of an export job.
func (s *ExportService) Status(id string) (*models.ExportJob, error) {
	job := s.snapshot(id)
	if job == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
	}
	return job, nil
}

// OpenDownload validates a signed token and returns a handle on the rendered
// file together with the owning job.
func (s *ExportService) OpenDownload(token string) (*os.File, *models.ExportJob, error) {
	jobID, relPath, _, err := s.signer.Parse(token)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	job := s.snapshot(jobID)
	if job == nil || job.Status != models.ExportStatusCompleted {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "export not available")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file missing")
	}
	return file, job, nil
}

func (s *ExportService) handle(ctx context.Context, queued jobs.Job) error {
	job := s.snapshot(queued.ID)
	if job == nil {
		return fmt.Errorf("export job %s not found", queued.ID)
	}

	payload, filename, err := s.render(ctx, job)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	token, _, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		s.fail(job.ID, err)
		return err
	}

	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}

	now := time.Now().UTC()
	s.mu.Lock()
	if stored, ok := s.jobsByID[job.ID]; ok {
		stored.Status = models.ExportStatusCompleted
		stored.FilePath = relPath
		stored.DownloadURL = fmt.Sprintf("%s/timetables/export/%s", prefix, token)
		stored.Error = ""
		stored.CompletedAt = &now
	}
	s.mu.Unlock()

	s.logger.Info("timetable export completed",
		zap.String("job_id", job.ID),
		zap.String("format", job.Format),
		zap.String("file", relPath))
	return nil
}

func (s *ExportService) render(ctx context.Context, job *models.ExportJob) ([]byte, string, error) {
	var (
		timetable *models.Timetable
		title     string
		err       error
	)
	if job.ClassID != "" {
		timetable, err = s.timetables.ClassTimetable(ctx, job.TermID, job.ClassID)
		title = fmt.Sprintf("Class Timetable %s", job.ClassID)
	} else {
		timetable, err = s.timetables.TeacherTimetable(ctx, job.TermID, job.TeacherID)
		title = fmt.Sprintf("Teacher Timetable %s", job.TeacherID)
	}
	if err != nil {
		return nil, "", err
	}

	dataset := timetableDataset(timetable)
	filename := fmt.Sprintf("timetable_%s_%s.%s", sanitizeFilename(job.TermID), time.Now().UTC().Format("20060102_150405"), job.Format)

	var payload []byte
	switch job.Format {
	case "csv":
		payload, err = s.csv.Render(dataset)
	case "pdf":
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return nil, "", err
	}
	return payload, filename, nil
}

func (s *ExportService) fail(id string, cause error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if job, ok := s.jobsByID[id]; ok {
		job.Status = models.ExportStatusFailed
		job.Error = cause.Error()
	}
}

func (s *ExportService) snapshot(id string) *models.ExportJob {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobsByID[id]
	if !ok {
		return nil
	}
	copied := *job
	return &copied
}

func timetableDataset(timetable *models.Timetable) export.Dataset {
	headers := []string{"Day", "Start", "End", "Subject", "Teacher", "Classroom", "Class"}
	var rows []map[string]string
	for _, day := range timetable.Days {
		for _, lesson := range day.Lessons {
			rows = append(rows, map[string]string{
				"Day":       day.Day,
				"Start":     lesson.StartTime,
				"End":       lesson.EndTime,
				"Subject":   lesson.SubjectName,
				"Teacher":   lesson.TeacherName,
				"Classroom": lesson.ClassroomName,
				"Class":     lesson.ClassName,
			})
		}
	}
	return export.Dataset{Headers: headers, Rows: rows}
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
