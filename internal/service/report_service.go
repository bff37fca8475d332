package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tutorlink/tutoring-api/internal/models"
	appErrors "github.com/tutorlink/tutoring-api/pkg/errors"
	"github.com/tutorlink/tutoring-api/pkg/export"
	"github.com/tutorlink/tutoring-api/pkg/jobs"
)

type reportRepository interface {
	Create(ctx context.Context, report *models.Report) error
	FindByID(ctx context.Context, id string) (*models.Report, error)
	Update(ctx context.Context, report *models.Report) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.ReportFilter) ([]models.Report, int, error)
}

type reportAppointmentRepository interface {
	List(ctx context.Context, filter models.AppointmentFilter) ([]models.Appointment, int, error)
}

type reportAssignmentRepository interface {
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
}

type reportProgressRepository interface {
	List(ctx context.Context, filter models.ProgressFilter) ([]models.ProgressTracking, int, error)
}

type reportNotifier interface {
	NotifyReport(ctx context.Context, report *models.Report)
}

// reportPageSize matches the repository list cap.
const reportPageSize = 100

// ReportQueueConfig tunes the background generation workers.
type ReportQueueConfig struct {
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

var reportTemplates = []models.ReportTemplate{
	{
		Type:        models.ReportStudentProgress,
		Name:        "Student progress",
		Description: "Per-subject metrics, goal completion and assignment grades for one student.",
		Sections:    []string{"subjects", "metrics", "assignments"},
	},
	{
		Type:        models.ReportAppointmentStats,
		Name:        "Appointment summary",
		Description: "Appointment volume and outcomes over the period.",
		Sections:    []string{"statusBreakdown", "subjects", "hours"},
	},
	{
		Type:        models.ReportAssignmentStats,
		Name:        "Assignment summary",
		Description: "Assignment completion and grading over the period.",
		Sections:    []string{"statusBreakdown", "grades", "lateSubmissions"},
	},
	{
		Type:        models.ReportActivityOverview,
		Name:        "Activity overview",
		Description: "Combined appointment and assignment activity over the period.",
		Sections:    []string{"appointments", "assignments"},
	},
}

// ReportService registers reports, generates their data on a background
// worker pool, and renders them for download in the requested format.
type ReportService struct {
	repo         reportRepository
	appointments reportAppointmentRepository
	assignments  reportAssignmentRepository
	progress     reportProgressRepository
	notifier     reportNotifier
	queue        *jobs.Queue
	csv          *export.CSVExporter
	pdf          *export.PDFExporter
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewReportService constructs a ReportService instance. The notifier may be
// nil.
func NewReportService(repo reportRepository, appointments reportAppointmentRepository, assignments reportAssignmentRepository, progress reportProgressRepository, notifier reportNotifier, cfg ReportQueueConfig, validate *validator.Validate, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	s := &ReportService{
		repo:         repo,
		appointments: appointments,
		assignments:  assignments,
		progress:     progress,
		notifier:     notifier,
		csv:          export.NewCSVExporter(),
		pdf:          export.NewPDFExporter(),
		validator:    validate,
		logger:       logger,
	}
	s.queue = jobs.New("reports", s.handleGeneration, jobs.Config{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: cfg.RetryDelay,
		Logger:     logger,
	})
	return s
}

// Start launches the generation workers.
func (s *ReportService) Start(ctx context.Context) { s.queue.Start(ctx) }

// Stop drains and stops the generation workers.
func (s *ReportService) Stop() { s.queue.Stop() }

// Templates lists the predefined report configurations.
func (s *ReportService) Templates() []models.ReportTemplate { return reportTemplates }

// Create registers a pending report and schedules its generation.
func (s *ReportService) Create(ctx context.Context, actorID string, req models.CreateReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report payload")
	}
	if !req.PeriodEnd.After(req.PeriodStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "period end must be after period start")
	}
	if req.Type == models.ReportStudentProgress && req.TargetStudentID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student progress reports require a target student")
	}

	format := req.Format
	if format == "" {
		format = models.ReportFormatPDF
	}

	now := time.Now().UTC()
	report := &models.Report{
		ID:              uuid.NewString(),
		Title:           req.Title,
		Type:            req.Type,
		GeneratedBy:     actorID,
		TargetStudentID: req.TargetStudentID,
		PeriodStart:     req.PeriodStart,
		PeriodEnd:       req.PeriodEnd,
		Format:          format,
		Status:          models.ReportPending,
		Deliveries:      models.DeliveryLog{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create report")
	}

	if err := s.queue.Enqueue(jobs.Job{ID: report.ID, Type: "generate", Payload: report.ID}); err != nil {
		s.logger.Warn("failed to enqueue report generation", zap.String("report_id", report.ID), zap.Error(err))
	}
	return report, nil
}

// Get returns a report visible to the actor.
func (s *ReportService) Get(ctx context.Context, id, actorID string, isAdmin bool) (*models.Report, error) {
	report, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.visible(report, actorID, isAdmin) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "no access to this report")
	}
	return report, nil
}

// List returns reports with pagination metadata.
func (s *ReportService) List(ctx context.Context, filter models.ReportFilter) ([]models.Report, *models.Pagination, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list reports")
	}
	return list, models.NewPagination(filter.Page, filter.Limit, total), nil
}

// Delete removes a report. Only the generator or an admin may delete.
func (s *ReportService) Delete(ctx context.Context, id, actorID string, isAdmin bool) error {
	report, err := s.find(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && report.GeneratedBy != actorID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the generator can delete a report")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete report")
	}
	return nil
}

// Deliver records a simulated delivery and notifies the target student.
func (s *ReportService) Deliver(ctx context.Context, id, actorID string, isAdmin bool, req models.DeliverReportRequest) (*models.Report, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid delivery payload")
	}
	report, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && report.GeneratedBy != actorID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the generator can deliver a report")
	}
	if report.Status != models.ReportGenerated && report.Status != models.ReportDelivered {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "report has not been generated yet")
	}

	now := time.Now().UTC()
	report.Deliveries = append(report.Deliveries, models.DeliveryRecord{
		Method:      req.Method,
		Status:      "delivered",
		Recipient:   req.Recipient,
		DeliveredAt: now,
	})
	report.Status = models.ReportDelivered
	report.UpdatedAt = now
	if err := s.repo.Update(ctx, report); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record delivery")
	}
	if s.notifier != nil {
		s.notifier.NotifyReport(ctx, report)
	}
	return report, nil
}

// Download renders a generated report in its configured format and returns
// the bytes with a content type.
func (s *ReportService) Download(ctx context.Context, id, actorID string, isAdmin bool) ([]byte, string, error) {
	report, err := s.find(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !s.visible(report, actorID, isAdmin) {
		return nil, "", appErrors.Clone(appErrors.ErrForbidden, "no access to this report")
	}
	if report.Status != models.ReportGenerated && report.Status != models.ReportDelivered {
		return nil, "", appErrors.Clone(appErrors.ErrInvalidTransition, "report has not been generated yet")
	}

	switch report.Format {
	case models.ReportFormatCSV:
		raw, err := s.csv.Render(reportDataset(report))
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return raw, "text/csv", nil
	case models.ReportFormatJSON:
		raw, err := json.MarshalIndent(report.Data, "", "  ")
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render json")
		}
		return raw, "application/json", nil
	default:
		raw, err := s.pdf.Render(reportDataset(report), report.Title)
		if err != nil {
			return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return raw, "application/pdf", nil
	}
}

func (s *ReportService) handleGeneration(ctx context.Context, job jobs.Job) error {
	id, ok := job.Payload.(string)
	if !ok {
		return fmt.Errorf("unexpected payload type %T", job.Payload)
	}

	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load report %s: %w", id, err)
	}
	if report.Status != models.ReportPending && report.Status != models.ReportFailed {
		return nil
	}

	data, err := s.aggregate(ctx, report)
	now := time.Now().UTC()
	if err != nil {
		report.Status = models.ReportFailed
		report.UpdatedAt = now
		if updErr := s.repo.Update(ctx, report); updErr != nil {
			s.logger.Error("failed to mark report failed", zap.String("report_id", id), zap.Error(updErr))
		}
		return fmt.Errorf("generate report %s: %w", id, err)
	}

	data.GeneratedAt = &now
	report.Data = *data
	report.Status = models.ReportGenerated
	report.UpdatedAt = now
	if err := s.repo.Update(ctx, report); err != nil {
		return fmt.Errorf("store report %s: %w", id, err)
	}

	s.logger.Info("report generated", zap.String("report_id", id), zap.String("type", string(report.Type)))
	return nil
}

func (s *ReportService) aggregate(ctx context.Context, report *models.Report) (*models.ReportData, error) {
	switch report.Type {
	case models.ReportStudentProgress:
		return s.aggregateProgress(ctx, report)
	case models.ReportAppointmentStats:
		return s.aggregateAppointments(ctx, report)
	case models.ReportAssignmentStats:
		return s.aggregateAssignments(ctx, report)
	case models.ReportActivityOverview:
		appts, err := s.aggregateAppointments(ctx, report)
		if err != nil {
			return nil, err
		}
		assigns, err := s.aggregateAssignments(ctx, report)
		if err != nil {
			return nil, err
		}
		data := &models.ReportData{
			Sections: map[string]interface{}{
				"appointments": appts.Sections,
				"assignments":  assigns.Sections,
			},
			Totals: map[string]float64{},
		}
		for k, v := range appts.Totals {
			data.Totals["appointments."+k] = v
		}
		for k, v := range assigns.Totals {
			data.Totals["assignments."+k] = v
		}
		return data, nil
	default:
		return nil, fmt.Errorf("unsupported report type %q", report.Type)
	}
}

func (s *ReportService) aggregateProgress(ctx context.Context, report *models.Report) (*models.ReportData, error) {
	filter := models.ProgressFilter{Limit: reportPageSize}
	if report.TargetStudentID != nil {
		filter.StudentID = *report.TargetStudentID
	}
	var records []models.ProgressTracking
	for page := 1; ; page++ {
		filter.Page = page
		batch, total, err := s.progress.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list progress: %w", err)
		}
		records = append(records, batch...)
		if len(batch) < reportPageSize || len(records) >= total {
			break
		}
	}

	subjects := make(map[string]interface{}, len(records))
	var completion, grades float64
	var measured int
	for i := range records {
		rec := &records[i]
		subjects[rec.Subject] = map[string]interface{}{
			"completionRate":   rec.Metrics.CompletionRate,
			"assignmentGrades": rec.Metrics.AssignmentGrades,
			"attendance":       rec.Metrics.Attendance,
			"isBaseline":       rec.IsBaseline,
		}
		completion += rec.Metrics.CompletionRate
		grades += rec.Metrics.AssignmentGrades
		measured++
	}

	data := &models.ReportData{
		Sections: map[string]interface{}{"subjects": subjects},
		Totals:   map[string]float64{"trackedSubjects": float64(len(subjects))},
	}
	if measured > 0 {
		data.Totals["averageCompletionRate"] = completion / float64(measured)
		data.Totals["averageAssignmentGrades"] = grades / float64(measured)
	}
	return data, nil
}

func (s *ReportService) aggregateAppointments(ctx context.Context, report *models.Report) (*models.ReportData, error) {
	filter := models.AppointmentFilter{
		DateFrom: &report.PeriodStart,
		DateTo:   &report.PeriodEnd,
		Limit:    reportPageSize,
	}
	if report.TargetStudentID != nil {
		filter.StudentID = *report.TargetStudentID
	}
	var appts []models.Appointment
	var total int
	for page := 1; ; page++ {
		filter.Page = page
		batch, n, err := s.appointments.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list appointments: %w", err)
		}
		appts = append(appts, batch...)
		total = n
		if len(batch) < reportPageSize || len(appts) >= total {
			break
		}
	}

	byStatus := make(map[string]int)
	bySubject := make(map[string]int)
	var minutes int
	for i := range appts {
		appt := &appts[i]
		byStatus[string(appt.Status)]++
		bySubject[appt.Subject]++
		if appt.Status == models.AppointmentCompleted {
			minutes += appt.Duration
		}
	}

	return &models.ReportData{
		Sections: map[string]interface{}{
			"statusBreakdown": byStatus,
			"subjects":        bySubject,
		},
		Totals: map[string]float64{
			"total":          float64(total),
			"completedHours": float64(minutes) / 60,
		},
	}, nil
}

func (s *ReportService) aggregateAssignments(ctx context.Context, report *models.Report) (*models.ReportData, error) {
	filter := models.AssignmentFilter{Limit: reportPageSize}
	if report.TargetStudentID != nil {
		filter.StudentID = *report.TargetStudentID
	}
	var all []models.Assignment
	for page := 1; ; page++ {
		filter.Page = page
		batch, n, err := s.assignments.List(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("list assignments: %w", err)
		}
		all = append(all, batch...)
		if len(batch) < reportPageSize || len(all) >= n {
			break
		}
	}

	byStatus := make(map[string]int)
	var total, late, graded int
	var gradeSum float64
	for i := range all {
		a := &all[i]
		if a.CreatedAt.Before(report.PeriodStart) || a.CreatedAt.After(report.PeriodEnd) {
			continue
		}
		total++
		byStatus[string(a.Status)]++
		if a.Submission != nil && a.Submission.LateSubmission {
			late++
		}
		if a.Grading != nil {
			graded++
			gradeSum += a.Grading.Grade
		}
	}

	data := &models.ReportData{
		Sections: map[string]interface{}{"statusBreakdown": byStatus},
		Totals: map[string]float64{
			"total":           float64(total),
			"lateSubmissions": float64(late),
			"graded":          float64(graded),
		},
	}
	if graded > 0 {
		data.Totals["averageGrade"] = gradeSum / float64(graded)
	}
	return data, nil
}

// reportDataset flattens the totals into a two-column table for export.
func reportDataset(report *models.Report) export.Dataset {
	keys := make([]string, 0, len(report.Data.Totals))
	for k := range report.Data.Totals {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	records := make([][]string, 0, len(keys))
	for _, k := range keys {
		records = append(records, []string{k, fmt.Sprintf("%.2f", report.Data.Totals[k])})
	}
	return export.Dataset{Headers: []string{"Metric", "Value"}, Records: records}
}

func (s *ReportService) visible(report *models.Report, actorID string, isAdmin bool) bool {
	if isAdmin || report.GeneratedBy == actorID {
		return true
	}
	return report.TargetStudentID != nil && *report.TargetStudentID == actorID
}

func (s *ReportService) find(ctx context.Context, id string) (*models.Report, error) {
	report, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report")
	}
	return report, nil
}
