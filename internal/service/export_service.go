package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/notebook-tracker-api/internal/dto"
	"github.com/noah-isme/notebook-tracker-api/internal/models"
	appErrors "github.com/noah-isme/notebook-tracker-api/pkg/errors"
	"github.com/noah-isme/notebook-tracker-api/pkg/export"
)

var defaulterHeaders = []string{"Rank", "Student", "Status", "Probability", "Band", "Pattern", "Missing", "Late", "Reasons"}

type defaulterSource interface {
	Defaulters(ctx context.Context, query models.DefaulterQuery) (*models.DefaulterReport, bool, error)
}

// ExportService renders defaulter reports as downloadable files.
type ExportService struct {
	analytics defaulterSource
	renderers map[export.Format]export.Renderer
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService. Nil renderers fall back to the
// package defaults.
func NewExportService(analytics defaulterSource, csv, pdf export.Renderer, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		analytics: analytics,
		renderers: map[export.Format]export.Renderer{
			export.FormatCSV: csv,
			export.FormatPDF: pdf,
		},
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ExportDefaulters renders the ranked defaulter population of a class.
func (s *ExportService) ExportDefaulters(ctx context.Context, query models.DefaulterQuery, rawFormat string) (*dto.ExportResult, error) {
	format, err := export.ParseFormat(rawFormat)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "format must be csv or pdf")
	}

	report, _, err := s.analytics.Defaulters(ctx, query)
	if err != nil {
		return nil, err
	}

	dataset := buildDefaulterDataset(report)
	body, err := s.renderers[format].Render(dataset)
	if err != nil {
		s.logger.Error("failed to render defaulter export", zap.String("class_id", report.ClassID), zap.String("format", string(format)), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &dto.ExportResult{
		Filename:    fmt.Sprintf("defaulters-%s-%s.%s", report.ClassID, s.now().Format("20060102"), format),
		ContentType: format.ContentType(),
		Body:        body,
		Format:      format,
	}, nil
}

func buildDefaulterDataset(report *models.DefaulterReport) export.Dataset {
	title := fmt.Sprintf("Notebook defaulters: class %s", report.ClassID)
	if report.SubjectID != "" {
		title += ", subject " + report.SubjectID
	}
	rows := make([]map[string]string, 0, len(report.Students))
	for i, st := range report.Students {
		rows = append(rows, map[string]string{
			"Rank":        strconv.Itoa(i + 1),
			"Student":     st.StudentName,
			"Status":      string(st.Status),
			"Probability": strconv.FormatFloat(st.Risk.DefaultProbability, 'f', 2, 64),
			"Band":        string(st.Risk.Band),
			"Pattern":     st.Risk.PatternLabel,
			"Missing":     strconv.Itoa(st.History.MissingCount),
			"Late":        strconv.Itoa(st.History.LateSubmissionCount),
			"Reasons":     strings.Join(st.Risk.Reasoning, "; "),
		})
	}
	return export.Dataset{Title: title, Headers: defaulterHeaders, Rows: rows}
}
