package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jamsheerpanat/madrasatonaa-sub000/internal/models"
	appErrors "github.com/jamsheerpanat/madrasatonaa-sub000/pkg/errors"
	"github.com/jamsheerpanat/madrasatonaa-sub000/pkg/export"
)

// ExportService renders a memo's acknowledgement status as a
// downloadable report.
type ExportService struct {
	broadcasts *BroadcastService
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	enabled    bool
	logger     *zap.Logger
}

// NewExportService constructs the export service.
func NewExportService(broadcasts *BroadcastService, enabled bool, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ExportService{
		broadcasts: broadcasts,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		enabled:    enabled,
		logger:     logger,
	}
}

// ExportResult carries the rendered report.
type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// AcknowledgementReport renders who acknowledged the memo and when.
// User display names live in the accounts module; the report carries
// user ids for the caller to join.
func (s *ExportService) AcknowledgementReport(ctx context.Context, memoID, format string) (*ExportResult, error) {
	if !s.enabled {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "exports are disabled")
	}

	memo, acks, err := s.broadcasts.Acknowledgements(ctx, memoID)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Headers: []string{"User ID", "Acknowledged At"},
		Rows:    make([]map[string]string, 0, len(acks)),
	}
	for _, ack := range acks {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"User ID":         ack.UserID,
			"Acknowledged At": ack.AcknowledgedAt.UTC().Format(time.RFC3339),
		})
	}

	switch strings.ToLower(format) {
	case "", "csv":
		data, err := s.csv.Render(dataset)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv report")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("memo-%s-acknowledgements.csv", memoShortID(memo)),
			ContentType: "text/csv",
			Data:        data,
		}, nil
	case "pdf":
		data, err := s.pdf.Render(dataset, memo.TitleEn)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf report")
		}
		return &ExportResult{
			Filename:    fmt.Sprintf("memo-%s-acknowledgements.pdf", memoShortID(memo)),
			ContentType: "application/pdf",
			Data:        data,
		}, nil
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func memoShortID(memo *models.Broadcast) string {
	if len(memo.ID) >= 8 {
		return memo.ID[:8]
	}
	return memo.ID
}
