package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/domain/import/parser"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/repository"
	"github.com/FACorreiaa/pennypilot/internal/llm"
	"github.com/FACorreiaa/pennypilot/pkg/metrics"
	"github.com/FACorreiaa/pennypilot/pkg/money"
)

const imageSystemPrompt = `You extract transactions from photos and screenshots of bank statements.
Return every visible transaction row. Amounts are negative for money spent and positive for
money received. Dates are ISO format (YYYY-MM-DD); infer the year from context when the
statement omits it. Skip balance lines, headers and totals.`

var imageSchema = map[string]interface{}{
	"type": "object",
	"properties": map[string]interface{}{
		"currency": map[string]interface{}{"type": "string"},
		"transactions": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"date":        map[string]interface{}{"type": "string"},
					"description": map[string]interface{}{"type": "string"},
					"amount":      map[string]interface{}{"type": "string"},
				},
				"required": []string{"date", "description", "amount"},
			},
		},
	},
	"required": []string{"transactions"},
}

type extractedStatement struct {
	Currency     string `json:"currency"`
	Transactions []struct {
		Date        string `json:"date"`
		Description string `json:"description"`
		Amount      string `json:"amount"`
	} `json:"transactions"`
}

// ImageImporter extracts transactions from statement photos with the vision
// model and feeds them through the same insert path as CSV rows.
type ImageImporter struct {
	svc    *Service
	client llm.Client
}

func NewImageImporter(svc *Service, client llm.Client) *ImageImporter {
	return &ImageImporter{svc: svc, client: client}
}

// Import runs the full pipeline for an image upload.
func (i *ImageImporter) Import(ctx context.Context, userID uuid.UUID, filename, mimeType string, data []byte) (*ImportResult, error) {
	s := i.svc

	stored, err := s.store.Upload(ctx, userID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	fileRec := &repository.UserFile{
		UserID:      userID,
		FileName:    filename,
		ContentType: mimeType,
		SizeBytes:   int64(len(data)),
		StoragePath: stored.Path,
	}
	if err := s.repo.CreateUserFile(ctx, fileRec); err != nil {
		return nil, err
	}

	job := &repository.ImportJob{UserID: userID, FileID: &fileRec.ID, Source: "image"}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, err
	}

	result, err := i.runImport(ctx, userID, job, mimeType, data)
	if err != nil {
		msg := err.Error()
		if finishErr := s.repo.FinishJob(ctx, job.ID, "failed", 0, 0, &msg); finishErr != nil {
			s.logger.Warn("marking image job failed", "job_id", job.ID, "error", finishErr)
		}
		return nil, err
	}
	return result, nil
}

func (i *ImageImporter) runImport(ctx context.Context, userID uuid.UUID, job *repository.ImportJob, mimeType string, data []byte) (*ImportResult, error) {
	s := i.svc

	raw, err := i.client.DescribeImage(ctx, imageSystemPrompt,
		"Extract all transactions from this bank statement.", mimeType, data, imageSchema)
	if err != nil {
		return nil, fmt.Errorf("extract from image: %w", err)
	}

	var extracted extractedStatement
	if err := json.Unmarshal([]byte(llm.ExtractJSON(raw)), &extracted); err != nil {
		return nil, fmt.Errorf("decode extraction: %w", err)
	}

	currency := extracted.Currency
	if len(currency) != 3 {
		currency = money.EUR
	}

	if err := s.repo.MarkJobRunning(ctx, job.ID, len(extracted.Transactions)); err != nil {
		s.logger.Warn("marking image job running", "job_id", job.ID, "error", err)
	}

	parsed := make([]parser.ParsedTransaction, 0, len(extracted.Transactions))
	var rowErrs []string
	for n, row := range extracted.Transactions {
		occurredAt, err := parser.ParseDate(row.Date, true)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("row %d: %v", n+1, err))
			continue
		}
		m, err := money.NewFromString(row.Amount, currency, false)
		if err != nil {
			rowErrs = append(rowErrs, fmt.Sprintf("row %d: %v", n+1, err))
			continue
		}
		parsed = append(parsed, parser.ParsedTransaction{
			OccurredAt:     occurredAt,
			Description:    parser.CleanDescription(row.Description),
			RawDescription: row.Description,
			AmountCents:    m.Amount(),
			Currency:       currency,
			Line:           n + 1,
		})
	}

	rows := s.categorizeRows(ctx, userID, job.ID, parsed)

	imported, err := s.txs.BulkInsert(ctx, userID, rows)
	if err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}

	failed := len(rowErrs)
	metrics.ImportRowsTotal.WithLabelValues("image", "imported").Add(float64(imported))
	metrics.ImportRowsTotal.WithLabelValues("image", "failed").Add(float64(failed))

	if err := s.repo.FinishJob(ctx, job.ID, "succeeded", imported, failed, nil); err != nil {
		s.logger.Warn("finishing image job", "job_id", job.ID, "error", err)
	}

	s.kickEnhancer(userID)

	s.logger.Info("image import finished",
		"job_id", job.ID,
		"imported", imported,
		"failed", failed)

	return &ImportResult{
		JobID:        job.ID,
		TotalRows:    len(extracted.Transactions),
		ImportedRows: imported,
		FailedRows:   failed,
		Errors:       rowErrs,
	}, nil
}
