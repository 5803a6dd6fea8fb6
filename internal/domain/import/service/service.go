// Package service orchestrates statement imports: analyze the layout,
// resolve a column mapping, parse rows, pre-categorize and insert.
package service

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/FACorreiaa/pennypilot/internal/domain/categories"
	"github.com/FACorreiaa/pennypilot/internal/domain/categorization"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/analyzer"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/parser"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/repository"
	"github.com/FACorreiaa/pennypilot/internal/domain/import/sniffer"
	"github.com/FACorreiaa/pennypilot/internal/domain/transactions"
	"github.com/FACorreiaa/pennypilot/pkg/metrics"
	"github.com/FACorreiaa/pennypilot/pkg/storage"
)

// AnalyzeResult is what the upload preview shows: the detected layout, the
// mapping that would be used, and whether that mapping was remembered from
// a previous upload of the same bank.
type AnalyzeResult struct {
	Headers     []string           `json:"headers"`
	SampleRows  [][]string         `json:"sample_rows"`
	Fingerprint string             `json:"fingerprint"`
	Mapping     *analyzer.Mapping  `json:"mapping"`
	KnownBank   bool               `json:"known_bank"`
	BankName    *string            `json:"bank_name,omitempty"`
}

// ImportResult summarizes a finished import.
type ImportResult struct {
	JobID        uuid.UUID `json:"job_id"`
	TotalRows    int       `json:"total_rows"`
	ImportedRows int       `json:"imported_rows"`
	FailedRows   int       `json:"failed_rows"`
	Errors       []string  `json:"errors,omitempty"`
}

// ImportOptions carries caller overrides from the upload form.
type ImportOptions struct {
	BankName string
	// Mapping overrides detection entirely when set.
	Mapping *analyzer.Mapping
}

// Categorizer is the rule/merchant pre-pass applied at insert time.
type Categorizer interface {
	Match(ctx context.Context, userID uuid.UUID, description string) (*categorization.Match, error)
}

// CategoryResolver maps raw category names from statements to canonical
// categories.
type CategoryResolver interface {
	Resolve(ctx context.Context, userID uuid.UUID, name string) (*categories.Category, error)
}

// Enhancer cleans up freshly imported rows in the background.
type Enhancer interface {
	EnhanceUncategorized(ctx context.Context, userID uuid.UUID) error
}

// TransactionInserter is the slice of the transaction store imports need.
type TransactionInserter interface {
	BulkInsert(ctx context.Context, userID uuid.UUID, txs []transactions.NewTransaction) (int, error)
}

type Service struct {
	repo        repository.Repo
	txs         TransactionInserter
	store       storage.Storage
	analyzer    *analyzer.Analyzer
	categorizer Categorizer
	resolver    CategoryResolver
	enhancer    Enhancer
	logger      *slog.Logger
}

func New(
	repo repository.Repo,
	txs TransactionInserter,
	store storage.Storage,
	an *analyzer.Analyzer,
	categorizer Categorizer,
	resolver CategoryResolver,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:        repo,
		txs:         txs,
		store:       store,
		analyzer:    an,
		categorizer: categorizer,
		resolver:    resolver,
		logger:      logger.With("component", "import"),
	}
}

// WithEnhancer attaches the background LLM cleanup hook.
func (s *Service) WithEnhancer(e Enhancer) *Service {
	s.enhancer = e
	return s
}

// AnalyzeFile inspects an upload without importing anything.
func (s *Service) AnalyzeFile(ctx context.Context, userID uuid.UUID, filename string, data []byte) (*AnalyzeResult, error) {
	data, _, err := toCSV(filename, data)
	if err != nil {
		return nil, err
	}

	det, err := sniffer.Detect(data)
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", filename, err)
	}

	result := &AnalyzeResult{
		Headers:     det.Headers,
		SampleRows:  det.SampleRows,
		Fingerprint: det.Fingerprint,
	}

	if saved, err := s.repo.GetMappingByFingerprint(ctx, userID, det.Fingerprint); err != nil {
		return nil, err
	} else if saved != nil {
		result.Mapping = &saved.Mapping
		result.KnownBank = true
		result.BankName = saved.BankName
		return result, nil
	}

	mapping, err := s.analyzer.Analyze(ctx, det)
	if err != nil {
		return nil, err
	}
	result.Mapping = mapping
	return result, nil
}

// ImportFile runs the full pipeline for a CSV or XLSX upload.
func (s *Service) ImportFile(ctx context.Context, userID uuid.UUID, filename, contentType string, data []byte, opts ImportOptions) (*ImportResult, error) {
	csvData, source, err := toCSV(filename, data)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.Upload(ctx, userID, filename, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	fileRec := &repository.UserFile{
		UserID:      userID,
		FileName:    filename,
		ContentType: contentType,
		SizeBytes:   int64(len(data)),
		StoragePath: stored.Path,
	}
	if err := s.repo.CreateUserFile(ctx, fileRec); err != nil {
		return nil, err
	}

	job := &repository.ImportJob{UserID: userID, FileID: &fileRec.ID, Source: source}
	if err := s.repo.CreateImportJob(ctx, job); err != nil {
		return nil, err
	}

	result, err := s.runImport(ctx, userID, job, csvData, source, opts)
	if err != nil {
		msg := err.Error()
		if finishErr := s.repo.FinishJob(ctx, job.ID, "failed", 0, 0, &msg); finishErr != nil {
			s.logger.Warn("marking job failed", "job_id", job.ID, "error", finishErr)
		}
		return nil, err
	}
	return result, nil
}

func (s *Service) runImport(ctx context.Context, userID uuid.UUID, job *repository.ImportJob, csvData []byte, source string, opts ImportOptions) (*ImportResult, error) {
	det, err := sniffer.Detect(csvData)
	if err != nil {
		return nil, fmt.Errorf("detect layout: %w", err)
	}

	mapping, err := s.resolveMapping(ctx, userID, det, opts)
	if err != nil {
		return nil, err
	}

	currency := mapping.Currency
	if currency == "" {
		currency = "EUR"
	}

	// Plain comma-separated single-amount exports take the struct-based
	// fast path; everything else is parsed by column index.
	var parsed *parser.Result
	if det.Delimiter == ',' && det.HeaderRow == 0 &&
		mapping.Source == "heuristic" && fastParseable(det.Headers) {
		parsed, err = parser.FastParse(bytes.NewReader(csvData), mapping.DayFirst, mapping.European, currency)
	} else {
		parsed, err = parser.Parse(csvData, parser.Config{
			Delimiter: det.Delimiter,
			HeaderRow: det.HeaderRow,
			Mapping:   *mapping,
			Currency:  currency,
		})
	}
	if err != nil {
		return nil, fmt.Errorf("parse statement: %w", err)
	}

	if err := s.repo.MarkJobRunning(ctx, job.ID, parsed.TotalRows); err != nil {
		s.logger.Warn("marking job running", "job_id", job.ID, "error", err)
	}

	rows := s.categorizeRows(ctx, userID, job.ID, parsed.Transactions)

	imported, err := s.txs.BulkInsert(ctx, userID, rows)
	if err != nil {
		return nil, fmt.Errorf("insert transactions: %w", err)
	}

	failed := len(parsed.Errors)
	metrics.ImportRowsTotal.WithLabelValues(source, "imported").Add(float64(imported))
	metrics.ImportRowsTotal.WithLabelValues(source, "failed").Add(float64(failed))

	errMsgs := make([]string, 0, len(parsed.Errors))
	for _, rowErr := range parsed.Errors {
		errMsgs = append(errMsgs, rowErr.Error())
	}

	if err := s.repo.FinishJob(ctx, job.ID, "succeeded", imported, failed, nil); err != nil {
		s.logger.Warn("finishing job", "job_id", job.ID, "error", err)
	}

	s.rememberMapping(ctx, userID, det.Fingerprint, opts.BankName, mapping)
	s.kickEnhancer(userID)

	s.logger.Info("import finished",
		"job_id", job.ID,
		"source", source,
		"imported", imported,
		"failed", failed)

	return &ImportResult{
		JobID:        job.ID,
		TotalRows:    parsed.TotalRows,
		ImportedRows: imported,
		FailedRows:   failed,
		Errors:       errMsgs,
	}, nil
}

func (s *Service) resolveMapping(ctx context.Context, userID uuid.UUID, det *sniffer.Detection, opts ImportOptions) (*analyzer.Mapping, error) {
	if opts.Mapping != nil {
		if !opts.Mapping.Complete() {
			return nil, fmt.Errorf("provided mapping is incomplete")
		}
		m := *opts.Mapping
		m.Source = "manual"
		return &m, nil
	}

	if saved, err := s.repo.GetMappingByFingerprint(ctx, userID, det.Fingerprint); err != nil {
		return nil, err
	} else if saved != nil {
		return &saved.Mapping, nil
	}

	return s.analyzer.Analyze(ctx, det)
}

// categorizeRows runs the rule/merchant pre-pass and resolves raw category
// strings carried by the statement itself. Pre-pass failures just leave the
// row uncategorized for the enhancer.
func (s *Service) categorizeRows(ctx context.Context, userID, jobID uuid.UUID, parsed []parser.ParsedTransaction) []transactions.NewTransaction {
	rows := make([]transactions.NewTransaction, 0, len(parsed))
	for _, p := range parsed {
		row := transactions.NewTransaction{
			OccurredAt:     p.OccurredAt,
			Description:    p.Description,
			RawDescription: p.RawDescription,
			AmountCents:    p.AmountCents,
			Currency:       p.Currency,
			ImportJobID:    &jobID,
		}

		if match, err := s.categorizer.Match(ctx, userID, p.Description); err != nil {
			s.logger.Warn("categorization pre-pass failed", "error", err)
		} else if match != nil {
			if cat, err := s.resolver.Resolve(ctx, userID, match.CategorySlug); err == nil && cat != nil {
				row.CategoryID = &cat.ID
				source := match.Source
				row.CategorySource = &source
				merchant := match.Merchant
				row.Merchant = &merchant
			}
		}

		// Statement-provided category wins over the merchant guess.
		if p.Category != "" {
			if cat, err := s.resolver.Resolve(ctx, userID, p.Category); err == nil && cat != nil {
				row.CategoryID = &cat.ID
				source := "rule"
				row.CategorySource = &source
			}
		}

		rows = append(rows, row)
	}
	return rows
}

func (s *Service) rememberMapping(ctx context.Context, userID uuid.UUID, fingerprint, bankName string, mapping *analyzer.Mapping) {
	var namePtr *string
	if bankName != "" {
		namePtr = &bankName
	}
	err := s.repo.SaveMapping(ctx, &repository.BankMapping{
		UserID:      userID,
		Fingerprint: fingerprint,
		BankName:    namePtr,
		Mapping:     *mapping,
	})
	if err != nil {
		s.logger.Warn("saving bank mapping", "error", err)
	}
}

func (s *Service) kickEnhancer(userID uuid.UUID) {
	if s.enhancer == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := s.enhancer.EnhanceUncategorized(ctx, userID); err != nil {
			s.logger.Warn("post-import enhancement failed", "user_id", userID, "error", err)
		}
	}()
}

// Job returns one import job for status polling.
func (s *Service) Job(ctx context.Context, userID, jobID uuid.UUID) (*repository.ImportJob, error) {
	return s.repo.GetJob(ctx, userID, jobID)
}

// Jobs lists recent import jobs.
func (s *Service) Jobs(ctx context.Context, userID uuid.UUID, limit int) ([]repository.ImportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.ListJobs(ctx, userID, limit)
}

// fastParseable reports whether every header is one the gocsv row struct
// binds directly.
func fastParseable(headers []string) bool {
	known := map[string]bool{
		"date": true, "data": true,
		"description": true, "descrição": true,
		"amount": true, "valor": true,
	}
	hasAmount := false
	for _, h := range headers {
		lower := strings.ToLower(strings.TrimSpace(h))
		if !known[lower] {
			return false
		}
		if lower == "amount" || lower == "valor" {
			hasAmount = true
		}
	}
	return hasAmount
}

// toCSV normalizes an upload to CSV bytes and names the job source.
func toCSV(filename string, data []byte) ([]byte, string, error) {
	if strings.HasSuffix(strings.ToLower(filename), ".xlsx") {
		csvData, err := parser.XLSXToCSV(data)
		if err != nil {
			return nil, "", err
		}
		return csvData, "xlsx", nil
	}
	return data, "csv", nil
}
