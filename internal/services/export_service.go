package services

import (
	"context"
	"fmt"

	"finance/internal/core"
	applog "finance/internal/log"
	"finance/internal/sheets"
)

// TransactionLister is the read side of TransactionService.
type TransactionLister interface {
	List(ctx context.Context) ([]core.Transaction, error)
}

// ExportResult describes one completed export.
type ExportResult struct {
	Ref   string
	Count int
}

// ExportService copies every stored transaction to a spreadsheet.
type ExportService struct {
	lister TransactionLister
	writer sheets.TransactionWriter
	logger *applog.Logger
}

func NewExportService(lister TransactionLister, writer sheets.TransactionWriter, logger *applog.Logger) *ExportService {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	return &ExportService{
		lister: lister,
		writer: writer,
		logger: logger.WithComponent(applog.ComponentSheets),
	}
}

// Export replaces the sheet contents with the current transaction list.
func (s *ExportService) Export(ctx context.Context) (ExportResult, error) {
	txs, err := s.lister.List(ctx)
	if err != nil {
		return ExportResult{}, fmt.Errorf("list transactions: %w", err)
	}

	ref, err := s.writer.ReplaceAll(ctx, txs)
	if err != nil {
		return ExportResult{}, fmt.Errorf("write sheet: %w", err)
	}

	s.logger.InfoContext(ctx, "Export completed",
		applog.FieldOperation, applog.OpExport,
		applog.FieldCount, len(txs),
		applog.FieldSheetsRange, ref)
	return ExportResult{Ref: ref, Count: len(txs)}, nil
}
