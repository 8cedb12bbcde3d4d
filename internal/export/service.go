package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/lifemaxxing-extract/internal/entity"
	"github.com/joseph-ayodele/lifemaxxing-extract/internal/repository"
)

const (
	SheetTransactions = "Transactions"
	SheetContacts     = "Contacts"
)

// Service produces XLSX bytes from stored records.
type Service struct {
	records repository.RecordRepository
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(records repository.RecordRepository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{records: records, logger: logger, now: time.Now}
}

// dateWindow normalizes from/to to UTC dates.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> everything.
func (s *Service) dateWindow(from, to *time.Time) (time.Time, time.Time) {
	day := func(t time.Time) time.Time {
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	}
	var f, t time.Time
	if from != nil {
		f = day(*from)
	}
	if to != nil {
		t = day(*to)
	}
	if from != nil && to == nil {
		t = day(s.now().UTC())
	}
	return f, t
}

// ExportTransactionsXLSX returns a workbook of the owner's transactions in
// the date window. An empty owner exports every owner.
func (s *Service) ExportTransactionsXLSX(ctx context.Context, ownerID string, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	n, err := s.writeTransactions(ctx, f, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "sheet", SheetTransactions, "owner_id", ownerID, "rows", n,
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// ExportContactsXLSX returns a workbook of the owner's contacts.
func (s *Service) ExportContactsXLSX(ctx context.Context, ownerID string) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	n, err := s.writeContacts(ctx, f, ownerID)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "sheet", SheetContacts, "owner_id", ownerID, "rows", n,
		"elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

// ExportWorkbookXLSX writes both sheets into one workbook.
func (s *Service) ExportWorkbookXLSX(ctx context.Context, ownerID string, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer f.Close()

	txs, err := s.writeTransactions(ctx, f, ownerID, from, to)
	if err != nil {
		return nil, err
	}
	contacts, err := s.writeContacts(ctx, f, ownerID)
	if err != nil {
		return nil, err
	}
	_ = f.DeleteSheet("Sheet1")
	if idx, err := f.GetSheetIndex(SheetTransactions); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok", "sheet", "all", "owner_id", ownerID,
		"transactions", txs, "contacts", contacts, "elapsed_ms", time.Since(start).Milliseconds())
	return buf.Bytes(), nil
}

func newSheet(f *excelize.File, name string, headers []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(name, cell, h)
	}
	last, _ := excelize.CoordinatesToCellName(len(headers), 1)
	return f.SetCellStyle(name, "A1", last, bold)
}

func (s *Service) writeTransactions(ctx context.Context, f *excelize.File, ownerID string, from, to *time.Time) (int, error) {
	fromDate, toDate := s.dateWindow(from, to)
	txs, err := s.records.ListTransactions(ctx, repository.TransactionFilter{OwnerID: ownerID, From: fromDate, To: toDate})
	if err != nil {
		return 0, fmt.Errorf("query transactions: %w", err)
	}

	const sheet = SheetTransactions
	headers := []string{"Date", "Description", "Category", "Type", "Amount", "Receipt"}
	if err := newSheet(f, sheet, headers); err != nil {
		return 0, err
	}
	money, err := f.NewStyle(&excelize.Style{NumFmt: 4})
	if err != nil {
		return 0, err
	}

	row := 2
	var net float64
	for _, t := range txs {
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(sheet, cell, v)
		}
		if !t.Date.IsZero() {
			write(1, t.Date.Format(time.DateOnly))
		}
		write(2, truncate(t.Description, 140))
		write(3, t.Category)
		write(4, t.Type)
		write(5, t.Amount)
		write(6, t.ReceiptURL)
		net += t.Amount
		row++
	}

	if len(txs) > 0 {
		label, _ := excelize.CoordinatesToCellName(4, row)
		total, _ := excelize.CoordinatesToCellName(5, row)
		_ = f.SetCellValue(sheet, label, "Net")
		_ = f.SetCellValue(sheet, total, net)
	}
	_ = f.SetCellStyle(sheet, "E2", fmt.Sprintf("E%d", row), money)

	_ = f.SetColWidth(sheet, "A", "A", 12) // date
	_ = f.SetColWidth(sheet, "B", "B", 40) // description
	_ = f.SetColWidth(sheet, "C", "D", 14)
	_ = f.SetColWidth(sheet, "E", "E", 14) // amount
	_ = f.SetColWidth(sheet, "F", "F", 60) // url
	return len(txs), nil
}

func (s *Service) writeContacts(ctx context.Context, f *excelize.File, ownerID string) (int, error) {
	contacts, err := s.records.ListContacts(ctx, ownerID)
	if err != nil {
		return 0, fmt.Errorf("query contacts: %w", err)
	}

	const sheet = SheetContacts
	if err := newSheet(f, sheet, []string{"Name", "Status", "Score", "Last Message", "Notes", "Screenshot"}); err != nil {
		return 0, err
	}
	for i, c := range contacts {
		row := i + 2
		values := []any{c.Name, c.Status, c.Score, lastMsg(c), truncate(c.Notes, 140), c.PhotoURL}
		cell, _ := excelize.CoordinatesToCellName(1, row)
		if err := f.SetSheetRow(sheet, cell, &values); err != nil {
			return 0, err
		}
	}
	_ = f.SetColWidth(sheet, "A", "A", 20)
	_ = f.SetColWidth(sheet, "B", "C", 14)
	_ = f.SetColWidth(sheet, "D", "D", 20)
	_ = f.SetColWidth(sheet, "E", "E", 48)
	_ = f.SetColWidth(sheet, "F", "F", 60)
	return len(contacts), nil
}

func lastMsg(c *entity.Contact) string {
	if c.LastMsg.IsZero() {
		return ""
	}
	return c.LastMsg.UTC().Format("2006-01-02 15:04")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
