package storage

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"expensetracker/internal/core"
)

// Header is the column order written to new files. Existing files are
// read by column name, so extra or reordered columns are tolerated.
var Header = []string{"Date", "Description", "Category", "Amount"}

var dateLayouts = []string{
	core.DateLayout,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339Nano,
}

// ErrMissingColumns reports a header lacking a required column.
var ErrMissingColumns = errors.New("missing required columns")

// CSVStore persists expenses in a single CSV file. Writers inside one
// process are serialised; every write rewrites the file through a rename.
type CSVStore struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewCSVStore returns a store backed by path, creating its directory.
// The file itself is created on first write.
func NewCSVStore(path string) (*CSVStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &CSVStore{path: path, now: time.Now}, nil
}

// Path returns the backing file path.
func (s *CSVStore) Path() string { return s.path }

// Version identifies the current file contents by modification time and
// size, so writes from other processes are noticed. A missing file is "0-0".
func (s *CSVStore) Version(_ context.Context) (string, error) {
	info, err := os.Stat(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "0-0", nil
	}
	if err != nil {
		return "", fmt.Errorf("stat expense file: %w", err)
	}
	return fmt.Sprintf("%d-%d", info.ModTime().UnixNano(), info.Size()), nil
}

// ListExpenses reads every valid record. A missing or unreadable file is an
// empty table; rows with a bad date, amount or category are skipped.
func (s *CSVStore) ListExpenses(ctx context.Context) ([]core.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(ctx), nil
}

// Append adds one record and returns its 1-based row reference ("csv:N").
func (s *CSVStore) Append(ctx context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	records := append(s.load(ctx), e)
	if err := s.write(records); err != nil {
		return "", err
	}
	slog.InfoContext(ctx, "Expense saved to CSV",
		"file", s.path,
		"date", e.Date.String(),
		"category", e.Category,
		"amount_cents", e.Amount.Cents)
	return fmt.Sprintf("csv:%d", len(records)), nil
}

// ReplaceExpenses rewrites the file with exactly records.
func (s *CSVStore) ReplaceExpenses(ctx context.Context, records []core.Expense) error {
	for i, e := range records {
		if err := e.Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(records); err != nil {
		return err
	}
	slog.InfoContext(ctx, "Expense file rewritten", "file", s.path, "records", len(records))
	return nil
}

// Backup writes the current records to a timestamped file next to the store
// (expense_data_backup_20240314_123108.csv) and returns its path.
func (s *CSVStore) Backup(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	base := strings.TrimSuffix(filepath.Base(s.path), filepath.Ext(s.path))
	name := fmt.Sprintf("%s_backup_%s.csv", base, s.now().Format("20060102_150405"))
	path := filepath.Join(filepath.Dir(s.path), name)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	if err := Encode(f, s.load(ctx)); err != nil {
		f.Close()
		os.Remove(path)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close backup file: %w", err)
	}
	slog.InfoContext(ctx, "Expense file backed up", "file", path)
	return path, nil
}

func (s *CSVStore) load(ctx context.Context) []core.Expense {
	f, err := os.Open(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			slog.WarnContext(ctx, "Cannot open expense file, treating as empty", "file", s.path, "error", err)
		}
		return nil
	}
	defer f.Close()

	records, err := Decode(ctx, f)
	if err != nil {
		slog.WarnContext(ctx, "Corrupt expense file, treating as empty", "file", s.path, "error", err)
		return nil
	}
	return records
}

func (s *CSVStore) write(records []core.Expense) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".expenses-*.csv")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := Encode(tmp, records); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace expense file: %w", err)
	}
	return nil
}

// Encode writes records with the Header row; amounts carry two decimals.
func Encode(w io.Writer, records []core.Expense) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range records {
		row := []string{e.Date.String(), e.Description, e.Category, e.Amount.Decimal()}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Decode reads a CSV table with at least Date, Category and Amount columns.
// An empty input yields no records. Structural problems (malformed quoting,
// missing columns) are returned as errors; invalid rows are skipped.
func Decode(ctx context.Context, r io.Reader) ([]core.Expense, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var out []core.Expense
	line := 1
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		line++
		e, err := decodeRow(row, cols)
		if err != nil {
			slog.WarnContext(ctx, "Skipping invalid expense row", "line", line, "error", err)
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

type columns struct {
	date, description, category, amount int
}

func columnIndex(header []string) (columns, error) {
	cols := columns{date: -1, description: -1, category: -1, amount: -1}
	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))) {
		case "date":
			cols.date = i
		case "description":
			cols.description = i
		case "category":
			cols.category = i
		case "amount":
			cols.amount = i
		}
	}
	var missing []string
	if cols.date < 0 {
		missing = append(missing, "Date")
	}
	if cols.category < 0 {
		missing = append(missing, "Category")
	}
	if cols.amount < 0 {
		missing = append(missing, "Amount")
	}
	if len(missing) > 0 {
		return cols, fmt.Errorf("%w: %s", ErrMissingColumns, strings.Join(missing, ", "))
	}
	return cols, nil
}

func decodeRow(row []string, cols columns) (core.Expense, error) {
	field := func(i int) string {
		if i < 0 || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	date, err := ParseDate(field(cols.date))
	if err != nil {
		return core.Expense{}, err
	}
	amount, err := core.ParseMoney(field(cols.amount))
	if err != nil {
		return core.Expense{}, fmt.Errorf("amount %q: %w", field(cols.amount), err)
	}
	e := core.Expense{
		Date:        date,
		Description: field(cols.description),
		Category:    field(cols.category),
		Amount:      amount,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	return e, nil
}

// ParseDate accepts a calendar day with or without a time-of-day part and
// truncates it to the day.
func ParseDate(s string) (core.Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return core.DateOf(t), nil
		}
	}
	return core.Date{}, fmt.Errorf("invalid date %q", s)
}
