package backend

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"expensetracker/internal/config"
	"expensetracker/internal/core"
	"expensetracker/internal/sheets/memory"
	"expensetracker/internal/storage"
)

func TestFromAppConfig(t *testing.T) {
	app := &config.Config{
		DataBackend:         "sheets",
		ExpenseFile:         "./data/x.csv",
		GoogleSpreadsheetID: "abc",
		GoogleSheetName:     "Expenses",
	}
	cfg, err := FromAppConfig(app)
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if cfg.Type != SheetsBackend || cfg.GoogleSpreadsheetID != "abc" || cfg.ExpenseFile != "./data/x.csv" {
		t.Fatalf("unexpected config %+v", cfg)
	}

	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sqlite"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr string
	}{
		{name: "csv ok", config: Config{Type: CSVBackend, ExpenseFile: "x.csv"}},
		{name: "memory ok", config: Config{Type: MemoryBackend}},
		{name: "csv without file", config: Config{Type: CSVBackend}, wantErr: "expense file path is required"},
		{name: "unknown type", config: Config{Type: "ftp"}, wantErr: "invalid backend type: ftp"},
		{
			name:    "sheets without credentials",
			config:  Config{Type: SheetsBackend, GoogleSpreadsheetID: "id", GoogleSheetName: "Expenses"},
			wantErr: "GoogleServiceAccountFile or GoogleServiceAccountJSON",
		},
		{
			name:    "sheets without spreadsheet",
			config:  Config{Type: SheetsBackend, GoogleSheetName: "Expenses", GoogleServiceAccountJSON: "{}"},
			wantErr: "Google Spreadsheet ID is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	path := filepath.Join(t.TempDir(), "data", "expenses.csv")
	res, err := f.CreateBackend(ctx, Config{Type: CSVBackend, ExpenseFile: path})
	if err != nil {
		t.Fatalf("csv backend: %v", err)
	}
	csvStore, ok := res.Backend.(*storage.CSVStore)
	if !ok || csvStore.Path() != path {
		t.Fatalf("expected CSV store at %s, got %T", path, res.Backend)
	}
	e := core.Expense{Date: core.NewDate(2024, 5, 1), Description: "Fuel", Category: "Transport", Amount: core.Money{Cents: 4000}}
	if _, err := res.Backend.Append(ctx, e); err != nil {
		t.Fatalf("append: %v", err)
	}
	if got, _ := res.Backend.ListExpenses(ctx); len(got) != 1 {
		t.Fatalf("expected 1 record, got %d", len(got))
	}

	res, err = f.CreateBackend(ctx, Config{Type: MemoryBackend})
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := res.Backend.(*memory.Store); !ok {
		t.Fatalf("expected memory store, got %T", res.Backend)
	}

	if _, err := f.CreateBackend(ctx, Config{Type: "bogus"}); err == nil {
		t.Fatal("expected error for invalid type")
	}
}
