package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Backends accepted by DATA_BACKEND.
var validBackends = []string{"csv", "memory", "sheets"}

type Config struct {
	// HTTP Server
	Port string

	// Storage
	DataBackend string
	ExpenseFile string
	UsersFile   string

	// Receipts and budgets
	ReceiptCategory    string
	BudgetWindowMonths int
	BudgetHeadroom     float64
	TesseractPath      string
	OCRTimeout         time.Duration
	CacheTTL           time.Duration

	// AMQP (optional). Empty URL disables the Sheets mirror.
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Google Sheets
	GoogleSpreadsheetID      string
	GoogleSheetName          string
	GoogleServiceAccountFile string
	GoogleServiceAccountJSON string

	// Worker
	SyncRetryAttempts int
	SyncRetryDelay    time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DataBackend: getEnv("DATA_BACKEND", "csv"),
		ExpenseFile: getEnv("EXPENSE_FILE", "./data/expense_data.csv"),
		UsersFile:   getEnv("USERS_FILE", "./data/users.json"),

		ReceiptCategory:    getEnv("RECEIPT_CATEGORY", "Groceries"),
		BudgetWindowMonths: getEnvInt("BUDGET_WINDOW_MONTHS", 3),
		BudgetHeadroom:     getEnvFloat("BUDGET_HEADROOM", 1.10),
		TesseractPath:      getEnv("TESSERACT_PATH", "tesseract"),
		OCRTimeout:         getEnvDuration("OCR_TIMEOUT", 30*time.Second),
		CacheTTL:           getEnvDuration("CACHE_TTL", 5*time.Minute),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expenses"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "sync_expenses"),

		GoogleSpreadsheetID:      getEnv("GOOGLE_SPREADSHEET_ID", ""),
		GoogleSheetName:          getEnv("GOOGLE_SHEET_NAME", "Expenses"),
		GoogleServiceAccountFile: getEnv("GOOGLE_SERVICE_ACCOUNT_FILE", ""),
		GoogleServiceAccountJSON: getEnv("GOOGLE_SERVICE_ACCOUNT_JSON", ""),

		SyncRetryAttempts: getEnvInt("SYNC_RETRY_ATTEMPTS", 5),
		SyncRetryDelay:    getEnvDuration("SYNC_RETRY_DELAY", time.Second),

		LogLevel:  getEnv("LOG_LEVEL", "INFO"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if !slices.Contains(validBackends, c.DataBackend) {
		errors = append(errors, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "csv" && strings.TrimSpace(c.ExpenseFile) == "" {
		errors = append(errors, "expense file path cannot be empty when using csv backend")
	}
	if strings.TrimSpace(c.UsersFile) == "" {
		errors = append(errors, "users file path cannot be empty")
	}

	if c.BudgetWindowMonths < 1 || c.BudgetWindowMonths > 24 {
		errors = append(errors, fmt.Sprintf("invalid budget window %d: must be between 1 and 24 months", c.BudgetWindowMonths))
	}
	if c.BudgetHeadroom <= 0 {
		errors = append(errors, fmt.Sprintf("invalid budget headroom %v: must be positive", c.BudgetHeadroom))
	}
	if c.OCRTimeout < time.Second {
		errors = append(errors, fmt.Sprintf("invalid OCR timeout %v: must be at least 1 second", c.OCRTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
		// The worker would write every row a second time into the same sheet.
		if c.DataBackend == "sheets" {
			errors = append(errors, "the Sheets mirror (AMQP_URL) requires the csv or memory backend, not sheets")
		}
	}

	if c.DataBackend == "sheets" {
		errors = append(errors, c.validateSheets()...)
	}

	if c.SyncRetryAttempts < 1 || c.SyncRetryAttempts > 20 {
		errors = append(errors, fmt.Sprintf("invalid sync retry attempts %d: must be between 1 and 20", c.SyncRetryAttempts))
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

// ValidateSheets checks only the Google Sheets settings; the sync worker
// needs them regardless of DATA_BACKEND.
func (c *Config) ValidateSheets() error {
	if errs := c.validateSheets(); len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}
	return nil
}

func (c *Config) validateSheets() []string {
	var errors []string
	if c.GoogleSpreadsheetID == "" {
		errors = append(errors, "Google Spreadsheet ID is required when using Google Sheets")
	}
	if c.GoogleSheetName == "" {
		errors = append(errors, "Google Sheet name is required when using Google Sheets")
	}
	hasFile := c.GoogleServiceAccountFile != ""
	if !hasFile && c.GoogleServiceAccountJSON == "" {
		errors = append(errors, "either GOOGLE_SERVICE_ACCOUNT_FILE or GOOGLE_SERVICE_ACCOUNT_JSON must be provided for Google Sheets")
	}
	if hasFile {
		if _, err := os.Stat(c.GoogleServiceAccountFile); os.IsNotExist(err) {
			errors = append(errors, fmt.Sprintf("Google service account file does not exist: %s", c.GoogleServiceAccountFile))
		}
	}
	return errors
}

// MirrorEnabled reports whether writes are published for the Sheets worker.
// A sheets backend is already the remote table and is never mirrored.
func (c *Config) MirrorEnabled() bool {
	return c.AMQPURL != "" && c.DataBackend != "sheets"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
