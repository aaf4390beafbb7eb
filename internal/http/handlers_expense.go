package http

import (
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
	"expensetracker/internal/services"
	"expensetracker/internal/storage"
)

type listResponse struct {
	Expenses   []expenseJSON `json:"expenses"`
	Count      int           `json:"count"`
	Total      string        `json:"total"`
	TotalCents int64         `json:"total_cents"`
	ByCategory []amountJSON  `json:"by_category"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	records, err := s.svc.ListExpenses(r.Context(), f)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}

	var total core.Money
	for _, e := range records {
		total = total.Add(e.Amount)
	}
	OK(listResponse{
		Expenses:   toExpensesJSON(records),
		Count:      len(records),
		Total:      total.Decimal(),
		TotalCents: total.Cents,
		ByCategory: toAmountsJSON(s.svc.CategoryTotals(records)),
	}).Write(w)
}

type createResponse struct {
	Ref     string      `json:"ref"`
	Expense expenseJSON `json:"expense"`
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		if errors.Is(err, errBodyTooLarge) {
			writeError(w, r, applog.OpCreate, err)
			return
		}
		BadRequestError(err.Error()).Write(w)
		return
	}

	amount, err := core.ParseMoney(p.Get("amount"))
	if err != nil {
		UnprocessableEntityError("amount must be a positive decimal").Write(w)
		return
	}
	date, err := parseOptionalDate(p.Get("date"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}

	e := core.Expense{
		Date:        date,
		Description: p.Get("description"),
		Category:    p.Get("category"),
		Amount:      amount,
	}
	if e.Date.IsEmpty() {
		e.Date = s.svc.Today()
	}
	ref, err := s.svc.AddExpense(r.Context(), e)
	if err != nil {
		writeError(w, r, applog.OpCreate, err)
		return
	}
	Created(createResponse{Ref: ref, Expense: toExpenseJSON(e)}).Write(w)
}

// handleExport streams the filtered records as CSV in the store's own format.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	records, err := s.svc.ListExpenses(r.Context(), f)
	if err != nil {
		writeError(w, r, applog.OpExport, err)
		return
	}

	filename := fmt.Sprintf("expenses_%s.csv", s.svc.Today().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%s", filename))
	w.WriteHeader(http.StatusOK)
	if err := storage.Encode(w, records); err != nil {
		applog.LogError(r.Context(), "Failed to write export", err, applog.OpExport, nil)
	}
}

type receiptResponse struct {
	Text     string        `json:"text"`
	Date     string        `json:"date"`
	Expenses []expenseJSON `json:"expenses"`
	Refs     []string      `json:"refs"`
}

// handleImportReceipt accepts an image (OCR first) or already extracted text.
func (s *Server) handleImportReceipt(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := parseOptionalDate(q.Get("date"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	opts := services.ReceiptOptions{Category: sanitizeInput(q.Get("category")), Date: date}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	var res services.ReceiptResult
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		img, err := readLimited(r.Body, maxImageBytes)
		if err != nil {
			writeError(w, r, applog.OpImport, err)
			return
		}
		res, err = s.svc.ImportReceiptImage(r.Context(), img, opts)
		if err != nil {
			writeError(w, r, applog.OpImport, err)
			return
		}
	case mediaType == "text/plain":
		text, err := readLimited(r.Body, maxBodyBytes)
		if err != nil {
			writeError(w, r, applog.OpImport, err)
			return
		}
		res, err = s.svc.ImportReceiptText(r.Context(), string(text), opts)
		if err != nil {
			writeError(w, r, applog.OpImport, err)
			return
		}
	default:
		ErrorResponse(http.StatusUnsupportedMediaType, "receipt must be an image or text/plain").Write(w)
		return
	}

	receiptDate := ""
	if len(res.Expenses) > 0 {
		receiptDate = res.Expenses[0].Date.String()
	}
	Created(receiptResponse{
		Text:     res.Text,
		Date:     receiptDate,
		Expenses: toExpensesJSON(res.Expenses),
		Refs:     res.Refs,
	}).Write(w)
}
