package http

import (
	"encoding/json"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"expensetracker/internal/core"
	applog "expensetracker/internal/log"
)

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.svc.Summary(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	OK(summaryJSON{
		Monthly: toPeriodsJSON(sum.Monthly),
		Weekly:  toPeriodsJSON(sum.Weekly),
		Yearly:  toPeriodsJSON(sum.Yearly),
	}).Write(w)
}

func (s *Server) handleMonthOverview(w http.ResponseWriter, r *http.Request) {
	year, month, err := parseYearMonth(r.PathValue("year"), r.PathValue("month"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	ov, err := s.svc.MonthOverview(r.Context(), year, month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	OK(toOverviewJSON(ov)).Write(w)
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.svc.Categories(r.Context())
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	if cats == nil {
		cats = []string{}
	}
	OK(map[string][]string{"categories": cats}).Write(w)
}

// handleRenameCategory moves every record of {name} to the body's "name".
func (s *Server) handleRenameCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	n, err := s.svc.RenameCategory(r.Context(), r.PathValue("name"), p.Get("name"))
	if err != nil {
		writeError(w, r, applog.OpRename, err)
		return
	}
	OK(map[string]int{"updated": n}).Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.DeleteCategory(r.Context(), r.PathValue("name"))
	if err != nil {
		writeError(w, r, applog.OpDelete, err)
		return
	}
	OK(map[string]int{"deleted": n}).Write(w)
}

func (s *Server) handleBudgetSuggestions(w http.ResponseWriter, r *http.Request) {
	asOf, err := parseOptionalDate(r.URL.Query().Get("as_of"))
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	suggestions, err := s.svc.Suggestions(r.Context(), asOf)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]suggestionJSON, 0, len(suggestions))
	for _, sg := range suggestions {
		out = append(out, suggestionJSON{Category: sg.Category, Limit: sg.Limit.Decimal(), LimitCents: sg.Limit.Cents})
	}
	OK(map[string]any{"suggestions": out}).Write(w)
}

type usageRequest struct {
	Year   int                    `json:"year"`
	Month  int                    `json:"month"`
	Limits map[string]json.Number `json:"limits"`
}

// handleBudgetUsage reports the share of each submitted limit spent in the
// given month. Limits are not stored.
func (s *Server) handleBudgetUsage(w http.ResponseWriter, r *http.Request) {
	body, err := readLimited(r.Body, maxBodyBytes)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	var req usageRequest
	if err := json.Unmarshal(body, &req); err != nil {
		BadRequestError("invalid JSON body").Write(w)
		return
	}
	if req.Month < 1 || req.Month > 12 || req.Year < 1 {
		BadRequestError("year and month are required").Write(w)
		return
	}

	budgets := make([]core.CategoryBudget, 0, len(req.Limits))
	seen := make(map[string]bool, len(req.Limits))
	for category, raw := range req.Limits {
		name := strings.TrimSpace(category)
		if seen[name] {
			BadRequestError("duplicate budget category " + strconv.Quote(name)).Write(w)
			return
		}
		seen[name] = true
		limit, err := core.ParseMoney(raw.String())
		if err != nil {
			UnprocessableEntityError("limit for " + category + " must be a positive decimal").Write(w)
			return
		}
		budgets = append(budgets, core.CategoryBudget{Category: name, Limit: limit})
	}
	sort.Slice(budgets, func(i, j int) bool { return budgets[i].Category < budgets[j].Category })

	usage, err := s.svc.Usage(r.Context(), budgets, req.Year, req.Month)
	if err != nil {
		writeError(w, r, applog.OpList, err)
		return
	}
	out := make([]usageJSON, 0, len(usage))
	for _, u := range usage {
		out = append(out, usageJSON{
			Category:   u.Category,
			Limit:      u.Limit.Decimal(),
			Spent:      u.Spent.Decimal(),
			SpentCents: u.Spent.Cents,
			Percent:    u.Percent,
		})
	}
	OK(map[string]any{"year": req.Year, "month": req.Month, "usage": out}).Write(w)
}
