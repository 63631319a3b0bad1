package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
	"expensetracker/internal/tracker"
)

// pageData is what the templates render: the tracker state plus the
// confirmation texts the browser shows before posting a reset.
type pageData struct {
	tracker.Snapshot
	ConfirmResetSingle string
	ConfirmResetAll    string
}

func (s *Server) pageData() pageData {
	return pageData{
		Snapshot:           s.tracker.State().Snapshot(),
		ConfirmResetSingle: tracker.MsgConfirmResetSingle,
		ConfirmResetAll:    tracker.MsgConfirmResetAll,
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	// A failed read leaves that part of the page as it was; the tracker
	// has logged it.
	_ = s.tracker.Load(r.Context())

	body, err := s.renderPartial(r, "index.html", s.pageData())
	if err != nil {
		InternalServerError("Error rendering page").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

func (s *Server) handleTopUp(w http.ResponseWriter, r *http.Request) {
	form, err := ParseAmountForm(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	if _, err := s.tracker.TopUp(r.Context(), form.Amount); err != nil {
		s.flowFailed(w, r, err, nil)
		return
	}
	s.countMutation()
	s.writeBalance(w, r, NewHTMXResponse(), true)
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	form, err := ParseExpenseForm(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	if form.Category != "" {
		s.tracker.SelectCategory(form.Category)
	}

	resp := NewHTMXResponse()
	if err := s.tracker.AddExpense(r.Context(), newFormPrompter(false, resp), form.Amount); err != nil {
		s.flowFailed(w, r, err, resp)
		return
	}
	s.countMutation()
	s.writeBalance(w, r, resp, true)
}

func (s *Server) handleSelectCategory(w http.ResponseWriter, r *http.Request) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}
	category := p.Get("category")
	if category == "" {
		BadRequestError("Missing category").Write(w)
		return
	}

	s.tracker.SelectCategory(category)
	NoContent().
		Trigger(EventCategorySelected, map[string]string{"category": category}).
		Write(w)
}

func (s *Server) handleResetSingle(w http.ResponseWriter, r *http.Request) {
	id := core.ExpenseID(r.PathValue("id"))
	confirmed, err := ParseConfirmed(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	resp := NoContent()
	if err := s.tracker.ResetSingle(r.Context(), newFormPrompter(confirmed, resp), id); err != nil {
		s.flowFailed(w, r, err, resp)
		return
	}
	s.countMutation()
	resp.TriggerExpenseReset(id.String()).Write(w)
}

func (s *Server) handleResetAll(w http.ResponseWriter, r *http.Request) {
	confirmed, err := ParseConfirmed(r)
	if err != nil {
		BadRequestError("Invalid request format").Write(w)
		return
	}

	resp := NewHTMXResponse()
	report, err := s.tracker.ResetAll(r.Context(), newFormPrompter(confirmed, resp))
	if errors.Is(err, tracker.ErrNotConfirmed) {
		NoContent().Write(w)
		return
	}
	if err != nil {
		atomic.AddInt64(&s.appMetrics.failedFlows, 1)
	} else {
		s.countMutation()
	}

	kind, msg := resetSummary(report)
	resp.TriggerNotification(kind, msg, 5000)
	s.writeBalance(w, r, resp, report.BalanceErr == nil)
}

// resetSummary describes a reset-all outcome for the notification banner.
func resetSummary(report tracker.ResetReport) (NotificationType, string) {
	ex := report.Expenses
	if report.Err() == nil {
		return NotificationSuccess, fmt.Sprintf("Reset %d expenses and the balance", ex.Succeeded)
	}

	msg := fmt.Sprintf("Reset %d of %d expenses", ex.Succeeded, ex.Total)
	if report.ExpensesErr != nil && ex.Total == 0 {
		msg = "Expenses could not be reset"
	}
	if report.BalanceErr != nil {
		msg += "; the balance could not be reset"
	} else {
		msg += "; balance reset"
	}
	return NotificationWarning, msg
}

func (s *Server) handleBalancePartial(w http.ResponseWriter, r *http.Request) {
	s.writeBalance(w, r, NewHTMXResponse(), false)
}

func (s *Server) handleLedgerPartial(w http.ResponseWriter, r *http.Request) {
	body, err := s.renderPartial(r, "ledger", s.pageData())
	if err != nil {
		InternalServerError("Error rendering ledger").Write(w)
		return
	}
	NewHTMXResponse().BodyHTML(body).Write(w)
}

// writeBalance responds with the balance partial. updated announces the new
// balance to listeners on the page.
func (s *Server) writeBalance(w http.ResponseWriter, r *http.Request, resp *HTMXResponseBuilder, updated bool) {
	data := s.pageData()
	body, err := s.renderPartial(r, "balance", data)
	if err != nil {
		InternalServerError("Error rendering balance").Write(w)
		return
	}
	if updated {
		resp.TriggerBalanceUpdated(data.Balance)
	}
	resp.BodyHTML(body).Write(w)
}

// flowFailed answers a failed flow. Domain rule violations are shown to the
// user next to the unchanged balance. A declined confirmation, a transport
// failure or a malformed response leaves the page as it is; the tracker has
// already logged the cause.
func (s *Server) flowFailed(w http.ResponseWriter, r *http.Request, err error, resp *HTMXResponseBuilder) {
	if resp == nil {
		resp = NewHTMXResponse()
	}
	switch {
	case errors.Is(err, tracker.ErrNotConfirmed):
		NoContent().Write(w)
	case tracker.IsUserFacing(err):
		atomic.AddInt64(&s.appMetrics.domainErrors, 1)
		if !resp.HasTrigger(EventNotification) {
			resp.TriggerErrorNotification(userMessage(err))
		}
		s.writeBalance(w, r, resp.Status(http.StatusOK), false)
	default:
		atomic.AddInt64(&s.appMetrics.failedFlows, 1)
		log.FromContext(r.Context()).DebugContext(r.Context(), "Flow failed, page left unchanged",
			log.FieldError, err,
			log.FieldErrorType, tracker.ErrorType(err))
		NoContent().Write(w)
	}
}

func userMessage(err error) string {
	switch {
	case errors.Is(err, core.ErrInsufficientBalance):
		return tracker.MsgInsufficientBalance
	case errors.Is(err, core.ErrNoCategories):
		return "There are no categories to record an expense against"
	case errors.Is(err, core.ErrCategoryNotFound):
		return "The selected category no longer exists"
	default:
		return "Something went wrong"
	}
}

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.appMetrics.uptime).String(),
	})
}

// handleReady performs readiness check with dependency verification
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := "ready"
	httpStatus := http.StatusOK
	checks := make(map[string]interface{})

	if s.templates == nil {
		checks["templates"] = "failed: templates not loaded"
		status, httpStatus = "not_ready", http.StatusServiceUnavailable
	} else {
		checks["templates"] = "ok"
	}

	switch {
	case s.ready == nil:
		checks["remote"] = "not_configured"
	default:
		if err := s.ready(ctx); err != nil {
			checks["remote"] = fmt.Sprintf("failed: %v", err)
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["remote"] = "ok"
		}
	}

	checks["rate_limiter"] = map[string]interface{}{
		"active_clients": s.rateLimiter.GetMetrics().ClientCount,
		"status":         "ok",
	}

	writeJSON(w, httpStatus, map[string]interface{}{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	})
}

// handleMetrics provides application metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	rateLimitMetrics := s.rateLimiter.GetMetrics()
	traceMetrics := s.traceMiddleware.GetMetrics()
	mutations := atomic.LoadInt64(&s.appMetrics.mutations)
	failed := atomic.LoadInt64(&s.appMetrics.failedFlows)
	domain := atomic.LoadInt64(&s.appMetrics.domainErrors)
	uptime := time.Since(s.appMetrics.uptime)

	w.WriteHeader(http.StatusOK)

	// Write metrics in Prometheus-like format
	fmt.Fprintf(w, "# HELP http_requests_total Total number of HTTP requests\n")
	fmt.Fprintf(w, "# TYPE http_requests_total counter\n")
	fmt.Fprintf(w, "http_requests_total %d\n\n", traceMetrics.TotalRequests)

	fmt.Fprintf(w, "# HELP tracker_mutations_total Flows whose mutations the store acknowledged\n")
	fmt.Fprintf(w, "# TYPE tracker_mutations_total counter\n")
	fmt.Fprintf(w, "tracker_mutations_total %d\n\n", mutations)

	fmt.Fprintf(w, "# HELP tracker_flow_failures_total Flows that failed on transport or response errors\n")
	fmt.Fprintf(w, "# TYPE tracker_flow_failures_total counter\n")
	fmt.Fprintf(w, "tracker_flow_failures_total %d\n\n", failed)

	fmt.Fprintf(w, "# HELP tracker_domain_errors_total Flows rejected by a domain rule\n")
	fmt.Fprintf(w, "# TYPE tracker_domain_errors_total counter\n")
	fmt.Fprintf(w, "tracker_domain_errors_total %d\n\n", domain)

	fmt.Fprintf(w, "# HELP rate_limit_rejections_total Requests rejected by the rate limiter\n")
	fmt.Fprintf(w, "# TYPE rate_limit_rejections_total counter\n")
	fmt.Fprintf(w, "rate_limit_rejections_total %d\n\n", rateLimitMetrics.Rejected)

	fmt.Fprintf(w, "# HELP active_rate_limit_clients Currently tracked rate limit clients\n")
	fmt.Fprintf(w, "# TYPE active_rate_limit_clients gauge\n")
	fmt.Fprintf(w, "active_rate_limit_clients %d\n\n", rateLimitMetrics.ClientCount)

	fmt.Fprintf(w, "# HELP uptime_seconds Application uptime in seconds\n")
	fmt.Fprintf(w, "# TYPE uptime_seconds gauge\n")
	fmt.Fprintf(w, "uptime_seconds %.0f\n", uptime.Seconds())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
