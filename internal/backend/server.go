package backend

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"expensetracker/internal/core"
	"expensetracker/internal/log"
)

const maxBodyBytes = 64 << 10

// Server exposes a Store over the REST contract the tracker expects: a
// singleton balance resource and an expense collection with exact-match
// category filtering and merge PATCH.
type Server struct {
	store  Store
	logger *log.Logger
	router *mux.Router
}

func NewServer(store Store, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	s := &Server{
		store:  store,
		logger: logger.WithComponent(log.ComponentBackend),
		router: mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/currentBalance", s.handleGetBalance).Methods(http.MethodGet)
	s.router.HandleFunc("/currentBalance", s.handlePutBalance).Methods(http.MethodPut)
	s.router.HandleFunc("/expenses", s.handleListExpenses).Methods(http.MethodGet)
	s.router.HandleFunc("/expenses", s.handleCreateExpense).Methods(http.MethodPost)
	s.router.HandleFunc("/expenses/{id}", s.handleGetExpense).Methods(http.MethodGet)
	s.router.HandleFunc("/expenses/{id}", s.handlePatchExpense).Methods(http.MethodPatch)
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, struct{}{})
	})
	s.router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}

// Router returns the mux so callers can wrap it with middleware.
func (s *Server) Router() *mux.Router {
	return s.router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) handleGetBalance(w http.ResponseWriter, r *http.Request) {
	v, err := s.store.GetBalance(r.Context())
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Balance{CurrentBalance: v})
}

// handlePutBalance replaces the balance resource. A null or missing
// currentBalance is stored as is and read back as null.
func (s *Server) handlePutBalance(w http.ResponseWriter, r *http.Request) {
	var body struct {
		CurrentBalance *float64 `json:"currentBalance"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	v := core.NaN
	if body.CurrentBalance != nil {
		v = core.Amount(*body.CurrentBalance)
	}

	echo, err := s.store.SetBalance(r.Context(), v)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Balance{CurrentBalance: echo})
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	categories, filtered := r.URL.Query()["category"]

	var (
		out []core.Expense
		err error
	)
	switch {
	case !filtered:
		out, err = s.store.ListExpenses(ctx)
	case len(categories) == 1:
		out, err = s.store.ListExpensesByCategory(ctx, categories[0])
	default:
		// Repeated category parameters match any of the values.
		var all []core.Expense
		all, err = s.store.ListExpenses(ctx)
		want := make(map[string]bool, len(categories))
		for _, c := range categories {
			want[c] = true
		}
		out = []core.Expense{}
		for _, e := range all {
			if want[e.Category] {
				out = append(out, e)
			}
		}
	}
	if err != nil {
		s.fail(w, r, log.OpList, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	id := core.ExpenseID(mux.Vars(r)["id"])
	e, err := s.store.GetExpense(r.Context(), id)
	if err != nil {
		s.fail(w, r, log.OpRead, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var e core.Expense
	if err := decodeBody(r, &e); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	created, err := s.store.CreateExpense(r.Context(), e)
	if err != nil {
		s.fail(w, r, log.OpCreate, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) handlePatchExpense(w http.ResponseWriter, r *http.Request) {
	id := core.ExpenseID(mux.Vars(r)["id"])

	var fields map[string]json.RawMessage
	if err := decodeBody(r, &fields); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	patch, err := patchFromFields(fields)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := s.store.PatchExpense(r.Context(), id, patch)
	if err != nil {
		s.fail(w, r, log.OpUpdate, err)
		return
	}
	s.loggerFor(r).DebugContext(r.Context(), "Expense patched",
		log.FieldExpenseID, id.String(),
		log.FieldCategory, updated.Category,
		log.FieldAmount, core.FormatAmount(updated.Amount))
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// patchFromFields builds a merge patch from a decoded body. Unknown fields,
// id included, are ignored. A null amount is kept as NaN so it reads back as
// null; a null category or description clears it.
func patchFromFields(fields map[string]json.RawMessage) (core.ExpensePatch, error) {
	var p core.ExpensePatch
	if raw, ok := fields["amount"]; ok {
		a := core.NaN
		if !isNull(raw) {
			var f float64
			if err := json.Unmarshal(raw, &f); err != nil {
				return p, fmt.Errorf("amount: %w", err)
			}
			a = core.Amount(f)
		}
		p.Amount = &a
	}
	for name, dst := range map[string]**string{"category": &p.Category, "description": &p.Description} {
		raw, ok := fields[name]
		if !ok {
			continue
		}
		var v string
		if !isNull(raw) {
			if err := json.Unmarshal(raw, &v); err != nil {
				return p, fmt.Errorf("%s: %w", name, err)
			}
		}
		*dst = &v
	}
	return p, nil
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func decodeBody(r *http.Request, v any) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, core.ErrExpenseNotFound) {
		writeJSON(w, http.StatusNotFound, struct{}{})
		return
	}
	log.NewStructuredLogger(s.loggerFor(r)).LogError(r.Context(), "Store operation failed", err,
		log.ComponentBackend, op, log.NewFields().WithErrorType(log.ErrorTypeDatabase))
	writeError(w, http.StatusInternalServerError, "internal error")
}

// loggerFor prefers the request-scoped logger installed by the trace middleware.
func (s *Server) loggerFor(r *http.Request) *log.Logger {
	return log.FromContextOr(r.Context(), s.logger)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
