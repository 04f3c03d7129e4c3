package http

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dropDatabas3/adminkit/internal/app"
	"github.com/dropDatabas3/adminkit/internal/dispatch"
	"github.com/dropDatabas3/adminkit/internal/domain/repository"
	apperrors "github.com/dropDatabas3/adminkit/internal/http/errors"
	"github.com/dropDatabas3/adminkit/internal/schema"
	"github.com/go-chi/chi/v5"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

// Handlers expone el core admin como JSON. No tiene lógica propia: parsea,
// delega en app.Core y traduce errores.
type Handlers struct {
	core *app.Core
}

func NewHandlers(core *app.Core) *Handlers { return &Handlers{core: core} }

type recordResponse struct {
	Record repository.Record      `json:"record,omitempty"`
	Audit  *repository.AuditEntry `json:"audit,omitempty"`
}

type tokenRequest struct {
	Action   string `json:"action"`
	RecordID string `json:"record_id"`
}

func (h *Handlers) healthz(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) models(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{"models": h.core.Models()})
}

func (h *Handlers) stats(w http.ResponseWriter, r *http.Request) {
	out, err := h.core.Stats(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"entities": out})
}

func (h *Handlers) exec(w http.ResponseWriter, r *http.Request, req dispatch.Request) (dispatch.Result, bool) {
	req.Identity = IdentityFrom(r.Context())
	res, err := h.core.Execute(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return dispatch.Result{}, false
	}
	return res, true
}

// listRequest parsea q, sort, order, page y page_size.
func listRequest(r *http.Request, action schema.Action) (dispatch.Request, error) {
	q := r.URL.Query()
	req := dispatch.Request{
		Entity:    chi.URLParam(r, "entity"),
		Action:    action,
		Search:    q.Get("q"),
		SortField: q.Get("sort"),
	}
	switch strings.ToLower(q.Get("order")) {
	case "":
	case "asc":
		desc := false
		req.SortDesc = &desc
	case "desc":
		desc := true
		req.SortDesc = &desc
	default:
		return req, apperrors.ErrInvalidParameter.WithDetail("order must be asc or desc")
	}
	var err error
	if req.Page, err = intParam(q.Get("page")); err != nil {
		return req, apperrors.ErrInvalidParameter.WithDetail("page must be an integer")
	}
	if req.PageSize, err = intParam(q.Get("page_size")); err != nil {
		return req, apperrors.ErrInvalidParameter.WithDetail("page_size must be an integer")
	}
	return req, nil
}

func intParam(s string) (int, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.Atoi(s)
}

func (h *Handlers) list(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, schema.ActionList)
}

func (h *Handlers) export(w http.ResponseWriter, r *http.Request) {
	h.page(w, r, schema.ActionExport)
}

func (h *Handlers) page(w http.ResponseWriter, r *http.Request, action schema.Action) {
	req, err := listRequest(r, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	res, ok := h.exec(w, r, req)
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, res.Page)
}

func (h *Handlers) view(w http.ResponseWriter, r *http.Request) {
	res, ok := h.exec(w, r, dispatch.Request{
		Entity:   chi.URLParam(r, "entity"),
		Action:   schema.ActionView,
		RecordID: chi.URLParam(r, "id"),
	})
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, recordResponse{Record: res.Record})
}

func (h *Handlers) fragment(w http.ResponseWriter, r *http.Request) {
	res, ok := h.exec(w, r, dispatch.Request{
		Entity:   chi.URLParam(r, "entity"),
		Action:   schema.ActionFragment,
		RecordID: r.URL.Query().Get("record_id"),
		Variant:  chi.URLParam(r, "variant"),
		Token:    r.Header.Get(HeaderActionToken),
	})
	if !ok {
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{"fields": res.Fields})
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, schema.ActionCreate, http.StatusCreated, true)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, schema.ActionUpdate, http.StatusOK, true)
}

func (h *Handlers) remove(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, schema.ActionDelete, http.StatusOK, false)
}

func (h *Handlers) custom(w http.ResponseWriter, r *http.Request) {
	action := schema.ParseAction(chi.URLParam(r, "action"))
	if !action.IsCustom() {
		writeError(w, r, apperrors.ErrInvalidParameter.WithDetail("not a custom action"))
		return
	}
	h.mutate(w, r, action, http.StatusOK, r.ContentLength > 0 || r.Header.Get("Content-Type") != "")
}

func (h *Handlers) mutate(w http.ResponseWriter, r *http.Request, action schema.Action, status int, withBody bool) {
	req := dispatch.Request{
		Entity:   chi.URLParam(r, "entity"),
		Action:   action,
		RecordID: chi.URLParam(r, "id"),
		Token:    r.Header.Get(HeaderActionToken),
	}
	if withBody {
		var payload repository.Record
		if !ReadJSON(w, r, &payload) {
			return
		}
		req.Payload = payload
	}
	res, ok := h.exec(w, r, req)
	if !ok {
		return
	}
	WriteJSON(w, status, recordResponse{Record: res.Record, Audit: res.Audit})
}

func (h *Handlers) issueToken(w http.ResponseWriter, r *http.Request) {
	var body tokenRequest
	if !ReadJSON(w, r, &body) {
		return
	}
	recordID := chi.URLParam(r, "id")
	if recordID == "" {
		recordID = body.RecordID
	}
	action := schema.ParseAction(body.Action)
	if action == "" {
		writeError(w, r, apperrors.ErrBadRequest.WithDetail("action is required"))
		return
	}
	tok, err := h.core.IssueActionToken(r.Context(), IdentityFrom(r.Context()), chi.URLParam(r, "entity"), recordID, action)
	if err != nil {
		writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusCreated, tok)
}

// auditFilter parsea entity, record_id, actor, action, since, until y limit.
func auditFilter(r *http.Request) (repository.AuditFilter, error) {
	q := r.URL.Query()
	f := repository.AuditFilter{
		Entity:   q.Get("entity"),
		RecordID: q.Get("record_id"),
		ActorID:  q.Get("actor"),
		Action:   q.Get("action"),
		Limit:    defaultAuditLimit,
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		if v := q.Get(name); v != "" {
			t, err := time.Parse(time.RFC3339Nano, v)
			if err != nil {
				return f, apperrors.ErrInvalidParameter.WithDetail(name + " must be RFC3339")
			}
			*dst = t
		}
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, apperrors.ErrInvalidParameter.WithDetail("limit must be a positive integer")
		}
		f.Limit = min(n, maxAuditLimit)
	}
	return f, nil
}

func (h *Handlers) auditLog(w http.ResponseWriter, r *http.Request) {
	if err := h.core.AuthorizeAudit(IdentityFrom(r.Context())).Err(); err != nil {
		writeError(w, r, err)
		return
	}
	f, err := auditFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	entries := make([]repository.AuditEntry, 0, 16)
	for e, err := range h.core.QueryAuditLog(r.Context(), f) {
		if err != nil {
			writeError(w, r, err)
			return
		}
		entries = append(entries, e)
	}
	WriteJSON(w, http.StatusOK, map[string]any{"entries": entries})
}
