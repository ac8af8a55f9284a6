package server

import (
	"context"
	"net/http"

	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/entity"
	"github.com/ashita-ai/vitrine/internal/model"
)

// HandleLogin handles POST /api/admin/login.
func (h *Handlers) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req model.LoginRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}

	if !h.admin.Verify(req.Username, req.Password) {
		h.connLog.Warn(connlog.CategoryAuth, "admin login rejected", map[string]any{
			"username": req.Username,
			"remote":   r.RemoteAddr,
		})
		writeError(w, r, http.StatusUnauthorized, model.ErrCodeUnauthorized, "invalid credentials")
		return
	}

	token, expiresAt, err := h.jwtMgr.IssueToken(req.Username)
	if err != nil {
		h.logger.Error("issue admin token", "error", err)
		writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "failed to issue token")
		return
	}
	h.connLog.Info(connlog.CategoryAuth, "admin login", map[string]any{"username": req.Username})
	writeJSON(w, r, http.StatusOK, model.LoginResponse{Token: token, ExpiresAt: expiresAt})
}

// Protected fields never taken from a patch body.
var immutableFields = []string{"id", "created_at", "updated_at"}

// crudRoutes registers admin CRUD for one table under /api/admin/{name}.
// A nil list uses GetAll.
func crudRoutes[T model.Record](mux *http.ServeMux, name string, h *Handlers, ops *entity.Operations[T], wrap func(http.Handler) http.Handler, list http.Handler) {
	base := "/api/admin/" + name
	if list == nil {
		list = listHandler(h, ops)
	}
	mux.Handle("GET "+base, wrap(list))
	mux.Handle("POST "+base, wrap(createHandler(h, ops)))
	mux.Handle("GET "+base+"/{id}", wrap(getHandler(h, ops)))
	mux.Handle("PATCH "+base+"/{id}", wrap(updateHandler(h, ops)))
	mux.Handle("DELETE "+base+"/{id}", wrap(deleteHandler(h, ops)))
}

func listHandler[T model.Record](h *Handlers, ops *entity.Operations[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rows, err := ops.GetAll(r.Context())
		if err != nil {
			h.writeEntityError(w, r, err)
			return
		}
		writeList(w, r, rows, h.currentMode())
	}
}

func getHandler[T model.Record](h *Handlers, ops *entity.Operations[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		row, err := ops.GetByID(r.Context(), r.PathValue("id"))
		if err != nil {
			h.writeEntityError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, row)
	}
}

func createHandler[T model.Record](h *Handlers, ops *entity.Operations[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var rec T
		if err := decodeJSON(w, r, &rec, h.maxRequestBodyBytes); err != nil {
			handleDecodeError(w, r, err)
			return
		}
		created, err := ops.Create(r.Context(), rec)
		if err != nil {
			h.writeEntityError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusCreated, created)
	}
}

func updateHandler[T model.Record](h *Handlers, ops *entity.Operations[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var patch map[string]any
		if err := decodeJSON(w, r, &patch, h.maxRequestBodyBytes); err != nil {
			handleDecodeError(w, r, err)
			return
		}
		for _, f := range immutableFields {
			delete(patch, f)
		}
		updated, err := ops.Update(r.Context(), r.PathValue("id"), patch)
		if err != nil {
			h.writeEntityError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, updated)
	}
}

func deleteHandler[T model.Record](h *Handlers, ops *entity.Operations[T]) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := ops.Delete(r.Context(), r.PathValue("id"))
		if err != nil {
			h.writeEntityError(w, r, err)
			return
		}
		if !deleted {
			writeError(w, r, http.StatusNotFound, model.ErrCodeNotFound, "record not found")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// HandleListRequests handles GET /api/admin/requests. ?status= narrows the
// list to one lifecycle state.
func (h *Handlers) HandleListRequests(w http.ResponseWriter, r *http.Request) {
	var (
		reqs []model.CustomRequest
		err  error
	)
	if status := r.URL.Query().Get("status"); status != "" {
		reqs, err = h.entities.Requests.ListByStatus(r.Context(), model.RequestStatus(status))
	} else {
		reqs, err = h.entities.Requests.GetAll(r.Context())
	}
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, reqs, h.currentMode())
}

// HandleUpdateRequestStatus handles PATCH /api/admin/requests/{id}/status.
func (h *Handlers) HandleUpdateRequestStatus(w http.ResponseWriter, r *http.Request) {
	var req model.UpdateStatusRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	updated, err := h.entities.Requests.UpdateStatus(r.Context(), r.PathValue("id"), req.Status)
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusOK, updated)
}

// HandleGetConnection handles GET /api/admin/connection. It reports state
// without probing.
func (h *Handlers) HandleGetConnection(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.connectionResponse())
}

// HandleCheckConnection handles POST /api/admin/connection/check. It probes
// the primary, falling back to the REST API, within checkTimeout.
func (h *Handlers) HandleCheckConnection(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.checkTimeout)
	defer cancel()

	h.selector.GetOptimalConnection(ctx)
	writeJSON(w, r, http.StatusOK, h.connectionResponse())
}

func (h *Handlers) connectionResponse() model.ConnectionResponse {
	snap := h.selector.ConnectionManager().Snapshot()
	resp := model.ConnectionResponse{
		Status:           string(snap.Status),
		Mode:             string(h.selector.CurrentMode()),
		RetryCount:       snap.RetryCount,
		ShouldUseAPIMode: snap.ShouldUseAPIMode,
		LastError:        snap.LastError,
	}
	if !snap.LastCheck.IsZero() {
		lc := snap.LastCheck
		resp.LastCheck = &lc
	}
	if h.keepAlive != nil {
		resp.KeepAliveActive = h.keepAlive.Active()
		resp.KeepAlivePaused = h.keepAlive.Paused()
	}
	return resp
}
