package server

import (
	"bytes"
	"net/http"
	"time"

	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/model"
)

// HandleListLogs handles GET /api/admin/logs.
// Query: level, category, since (RFC3339), limit.
func (h *Handlers) HandleListLogs(w http.ResponseWriter, r *http.Request) {
	var f connlog.Filter
	q := r.URL.Query()

	if v := q.Get("level"); v != "" {
		level, ok := connlog.ParseLevel(v)
		if !ok {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid level: "+v)
			return
		}
		f.Level = level
	}
	if v := q.Get("category"); v != "" {
		category, ok := connlog.ParseCategory(v)
		if !ok {
			writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "invalid category: "+v)
			return
		}
		f.Category = category
	}
	since, err := queryTime(r, "since")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, err.Error())
		return
	}
	f.Since = since
	f.Limit = queryLimit(r, 0)

	writeList(w, r, h.connLog.GetLogs(f), h.currentMode())
}

// HandleLogStats handles GET /api/admin/logs/stats.
func (h *Handlers) HandleLogStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, h.connLog.ConnectionStats())
}

// HandleExportLogs handles GET /api/admin/logs/export?format=json|xlsx.
func (h *Handlers) HandleExportLogs(w http.ResponseWriter, r *http.Request) {
	stamp := time.Now().UTC().Format("20060102-150405")

	switch format := r.URL.Query().Get("format"); format {
	case "", "json":
		body, err := h.connLog.Export()
		if err != nil {
			h.logger.Error("export logs", "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="connection-logs-`+stamp+`.json"`)
		_, _ = w.Write([]byte(body))
	case "xlsx":
		var buf bytes.Buffer
		if err := h.connLog.ExportXLSX(&buf); err != nil {
			h.logger.Error("export logs xlsx", "error", err)
			writeError(w, r, http.StatusInternalServerError, model.ErrCodeInternalError, "export failed")
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="connection-logs-`+stamp+`.xlsx"`)
		_, _ = buf.WriteTo(w)
	default:
		writeError(w, r, http.StatusBadRequest, model.ErrCodeInvalidInput, "format must be json or xlsx")
	}
}

// HandleClearLogs handles DELETE /api/admin/logs.
func (h *Handlers) HandleClearLogs(w http.ResponseWriter, r *http.Request) {
	h.connLog.Clear()
	h.logger.Info("connection log cleared", "by", claimsSubject(r))
	w.WriteHeader(http.StatusNoContent)
}

func claimsSubject(r *http.Request) string {
	if c := ClaimsFromContext(r.Context()); c != nil {
		return c.Subject
	}
	return ""
}
