package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// HandleListAgents handles GET /api/agents.
func (h *Handlers) HandleListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.entities.Agents.GetAll(r.Context())
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, agents, h.currentMode())
}

// HandleListPrompts handles GET /api/prompts.
func (h *Handlers) HandleListPrompts(w http.ResponseWriter, r *http.Request) {
	prompts, err := h.entities.Prompts.GetAll(r.Context())
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, prompts, h.currentMode())
}

// HandleListResources handles GET /api/resources.
func (h *Handlers) HandleListResources(w http.ResponseWriter, r *http.Request) {
	resources, err := h.entities.Resources.GetAll(r.Context())
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, resources, h.currentMode())
}

// HandleListSkills handles GET /api/skills. ?category= narrows the list
// and orders it by downloads.
func (h *Handlers) HandleListSkills(w http.ResponseWriter, r *http.Request) {
	var (
		skills []model.Skill
		err    error
	)
	if category := r.URL.Query().Get("category"); category != "" {
		skills, err = h.entities.Skills.ListByCategory(r.Context(), category)
	} else {
		skills, err = h.entities.Skills.GetAll(r.Context())
	}
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, skills, h.currentMode())
}

// HandleListCarousel handles GET /api/carousel.
func (h *Handlers) HandleListCarousel(w http.ResponseWriter, r *http.Request) {
	items, err := h.entities.Carousel.ListActive(r.Context())
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, items, h.currentMode())
}

// HandleGetContent handles GET /api/content/{section}.
func (h *Handlers) HandleGetContent(w http.ResponseWriter, r *http.Request) {
	blocks, err := h.entities.Content.GetBySection(r.Context(), r.PathValue("section"))
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeList(w, r, blocks, h.currentMode())
}

// HandleSubmitRequest handles POST /api/requests. Visitors cannot choose the
// initial status.
func (h *Handlers) HandleSubmitRequest(w http.ResponseWriter, r *http.Request) {
	var req model.CustomRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		handleDecodeError(w, r, err)
		return
	}
	req.ID = ""
	req.Status = model.RequestPending
	req.CreatedAt, req.UpdatedAt = nil, nil

	created, err := h.entities.Requests.Create(r.Context(), req)
	if err != nil {
		h.writeEntityError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, created)
}

// Messages of POST /api/skills/download.
const (
	msgMissingSkillID = "缺少技能ID"
	msgSkillNotFound  = "技能不存在"
	msgDownloadFailed = "下载失败，请稍后重试"
)

// HandleSkillDownload handles POST /api/skills/download. It bumps the
// skill's download counter and answers with the flat {success, skill} or
// {error} body the site's download button expects.
func (h *Handlers) HandleSkillDownload(w http.ResponseWriter, r *http.Request) {
	var req model.SkillDownloadRequest
	if err := decodeJSON(w, r, &req, h.maxRequestBodyBytes); err != nil {
		writeRaw(w, http.StatusBadRequest, model.PlainError{Error: msgMissingSkillID})
		return
	}
	id := strings.TrimSpace(req.SkillID)
	if id == "" {
		writeRaw(w, http.StatusBadRequest, model.PlainError{Error: msgMissingSkillID})
		return
	}

	skill, err := h.entities.Skills.IncrementDownloads(r.Context(), id)
	switch {
	case err == nil:
		writeRaw(w, http.StatusOK, model.SkillDownloadResponse{Success: true, Skill: skill})
	case errors.Is(err, transport.ErrNotFound), errors.Is(err, transport.ErrInvalidInput):
		writeRaw(w, http.StatusNotFound, model.PlainError{Error: msgSkillNotFound})
	default:
		h.logger.Error("skill download failed",
			"error", err,
			"skill_id", id,
			"request_id", RequestIDFromContext(r.Context()))
		writeRaw(w, http.StatusInternalServerError, model.PlainError{Error: msgDownloadFailed})
	}
}
