package entity

import (
	"context"
	"fmt"

	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// Agents manages the showcased AI agents.
type Agents struct{ *Operations[model.Agent] }

// Prompts manages the prompt library.
type Prompts struct{ *Operations[model.Prompt] }

// Resources manages teaching resources.
type Resources struct {
	*Operations[model.TeachingResource]
}

// Requests manages custom work requests submitted from the site.
type Requests struct {
	*Operations[model.CustomRequest]
}

// UpdateStatus moves a request to status.
func (r *Requests) UpdateStatus(ctx context.Context, id string, status model.RequestStatus) (model.CustomRequest, error) {
	return r.Update(ctx, id, map[string]any{"status": string(status)})
}

// ListByStatus returns requests in one status, newest first.
func (r *Requests) ListByStatus(ctx context.Context, status model.RequestStatus) ([]model.CustomRequest, error) {
	return r.List(ctx, transport.Query{}.Eq("status", string(status)).OrderBy("created_at", true))
}

// Skills manages downloadable skills.
type Skills struct{ *Operations[model.Skill] }

// IncrementDownloads bumps the download counter of skill id and returns the
// updated skill. The read and the write are separate calls, so concurrent
// downloads can lose increments.
func (s *Skills) IncrementDownloads(ctx context.Context, id string) (model.Skill, error) {
	skill, err := s.GetByID(ctx, id)
	if err != nil {
		return model.Skill{}, fmt.Errorf("increment downloads: %w", err)
	}
	updated, err := s.Update(ctx, id, map[string]any{"downloads": skill.Downloads + 1})
	if err != nil {
		return model.Skill{}, fmt.Errorf("increment downloads: %w", err)
	}
	return updated, nil
}

// ListByCategory returns the skills in category, most downloaded first.
func (s *Skills) ListByCategory(ctx context.Context, category string) ([]model.Skill, error) {
	return s.List(ctx, transport.Query{}.Eq("category", category).OrderBy("downloads", true))
}

// Carousel manages landing page slides.
type Carousel struct {
	*Operations[model.CarouselItem]
}

// ListActive returns the active slides in display order.
func (c *Carousel) ListActive(ctx context.Context) ([]model.CarouselItem, error) {
	return c.List(ctx, transport.Query{}.Eq("is_active", true).OrderBy("sort_order", false))
}

// Content manages editable site copy.
type Content struct {
	*Operations[model.DefaultContent]
}

// GetBySection returns every block in section.
func (c *Content) GetBySection(ctx context.Context, section string) ([]model.DefaultContent, error) {
	return c.List(ctx, transport.Query{}.Eq("section", section).OrderBy("content_key", false))
}

// Set holds one façade per table, all sharing a selector and log.
type Set struct {
	Agents    *Agents
	Prompts   *Prompts
	Resources *Resources
	Requests  *Requests
	Skills    *Skills
	Carousel  *Carousel
	Content   *Content
}

// NewSet builds every façade.
func NewSet(selector Selector, log *connlog.Logger, retry conn.RetryPolicy) *Set {
	return &Set{
		Agents:    &Agents{NewOperations[model.Agent](selector, log, retry)},
		Prompts:   &Prompts{NewOperations[model.Prompt](selector, log, retry)},
		Resources: &Resources{NewOperations[model.TeachingResource](selector, log, retry)},
		Requests:  &Requests{NewOperations[model.CustomRequest](selector, log, retry)},
		Skills:    &Skills{NewOperations[model.Skill](selector, log, retry)},
		Carousel:  &Carousel{NewOperations[model.CarouselItem](selector, log, retry)},
		Content:   &Content{NewOperations[model.DefaultContent](selector, log, retry)},
	}
}
