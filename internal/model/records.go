package model

import "time"

// Record is a row in one of the showcase tables.
type Record interface {
	Table() string
}

// Table names.
const (
	TableAgents            = "agents"
	TablePrompts           = "prompts"
	TableTeachingResources = "teaching_resources"
	TableCustomRequests    = "custom_requests"
	TableSkills            = "skills"
	TableCarouselItems     = "carousel_items"
	TableDefaultContent    = "default_content"
)

// Optional columns carry omitempty so an unset field is left out of the write
// and the column default applies.

// Agent is a showcased AI agent.
type Agent struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	ImageURL    string     `json:"image_url,omitempty"`
	IsFeatured  *bool      `json:"is_featured,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (Agent) Table() string { return TableAgents }

// Prompt is a reusable prompt template.
type Prompt struct {
	ID          string     `json:"id,omitempty"`
	Title       string     `json:"title,omitempty"`
	Content     string     `json:"content,omitempty"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (Prompt) Table() string { return TablePrompts }

// TeachingResource is a course, article or video link.
type TeachingResource struct {
	ID           string     `json:"id,omitempty"`
	Title        string     `json:"title,omitempty"`
	Description  string     `json:"description,omitempty"`
	URL          string     `json:"url,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	CoverImage   string     `json:"cover_image,omitempty"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
	UpdatedAt    *time.Time `json:"updated_at,omitempty"`
}

func (TeachingResource) Table() string { return TableTeachingResources }

// RequestStatus is the lifecycle state of a custom request.
type RequestStatus string

const (
	RequestPending    RequestStatus = "pending"
	RequestInProgress RequestStatus = "in_progress"
	RequestCompleted  RequestStatus = "completed"
	RequestRejected   RequestStatus = "rejected"
)

// CustomRequest is a visitor's request for custom work.
type CustomRequest struct {
	ID          string        `json:"id,omitempty"`
	Name        string        `json:"name,omitempty"`
	Email       string        `json:"email,omitempty"`
	Company     string        `json:"company,omitempty"`
	Description string        `json:"description,omitempty"`
	Budget      string        `json:"budget,omitempty"`
	Status      RequestStatus `json:"status,omitempty"`
	CreatedAt   *time.Time    `json:"created_at,omitempty"`
	UpdatedAt   *time.Time    `json:"updated_at,omitempty"`
}

func (CustomRequest) Table() string { return TableCustomRequests }

// Skill is a downloadable skill package.
type Skill struct {
	ID          string     `json:"id,omitempty"`
	Name        string     `json:"name,omitempty"`
	Description string     `json:"description,omitempty"`
	Category    string     `json:"category,omitempty"`
	Difficulty  string     `json:"difficulty,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Downloads   int        `json:"downloads"`
	Tags        []string   `json:"tags,omitempty"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	UpdatedAt   *time.Time `json:"updated_at,omitempty"`
}

func (Skill) Table() string { return TableSkills }

// CarouselItem is one slide of the landing page carousel.
type CarouselItem struct {
	ID        string     `json:"id,omitempty"`
	Title     string     `json:"title,omitempty"`
	Subtitle  string     `json:"subtitle,omitempty"`
	ImageURL  string     `json:"image_url,omitempty"`
	LinkURL   string     `json:"link_url,omitempty"`
	SortOrder int        `json:"sort_order,omitempty"`
	IsActive  *bool      `json:"is_active,omitempty"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
}

func (CarouselItem) Table() string { return TableCarouselItems }

// DefaultContent is an editable block of site copy, keyed by section and key.
type DefaultContent struct {
	ID         string         `json:"id,omitempty"`
	Section    string         `json:"section,omitempty"`
	ContentKey string         `json:"content_key,omitempty"`
	Content    map[string]any `json:"content,omitempty"`
	CreatedAt  *time.Time     `json:"created_at,omitempty"`
	UpdatedAt  *time.Time     `json:"updated_at,omitempty"`
}

func (DefaultContent) Table() string { return TableDefaultContent }
