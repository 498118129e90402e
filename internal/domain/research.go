package domain

import "time"

// Research is a named research topic grouping papers. Papers holds file
// names, so a topic's papers can be used directly as a query filter.
type Research struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Papers      []string  `json:"papers"`
	Tags        []string  `json:"tags"`
	IsArchived  bool      `json:"is_archived"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CreateResearchRequest is the request to create a research topic
type CreateResearchRequest struct {
	Name        string   `json:"name" binding:"required,max=255"`
	Description string   `json:"description,omitempty" binding:"max=1000"`
	Papers      []string `json:"papers,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// UpdateResearchRequest is the request to update a research topic. Nil
// fields are left unchanged; Papers replaces the whole paper set.
type UpdateResearchRequest struct {
	Name        *string   `json:"name,omitempty" binding:"omitempty,min=1,max=255"`
	Description *string   `json:"description,omitempty" binding:"omitempty,max=1000"`
	Papers      *[]string `json:"papers,omitempty"`
	Tags        *[]string `json:"tags,omitempty"`
	IsArchived  *bool     `json:"is_archived,omitempty"`
}
