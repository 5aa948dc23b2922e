package models

// PageMeta contains pagination metadata returned in list responses.
type PageMeta struct {
	Total      int  `json:"total"`
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalPages int  `json:"totalPages"`
	HasMore    bool `json:"hasMore,omitempty"`
}

// NewPageMeta derives page counts from a total.
func NewPageMeta(total, page, limit int) PageMeta {
	pages := 0
	if limit > 0 {
		pages = (total + limit - 1) / limit
	}
	return PageMeta{Total: total, Page: page, Limit: limit, TotalPages: pages, HasMore: page < pages}
}

// Paging normalises page/limit query values.
type Paging struct {
	Page  int `form:"page"`
	Limit int `form:"limit"`
}

// Normalize applies defaults and caps limit at max.
func (p Paging) Normalize(defaultLimit, max int) Paging {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultLimit
	}
	if p.Limit > max {
		p.Limit = max
	}
	return p
}

// Offset returns the row offset for the page.
func (p Paging) Offset() int {
	return (p.Page - 1) * p.Limit
}
