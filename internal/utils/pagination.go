package utils

import "github.com/gofiber/fiber/v2"

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Page is an offset window over a listing.
type Page struct {
	Number   int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}

// ParsePage reads ?page and ?limit. Missing or malformed values fall back to
// page 1 and DefaultPageLimit; limit never exceeds MaxPageLimit.
func ParsePage(c *fiber.Ctx) Page {
	page := c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit := c.QueryInt("limit", DefaultPageLimit)
	if limit < 1 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	return Page{Number: page, Limit: limit}
}

func (p Page) Offset() int {
	return (p.Number - 1) * p.Limit
}

// WithTotal records the row count and the last page it implies.
func (p Page) WithTotal(total int64) Page {
	p.Total = total
	p.LastPage = int((total + int64(p.Limit) - 1) / int64(p.Limit))
	return p
}

// Paged wraps one page of a listing.
type Paged struct {
	Data       interface{} `json:"data"`
	Pagination Page        `json:"pagination"`
}
