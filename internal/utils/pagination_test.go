package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePage(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		page := ParsePage(c)
		return c.JSON(fiber.Map{"page": page.Number, "limit": page.Limit, "offset": page.Offset()})
	})

	tests := []struct {
		query               string
		page, limit, offset int
	}{
		{"", 1, DefaultPageLimit, 0},
		{"?page=3&limit=10", 3, 10, 20},
		{"?page=0&limit=-4", 1, DefaultPageLimit, 0},
		{"?page=abc&limit=xyz", 1, DefaultPageLimit, 0},
		{"?limit=5000", 1, MaxPageLimit, 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			require.NoError(t, err)
			var got map[string]int
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
			assert.Equal(t, tt.page, got["page"])
			assert.Equal(t, tt.limit, got["limit"])
			assert.Equal(t, tt.offset, got["offset"])
		})
	}
}

func TestPage_WithTotal(t *testing.T) {
	page := Page{Number: 1, Limit: 20}
	assert.Equal(t, 0, page.WithTotal(0).LastPage)
	assert.Equal(t, 1, page.WithTotal(20).LastPage)
	assert.Equal(t, 2, page.WithTotal(21).LastPage)
	assert.Equal(t, int64(0), page.Total)
}
