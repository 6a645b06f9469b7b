package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Page is the envelope for offset-paginated lists.
type Page[T any] struct {
	Items  []T `json:"items"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Accepted writes 202 with a Location header pointing at the resource to poll.
func Accepted(c *gin.Context, location string, payload any) {
	if location != "" {
		c.Header("Location", location)
	}
	JSON(c, http.StatusAccepted, payload)
}

// List writes a page of items. A nil slice is rendered as an empty array.
func List[T any](c *gin.Context, items []T, limit, offset int) {
	if items == nil {
		items = []T{}
	}
	OK(c, Page[T]{Items: items, Limit: limit, Offset: offset})
}
