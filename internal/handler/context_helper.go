package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/learnhub-api/internal/middleware"
	"github.com/noah-isme/learnhub-api/internal/models"
	appErrors "github.com/noah-isme/learnhub-api/pkg/errors"
	"github.com/noah-isme/learnhub-api/pkg/response"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// currentIdentity writes TOKEN_MISSING and returns false when the route was not authenticated.
func currentIdentity(c *gin.Context) (models.Identity, bool) {
	identity, ok := middleware.CurrentIdentity(c)
	if !ok {
		response.Error(c, appErrors.ErrTokenMissing)
		return models.Identity{}, false
	}
	return identity, true
}

func invalidPayload(err error, message string) *appErrors.Error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

// paginate slices a fully sorted result at the edge. Without a page query the whole slice is
// returned and no pagination metadata is produced.
func paginate[T any](c *gin.Context, items []T) ([]T, *models.Pagination) {
	rawPage, ok := c.GetQuery("page")
	if !ok {
		return items, nil
	}
	page, err := strconv.Atoi(rawPage)
	if err != nil || page < 1 {
		page = 1
	}
	size, err := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultPageSize)))
	if err != nil || size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}

	meta := &models.Pagination{Page: page, PageSize: size, TotalCount: len(items)}
	// Pages past the end are answered before multiplying so a huge page cannot overflow.
	if page-1 >= (len(items)+size-1)/size {
		return []T{}, meta
	}
	start := (page - 1) * size
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end], meta
}
