package services

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

func TestApplyPage(t *testing.T) {
	editor := uuid.New()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	page := &models.ContentPage{}

	err := applyPage(page, &SavePageRequest{
		Title:     " Industrial Automation ",
		Section:   "industries",
		Body:      "<p>Body</p>",
		Published: true,
		SortOrder: 3,
	}, editor, now)
	require.NoError(t, err)

	assert.Equal(t, "industrial-automation", page.Slug)
	assert.Equal(t, "Industrial Automation", page.Title)
	assert.True(t, page.Published)
	require.NotNil(t, page.PublishedAt)
	assert.Equal(t, now, *page.PublishedAt)
	assert.Equal(t, editor, *page.UpdatedBy)
}

func TestSetPublishedKeepsFirstPublication(t *testing.T) {
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	page := &models.ContentPage{Published: true, PublishedAt: &first}

	setPublished(page, false, first.Add(time.Hour))
	assert.False(t, page.Published)
	assert.Equal(t, first, *page.PublishedAt)

	setPublished(page, true, first.Add(2*time.Hour))
	assert.True(t, page.Published)
	assert.Equal(t, first, *page.PublishedAt)
}

func TestApplyPageRequiresSluggableTitle(t *testing.T) {
	err := applyPage(&models.ContentPage{}, &SavePageRequest{Title: "***"}, uuid.New(), time.Now())
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}
