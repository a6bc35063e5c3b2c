package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

func TestMakeSlug(t *testing.T) {
	assert.Equal(t, "cubit-designer-pro", makeSlug("", "CuBIT Designer Pro"))
	assert.Equal(t, "designer", makeSlug("  Designer ", "CuBIT Designer Pro"))
	assert.Equal(t, "diseno-optimo", makeSlug("", "Diseño Óptimo"))
	assert.Empty(t, makeSlug("", "!!!"))
}

func TestProductUpdates(t *testing.T) {
	name := " Analyzer Suite "
	price := 149.999
	empty := ""
	status := models.ProductStatusActive

	updates, err := productUpdates(&UpdateProductRequest{
		Name:            &name,
		Price:           &price,
		LicensedProduct: &empty,
		Status:          &status,
		Features:        []string{"Batch mode"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Analyzer Suite", updates["name"])
	assert.Equal(t, 150.0, updates["price"])
	assert.Nil(t, updates["licensed_product"])
	assert.Contains(t, updates, "licensed_product")
	assert.Equal(t, models.ProductStatusActive, updates["status"])
	assert.NotContains(t, updates, "description")
	assert.NotContains(t, updates, "images")
}

func TestProductUpdatesRejectsEmptySlug(t *testing.T) {
	bad := "???"
	_, err := productUpdates(&UpdateProductRequest{Slug: &bad})
	assert.Equal(t, apperrors.KindValidation, apperrors.KindOf(err))
}

func TestProductUpdatesEmpty(t *testing.T) {
	updates, err := productUpdates(&UpdateProductRequest{})
	require.NoError(t, err)
	assert.Empty(t, updates)
}

func TestRoundPrice(t *testing.T) {
	assert.Equal(t, 99.99, roundPrice(99.994))
	assert.Equal(t, 0.3, roundPrice(0.1+0.2))
}
