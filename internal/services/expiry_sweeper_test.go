package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/metrics"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

type stubExpirer struct {
	n   int64
	err error
}

func (e stubExpirer) ExpireOverdue(context.Context) (int64, error) {
	return e.n, e.err
}

func TestExpirySweeperRejectsBadSchedule(t *testing.T) {
	_, err := NewExpirySweeper(stubExpirer{}, "every tuesday", time.UTC, nil)
	assert.Error(t, err)

	_, err = NewExpirySweeper(stubExpirer{}, "@daily", nil, nil)
	assert.NoError(t, err)

	_, err = NewExpirySweeper(stubExpirer{}, "30 2 * * *", time.UTC, nil)
	assert.NoError(t, err)
}

func TestExpirySweeperRunOnceRecordsResult(t *testing.T) {
	recorder := metrics.New()

	sweeper, err := NewExpirySweeper(stubExpirer{n: 4}, "@hourly", time.UTC, recorder)
	require.NoError(t, err)
	n, err := sweeper.RunOnce(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 4, n)

	failing, err := NewExpirySweeper(stubExpirer{err: errors.New("db down")}, "@hourly", time.UTC, recorder)
	require.NoError(t, err)
	_, err = failing.RunOnce(context.Background())
	assert.Error(t, err)

	count, err := testutil.GatherAndCount(recorder.Registry(), "cubit_license_expiry_sweeps_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestExpirySweeperExpiresOverdueLicenses(t *testing.T) {
	ctx := context.Background()
	licenses := newMemLicenseRepo()
	orders := newMemOrderRepo()
	clock := &licensing.FixedClock{T: time.Date(2026, 3, 10, 10, 0, 0, 0, time.UTC)}
	service := NewLicenseService(licenses, orders, WithClock(clock))

	owner := uuid.New()
	order := orders.addOrder(owner)
	product := orders.addProduct("designer", licensing.ProductDesigner)

	short, err := service.CreateLicenses(ctx, &CreateLicensesRequest{
		OwnerID: owner, OrderID: order.ID, ProductID: product.ID, Quantity: 2,
		ValidityType: "CUSTOM_DATE", CustomValidityDate: "2026-03-12",
	})
	require.NoError(t, err)
	lifetime, err := service.CreateLicenses(ctx, &CreateLicensesRequest{
		OwnerID: owner, OrderID: order.ID, ProductID: product.ID, Quantity: 1,
		ValidityType: "LIFETIME",
	})
	require.NoError(t, err)

	sweeper, err := NewExpirySweeper(service, "@daily", time.UTC, nil)
	require.NoError(t, err)

	n, err := sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	clock.Set(time.Date(2026, 3, 13, 0, 0, 0, 0, time.UTC))
	n, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, l := range short {
		assert.Equal(t, models.LicenseStatusExpired, licenses.get(l.ID).LicenseStatus)
	}
	assert.Equal(t, models.LicenseStatusInactive, licenses.get(lifetime[0].ID).LicenseStatus)

	n, err = sweeper.RunOnce(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}
