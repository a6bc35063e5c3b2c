package services

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cubitdynamics/cubit-backend/internal/licensing"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/repository"
)

// memLicenseRepo mirrors the postgres constraints: unique activation_key and
// unique (system_identifier, product_name) among active rows.
type memLicenseRepo struct {
	mu      sync.Mutex
	records []*models.License
	saveErr error
	// insertErr fails the next insert only.
	insertErr error
}

func newMemLicenseRepo() *memLicenseRepo {
	return &memLicenseRepo{}
}

func (r *memLicenseRepo) FindByID(_ context.Context, id uuid.UUID) (*models.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			cp := *rec
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memLicenseRepo) FindOne(_ context.Context, f repository.LicenseFilter) (*models.License, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var match *models.License
	for _, rec := range r.records {
		if !matches(rec, f) {
			continue
		}
		if match == nil || (rec.IsActive() && !match.IsActive()) {
			match = rec
		}
	}
	if match == nil {
		return nil, repository.ErrNotFound
	}
	cp := *match
	return &cp, nil
}

func (r *memLicenseRepo) Insert(_ context.Context, license *models.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.insertErr; err != nil {
		r.insertErr = nil
		return err
	}
	if license.ID == uuid.Nil {
		license.ID = uuid.New()
	}
	if err := r.checkUnique(license); err != nil {
		return err
	}
	now := time.Now()
	license.CreatedAt, license.UpdatedAt = now, now
	cp := *license
	r.records = append(r.records, &cp)
	return nil
}

func (r *memLicenseRepo) Save(_ context.Context, license *models.License) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}
	if err := r.checkUnique(license); err != nil {
		return err
	}
	for i, rec := range r.records {
		if rec.ID == license.ID {
			license.UpdatedAt = time.Now()
			cp := *license
			r.records[i] = &cp
			return nil
		}
	}
	cp := *license
	r.records = append(r.records, &cp)
	return nil
}

func (r *memLicenseRepo) List(_ context.Context, f repository.LicenseFilter, opts repository.ListOptions) ([]models.License, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []models.License
	for _, rec := range r.records {
		if matches(rec, f) {
			out = append(out, *rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, int64(len(out)), nil
}

func (r *memLicenseRepo) ExpireBefore(_ context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.records {
		if rec.LicenseStatus != models.LicenseStatusExpired && rec.ExpirationDate.Before(cutoff) {
			rec.MarkExpired()
			n++
		}
	}
	return n, nil
}

func (r *memLicenseRepo) expireOrder(orderID uuid.UUID) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	var n int64
	for _, rec := range r.records {
		if rec.OrderID != nil && *rec.OrderID == orderID && rec.MarkExpired() {
			n++
		}
	}
	return n
}

func (r *memLicenseRepo) get(id uuid.UUID) models.License {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.records {
		if rec.ID == id {
			return *rec
		}
	}
	return models.License{}
}

func (r *memLicenseRepo) checkUnique(license *models.License) error {
	for _, rec := range r.records {
		if rec.ID == license.ID {
			continue
		}
		if rec.ActivationKey == license.ActivationKey {
			return repository.ErrDuplicateKey
		}
		if license.IsActive() && rec.IsActive() &&
			rec.SystemIdentifier == license.SystemIdentifier &&
			rec.ProductName == license.ProductName {
			return repository.ErrDuplicateKey
		}
	}
	return nil
}

func matches(rec *models.License, f repository.LicenseFilter) bool {
	switch {
	case f.ID != nil && rec.ID != *f.ID:
		return false
	case f.OwnerID != nil && rec.OwnerID != *f.OwnerID:
		return false
	case f.OrderID != nil && (rec.OrderID == nil || *rec.OrderID != *f.OrderID):
		return false
	case f.ProductID != nil && (rec.ProductID == nil || *rec.ProductID != *f.ProductID):
		return false
	case f.ExcludeID != nil && rec.ID == *f.ExcludeID:
		return false
	case f.SystemIdentifier != "" && rec.SystemIdentifier != f.SystemIdentifier:
		return false
	case f.ProductName != "" && rec.ProductName != f.ProductName:
		return false
	case f.ActivationKey != "" && rec.ActivationKey != f.ActivationKey:
		return false
	case f.LicenseStatus != "" && rec.LicenseStatus != f.LicenseStatus:
		return false
	}
	return true
}

type memOrderRepo struct {
	mu           sync.Mutex
	orders       map[uuid.UUID]*models.Order
	products     map[uuid.UUID]*models.Product
	users        map[uuid.UUID]*models.User
	transactions []models.Transaction
	saveErr      error
	// licenses receives refund revocations when set.
	licenses *memLicenseRepo
}

func newMemOrderRepo() *memOrderRepo {
	return &memOrderRepo{
		orders:   make(map[uuid.UUID]*models.Order),
		products: make(map[uuid.UUID]*models.Product),
		users:    make(map[uuid.UUID]*models.User),
	}
}

func (r *memOrderRepo) FindUser(_ context.Context, id uuid.UUID) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memOrderRepo) addUser() *models.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &models.User{Email: "owner@example.com", Username: "owner", UserType: models.UserTypeCustomer}
	u.ID = uuid.New()
	r.users[u.ID] = u
	return u
}

func (r *memOrderRepo) FindOrder(_ context.Context, id uuid.UUID) (*models.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memOrderRepo) FindProduct(_ context.Context, id uuid.UUID) (*models.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *memOrderRepo) CreateOrder(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	order.ID = uuid.New()
	for i := range order.Items {
		order.Items[i].ID = uuid.New()
		order.Items[i].OrderID = order.ID
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

func (r *memOrderRepo) SaveOrder(_ context.Context, order *models.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	cp := *order
	r.orders[order.ID] = &cp
	return nil
}

// SaveRefund leaves the seats untouched when the order save fails, like the
// rolled back transaction.
func (r *memOrderRepo) SaveRefund(ctx context.Context, order *models.Order) (int64, error) {
	if err := r.SaveOrder(ctx, order); err != nil {
		return 0, err
	}
	if r.licenses == nil {
		return 0, nil
	}
	return r.licenses.expireOrder(order.ID), nil
}

func (r *memOrderRepo) GetOrder(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return r.FindOrder(ctx, id)
}

func (r *memOrderRepo) ListOrders(_ context.Context, f repository.OrderFilter, _ repository.ListOptions) ([]models.Order, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Order
	for _, o := range r.orders {
		if f.OwnerID != nil && o.OwnerID != *f.OwnerID {
			continue
		}
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		out = append(out, *o)
	}
	return out, int64(len(out)), nil
}

func (r *memOrderRepo) RecordTransaction(_ context.Context, txn *models.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	txn.ID = uuid.New()
	r.transactions = append(r.transactions, *txn)
	return nil
}

func (r *memOrderRepo) IncrementSales(_ context.Context, productID uuid.UUID, quantity int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if p, ok := r.products[productID]; ok {
		p.SalesCount += int64(quantity)
	}
	return nil
}

func (r *memOrderRepo) addOrder(owner uuid.UUID) *models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	o := &models.Order{OwnerID: owner, Status: models.OrderStatusPaid}
	o.ID = uuid.New()
	r.orders[o.ID] = o
	return o
}

func (r *memOrderRepo) addProduct(name string, licensed licensing.ProductName) *models.Product {
	r.mu.Lock()
	defer r.mu.Unlock()
	p := &models.Product{Name: name, Slug: name, Price: 99, Status: models.ProductStatusActive}
	p.ID = uuid.New()
	if licensed != "" {
		p.LicensedProduct = &licensed
	}
	r.products[p.ID] = p
	return p
}

func (r *memOrderRepo) order(id uuid.UUID) models.Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	if o, ok := r.orders[id]; ok {
		return *o
	}
	return models.Order{}
}

func (r *memOrderRepo) transactionsFor(id uuid.UUID) []models.Transaction {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.Transaction
	for _, t := range r.transactions {
		if t.OrderID == id {
			out = append(out, t)
		}
	}
	return out
}

// recordingNotifier captures the notifications sent during checkout.
type recordingNotifier struct {
	mu            sync.Mutex
	confirmations int
	seats         int
	refunds       int
	adminNotices  int
}

func (n *recordingNotifier) SendPurchaseConfirmation(_ *models.Order, licenses []models.License) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.confirmations++
	n.seats += len(licenses)
	return nil
}

func (n *recordingNotifier) SendRefundNotification(_ *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.refunds++
	return nil
}

func (n *recordingNotifier) NotifyAdminNewOrder(_ *models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adminNotices++
	return nil
}

// brokenGateway fails every call with a transport error.
type brokenGateway struct{}

func (brokenGateway) Name() string { return "broken" }

func (brokenGateway) Charge(context.Context, ChargeRequest) (*ChargeResult, error) {
	return nil, errors.New("connection reset")
}

func (brokenGateway) Refund(context.Context, RefundRequest) (string, error) {
	return "", errors.New("connection reset")
}
