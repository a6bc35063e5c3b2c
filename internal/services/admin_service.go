// internal/services/admin_service.go
package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/apperrors"
	"github.com/cubitdynamics/cubit-backend/internal/models"
	"github.com/cubitdynamics/cubit-backend/internal/utils"
)

// Metric names stored in platform_analytics.
const (
	MetricUserRegistrations = "user_registrations"
	MetricOrdersPaid        = "orders_paid"
	MetricRevenue           = "revenue"
	MetricLicensesIssued    = "licenses_issued"
	MetricLicensesActivated = "licenses_activated"
)

var analyticsMetrics = []string{
	MetricUserRegistrations,
	MetricOrdersPaid,
	MetricRevenue,
	MetricLicensesIssued,
	MetricLicensesActivated,
}

type AdminService struct {
	db                  *gorm.DB
	notificationService *NotificationService
}

type AdminDashboardStats struct {
	TotalUsers        int64                          `json:"total_users"`
	ActiveUsers       int64                          `json:"active_users"`
	NewUsersThisMonth int64                          `json:"new_users_this_month"`
	TotalOrders       int64                          `json:"total_orders"`
	PendingOrders     int64                          `json:"pending_orders"`
	FulfilledOrders   int64                          `json:"fulfilled_orders"`
	TotalRevenue      float64                        `json:"total_revenue"`
	MonthlyRevenue    float64                        `json:"monthly_revenue"`
	ActiveProducts    int64                          `json:"active_products"`
	LicensesByStatus  map[models.LicenseStatus]int64 `json:"licenses_by_status"`
	UnreadAlerts      int64                          `json:"unread_notifications"`
	UserGrowth        float64                        `json:"user_growth"`
	RevenueGrowth     float64                        `json:"revenue_growth"`
}

type AdminUserFilter struct {
	utils.PaginationParams
	UserType      *models.UserType   `json:"user_type,omitempty"`
	Status        *models.UserStatus `json:"status,omitempty"`
	CreatedAfter  *time.Time         `json:"created_after,omitempty"`
	CreatedBefore *time.Time         `json:"created_before,omitempty"`
}

type AuditLogFilter struct {
	utils.PaginationParams
	UserID       *uuid.UUID `json:"user_id,omitempty"`
	ResourceType string     `json:"resource_type,omitempty"`
	ResourceID   *uuid.UUID `json:"resource_id,omitempty"`
}

type UpdateUserStatusRequest struct {
	Status models.UserStatus `json:"status" validate:"required,oneof=active suspended"`
	Reason string            `json:"reason" validate:"max=500"`
}

type UpdateSettingRequest struct {
	Category    string      `json:"category" validate:"required,max=50"`
	Key         string      `json:"key" validate:"required,max=100"`
	Value       interface{} `json:"value"`
	DataType    string      `json:"data_type" validate:"required,oneof=string number boolean json"`
	Description string      `json:"description,omitempty"`
}

func NewAdminService(db *gorm.DB, notificationService *NotificationService) *AdminService {
	return &AdminService{
		db:                  db,
		notificationService: notificationService,
	}
}

// Dashboard Statistics
func (s *AdminService) GetDashboardStats(ctx context.Context) (*AdminDashboardStats, error) {
	db := s.db.WithContext(ctx)
	stats := &AdminDashboardStats{LicensesByStatus: make(map[models.LicenseStatus]int64)}
	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	lastMonthStart := monthStart.AddDate(0, -1, 0)

	counts := []struct {
		query *gorm.DB
		dest  *int64
	}{
		{db.Model(&models.User{}), &stats.TotalUsers},
		{db.Model(&models.User{}).Where("status = ?", models.UserStatusActive), &stats.ActiveUsers},
		{db.Model(&models.User{}).Where("created_at >= ?", monthStart), &stats.NewUsersThisMonth},
		{db.Model(&models.Order{}), &stats.TotalOrders},
		{db.Model(&models.Order{}).Where("status = ?", models.OrderStatusPending), &stats.PendingOrders},
		{db.Model(&models.Order{}).Where("status = ?", models.OrderStatusFulfilled), &stats.FulfilledOrders},
		{db.Model(&models.Product{}).Where("status = ?", models.ProductStatusActive), &stats.ActiveProducts},
		{db.Model(&models.AdminNotification{}).Where("status = ?", "unread"), &stats.UnreadAlerts},
	}
	for _, c := range counts {
		if err := c.query.Count(c.dest).Error; err != nil {
			return nil, apperrors.Internal("failed to compute dashboard stats", err)
		}
	}

	var byStatus []struct {
		LicenseStatus models.LicenseStatus
		Count         int64
	}
	if err := db.Model(&models.License{}).
		Select("license_status, COUNT(*) AS count").
		Group("license_status").
		Scan(&byStatus).Error; err != nil {
		return nil, apperrors.Internal("failed to count licenses", err)
	}
	for _, row := range byStatus {
		stats.LicensesByStatus[row.LicenseStatus] = row.Count
	}

	var err error
	if stats.TotalRevenue, err = s.netRevenue(db, time.Time{}, time.Time{}); err != nil {
		return nil, err
	}
	if stats.MonthlyRevenue, err = s.netRevenue(db, monthStart, time.Time{}); err != nil {
		return nil, err
	}
	lastMonthRevenue, err := s.netRevenue(db, lastMonthStart, monthStart)
	if err != nil {
		return nil, err
	}

	var lastMonthUsers int64
	if err := db.Model(&models.User{}).
		Where("created_at >= ? AND created_at < ?", lastMonthStart, monthStart).
		Count(&lastMonthUsers).Error; err != nil {
		return nil, apperrors.Internal("failed to count users", err)
	}

	stats.UserGrowth = growth(float64(stats.NewUsersThisMonth), float64(lastMonthUsers))
	stats.RevenueGrowth = growth(stats.MonthlyRevenue, lastMonthRevenue)

	return stats, nil
}

// netRevenue sums completed charges minus completed refunds processed in
// [from, to). Zero bounds are open.
func (s *AdminService) netRevenue(db *gorm.DB, from, to time.Time) (float64, error) {
	sum := func(kind models.TransactionType) (float64, error) {
		query := db.Model(&models.Transaction{}).
			Where("status = ? AND transaction_type = ?", models.TransactionStatusCompleted, kind)
		if !from.IsZero() {
			query = query.Where("created_at >= ?", from)
		}
		if !to.IsZero() {
			query = query.Where("created_at < ?", to)
		}
		var total float64
		err := query.Select("COALESCE(SUM(amount), 0)").Scan(&total).Error
		return total, err
	}

	charges, err := sum(models.TransactionTypeCharge)
	if err != nil {
		return 0, apperrors.Internal("failed to sum charges", err)
	}
	refunds, err := sum(models.TransactionTypeRefund)
	if err != nil {
		return 0, apperrors.Internal("failed to sum refunds", err)
	}
	return roundPrice(charges - refunds), nil
}

// growth is the percentage change from previous to current.
func growth(current, previous float64) float64 {
	if previous <= 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// User Management
func (s *AdminService) GetUsers(ctx context.Context, filter AdminUserFilter) ([]models.User, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.User{})

	if filter.UserType != nil {
		query = query.Where("user_type = ?", *filter.UserType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Search != "" {
		searchTerm := "%" + filter.Search + "%"
		query = query.Where("username ILIKE ? OR email ILIKE ? OR company ILIKE ?", searchTerm, searchTerm, searchTerm)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at >= ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at <= ?", *filter.CreatedBefore)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count users", err)
	}

	allowedSortFields := []string{"created_at", "updated_at", "username", "email", "user_type", "status", "last_login_at"}
	query = utils.ApplySort(query, filter.PaginationParams, allowedSortFields)
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var users []models.User
	if err := query.Find(&users).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to fetch users", err)
	}

	return users, total, nil
}

// UpdateUserStatus suspends or reactivates a customer account.
func (s *AdminService) UpdateUserStatus(ctx context.Context, userID uuid.UUID, adminID uuid.UUID, req *UpdateUserStatusRequest) (*models.User, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}

	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user not found")
		}
		return nil, apperrors.Internal("database error", err)
	}

	if user.IsAdmin() {
		return nil, apperrors.Validation("cannot modify admin user status")
	}

	oldStatus := user.Status
	if oldStatus == req.Status {
		return &user, nil
	}
	user.Status = req.Status

	if err := s.db.WithContext(ctx).Model(&user).Update("status", user.Status).Error; err != nil {
		return nil, apperrors.Internal("failed to update user status", err)
	}

	s.createAuditLog(ctx, adminID, "UPDATE_USER_STATUS", "user", &userID,
		map[string]interface{}{"status": oldStatus},
		map[string]interface{}{"status": req.Status, "reason": req.Reason})

	if s.notificationService != nil {
		go func() {
			if err := s.notificationService.SendUserStatusChangeNotification(&user, req.Reason); err != nil {
				logrus.WithError(err).WithField("user_id", user.ID).Warn("Failed to send status change email")
			}
		}()
	}

	return &user, nil
}

// Settings Management
func (s *AdminService) GetSettings(ctx context.Context) (map[string]models.AdminSettings, error) {
	var settings []models.AdminSettings
	if err := s.db.WithContext(ctx).Order("category, key").Find(&settings).Error; err != nil {
		return nil, apperrors.Internal("failed to fetch settings", err)
	}

	settingsMap := make(map[string]models.AdminSettings, len(settings))
	for _, setting := range settings {
		settingsMap[fmt.Sprintf("%s.%s", setting.Category, setting.Key)] = setting
	}

	return settingsMap, nil
}

// UpdateSetting creates or replaces one setting. Values are stored as
// {"value": ...} so scalars fit the JSONB column.
func (s *AdminService) UpdateSetting(ctx context.Context, adminID uuid.UUID, req *UpdateSettingRequest) (*models.AdminSettings, error) {
	if err := utils.ValidateStruct(req); err != nil {
		return nil, invalidRequest(err)
	}
	if err := checkSettingType(req.DataType, req.Value); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	var setting models.AdminSettings
	err := db.Where("category = ? AND key = ?", req.Category, req.Key).First(&setting).Error

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		setting = models.AdminSettings{
			Category:    req.Category,
			Key:         req.Key,
			Value:       models.JSONB{"value": req.Value},
			DataType:    req.DataType,
			Description: req.Description,
			UpdatedBy:   adminID,
		}
		if err := db.Create(&setting).Error; err != nil {
			return nil, apperrors.Internal("failed to create setting", err)
		}
		s.createAuditLog(ctx, adminID, "CREATE_SETTING", "admin_setting", &setting.ID,
			nil, map[string]interface{}{"value": setting.Value})
	case err != nil:
		return nil, apperrors.Internal("database error", err)
	default:
		oldValue := setting.Value
		setting.Value = models.JSONB{"value": req.Value}
		setting.DataType = req.DataType
		setting.UpdatedBy = adminID
		if req.Description != "" {
			setting.Description = req.Description
		}

		if err := db.Omit("UpdatedByUser").Save(&setting).Error; err != nil {
			return nil, apperrors.Internal("failed to update setting", err)
		}

		s.createAuditLog(ctx, adminID, "UPDATE_SETTING", "admin_setting", &setting.ID,
			map[string]interface{}{"value": oldValue},
			map[string]interface{}{"value": setting.Value})
	}

	return &setting, nil
}

func checkSettingType(dataType string, value interface{}) error {
	ok := true
	switch dataType {
	case "string":
		_, ok = value.(string)
	case "number":
		_, ok = value.(float64)
	case "boolean":
		_, ok = value.(bool)
	}
	if !ok {
		return apperrors.Validationf("value does not match data type %q", dataType)
	}
	return nil
}

// Audit log
func (s *AdminService) GetAuditLogs(ctx context.Context, filter AuditLogFilter) ([]models.AuditLog, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AuditLog{})

	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.ResourceType != "" {
		query = query.Where("resource_type = ?", filter.ResourceType)
	}
	if filter.ResourceID != nil {
		query = query.Where("resource_id = ?", *filter.ResourceID)
	}
	if filter.Search != "" {
		query = query.Where("action ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count audit logs", err)
	}

	query = utils.ApplySort(query, filter.PaginationParams, []string{"created_at", "action", "resource_type"})
	query = utils.ApplyPagination(query, filter.PaginationParams)

	var logs []models.AuditLog
	if err := query.Preload("User").Find(&logs).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to fetch audit logs", err)
	}
	return logs, total, nil
}

// Notifications
func (s *AdminService) GetNotifications(ctx context.Context, params utils.PaginationParams, status string) ([]models.AdminNotification, int64, error) {
	query := s.db.WithContext(ctx).Model(&models.AdminNotification{})
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to count notifications", err)
	}

	query = utils.ApplySort(query, params, []string{"created_at", "priority"})
	query = utils.ApplyPagination(query, params)

	var notifications []models.AdminNotification
	if err := query.Find(&notifications).Error; err != nil {
		return nil, 0, apperrors.Internal("failed to fetch notifications", err)
	}
	return notifications, total, nil
}

func (s *AdminService) MarkNotificationRead(ctx context.Context, id uuid.UUID) error {
	now := time.Now()
	result := s.db.WithContext(ctx).Model(&models.AdminNotification{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{"status": "read", "read_at": now})
	if result.Error != nil {
		return apperrors.Internal("failed to update notification", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.NotFound("notification not found")
	}
	return nil
}

// Analytics and Reporting
func (s *AdminService) GetAnalytics(ctx context.Context, startDate, endDate time.Time, metrics []string) (map[string]interface{}, error) {
	if !endDate.After(startDate) {
		return nil, apperrors.Validation("end date must be after start date")
	}
	if len(metrics) == 0 {
		metrics = analyticsMetrics
	}

	db := s.db.WithContext(ctx)
	analytics := make(map[string]interface{}, len(metrics))
	for _, metric := range metrics {
		value, err := s.metricValue(db, metric, startDate, endDate)
		if err != nil {
			return nil, err
		}
		analytics[metric] = value
	}
	return analytics, nil
}

func (s *AdminService) metricValue(db *gorm.DB, metric string, from, to time.Time) (float64, error) {
	var count int64
	var err error
	switch metric {
	case MetricUserRegistrations:
		err = db.Model(&models.User{}).
			Where("created_at >= ? AND created_at < ?", from, to).
			Count(&count).Error
	case MetricOrdersPaid:
		err = db.Model(&models.Order{}).
			Where("paid_at >= ? AND paid_at < ?", from, to).
			Count(&count).Error
	case MetricRevenue:
		return s.netRevenue(db, from, to)
	case MetricLicensesIssued:
		err = db.Model(&models.License{}).
			Where("purchase_date >= ? AND purchase_date < ?", from, to).
			Count(&count).Error
	case MetricLicensesActivated:
		err = db.Model(&models.License{}).
			Where("activated_at >= ? AND activated_at < ?", from, to).
			Count(&count).Error
	default:
		return 0, apperrors.Validationf("unknown metric %q", metric)
	}
	if err != nil {
		return 0, apperrors.Internal("failed to compute "+metric, err)
	}
	return float64(count), nil
}

// SnapshotDailyAnalytics stores the metrics of the day containing day,
// replacing an earlier snapshot of the same day.
func (s *AdminService) SnapshotDailyAnalytics(ctx context.Context, day time.Time) ([]models.PlatformAnalytics, error) {
	start := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	end := start.AddDate(0, 0, 1)

	values, err := s.GetAnalytics(ctx, start, end, analyticsMetrics)
	if err != nil {
		return nil, err
	}

	snapshot := make([]models.PlatformAnalytics, 0, len(analyticsMetrics))
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("metric_date = ? AND metric_period = ?", start, "daily").
			Delete(&models.PlatformAnalytics{}).Error; err != nil {
			return err
		}
		for _, name := range analyticsMetrics {
			snapshot = append(snapshot, models.PlatformAnalytics{
				MetricName:   name,
				MetricValue:  values[name].(float64),
				MetricDate:   start,
				MetricPeriod: "daily",
			})
		}
		return tx.Create(&snapshot).Error
	})
	if err != nil {
		return nil, apperrors.Internal("failed to store analytics snapshot", err)
	}
	return snapshot, nil
}

func (s *AdminService) GetAnalyticsHistory(ctx context.Context, metric string, from, to time.Time) ([]models.PlatformAnalytics, error) {
	query := s.db.WithContext(ctx).Where("metric_period = ? AND metric_date >= ? AND metric_date <= ?", "daily", from, to)
	if metric != "" {
		query = query.Where("metric_name = ?", metric)
	}

	var history []models.PlatformAnalytics
	if err := query.Order("metric_date ASC, metric_name ASC").Find(&history).Error; err != nil {
		return nil, apperrors.Internal("failed to fetch analytics history", err)
	}
	return history, nil
}

func (s *AdminService) createAuditLog(ctx context.Context, userID uuid.UUID, action, resourceType string, resourceID *uuid.UUID, oldValues, newValues map[string]interface{}) {
	auditLog := &models.AuditLog{
		UserID:       &userID,
		Action:       action,
		ResourceType: resourceType,
		ResourceID:   resourceID,
		OldValues:    models.JSONB(oldValues),
		NewValues:    models.JSONB(newValues),
	}

	if err := s.db.WithContext(ctx).Omit("User").Create(auditLog).Error; err != nil {
		logrus.WithError(err).WithField("action", action).Warn("Failed to write audit log")
	}
}
