// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"net/url"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/cubitdynamics/cubit-backend/internal/config"
	"github.com/cubitdynamics/cubit-backend/internal/models"
)

// OrderNotifier is told about checkout milestones.
type OrderNotifier interface {
	SendPurchaseConfirmation(order *models.Order, licenses []models.License) error
	SendRefundNotification(order *models.Order) error
	NotifyAdminNewOrder(order *models.Order) error
}

type NotificationService struct {
	db     *gorm.DB
	config *config.Config
}

type EmailTemplate struct {
	Subject string
	Body    string
}

func NewNotificationService(db *gorm.DB, config *config.Config) *NotificationService {
	return &NotificationService{
		db:     db,
		config: config,
	}
}

func (s *NotificationService) SendWelcomeEmail(user *models.User) error {
	data := map[string]interface{}{
		"Username":   user.Username,
		"AccountURL": s.config.Frontend.BaseURL + "/account",
		"StoreName":  s.config.Email.FromName,
	}
	return s.send(user.Email, "welcome", data)
}

// SendPurchaseConfirmation lists the issued seats. Keys are bound to a machine
// at activation, so the email explains how to activate rather than quoting
// placeholder keys.
func (s *NotificationService) SendPurchaseConfirmation(order *models.Order, licenses []models.License) error {
	type seat struct {
		Product    string
		Expiration string
	}
	seats := make([]seat, 0, len(licenses))
	for _, l := range licenses {
		seats = append(seats, seat{
			Product:    string(l.ProductName),
			Expiration: l.ExpirationDate.Format("2006-01-02"),
		})
	}

	data := map[string]interface{}{
		"OrderID":     order.ID,
		"Total":       fmt.Sprintf("%.2f %s", order.Total, order.Currency),
		"Items":       order.Items,
		"Seats":       seats,
		"LicensesURL": s.config.Frontend.BaseURL + "/account/licenses",
		"StoreName":   s.config.Email.FromName,
	}
	return s.send(order.BillingEmail, "purchase_confirmation", data)
}

func (s *NotificationService) SendRefundNotification(order *models.Order) error {
	data := map[string]interface{}{
		"OrderID":   order.ID,
		"Total":     fmt.Sprintf("%.2f %s", order.Total, order.Currency),
		"Reason":    order.RefundReason,
		"StoreName": s.config.Email.FromName,
	}
	return s.send(order.BillingEmail, "refund", data)
}

func (s *NotificationService) SendPasswordReset(user *models.User, token string) error {
	data := map[string]interface{}{
		"Username":  user.Username,
		"ResetURL":  s.config.Frontend.BaseURL + "/reset-password?token=" + url.QueryEscape(token),
		"StoreName": s.config.Email.FromName,
	}
	return s.send(user.Email, "password_reset", data)
}

func (s *NotificationService) SendUserStatusChangeNotification(user *models.User, reason string) error {
	data := map[string]interface{}{
		"Username":  user.Username,
		"Status":    user.Status,
		"Reason":    reason,
		"StoreName": s.config.Email.FromName,
	}
	return s.send(user.Email, "user_status", data)
}

// NotifyAdminNewOrder records an in-app notification and mails the admin
// address when configured.
func (s *NotificationService) NotifyAdminNewOrder(order *models.Order) error {
	notification := &models.AdminNotification{
		Type:                "new_order",
		Title:               "New order",
		Message:             fmt.Sprintf("Order %s paid: %.2f %s", order.ID, order.Total, order.Currency),
		Priority:            "medium",
		RelatedResourceType: "order",
		RelatedResourceID:   &order.ID,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	if s.config.Email.AdminEmail == "" {
		return nil
	}
	return s.sendEmail(s.config.Email.AdminEmail, notification.Title, "<p>"+template.HTMLEscapeString(notification.Message)+"</p>")
}

func (s *NotificationService) send(to, templateType string, data interface{}) error {
	tmpl := getEmailTemplate(templateType)
	body, err := renderTemplate(tmpl.Body, data)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}
	return s.sendEmail(to, tmpl.Subject, body)
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	if to == "" {
		return nil
	}
	if s.config.Email.SMTPHost == "" {
		// Email not configured, just log
		logrus.WithFields(logrus.Fields{"to": to, "subject": subject}).Info("Email not sent: SMTP not configured")
		return nil
	}

	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	from := s.config.Email.FromEmail
	if s.config.Email.FromName != "" {
		from = fmt.Sprintf("%s <%s>", s.config.Email.FromName, s.config.Email.FromEmail)
	}
	msg := []byte(fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=\"UTF-8\"\r\n\r\n%s", from, to, subject, body))

	addr := fmt.Sprintf("%s:%s", s.config.Email.SMTPHost, s.config.Email.SMTPPort)
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, msg)
}

func renderTemplate(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("email").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}

	return buf.String(), nil
}

var emailTemplates = map[string]EmailTemplate{
	"welcome": {
		Subject: "Welcome to CuBIT Dynamics",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Welcome {{.Username}}!</h2>
	<p>Your account is ready. Purchased software licenses will appear under your account.</p>
	<a href="{{.AccountURL}}">Go to my account</a>
	<p>Best regards,<br>{{.StoreName}}</p>
</body>
</html>`,
	},
	"purchase_confirmation": {
		Subject: "Your CuBIT Dynamics order",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Thank you for your order</h2>
	<p>Order {{.OrderID}} total: {{.Total}}</p>
	<ul>
	{{range .Items}}<li>{{.ProductName}} x {{.Quantity}}</li>{{end}}
	</ul>
	{{if .Seats}}
	<p>The following licenses were issued. Launch the application on the machine you want to license and activate it from your account.</p>
	<ul>
	{{range .Seats}}<li>{{.Product}} (valid until {{.Expiration}})</li>{{end}}
	</ul>
	<a href="{{.LicensesURL}}">Manage licenses</a>
	{{end}}
	<p>Best regards,<br>{{.StoreName}}</p>
</body>
</html>`,
	},
	"refund": {
		Subject: "Your order was refunded",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<h2>Refund processed</h2>
	<p>Order {{.OrderID}} ({{.Total}}) has been refunded.</p>
	{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
	<p>Best regards,<br>{{.StoreName}}</p>
</body>
</html>`,
	},
	"password_reset": {
		Subject: "Reset your password",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Username}},</p>
	<p>Use the link below to choose a new password. It expires in one hour.</p>
	<a href="{{.ResetURL}}">Reset password</a>
	<p>If you did not ask for this, ignore this email.</p>
	<p>Best regards,<br>{{.StoreName}}</p>
</body>
</html>`,
	},
	"user_status": {
		Subject: "Your account status changed",
		Body: `
<!DOCTYPE html>
<html>
<body>
	<p>Hello {{.Username}},</p>
	<p>Your account is now {{.Status}}.</p>
	{{if .Reason}}<p>Reason: {{.Reason}}</p>{{end}}
	<p>Best regards,<br>{{.StoreName}}</p>
</body>
</html>`,
	},
}

func getEmailTemplate(templateType string) EmailTemplate {
	if tmpl, exists := emailTemplates[templateType]; exists {
		return tmpl
	}

	// Default template
	return EmailTemplate{
		Subject: "Notification",
		Body:    "<p>{{.Message}}</p>",
	}
}
