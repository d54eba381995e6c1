// internal/services/notification_service.go
package services

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/sirupsen/logrus"

	"github.com/licenseforge/licenseforge/internal/config"
	"github.com/licenseforge/licenseforge/internal/events"
	"github.com/licenseforge/licenseforge/internal/models"
)

// NotificationService subscribes to lifecycle events and sends delivery
// emails. It is an event listener only: repositories handle cascades and
// the core never depends on a notification being sent.
type NotificationService struct {
	events.BaseListener
	config *config.Config
}

const deliveryEmailTemplate = `
<h2>Your license {{if .Count}}keys{{else}}key{{end}} for order #{{.OrderID}}</h2>
<p>Thank you for your purchase. {{.Count}} license key(s) have been issued to your order.</p>
<p>You can view and manage them from your account page.</p>
`

func NewNotificationService(cfg *config.Config) *NotificationService {
	return &NotificationService{config: cfg}
}

func (s *NotificationService) OnLicensesGenerated(licenses []*models.License) {
	if len(licenses) == 0 || licenses[0].OrderID == nil {
		return
	}
	go s.sendDeliveryEmail(*licenses[0].OrderID, len(licenses))
}

func (s *NotificationService) OnLicenseActivated(license *models.License, activation *models.LicenseActivation) {
	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"label":      activation.Label,
		"source":     activation.Source,
	}).Info("License activated")
}

func (s *NotificationService) OnLicenseDeactivated(license *models.License, activation *models.LicenseActivation) {
	logrus.WithFields(logrus.Fields{
		"license_id": license.ID,
		"token":      activation.Token,
	}).Info("License deactivated")
}

func (s *NotificationService) sendDeliveryEmail(orderID int64, count int) {
	if s.config.Email.SMTPUsername == "" {
		logrus.WithField("order_id", orderID).Debug("SMTP not configured, skipping delivery email")
		return
	}

	body, err := renderTemplate(deliveryEmailTemplate, map[string]interface{}{
		"OrderID": orderID,
		"Count":   count,
	})
	if err != nil {
		logrus.WithError(err).Error("Failed to render delivery email")
		return
	}

	subject := fmt.Sprintf("Your license keys for order #%d", orderID)
	if err := s.sendEmail(s.config.Email.DeliveryAddress, subject, body); err != nil {
		logrus.WithError(err).WithField("order_id", orderID).Error("Failed to send delivery email")
	}
}

func (s *NotificationService) sendEmail(to, subject, body string) error {
	auth := smtp.PlainAuth("", s.config.Email.SMTPUsername, s.config.Email.SMTPPassword, s.config.Email.SMTPHost)

	msg := fmt.Sprintf("From: %s <%s>\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.config.Email.FromName, s.config.Email.FromEmail, to, subject, body)

	addr := s.config.Email.SMTPHost + ":" + s.config.Email.SMTPPort
	return smtp.SendMail(addr, auth, s.config.Email.FromEmail, []string{to}, []byte(msg))
}

func renderTemplate(tmpl string, data map[string]interface{}) (string, error) {
	t, err := template.New("email").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
