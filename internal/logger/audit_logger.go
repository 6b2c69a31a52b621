// Package logger provides audit logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// AuditLogger provides dedicated audit trail logging for account events.
type AuditLogger struct {
	*logrus.Entry
}

// NewAuditLogger creates a new audit logger.
func NewAuditLogger(baseLogger *logrus.Logger) *AuditLogger {
	return &AuditLogger{
		Entry: baseLogger.WithField("component", "audit"),
	}
}

// LogRegistration logs a new account.
func (al *AuditLogger) LogRegistration(userID, email string) {
	al.WithFields(logrus.Fields{
		"user_id":    userID,
		"email":      email,
		"event_type": "register",
	}).Info("User registered")
}

// LogLogin logs a successful login.
func (al *AuditLogger) LogLogin(userID, email string) {
	al.WithFields(logrus.Fields{
		"user_id":    userID,
		"email":      email,
		"event_type": "login",
	}).Info("User logged in")
}

// LogLoginFailure logs a rejected login. The reason is never sent to the client.
func (al *AuditLogger) LogLoginFailure(email, reason string) {
	al.WithFields(logrus.Fields{
		"email":      email,
		"reason":     reason,
		"event_type": "login_failure",
	}).Warn("Login rejected")
}

// LogTokenRefresh logs a refresh token rotation.
func (al *AuditLogger) LogTokenRefresh(userID string) {
	al.WithFields(logrus.Fields{
		"user_id":    userID,
		"event_type": "refresh",
	}).Info("Refresh token rotated")
}

// LogRefreshRejected logs a refresh attempt that issued no token.
func (al *AuditLogger) LogRefreshRejected(reason string) {
	al.WithFields(logrus.Fields{
		"reason":     reason,
		"event_type": "refresh_failure",
	}).Warn("Refresh rejected")
}

// LogLogout logs a revoked refresh token.
func (al *AuditLogger) LogLogout(userID string) {
	al.WithFields(logrus.Fields{
		"user_id":    userID,
		"event_type": "logout",
	}).Info("User logged out")
}
