// Package logger provides strategy-specific logging.
package logger

import (
	"github.com/sirupsen/logrus"
)

// StrategyLogger provides dedicated logging for strategy operations.
type StrategyLogger struct {
	*logrus.Entry
}

// NewStrategyLogger creates a new strategy logger.
func NewStrategyLogger(baseLogger *logrus.Logger) *StrategyLogger {
	return &StrategyLogger{
		Entry: baseLogger.WithField("component", "strategy"),
	}
}

// LogStrategyCreated logs a new strategy.
func (sl *StrategyLogger) LogStrategyCreated(strategyID, userID, strategyName string, codeBytes int) {
	sl.WithFields(logrus.Fields{
		"strategy_id":   strategyID,
		"user_id":       userID,
		"strategy_name": strategyName,
		"code_bytes":    codeBytes,
	}).Info("Strategy created")
}

// LogStrategyUpdated logs which fields of a strategy changed.
func (sl *StrategyLogger) LogStrategyUpdated(strategyID, userID string, fields []string) {
	sl.WithFields(logrus.Fields{
		"strategy_id": strategyID,
		"user_id":     userID,
		"fields":      fields,
	}).Info("Strategy updated")
}

// LogStrategyActivation logs an isActive flip.
func (sl *StrategyLogger) LogStrategyActivation(strategyID, strategyName string, active bool) {
	eventType := "deactivation"
	if active {
		eventType = "activation"
	}
	sl.WithFields(logrus.Fields{
		"strategy_id":   strategyID,
		"strategy_name": strategyName,
		"event_type":    eventType,
	}).Info("Strategy activation changed")
}

// LogStrategyDeleted logs a strategy removal, which cascades to its backtests.
func (sl *StrategyLogger) LogStrategyDeleted(strategyID, userID string) {
	sl.WithFields(logrus.Fields{
		"strategy_id": strategyID,
		"user_id":     userID,
	}).Info("Strategy deleted")
}
