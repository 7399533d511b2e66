// Package notification delivers decision alerts to external channels.
package notification

import (
	"context"
	"fmt"
	"log"

	"ratchet-systemv1/internal/model"
)

// AlertLevel represents the severity of an alert.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a notification to be sent.
type Alert struct {
	Level   AlertLevel `json:"level"`
	Title   string     `json:"title"`
	Message string     `json:"message"`
}

// Notifier is the interface for all notification backends.
type Notifier interface {
	// Send delivers an alert. Returns error if delivery fails.
	Send(ctx context.Context, alert Alert) error
}

// LogNotifier is a simple notifier that logs alerts (useful for development).
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Send(ctx context.Context, alert Alert) error {
	log.Printf("[notify] [%s] %s: %s", alert.Level, alert.Title, alert.Message)
	return nil
}

// EntryAlert builds the alert for an entry event.
func EntryAlert(ev model.EntryEvent) Alert {
	return Alert{
		Level: AlertInfo,
		Title: fmt.Sprintf("Entry %s %s", ev.Side, ev.Symbol),
		Message: fmt.Sprintf("ref=%.4f stop=%.4f at %s",
			ev.ReferencePrice, ev.StopPrice, ev.TS.Format("2006-01-02 15:04:05")),
	}
}

// ExitAlert builds the alert for an exit event. Hard-stop exits are
// warnings: the ratchet never caught up before the ceiling was hit.
func ExitAlert(ev model.ExitEvent) Alert {
	level := AlertInfo
	if ev.Reason == model.ExitHardStop {
		level = AlertWarning
	}
	return Alert{
		Level: level,
		Title: fmt.Sprintf("Exit %s %s (%s)", ev.Side, ev.Symbol, ev.Reason),
		Message: fmt.Sprintf("level=%.4f entry=%.4f at %s",
			ev.ReferencePrice, ev.EntryPrice, ev.TS.Format("2006-01-02 15:04:05")),
	}
}
