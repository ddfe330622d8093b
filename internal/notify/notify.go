// Package notify delivers change reports to a chat webhook.
package notify

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/fruitsalade/drivetracker/internal/logging"
	"github.com/fruitsalade/drivetracker/internal/metrics"
)

// ErrDispatch is returned when neither the rich nor the plain message
// could be delivered.
var ErrDispatch = errors.New("notification not delivered")

// Defaults for report messages.
const (
	DefaultTitle  = "Google Drive Tracker"
	DefaultFooter = "Google Drive Tracker"
	DefaultColor  = 0x00ff00
)

// Message is a report with optional presentation fields.
type Message struct {
	Title  string
	Body   string
	Color  int
	Footer string
}

// NewMessage returns a message with the default presentation.
func NewMessage(body string) Message {
	return Message{Title: DefaultTitle, Body: body, Color: DefaultColor, Footer: DefaultFooter}
}

// Sink can send rich and plain messages.
type Sink interface {
	SendEmbed(ctx context.Context, msg Message) error
	SendText(ctx context.Context, text string) error
}

// Dispatcher sends reports, degrading to plain text when the rich form is
// rejected. Failures are logged and never escalate further.
type Dispatcher struct {
	sink Sink
}

// NewDispatcher creates a Dispatcher for sink.
func NewDispatcher(sink Sink) *Dispatcher {
	return &Dispatcher{sink: sink}
}

// Dispatch sends msg. It returns ErrDispatch only if the plain fallback
// also failed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg Message) error {
	log := logging.WithContext(ctx)

	err := d.sink.SendEmbed(ctx, msg)
	metrics.RecordNotification("embed", err == nil)
	if err == nil {
		log.Info("notification sent")
		return nil
	}
	log.Error("failed to send embed message", zap.Error(err))

	warning := "Warning: Failed to send webhook as embed message: " + err.Error()
	if werr := d.sink.SendText(ctx, warning); werr != nil {
		log.Error("failed to send embed warning", zap.Error(werr))
	}
	perr := d.sink.SendText(ctx, msg.Body)
	metrics.RecordNotification("plain", perr == nil)
	if perr != nil {
		log.Error("failed to send plain notification", zap.Error(perr))
		return fmt.Errorf("%w: embed: %v; plain: %w", ErrDispatch, err, perr)
	}
	log.Info("notification sent as plain text")
	return nil
}

// Warn sends a plain-text warning, logging any failure.
func (d *Dispatcher) Warn(ctx context.Context, text string) {
	err := d.sink.SendText(ctx, "Warning: "+text)
	metrics.RecordNotification("warning", err == nil)
	if err != nil {
		logging.WithContext(ctx).Error("failed to send warning", zap.Error(err))
	}
}

// LogSink writes messages to the log. Used when no webhook is configured.
type LogSink struct{}

// SendEmbed implements Sink.
func (LogSink) SendEmbed(ctx context.Context, msg Message) error {
	logging.WithContext(ctx).Info("report", zap.String("title", msg.Title), zap.String("body", msg.Body))
	return nil
}

// SendText implements Sink.
func (LogSink) SendText(ctx context.Context, text string) error {
	logging.WithContext(ctx).Info("report", zap.String("body", text))
	return nil
}
