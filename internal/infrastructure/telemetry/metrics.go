// Package telemetry provides OpenTelemetry metrics for the action engine.
package telemetry

import (
	"context"
	"errors"
	"fmt"

	appinvoice "github.com/erp/invoicedesk/internal/application/invoice"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a constructor receives no meter
var ErrMeterNil = errors.New("NewActionMetrics: meter cannot be nil")

// Attribute keys
const (
	AttrWorkflow = attribute.Key("workflow")
	AttrClass    = attribute.Key("class")
	AttrOutcome  = attribute.Key("outcome")
)

// ActionMetrics counts engine outcomes per workflow, busy class and outcome
type ActionMetrics struct {
	actions metric.Int64Counter
}

// NewActionMetrics creates the desk_invoice_action_total counter
func NewActionMetrics(meter metric.Meter) (*ActionMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	counter, err := meter.Int64Counter(
		"desk_invoice_action_total",
		metric.WithDescription("Total number of invoice actions by outcome"),
		metric.WithUnit("{actions}"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create counter desk_invoice_action_total: %w", err)
	}
	return &ActionMetrics{actions: counter}, nil
}

var _ appinvoice.ActionRecorder = (*ActionMetrics)(nil)

// RecordAction implements ActionRecorder
func (m *ActionMetrics) RecordAction(ctx context.Context, workflow, outcome string) {
	class := appinvoice.Workflow(workflow).BusyClass()
	m.actions.Add(ctx, 1, metric.WithAttributes(
		AttrWorkflow.String(workflow),
		AttrClass.String(string(class)),
		AttrOutcome.String(outcome),
	))
}
