package tracing

import (
	"time"

	"github.com/SteveArevalo/CS499-CapStone/config"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const shutdownTimeout = 5 * time.Second

// Tracer wraps the New Relic agent. Every method is a no-op when tracing is
// disabled or the transaction is nil.
type Tracer interface {
	StartTransaction(name string) *newrelic.Transaction
	StartSegment(txn *newrelic.Transaction, name string) *newrelic.Segment
	EndTransaction(txn *newrelic.Transaction)
	RecordError(txn *newrelic.Transaction, err error)
	AddAttribute(txn *newrelic.Transaction, key string, value interface{})
	Application() *newrelic.Application
	Enabled() bool
	Close()
}

// NewRelicTracer implements Tracer using New Relic
type NewRelicTracer struct {
	app     *newrelic.Application
	enabled bool
}

// NewTracer creates a tracer. Without a license key tracing is disabled.
func NewTracer(cfg config.TracingConfig) (*NewRelicTracer, error) {
	if cfg.LicenseKey == "" {
		log.Warn().Msg("New Relic license key not provided, tracing will be disabled")
		return &NewRelicTracer{}, nil
	}

	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName(cfg.AppName),
		newrelic.ConfigLicense(cfg.LicenseKey),
		newrelic.ConfigDistributedTracerEnabled(cfg.DistribTracing),
		newrelic.ConfigAppLogForwardingEnabled(cfg.LogEnabled),
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to initialize New Relic")
	}

	return &NewRelicTracer{app: app, enabled: true}, nil
}

// Disabled returns a tracer that records nothing
func Disabled() *NewRelicTracer {
	return &NewRelicTracer{}
}

// Enabled reports whether transactions are sent to New Relic
func (t *NewRelicTracer) Enabled() bool {
	return t.enabled && t.app != nil
}

// Application returns the agent application, nil when disabled
func (t *NewRelicTracer) Application() *newrelic.Application {
	if !t.Enabled() {
		return nil
	}
	return t.app
}

// StartTransaction starts a new transaction
func (t *NewRelicTracer) StartTransaction(name string) *newrelic.Transaction {
	if !t.Enabled() {
		return nil
	}
	return t.app.StartTransaction(name)
}

// StartSegment starts a segment within txn. The returned segment is safe to
// End even when tracing is off.
func (t *NewRelicTracer) StartSegment(txn *newrelic.Transaction, name string) *newrelic.Segment {
	if !t.Enabled() || txn == nil {
		return nil
	}
	return txn.StartSegment(name)
}

// EndTransaction ends txn
func (t *NewRelicTracer) EndTransaction(txn *newrelic.Transaction) {
	if !t.Enabled() || txn == nil {
		return
	}
	txn.End()
}

// RecordError notices err on txn
func (t *NewRelicTracer) RecordError(txn *newrelic.Transaction, err error) {
	if !t.Enabled() || txn == nil || err == nil {
		return
	}
	txn.NoticeError(err)
}

// AddAttribute adds an attribute to txn
func (t *NewRelicTracer) AddAttribute(txn *newrelic.Transaction, key string, value interface{}) {
	if !t.Enabled() || txn == nil {
		return
	}
	txn.AddAttribute(key, value)
}

// Close flushes pending data and shuts the agent down
func (t *NewRelicTracer) Close() {
	if !t.Enabled() {
		return
	}
	t.app.Shutdown(shutdownTimeout)
	log.Info().Msg("New Relic tracer shutdown")
}
