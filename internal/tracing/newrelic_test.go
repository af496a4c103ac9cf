package tracing

import (
	"strings"
	"testing"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/eventlog/config"
)

func TestNewTracerWithoutLicenseIsNoop(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{AppName: "eventlog"})
	require.NoError(t, err)

	txn := tracer.StartTransaction("store.save")
	assert.Nil(t, txn)

	assert.NotPanics(t, func() {
		tracer.AddAttribute(txn, "event.id", "abc")
		tracer.RecordError(txn, errors.New("boom"))
		assert.NotNil(t, tracer.StartSpan("insert", txn))
		tracer.EndTransaction(txn)
		tracer.Close()
	})
	assert.Nil(t, tracer.Application())
}

func TestNewWrapsApplication(t *testing.T) {
	app, err := newrelic.NewApplication(
		newrelic.ConfigAppName("eventlog"),
		newrelic.ConfigLicense(strings.Repeat("0", 40)),
		newrelic.ConfigEnabled(false),
	)
	require.NoError(t, err)

	tracer := New(app)
	require.Same(t, app, tracer.Application())

	txn := tracer.StartTransaction("store.get")
	require.NotNil(t, txn)
	tracer.StartSpan("select", txn).End()
	tracer.EndTransaction(txn)

	assert.Nil(t, New(nil).Application())
}
