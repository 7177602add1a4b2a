package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTurnMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewTurnMetrics(reg)

	m.CountIntent("book")
	m.CountIntent("book")
	m.CountIntent("cancel")
	m.CountTurnError()
	m.ObserveTurn("book_flow", 120*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(m.intentsTotal.WithLabelValues("book")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.intentsTotal.WithLabelValues("cancel")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.turnErrors))

	count, err := testutil.GatherAndCount(reg,
		"voicescheduler_dialog_intents_total",
		"voicescheduler_dialog_turn_errors_total",
		"voicescheduler_dialog_node_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNilTurnMetricsNoOp(t *testing.T) {
	var m *TurnMetrics
	m.CountIntent("book")
	m.CountTurnError()
	m.ObserveTurn("lookup", time.Millisecond)
}
