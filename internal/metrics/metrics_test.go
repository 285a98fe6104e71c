package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, Register(reg))

	// a second registration on the same registry is rejected
	assert.Error(t, Register(reg))
}

func TestCountersAreUsable(t *testing.T) {
	before := testutil.ToFloat64(Reads.WithLabelValues("push", "ok"))
	Reads.WithLabelValues("push", "ok").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(Reads.WithLabelValues("push", "ok")))
}
