package telemetry

import (
	"context"
	"runtime/pprof"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{}, zap.NewNop())
	require.NoError(t, err)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop())
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	_, err := NewProfiler(ProfilerConfig{Enabled: true, ApplicationName: "uniorder"}, zap.NewNop())
	assert.ErrorContains(t, err, "server address")

	_, err = NewProfiler(ProfilerConfig{Enabled: true, ServerAddress: "http://localhost:4040"}, zap.NewNop())
	assert.ErrorContains(t, err, "application name")
}

func TestSanitizeLabels(t *testing.T) {
	pairs := sanitizeLabels(map[string]string{
		"Route":    "/webhooks/:partner",
		"partner":  "hungerstation",
		"order_id": "should-drop",
		"empty":    "",
		"Long-Key": strings.Repeat("x", MaxLabelValueLength+10),
	})

	assert.Equal(t, []string{
		"long_key", strings.Repeat("x", MaxLabelValueLength),
		"partner", "hungerstation",
		"route", "/webhooks/:partner",
	}, pairs)
}

func TestSanitizeLabelKey(t *testing.T) {
	assert.Equal(t, "http_method", sanitizeLabelKey("HTTP Method"))
	assert.Equal(t, "a_b", sanitizeLabelKey("a-b!"))
	assert.Empty(t, sanitizeLabelKey("!!"))
}

func TestWithProfilingLabels(t *testing.T) {
	var got string
	WithProfilingLabels(context.Background(), map[string]string{ProfilingLabelPartner: "jahez"}, func(ctx context.Context) {
		got, _ = pprof.Label(ctx, ProfilingLabelPartner)
	})
	assert.Equal(t, "jahez", got)

	called := false
	WithProfilingLabels(context.Background(), nil, func(context.Context) { called = true })
	assert.True(t, called)
}
