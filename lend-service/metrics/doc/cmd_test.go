package doc

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lendlord/lendlord-sim/lend-service/metrics"
)

var docs = []metrics.DocumentedMetric{
	{Type: "counter", Name: "lend_sim_default_steps_total", Help: "Count of script steps", Labels: []string{"step", "status"}},
	{Type: "gauge", Name: "lend_sim_default_up", Help: "1 if started"},
}

func TestWriteMarkdown(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, docs, "markdown"))
	out := buf.String()
	require.Contains(t, out, "`lend_sim_default_steps_total`")
	require.Contains(t, out, "step,status")
	require.Contains(t, out, "|")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, docs, "json"))
	var out []metrics.DocumentedMetric
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Equal(t, docs, out)

	require.Error(t, Write(&buf, docs, "xml"))
}
