package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVRender(t *testing.T) {
	out, err := NewCSVExporter().Render(Dataset{
		Headers: []string{"Metric", "Value", "Unit"},
		Records: [][]string{
			{"sessions", "12", "count"},
			{"attendance", "0.85"},
			{"hours", "18", "h", "extra"},
		},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Metric,Value,Unit", lines[0])
	assert.Equal(t, "attendance,0.85,", lines[2])
	assert.Equal(t, "hours,18,h", lines[3])
}

func TestCSVRenderNoHeaders(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	assert.Error(t, err)
}
