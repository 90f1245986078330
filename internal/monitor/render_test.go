package monitor

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openmech/subfarm/pkg/core"
)

func TestCenter(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"OK", "   OK   "},
		{"TBD", "  TBD   "},
		{"ERROR", " ERROR  "},
		{"RUNNING", "RUNNING "},
		{"", "        "},
		{"OVERLONGTEXT", "OVERLONGTEXT"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := center(tt.in, statusCellWidth)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRendererDefaults(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)
	assert.Equal(t, DefaultWrap, r.wrap)
	assert.False(t, r.color)
}

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	rows := []Row{
		{Label: "conf", Cells: []Cell{StatusCell(core.StatusOK), StatusCell(core.StatusError)}},
		{Label: "hr", Cells: []Cell{StatusCell(core.StatusTBD), BlankCell()}},
	}
	r.Table(4, []string{"1", "2"}, rows)

	expected := "task   1        2    \n" +
		"conf   OK     ERROR  \n" +
		"  hr  TBD            \n" +
		"\n"
	assert.Equal(t, expected, buf.String())
}

func TestTableWrap(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 3)

	keys := []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7"}
	cells := make([]Cell, len(keys))
	for i := range cells {
		cells[i] = StatusCell(core.StatusOK)
	}
	r.Table(4, keys, []Row{{Label: "conf", Cells: cells}})

	lines := strings.Split(buf.String(), "\n")
	require.Len(t, lines, 11)

	guideWidth := 4 + (statusCellWidth+1)*3
	assert.Equal(t, strings.Repeat("#", guideWidth), lines[0])
	assert.Equal(t, strings.Repeat("-", guideWidth), lines[4])
	assert.Equal(t, strings.Repeat("-", guideWidth), lines[8])

	// Label only on the first line of each wrapped row.
	assert.Equal(t, "task   k1       k2       k3   ", lines[1])
	assert.Equal(t, "       k4       k5       k6   ", lines[2])
	assert.Equal(t, "       k7   ", lines[3])
	assert.Equal(t, 1, strings.Count(buf.String(), "conf"))
	assert.True(t, strings.HasPrefix(lines[6], "    "))

	// Trailing blank line closes the group.
	assert.Empty(t, lines[9])
	assert.Empty(t, lines[10])
}

func TestTableNoGuidesWhenNarrow(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	r.Table(1, []string{"1"}, []Row{{Label: "a", Cells: []Cell{StatusCell(core.StatusOK)}}})
	assert.NotContains(t, buf.String(), "#")
	assert.NotContains(t, buf.String(), "-")
}

func TestDigest(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	records := []core.LogRecord{
		{Task: "conf_energy", Key: "spc1", Path: "/work/a/out.log", Status: core.StatusError},
		{Task: "hr", Key: "pes2", Path: "/work/bb/out2.log", Status: core.StatusRunning},
	}
	r.Digest("/work", records)

	expected := "Non-OK log files in /work:\n" +
		"conf_energy spc1 /work/a/out.log   ERROR\n" +
		"hr          pes2 /work/bb/out2.log RUNNING\n" +
		"\n"
	assert.Equal(t, expected, buf.String())
}

func TestDigestEmpty(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	r.Digest("/work", nil)
	assert.Equal(t, "\n", buf.String())
}

func TestLogList(t *testing.T) {
	var buf bytes.Buffer
	r := NewRenderer(&buf, 0)

	logs := []LogStatus{
		{Path: "run/els/0_conf/1/out.log", Status: core.StatusOK},
		{Path: "out.log", Status: core.StatusError},
	}
	r.LogList(logs)

	expected := "run/els/0_conf/1/out.log OK\n" +
		"out.log                  ERROR\n"
	assert.Equal(t, expected, buf.String())
}
