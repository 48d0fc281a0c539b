package scheduler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hue-toys/internal/core"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in   string
		want core.Command
	}{
		{"power on", core.Command{Type: core.CmdSetLight, Params: core.NewSet(core.On(true))}},
		{"power off 1,3", core.Command{Type: core.CmdSetLight, Lights: []int{1, 3}, Params: core.NewSet(core.On(false))}},
		{"power on all", core.Command{Type: core.CmdSetLight, Params: core.NewSet(core.On(true))}},
		{"set 2 bri=100 on=true", core.Command{Type: core.CmdSetLight, Lights: []int{2},
			Params: core.NewSet(core.Brightness(100), core.On(true))}},
		{"set all xy=0.3,0.4", core.Command{Type: core.CmdSetLight,
			Params: core.NewSet(core.XY{X: 0.3, Y: 0.4})}},
		{"pattern sunrise", core.Command{Type: core.CmdRunPattern, Name: "sunrise"}},
		{"stop", core.Command{Type: core.CmdStopPattern}},
		{"capture 4", core.Command{Type: core.CmdCaptureState, Lights: []int{4}}},
		{"restore", core.Command{Type: core.CmdRestoreState}},
		{"clear-cache", core.Command{Type: core.CmdClearCache}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCommand(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCommandErrors(t *testing.T) {
	for _, in := range []string{
		"",
		"dance",
		"power",
		"power maybe",
		"power on x",
		"set 1",
		"set 1 bri",
		"set 1 bri=999",
		"set 1 nope=1",
		"pattern",
		"restore 1 2",
	} {
		_, err := ParseCommand(in)
		assert.ErrorIs(t, err, ErrInvalidCommand, "command %q", in)
	}
}

func TestAddPersistsAndReloads(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	s := NewScheduler(make(core.CommandChannel, 1), file)

	id, err := s.Add("0 7 * * *", "pattern sunrise")
	require.NoError(t, err)
	assert.Equal(t, ScheduleEntry{Spec: "0 7 * * *", Command: "pattern sunrise"}, s.GetAll()[id])

	_, err = os.Stat(file)
	require.NoError(t, err)

	reloaded := NewScheduler(make(core.CommandChannel, 1), file)
	all := reloaded.GetAll()
	require.Len(t, all, 1)
	for _, entry := range all {
		assert.Equal(t, "pattern sunrise", entry.Command)
	}
}

func TestAddRejectsBadInput(t *testing.T) {
	s := NewScheduler(make(core.CommandChannel, 1), "")

	_, err := s.Add("not a spec", "stop")
	assert.ErrorIs(t, err, ErrInvalidSpec)

	_, err = s.Add("@every 1h", "fly away")
	assert.ErrorIs(t, err, ErrInvalidCommand)

	assert.Empty(t, s.GetAll())
}

func TestRemove(t *testing.T) {
	file := filepath.Join(t.TempDir(), "schedules.json")
	s := NewScheduler(make(core.CommandChannel, 1), file)
	id, err := s.Add("@every 1h", "power off")
	require.NoError(t, err)

	require.NoError(t, s.Remove(int(id)))
	assert.Empty(t, s.GetAll())
	assert.ErrorIs(t, s.Remove(int(id)), ErrNotFound)

	assert.Empty(t, NewScheduler(make(core.CommandChannel, 1), file).GetAll())
}

func TestExecuteSendsCommand(t *testing.T) {
	ch := make(core.CommandChannel, 1)
	s := NewScheduler(ch, "")

	s.execute("restore 1,2")
	assert.Equal(t, core.Command{Type: core.CmdRestoreState, Lights: []int{1, 2}}, <-ch)

	s.execute("bogus")
	assert.Empty(t, ch)
}

func TestAddJob(t *testing.T) {
	s := NewScheduler(make(core.CommandChannel, 1), "")
	_, err := s.AddJob("@every 10s", func() {})
	require.NoError(t, err)
	assert.Empty(t, s.GetAll())

	_, err = s.AddJob("sometimes", func() {})
	assert.ErrorIs(t, err, ErrInvalidSpec)
}
