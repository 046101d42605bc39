package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTaskID(t *testing.T) {
	tests := []struct {
		in   string
		want TaskID
	}{
		{"buildAll", TaskID{Project: "", Task: "buildAll"}},
		{":buildAll", TaskID{Project: "", Task: "buildAll"}},
		{"openxr:assembleDebug", TaskID{Project: "openxr", Task: "assembleDebug"}},
		{"openxr/tutorial/Chapter1:app:assembleDebug", TaskID{Project: "openxr/tutorial/Chapter1", Task: "app:assembleDebug"}},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseTaskID(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseTaskID_Invalid(t *testing.T) {
	for _, in := range []string{"", "  ", "openxr:"} {
		_, err := ParseTaskID(in)
		assert.ErrorIs(t, err, ErrUnknownTask, "input %q", in)
	}
}

func TestTaskID_String(t *testing.T) {
	assert.Equal(t, ":cleanAll", TaskID{Task: "cleanAll"}.String())
	assert.Equal(t, "openxr:clean", TaskID{Project: "openxr", Task: "clean"}.String())
}

func TestTaskID_JSONMapKey(t *testing.T) {
	in := map[TaskID]TaskState{
		{Project: "a", Task: "x"}:  TaskSucceeded,
		{Project: "", Task: "all"}: TaskSkipped,
	}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a:x":"succeeded",":all":"skipped"}`, string(data))

	var out map[TaskID]TaskState
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestChildPath(t *testing.T) {
	assert.Equal(t, "openxr", ChildPath(RootPath, "openxr"))
	assert.Equal(t, "openxr/tutorial", ChildPath("openxr", "tutorial"))
}
