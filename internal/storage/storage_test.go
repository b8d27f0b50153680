package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	logx "offsched/pkg/logx"
)

func TestOpenDisabled(t *testing.T) {
	for _, driver := range []string{"", "none", " NONE "} {
		st, err := Open(Config{Driver: driver}, logx.Nop())
		require.NoError(t, err)
		assert.Nil(t, st)
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "redis"}, logx.Nop())
	assert.ErrorContains(t, err, "unknown storage driver")
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{Driver: "file"}, logx.Nop())
	assert.Error(t, err)
	_, err = Open(Config{Driver: "sqlite"}, logx.Nop())
	assert.Error(t, err)
}

func TestStores(t *testing.T) {
	drivers := map[string]string{
		"file":   "history.jsonl",
		"sqlite": "history.db",
	}
	for driver, file := range drivers {
		driver, file := driver, file
		t.Run(driver, func(t *testing.T) {
			st, err := Open(Config{Driver: driver, Path: filepath.Join(t.TempDir(), "nested", file)}, logx.Nop())
			require.NoError(t, err)
			require.NotNil(t, st)
			t.Cleanup(func() { _ = st.Close() })

			ctx := context.Background()
			base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
			records := []Firing{
				{At: base, Task: "a", Schedule: "*/1 * * * *", OK: true, TookMS: 10},
				{At: base.Add(time.Minute), Task: "b", Schedule: "*/2 * * * *", OK: false, Error: "exit status 1", TookMS: 5},
				{At: base.Add(2 * time.Minute), Task: "a", Schedule: "*/1 * * * *", Immediate: true, OK: true, TookMS: 7},
			}
			for _, r := range records {
				require.NoError(t, st.AppendFiring(ctx, r))
			}

			all, err := st.Recent(ctx, "", 10)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.True(t, all[0].At.Equal(records[2].At), "newest first")
			assert.True(t, all[0].Immediate)
			assert.Equal(t, "exit status 1", all[1].Error)
			assert.False(t, all[1].OK)

			onlyA, err := st.Recent(ctx, "a", 1)
			require.NoError(t, err)
			require.Len(t, onlyA, 1)
			assert.Equal(t, int64(7), onlyA[0].TookMS)

			none, err := st.Recent(ctx, "a", 0)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}
