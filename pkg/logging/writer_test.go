package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capture struct {
	records []Data
}

func (c *capture) Write(_ context.Context, d Data) error {
	c.records = append(c.records, d)
	return nil
}

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.t = c.t.Add(d)
}

func TestSlogWriterEmitsSortedAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	w := NewSlogWriter(logger, "environment_loop", slog.LevelInfo)

	require.NoError(t, w.Write(context.Background(), Data{"b": 2, "a": "x"}))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "environment_loop", line["msg"])
	assert.Equal(t, "x", line["a"])
	assert.Equal(t, float64(2), line["b"])
	assert.Less(t, bytes.Index(buf.Bytes(), []byte(`"a"`)), bytes.Index(buf.Bytes(), []byte(`"b"`)))
}

func TestNoneFilterDropsNil(t *testing.T) {
	c := &capture{}
	f := NewNoneFilter(c)

	require.NoError(t, f.Write(context.Background(), Data{"a": 1, "b": nil}))
	require.Len(t, c.records, 1)
	assert.Equal(t, Data{"a": 1}, c.records[0])
}

func TestTimeFilterRateLimits(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	c := &capture{}
	f := NewTimeFilter(c, time.Second, WithClock(clock.Now))
	ctx := context.Background()

	require.NoError(t, f.Write(ctx, Data{"n": 1}))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, f.Write(ctx, Data{"n": 2}))
	clock.Advance(500 * time.Millisecond)
	require.NoError(t, f.Write(ctx, Data{"n": 3}))

	require.Len(t, c.records, 2)
	assert.Equal(t, 1, c.records[0]["n"])
	assert.Equal(t, 3, c.records[1]["n"])
}

func TestTimeFilterZeroIntervalForwardsAll(t *testing.T) {
	c := &capture{}
	f := NewTimeFilter(c, 0)
	for i := 0; i < 3; i++ {
		require.NoError(t, f.Write(context.Background(), Data{"n": i}))
	}
	assert.Len(t, c.records, 3)
}

func TestMultiWriterFailsFast(t *testing.T) {
	boom := errors.New("disk full")
	first, last := &capture{}, &capture{}
	m := MultiWriter{first, WriterFunc(func(context.Context, Data) error { return boom }), last}

	err := m.Write(context.Background(), Data{"n": 1})
	assert.Same(t, boom, err)
	assert.Len(t, first.records, 1)
	assert.Empty(t, last.records)
}

func TestMakeDefaultLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	w := MakeDefaultLogger("eval", logger, time.Hour)

	require.NoError(t, w.Write(context.Background(), Data{"episode_return": 1.5, "steps_per_second": nil}))
	require.NoError(t, w.Write(context.Background(), Data{"episode_return": 9.0}))

	out := buf.String()
	assert.Contains(t, out, "msg=eval")
	assert.Contains(t, out, "episode_return=1.5")
	assert.NotContains(t, out, "steps_per_second")
	assert.NotContains(t, out, "episode_return=9")
}

func TestCSVWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)
	ctx := context.Background()

	require.NoError(t, w.Write(ctx, Data{"steps": 3, "episode_return": 1.5}))
	require.NoError(t, w.Write(ctx, Data{"steps": 4}))
	assert.Equal(t, "episode_return,steps\n1.5,3\n,4\n", buf.String())

	err := w.Write(ctx, Data{"unknown": 1})
	assert.ErrorContains(t, err, "unexpected column")
}

func TestOpenCSVCreatesDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "episodes.csv")
	w, err := OpenCSV(path)
	require.NoError(t, err)
	require.NoError(t, w.Write(context.Background(), Data{"episodes": 1}))
	require.NoError(t, w.Close())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "episodes\n1\n", string(raw))
}
