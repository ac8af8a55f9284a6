package transporttest

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashita-ai/vitrine/internal/transport"
)

func TestFakeCRUDAndOrdering(t *testing.T) {
	ctx := context.Background()
	f := New(transport.ModeSDK)
	f.Seed("skills", map[string]any{"name": "b", "downloads": 2.0}, map[string]any{"name": "a", "downloads": 10.0})

	rows, err := f.Select(ctx, "skills", transport.Query{}.OrderBy("downloads", true))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Contains(t, string(rows[0]), `"name":"a"`)

	row, err := f.Insert(ctx, "skills", json.RawMessage(`{"name":"c"}`))
	require.NoError(t, err)
	var created map[string]any
	require.NoError(t, json.Unmarshal(row, &created))
	id := created["id"].(string)

	_, err = f.Update(ctx, "skills", id, json.RawMessage(`{"name":"c2"}`))
	require.NoError(t, err)
	got, err := f.SelectOne(ctx, "skills", transport.Query{Columns: []string{"name"}}.Eq("id", id))
	require.NoError(t, err)
	assert.JSONEq(t, `{"name":"c2"}`, string(got))

	require.NoError(t, f.Delete(ctx, "skills", id))
	assert.ErrorIs(t, f.Delete(ctx, "skills", id), transport.ErrNotFound)

	n, err := f.Count(ctx, "skills")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestFakeErrorInjectionOrder(t *testing.T) {
	ctx := context.Background()
	f := New(transport.ModeAPI)
	errMethod := errors.New("method")
	errNext := errors.New("next")
	errAll := errors.New("all")

	f.SetErr(errAll)
	f.FailNext(1, errNext)
	f.FailMethod("Count", 1, errMethod)

	_, err := f.Count(ctx, "x")
	assert.ErrorIs(t, err, errMethod)
	_, err = f.Count(ctx, "x")
	assert.ErrorIs(t, err, errNext)
	_, err = f.Count(ctx, "x")
	assert.ErrorIs(t, err, errAll)

	f.SetErr(nil)
	assert.True(t, f.TestConnection(ctx))
	assert.Equal(t, 3, f.CallsTo("Count"))
	assert.Equal(t, 4, f.Calls())
}
