package transport

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryBuildersDoNotAlias(t *testing.T) {
	base := Query{}.Eq("category", "编程开发")
	a := base.Eq("difficulty", "初级")
	b := base.Eq("difficulty", "高级")

	require.Len(t, base.Filters, 1)
	require.Len(t, a.Filters, 2)
	require.Len(t, b.Filters, 2)
	assert.Equal(t, "初级", a.Filters[1].Value)
	assert.Equal(t, "高级", b.Filters[1].Value)
}

func TestQueryValidate(t *testing.T) {
	ok := Query{Columns: []string{"id", "created_at"}}.Eq("name", "x").OrderBy("created_at", true).WithLimit(5)
	assert.NoError(t, ok.Validate())

	assert.Error(t, Query{Columns: []string{"id; drop table agents"}}.Validate())
	assert.Error(t, Query{}.Eq("Name", "x").Validate())
	assert.Error(t, Query{}.OrderBy("created_at desc", false).Validate())
	assert.Error(t, Query{Limit: -1}.Validate())
}

func TestValidIdentifier(t *testing.T) {
	for _, name := range []string{"agents", "teaching_resources", "_x1"} {
		assert.True(t, ValidIdentifier(name), name)
	}
	for _, name := range []string{"", "1abc", "Agents", "a-b", "a.b", `a"b`} {
		assert.False(t, ValidIdentifier(name), name)
	}
}
