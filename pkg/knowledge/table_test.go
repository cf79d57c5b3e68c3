package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTableSummary_Basic(t *testing.T) {
	data := []byte("age,diagnosis,smoker\n34,flu,true\n51,asthma,false\n29,,true\n")

	summary, err := BuildTableSummary(data, 5)
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Rows)
	assert.Equal(t, 3, summary.Cols)

	require.Len(t, summary.Columns, 3)
	assert.Equal(t, "age", summary.Columns[0].Name)
	assert.Equal(t, "integer", summary.Columns[0].Type)
	assert.Equal(t, 0, summary.Columns[0].NullCount)

	assert.Equal(t, "diagnosis", summary.Columns[1].Name)
	assert.Equal(t, "string", summary.Columns[1].Type)
	assert.Equal(t, 1, summary.Columns[1].NullCount)

	assert.Equal(t, "boolean", summary.Columns[2].Type)

	assert.Len(t, summary.Head, 3)
}

func TestBuildTableSummary_HeadBounded(t *testing.T) {
	data := []byte("v\n1\n2\n3\n4\n5\n6\n7\n8\n")

	summary, err := BuildTableSummary(data, 5)
	require.NoError(t, err)

	assert.Equal(t, 8, summary.Rows)
	assert.Len(t, summary.Head, 5)
}

func TestBuildTableSummary_HeaderOnlyReportsZeroRows(t *testing.T) {
	data := []byte("age,diagnosis\n")

	summary, err := BuildTableSummary(data, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, summary.Rows)
	assert.Equal(t, 2, summary.Cols)
	assert.Empty(t, summary.Head)
	assert.Equal(t, "unknown", summary.Columns[0].Type)

	rendered := summary.Render()
	assert.Contains(t, rendered, "0 rows x 2 columns")
	assert.Contains(t, rendered, "no data rows")
}

func TestBuildTableSummary_EmptyPayload(t *testing.T) {
	_, err := BuildTableSummary(nil, 5)
	assert.ErrorIs(t, err, ErrNoHeader)
	assert.ErrorIs(t, err, ErrEmptyContent)
}

func TestBuildTableSummary_FloatColumn(t *testing.T) {
	data := []byte("temp\n36.6\n37.2\n39\n")

	summary, err := BuildTableSummary(data, 5)
	require.NoError(t, err)
	assert.Equal(t, "float", summary.Columns[0].Type)
}

func TestBuildTableSummary_NullMarkers(t *testing.T) {
	data := []byte("result\nNA\nnull\nNaN\npositive\n")

	summary, err := BuildTableSummary(data, 5)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Columns[0].NullCount)
	assert.Equal(t, "string", summary.Columns[0].Type)
}

func TestRender_ContainsShapeAndColumns(t *testing.T) {
	data := []byte("age,diagnosis\n40,flu\n")

	summary, err := BuildTableSummary(data, 5)
	require.NoError(t, err)

	rendered := summary.Render()
	assert.Contains(t, rendered, "1 rows x 2 columns")
	assert.Contains(t, rendered, "age")
	assert.Contains(t, rendered, "diagnosis")
	assert.Contains(t, rendered, "40, flu")
}
