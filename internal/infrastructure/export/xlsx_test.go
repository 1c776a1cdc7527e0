package export

import (
	"bytes"
	"testing"

	"github.com/pricetrail/backend/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteHistoryXLSX(t *testing.T) {
	records := []domain.PriceRecord{
		{ID: 1, Title: "A", Price: 1000, URL: "u1", Code: "c1", Date: "2024-01-01", Site: "gmarket"},
		{ID: 2, Title: "B", Price: 900, URL: "u2", Code: "c2", Date: "2024-01-02", Site: "gmarket"},
	}
	points := []domain.ChartPoint{
		{Date: "2024-01-01", Price: 1000, Title: "A", URL: "u1", Code: "c1"},
		{Date: "2024-01-02", Price: 900, Title: "B", URL: "u2", Code: "c2"},
	}

	var buf bytes.Buffer
	require.NoError(t, WriteHistoryXLSX(&buf, "gmarket", records, points))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{historySheet, lowestSheet}, f.GetSheetList())

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"Date", "Title", "Price", "URL", "Code", "Site"}, rows[0])
	assert.Equal(t, []string{"2024-01-01", "A", "1000", "u1", "c1", "gmarket"}, rows[1])

	rows, err = f.GetRows(lowestSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "2024-01-02", rows[2][0])
	assert.Equal(t, "900", rows[2][1])
}

func TestWriteHistoryXLSX_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteHistoryXLSX(&buf, "11st", nil, nil))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(historySheet)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}
