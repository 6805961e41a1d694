package export

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"

	"github.com/jnst/storefront-sync/internal/model"
)

var (
	orderID = uuid.MustParse("3f2b9c1e-8a4d-4e6f-9b7a-1c2d3e4f5a6b")
	userID  = uuid.MustParse("9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a")
	queued  = time.Date(2026, 3, 1, 10, 15, 30, 0, time.UTC)
)

const orderPayload = `{"number":100001,"user_uuid":"9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a","name":"Анна","email":"anna@example.com",` +
	`"phone":"+79990000000","delivery_method":"cdek_pvz","delivery_city":"Moscow","delivery_address":"Tverskaya 1",` +
	`"payment_type":"online","total":"1990.00","total_pv":"35.50","status":"new","comment":"",` +
	`"created_at":"2026-03-01T10:15:30Z","items":[{"variant_id":12,"product":"T-shirt","quantity":2,"price":"995.00","pv":"17.75","line_pv":"35.50"}]}`

func orderRecords() []*model.SyncRecord {
	return []*model.SyncRecord{
		{
			ID:          1,
			Subject:     model.SubjectOrder,
			Action:      model.ActionCreate,
			SubjectUUID: &orderID,
			Payload:     []byte(orderPayload),
			Status:      model.StatusPending,
			CreatedAt:   queued,
		},
		{
			ID:          2,
			Subject:     model.SubjectOrder,
			Action:      model.ActionDelete,
			SubjectUUID: &orderID,
			Payload:     []byte(`{"uuid":"3f2b9c1e-8a4d-4e6f-9b7a-1c2d3e4f5a6b","action":"delete"}`),
			Status:      model.StatusPending,
			CreatedAt:   queued.Add(time.Minute),
		},
	}
}

func TestLayoutFor(t *testing.T) {
	orders, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)
	assert.Len(t, orders.Columns, 19)
	assert.Equal(t, "order_created_at", orders.Columns[17])

	users, err := LayoutFor(model.SubjectUser)
	require.NoError(t, err)
	assert.Len(t, users.Columns, 13)

	_, err = LayoutFor(model.Subject("cart"))
	assert.ErrorIs(t, err, model.ErrUnknownSubject)
}

func TestOrderRow(t *testing.T) {
	layout, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)

	records := orderRecords()

	row, err := layout.Row(records[0])
	require.NoError(t, err)
	require.Len(t, row, len(layout.Columns))

	assert.Equal(t, int64(1), row[0])
	assert.Equal(t, "create", row[1])
	assert.Equal(t, orderID.String(), row[2])
	assert.Equal(t, "2026-03-01T10:15:30Z", row[3])
	assert.Equal(t, int64(100001), row[4])
	assert.Equal(t, "cdek_pvz", row[9])
	assert.Equal(t, "1990.00", row[13])
	assert.JSONEq(t, `[{"variant_id":12,"product":"T-shirt","quantity":2,"price":"995.00","pv":"17.75","line_pv":"35.50"}]`, row[18].(string))

	deleted, err := layout.Row(records[1])
	require.NoError(t, err)
	require.Len(t, deleted, len(layout.Columns))
	assert.Equal(t, "delete", deleted[1])

	for _, v := range deleted[4:] {
		assert.Equal(t, "", v)
	}
}

func TestUserRow_DeleteKeepsUUID(t *testing.T) {
	layout, err := LayoutFor(model.SubjectUser)
	require.NoError(t, err)

	row, err := layout.Row(&model.SyncRecord{
		ID:          7,
		Action:      model.ActionDelete,
		SubjectUUID: &userID,
		Payload:     []byte(`{"uuid":"9d8c7b6a-5f4e-4d3c-8b2a-1f0e9d8c7b6a","action":"delete"}`),
		CreatedAt:   queued,
	})
	require.NoError(t, err)
	require.Len(t, row, len(layout.Columns))

	assert.Equal(t, userID.String(), row[4])
	assert.Equal(t, "", row[5])
}

func TestOrderRow_BadPayload(t *testing.T) {
	layout, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)

	_, err = layout.Row(&model.SyncRecord{ID: 3, Action: model.ActionUpdate, Payload: []byte(`not json`)})
	assert.Error(t, err)
}

func TestWrite_XLSX(t *testing.T) {
	layout, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, layout, orderRecords(), Options{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("orders")
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, layout.Columns, rows[0])
	assert.Equal(t, "1", rows[1][0])
	assert.Equal(t, "Анна", rows[1][6])
	assert.Equal(t, "100001", rows[1][4])
	assert.Equal(t, "delete", rows[2][1])

	styleID, err := f.GetCellStyle("orders", "A1")
	require.NoError(t, err)
	style, err := f.GetStyle(styleID)
	require.NoError(t, err)
	require.NotNil(t, style.Font)
	assert.True(t, style.Font.Bold)
}

func TestWrite_EmptyProducesHeaderOnly(t *testing.T) {
	layout, err := LayoutFor(model.SubjectUser)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, layout, nil, Options{}))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows("users")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, layout.Columns, rows[0])
}

func TestWrite_CSVUTF8(t *testing.T) {
	layout, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, layout, orderRecords(), Options{}))

	raw := buf.String()
	require.True(t, strings.HasPrefix(raw, utf8BOM))

	rows, err := csv.NewReader(strings.NewReader(strings.TrimPrefix(raw, utf8BOM))).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, layout.Columns, rows[0])
	assert.Equal(t, "Анна", rows[1][6])
	assert.Equal(t, "35.50", rows[1][14])
}

func TestWrite_CSVWindows1251(t *testing.T) {
	layout, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, layout, orderRecords(), Options{Encoding: EncodingWindows1251}))

	decoded, err := charmap.Windows1251.NewDecoder().Bytes(buf.Bytes())
	require.NoError(t, err)

	rows, err := csv.NewReader(bytes.NewReader(decoded)).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Анна", rows[1][6])
}

type brokenWriter struct{}

func (brokenWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWrite_CSVWindows1251ReportsWriteFailure(t *testing.T) {
	layout, err := LayoutFor(model.SubjectOrder)
	require.NoError(t, err)

	err = Write(brokenWriter{}, FormatCSV, layout, orderRecords(), Options{Encoding: EncodingWindows1251})
	assert.ErrorContains(t, err, "disk full")
}

func TestWrite_UnknownFormat(t *testing.T) {
	layout, err := LayoutFor(model.SubjectUser)
	require.NoError(t, err)

	err = Write(&bytes.Buffer{}, "pdf", layout, nil, Options{})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestFileName(t *testing.T) {
	at := time.Date(2026, 3, 1, 9, 5, 0, 0, time.UTC)

	assert.Equal(t, "order_sync_queue_20260301_0905.xlsx", FileName(model.SubjectOrder, FormatXLSX, at))
	assert.Equal(t, "user_sync_queue_20260301_0905.csv", FileName(model.SubjectUser, FormatCSV, at))
}
