package export

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"courtbook/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestWriteDay(t *testing.T) {
	date := time.Date(2026, 9, 2, 0, 0, 0, 0, time.UTC)
	slot := model.ScheduleSlot{
		ResourceID: "court-1", StartTime: "09:00", EndTime: "10:00", DisplayTime: "09:00 - 10:00",
		Status: model.StatusAvailable, IsAvailable: true, Price: 80, OriginalPrice: 100, PromotionName: "Morning",
	}
	day := Day{
		Date:      date,
		Slots:     map[string][]model.ScheduleSlot{"court-1": {slot}},
		Errors:    map[string]error{"court-2": errors.New("timeout")},
		Selection: model.Selection{"court-1": {slot}},
		Breakdown: &model.PriceBreakdown{Subtotal: 80, Tax: 8, MinimumDeposit: 24, Total: 88},
	}

	w := NewExcelizeWriter()
	defer w.Close()
	require.NoError(t, WriteDay(w, day))

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"Slots", "Selection"}, f.GetSheetList())

	rows, err := f.GetRows("Slots")
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, slotColumns, rows[0])
	assert.Equal(t, "court-1", rows[1][0])
	assert.Equal(t, "09:00 - 10:00", rows[1][2])
	assert.Equal(t, "Morning", rows[1][7])
	assert.Equal(t, "court-2", rows[2][0])
	assert.Equal(t, "ERROR", rows[2][3])
	assert.Equal(t, "timeout", rows[2][7])

	sel, err := f.GetRows("Selection")
	require.NoError(t, err)
	require.Len(t, sel, 6)
	assert.Equal(t, []string{"court-1", "09:00", "10:00", "80"}, sel[1])
	assert.Equal(t, "Total", sel[5][0])
	assert.Equal(t, "88", sel[5][3])
}

func TestWriteDay_NoSelectionSingleSheet(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()
	require.NoError(t, WriteDay(w, Day{Date: time.Now()}))

	var buf bytes.Buffer
	require.NoError(t, w.Save(&buf))
	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"Slots"}, f.GetSheetList())
}

func TestExcelizeWriter_RequiresSheet(t *testing.T) {
	w := NewExcelizeWriter()
	defer w.Close()
	assert.Error(t, w.WriteRow([]any{"x"}))
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "slots_2026-09-02.xlsx", Filename(time.Date(2026, 9, 2, 10, 0, 0, 0, time.UTC)))
}
