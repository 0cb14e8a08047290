package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNoticeText(t *testing.T) {
	views := 0
	n := Notice{Date: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)}

	assert.Equal(t, "2024-05-01", n.DateText())
	assert.Equal(t, "N/A", n.ViewsText("N/A"))

	n.Views = &views
	assert.Equal(t, "0", n.ViewsText("N/A"))
}

func TestIDSet(t *testing.T) {
	set := NewIDSet(" 100 ", "", "200")

	assert.Len(t, set, 2)
	assert.True(t, set.Has("100"))
	assert.True(t, set.Has(" 200\n"))
	assert.False(t, set.Has(""))

	clone := set.Clone()
	clone.Add("300")
	assert.False(t, set.Has("300"), "Cloneは元の集合を変更しない")
	assert.True(t, clone.Has("300"))
}

func TestIsNumericID(t *testing.T) {
	assert.True(t, IsNumericID("145435"))
	assert.False(t, IsNumericID(""))
	assert.False(t, IsNumericID("12a"))
	assert.False(t, IsNumericID("-1"))
	assert.False(t, IsNumericID("١٢")) // ASCII 以外の数字
}

func TestCompareNumericIDs(t *testing.T) {
	tests := []struct {
		a, b     string
		expected int
	}{
		{"9", "10", -1},
		{"145435", "145434", 1},
		{"007", "7", 0},
		{"99999999999999999999", "100000000000000000000", -1},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.expected, CompareNumericIDs(tt.a, tt.b))
		})
	}
}
