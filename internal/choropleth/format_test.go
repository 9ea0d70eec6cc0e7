package choropleth

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatTick(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2.6, "3%"},
		{10, "10%"},
		{18.49, "18%"},
		{75.1, "75%"},
		{0, "0%"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatTick(tt.in))
	}
}

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "24.6", FormatValue(24.6))
	assert.Equal(t, "10", FormatValue(10))
	assert.Equal(t, "1,234.5", FormatValue(1234.5))
}

func TestTooltip(t *testing.T) {
	withStat := Region{
		RegionKey: "01001",
		Value:     24.6,
		HasValue:  true,
		Stat:      &StatRecord{RegionKey: "01001", Value: 24.6, DisplayName: "Autauga County", GroupName: "AL"},
	}
	assert.Equal(t, "Autauga County, AL: 24.6%", Tooltip(withStat))

	noGroup := withStat
	noGroup.Stat = &StatRecord{RegionKey: "01001", Value: 24.6, DisplayName: "Autauga County"}
	assert.Equal(t, "Autauga County: 24.6%", Tooltip(noGroup))

	bare := Region{RegionKey: "01001", Value: 3, HasValue: true}
	assert.Equal(t, "01001: 3%", Tooltip(bare))

	assert.Equal(t, "02013: no data", Tooltip(Region{RegionKey: "02013", Bucket: Unclassified}))
}
