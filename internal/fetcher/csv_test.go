package fetcher

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	input := "\ufefffips, state ,area_name,bachelorsOrHigher\n" +
		"1001,AL,Autauga County,21.9\n" +
		"\n" +
		"1003,AL, Baldwin County ,28.6\n" +
		"1005,AL\n"

	rows, err := ReadCSV(strings.NewReader(input), CSVOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 3)

	assert.Equal(t, "1001", rows[0]["fips"])
	assert.Equal(t, "AL", rows[0]["state"])
	assert.Equal(t, "Baldwin County", rows[1]["area_name"])
	assert.Equal(t, "", rows[2]["bachelorsOrHigher"])
}

func TestReadCSV_Delimiter(t *testing.T) {
	rows, err := ReadCSV(strings.NewReader("key;value\n# note\nA;1\n"), CSVOptions{Delimiter: ';', Comment: '#'})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]string{"key": "A", "value": "1"}, rows[0])
}

func TestHeaderMaps_Empty(t *testing.T) {
	assert.Nil(t, HeaderMaps(nil))
	assert.Empty(t, HeaderMaps([][]string{{"a", "b"}}))
}
