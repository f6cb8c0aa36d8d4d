package ingest

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Manoela-Calabresi-Portfolio/ETL-Geodata-Pipeline-sub001/internal/errkind"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Bad  Cannstatt ", "Bad Cannstatt"},
		{"  Mitte", "Mitte"},
		{"Mühlhausen", "Mühlhausen"},
		// Decomposed u + combining diaeresis composes to the same key.
		{"Mühlhausen", "Mühlhausen"},
		{"Stammheim\t\n", "Stammheim"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NormalizeName(tc.in), "input %q", tc.in)
	}
}

func TestIsTotalMarker(t *testing.T) {
	assert.True(t, IsTotalMarker("Insgesamt"))
	assert.True(t, IsTotalMarker("  total "))
	assert.True(t, IsTotalMarker("SUMME"))
	assert.True(t, IsTotalMarker("alle"))

	// Containing a marker word is not being one.
	assert.False(t, IsTotalMarker("Stuttgart insgesamt"))
	assert.False(t, IsTotalMarker("Walle"))
	assert.False(t, IsTotalMarker(""))
}

func TestYearOf(t *testing.T) {
	y, ok := YearOf("31.12.2023")
	require.True(t, ok)
	assert.Equal(t, 2023, y)

	y, ok = YearOf("2019-01-01")
	require.True(t, ok)
	assert.Equal(t, 2019, y)

	y, ok = YearOf("Stand: 2021")
	require.True(t, ok)
	assert.Equal(t, 2021, y)

	_, ok = YearOf("31.12.")
	assert.False(t, ok)

	_, ok = YearOf("")
	assert.False(t, ok)
}

func TestParseNumber(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"1234", 1234},
		{"1.234", 1234},
		{"1.234.567", 1234567},
		{"12,5", 12.5},
		{"1.234,5", 1234.5},
		{"12.5", 12.5},
		{"-42", -42},
		{"1 234", 1234},
	}
	for _, tc := range cases {
		got, err := ParseNumber(tc.in)
		require.NoError(t, err, "input %q", tc.in)
		assert.InDelta(t, tc.want, got, 1e-9, "input %q", tc.in)
	}
}

func TestParseNumber_Malformed(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "12,3,4"} {
		_, err := ParseNumber(in)
		require.Error(t, err, "input %q", in)
		assert.True(t, errkind.Is(err, errkind.MalformedInput), "input %q", in)
	}
}
