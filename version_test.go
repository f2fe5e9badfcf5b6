package servhub

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVersion_Parse(t *testing.T) {
	cases := []struct {
		text string
		want Version
	}{
		{"1.0", Version{1, 0, -1, -1}},
		{"0.2", Version{0, 2, -1, -1}},
		{"1.0.0", Version{1, 0, 0, -1}},
		{"10.20.30.40", Version{10, 20, 30, 40}},
	}
	for _, c := range cases {
		v, err := ParseVersion(c.text)
		require.NoError(t, err, c.text)
		require.Equal(t, c.want, v)
		require.Equal(t, c.text, v.String(), "parse then print must round-trip")
	}
}

func TestVersion_ParseRejectsNonCanonical(t *testing.T) {
	for _, text := range []string{
		"", "1", "1.2.3.4.5", "1.", ".1", "1..2",
		"01.2", "1.02", "-1.2", "1.+2", "1.2a", "1.2 ",
	} {
		_, err := ParseVersion(text)
		require.ErrorIs(t, err, ErrVersionInvalid, text)
	}
}

func TestVersion_Compare(t *testing.T) {
	v10 := Version{1, 0, -1, -1}
	v100 := Version{1, 0, 0, -1}
	v11 := Version{1, 1, -1, -1}
	v2 := Version{2, 0, -1, -1}

	require.Equal(t, 0, v10.Compare(v10))
	require.Equal(t, -1, v10.Compare(v100), "absent component orders before zero")
	require.Equal(t, 1, v100.Compare(v10))
	require.Equal(t, -1, v10.Compare(v11))
	require.Equal(t, -1, v11.Compare(v2))
	require.False(t, v10.Equal(v100), "1.0 and 1.0.0 are distinct versions")
}
