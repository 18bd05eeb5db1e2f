package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSymbol(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"600000.SH", "600000.SH"},
		{"600000.sh", "600000.SH"},
		{"000001", "000001.SZ"},
		{"920001", "920001.BJ"},
		{"000300.SH.index", "000300.SH.INDEX"},
		{"sh_a.SH.INDEX", "sh_a.SH.INDEX"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sym, err := ParseSymbol(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, sym.String())
		})
	}
}

func TestParseSymbol_Rejects(t *testing.T) {
	for _, in := range []string{
		"",
		"600000.XX",
		"6/x.SH",
		"../../etc.SH",
		"600000.SH.BOND",
		"ABC",
		"1.2.3.4",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := ParseSymbol(in)
			assert.Error(t, err)
		})
	}
}

func TestBoardSymbolRoundTrips(t *testing.T) {
	for _, b := range []Board{BoardSH, BoardSZ, BoardBJ} {
		sym, err := ParseSymbol(b.BoardSymbol().String())
		require.NoError(t, err)
		assert.True(t, sym.Equal(b.BoardSymbol()))
	}
}
