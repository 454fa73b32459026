package common

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWipeByteArray(t *testing.T) {
	buf := []byte{1, 2, 3, 4, 5}
	WipeByteArray(buf)
	assert.Equal(t, []byte{0, 0, 0, 0, 0}, buf)

	WipeByteArray(nil)
}

func TestGenerateRandByteArray(t *testing.T) {
	a := GenerateRandByteArray(24)
	b := GenerateRandByteArray(24)
	require.Len(t, a, 24)
	require.Len(t, b, 24)
	if string(a) == string(b) {
		t.Logf("warning: two GenerateRandByteArray results are identical; extremely unlikely")
	}
}

func TestRandomString(t *testing.T) {
	tests := []struct {
		name     string
		alphabet string
		n        int
		wantErr  bool
	}{
		{name: "alphanumeric", alphabet: AlphaNumeric, n: 6},
		{name: "lower alphanumeric", alphabet: LowerAlphaNumeric, n: 32},
		{name: "binary alphabet", alphabet: "01", n: 64},
		{name: "zero length", alphabet: AlphaNumeric, n: 0},
		{name: "alphabet too short", alphabet: "a", n: 4, wantErr: true},
		{name: "alphabet too long", alphabet: strings.Repeat("a", 257), n: 4, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := RandomString(tt.alphabet, tt.n)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, s, tt.n)
			for _, r := range s {
				assert.True(t, strings.ContainsRune(tt.alphabet, r), "unexpected char %q", r)
			}
		})
	}
}
