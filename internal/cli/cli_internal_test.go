package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBillID(t *testing.T) {
	id, err := parseBillID("42")
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)

	for _, bad := range []string{"", "0", "-3", "abc", "4.2"} {
		_, err := parseBillID(bad)
		assert.Error(t, err, bad)
	}
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(none)", maskSecret(""))
	assert.Equal(t, "***", maskSecret("abc"))
	assert.Equal(t, "********wxyz", maskSecret("12345678wxyz"))
}

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"sweep"},
		{"bills", "list"},
		{"bills", "add"},
		{"bills", "pay"},
		{"bills", "delete"},
		{"bills", "import"},
		{"settings", "show"},
		{"settings", "set"},
		{"notify", "test"},
		{"notify", "list"},
		{"version"},
	} {
		cmd, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}
}
