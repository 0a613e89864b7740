package tool

import (
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestGenerateUUIDV7(t *testing.T) {
	id, err := uuid.Parse(GenerateUUIDV7())
	require.NoError(t, err)
	require.Equal(t, uuid.Version(7), id.Version())
}

func TestPrefixedRefAndHash(t *testing.T) {
	ref := PrefixedRef("pending")
	require.True(t, strings.HasPrefix(ref, "pending_"))
	require.NotEqual(t, ref, PrefixedRef("pending"))

	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", SHA256Hex(nil))
}
