package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageIDUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id := MessageID()
		require.False(t, seen[id])
		seen[id] = true
	}
}

func TestGuestIDFormat(t *testing.T) {
	id, err := GuestID()
	require.NoError(t, err)

	require.True(t, strings.HasPrefix(id, GuestIDPrefix))

	raw := strings.TrimPrefix(id, GuestIDPrefix)
	require.Len(t, raw, GuestIDRawLength)
	for _, c := range raw {
		require.Contains(t, Base62Chars, string(c))
	}
}

func TestAvatarColor(t *testing.T) {
	palette := []string{"pink", "indigo", "green"}
	require.Contains(t, palette, AvatarColor(palette))

	require.Equal(t, "", AvatarColor(nil))
}
