package main

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var roomCodePattern = regexp.MustCompile(`^[A-Z0-9]{4}$`)

func TestRandomRoomCodeFormat(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 200; i++ {
		code := randomRoomCode()
		assert.Regexp(t, roomCodePattern, code)
		seen[code] = true
	}

	// 200 draws from a 36^4 space should essentially never all collide.
	assert.Greater(t, len(seen), 150)
}

func TestRegistryCreateAndGet(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, stubMatcher{}, nil, nil)
	t.Cleanup(reg.Stop)

	host := newTestClient()
	room, player, err := reg.Create(host, "Alex", "user-a", "food")
	require.NoError(t, err)

	assert.Regexp(t, roomCodePattern, room.code)
	assert.Equal(t, "1", player.ID)
	assert.Equal(t, "Alex", player.Name)
	assert.True(t, player.IsHost)
	assert.Equal(t, "user-a", player.UserID)

	found, err := reg.Get(room.code)
	require.NoError(t, err)
	assert.Same(t, room, found)

	// Lookups are case-insensitive.
	found, err = reg.Get(strings.ToLower(room.code))
	require.NoError(t, err)
	assert.Same(t, room, found)

	_, err = reg.Get("ZZZZZZ")
	assert.ErrorIs(t, err, errRoomNotFound)
}

func TestRegistryCodesAreUnique(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, stubMatcher{}, nil, nil)
	t.Cleanup(reg.Stop)

	codes := make(map[string]bool)
	for i := 0; i < 50; i++ {
		room, _, err := reg.Create(newTestClient(), "Alex", "", "")
		require.NoError(t, err)
		assert.False(t, codes[room.code], "duplicate live code %s", room.code)
		codes[room.code] = true
	}

	assert.Equal(t, 50, reg.RoomCount())
}

func TestRegistryRemoveIsIdempotent(t *testing.T) {
	cfg := testConfig()
	reg := newRegistry(cfg, stubMatcher{}, nil, nil)
	t.Cleanup(reg.Stop)

	room, _, err := reg.Create(newTestClient(), "Alex", "", "")
	require.NoError(t, err)

	reg.remove(room.code)
	reg.remove(room.code)

	assert.Equal(t, 0, reg.RoomCount())
}
