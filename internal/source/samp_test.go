package source

import (
	"encoding/binary"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildQueryPacket(t *testing.T) {
	addr := &net.UDPAddr{IP: net.IPv4(192, 168, 1, 5), Port: 7777}

	packet, err := buildQueryPacket(addr, sampClientList)
	require.NoError(t, err)

	assert.Equal(t, []byte{
		'S', 'A', 'M', 'P',
		192, 168, 1, 5,
		0x61, 0x1e, // 7777 little-endian
		'c',
	}, packet)
}

func TestBuildQueryPacketRejectsIPv6(t *testing.T) {
	addr := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 7777}

	_, err := buildQueryPacket(addr, sampClientList)
	assert.Error(t, err)
}

// clientListResponse assembles a server response with the given nicknames.
func clientListResponse(t *testing.T, names ...string) []byte {
	t.Helper()
	resp := []byte{'S', 'A', 'M', 'P', 127, 0, 0, 1, 0x61, 0x1e, sampClientList}
	resp = binary.LittleEndian.AppendUint16(resp, uint16(len(names)))
	for _, name := range names {
		require.LessOrEqual(t, len(name), 255)
		resp = append(resp, byte(len(name)))
		resp = append(resp, name...)
		resp = binary.LittleEndian.AppendUint32(resp, 0) // score
	}
	return resp
}

func TestParseClientList(t *testing.T) {
	resp := clientListResponse(t, "Alice", "Bob")

	names, err := parseClientList(resp)
	require.NoError(t, err)
	assert.Equal(t, []string{"Alice", "Bob"}, names)
}

func TestParseClientListStripsMarkupAndDeduplicates(t *testing.T) {
	resp := clientListResponse(t, "{ff0000}Alice", "Alice", "{00ff00}", "Bob")

	names, err := parseClientList(resp)
	require.NoError(t, err)
	// Markup-only names collapse to empty and are dropped; the two Alice
	// variants collapse to one.
	assert.Equal(t, []string{"Alice", "Bob"}, names)
}

func TestParseClientListEmpty(t *testing.T) {
	names, err := parseClientList(clientListResponse(t))
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestParseClientListErrors(t *testing.T) {
	testCases := []struct {
		name string
		data []byte
	}{
		{"too short", []byte("SAMP")},
		{"bad magic", append([]byte("NOPE"), clientListResponse(t, "Alice")[4:]...)},
		{"truncated player data", clientListResponse(t, "Alice")[:sampHeaderLen+4]},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parseClientList(tc.data)
			assert.Error(t, err)
		})
	}
}

func TestParseClientListCountBeyondPayload(t *testing.T) {
	resp := clientListResponse(t, "Alice")
	// Claim more players than the payload carries.
	binary.LittleEndian.PutUint16(resp[sampHeaderLen:], 5)

	_, err := parseClientList(resp)
	assert.Error(t, err)
}
