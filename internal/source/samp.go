package source

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"

	"github.com/rs/zerolog"

	"server-presence-backend/internal/parse"
)

const (
	sampHeaderLen   = 11 // "SAMP" + 4 ip bytes + 2 port bytes + opcode
	sampClientList  = 'c'
	sampMaxResponse = 64 * 1024
)

// SampClient queries a SA-MP game server for its connected player list over
// the UDP query protocol. Implements poller.Source.
type SampClient struct {
	addr   string
	logger zerolog.Logger
}

// NewSampClient creates a client for the given game server.
func NewSampClient(host string, port int, logger zerolog.Logger) *SampClient {
	return &SampClient{
		addr:   fmt.Sprintf("%s:%d", host, port),
		logger: logger.With().Str("component", "samp").Logger(),
	}
}

// Query sends a client-list request and returns the deduplicated set of
// player names with decorative markup stripped. The context deadline bounds
// the whole exchange.
func (c *SampClient) Query(ctx context.Context) ([]string, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "udp", c.addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial game server: %w", err)
	}
	defer conn.Close()

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set query deadline: %w", err)
		}
	}

	packet, err := buildQueryPacket(conn.RemoteAddr(), sampClientList)
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(packet); err != nil {
		return nil, fmt.Errorf("failed to send query packet: %w", err)
	}

	buf := make([]byte, sampMaxResponse)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, fmt.Errorf("failed to read query response: %w", err)
	}

	return parseClientList(buf[:n])
}

// buildQueryPacket assembles the 11-byte query header: the "SAMP" magic
// followed by the resolved server IPv4 and port, then the opcode. The server
// echoes the header back in its response.
func buildQueryPacket(addr net.Addr, opcode byte) ([]byte, error) {
	udpAddr, ok := addr.(*net.UDPAddr)
	if !ok {
		return nil, fmt.Errorf("unexpected remote address type %T", addr)
	}
	ip4 := udpAddr.IP.To4()
	if ip4 == nil {
		return nil, fmt.Errorf("game server address %s is not IPv4", udpAddr.IP)
	}

	packet := make([]byte, 0, sampHeaderLen)
	packet = append(packet, 'S', 'A', 'M', 'P')
	packet = append(packet, ip4...)
	packet = append(packet, byte(udpAddr.Port&0xFF), byte(udpAddr.Port>>8))
	packet = append(packet, opcode)
	return packet, nil
}

// parseClientList decodes a client-list response: the echoed header, a
// uint16 player count, then per player a length-prefixed nickname and an
// int32 score.
func parseClientList(data []byte) ([]string, error) {
	if len(data) < sampHeaderLen+2 {
		return nil, fmt.Errorf("query response too short: %d bytes", len(data))
	}
	if string(data[:4]) != "SAMP" {
		return nil, fmt.Errorf("query response has invalid magic %q", data[:4])
	}

	count := int(binary.LittleEndian.Uint16(data[sampHeaderLen : sampHeaderLen+2]))
	offset := sampHeaderLen + 2

	names := make([]string, 0, count)
	seen := make(map[string]struct{}, count)
	for i := 0; i < count; i++ {
		if offset >= len(data) {
			return nil, fmt.Errorf("query response truncated at player %d of %d", i, count)
		}
		nickLen := int(data[offset])
		offset++
		if offset+nickLen+4 > len(data) {
			return nil, fmt.Errorf("query response truncated at player %d of %d", i, count)
		}
		name := parse.StripMarkup(string(data[offset : offset+nickLen]))
		offset += nickLen + 4 // skip the score

		if name == "" {
			continue
		}
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names, nil
}
