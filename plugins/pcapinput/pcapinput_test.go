package pcapinput

import (
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeRequiresFile(t *testing.T) {
	r := New()
	assert.Error(t, r.Analyze(map[string]any{}))
}

func TestExtractUDPPayloadReturnsDatagramBody(t *testing.T) {
	eth := layers.Ethernet{
		SrcMAC:       []byte{1, 2, 3, 4, 5, 6},
		DstMAC:       []byte{6, 5, 4, 3, 2, 1},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolUDP,
		SrcIP:    []byte{10, 0, 0, 1},
		DstIP:    []byte{10, 0, 0, 2},
	}
	udp := layers.UDP{SrcPort: 1234, DstPort: 5678}
	udp.SetNetworkLayerForChecksum(&ip)

	payload := make([]byte, 188)
	payload[0] = 0x47

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, &udp, gopacket.Payload(payload)))

	got := extractUDPPayload(buf.Bytes())
	require.Len(t, got, len(payload))
	assert.Equal(t, byte(0x47), got[0])
}

func TestExtractUDPPayloadNilForNonUDP(t *testing.T) {
	eth := layers.Ethernet{
		SrcMAC:       []byte{1, 2, 3, 4, 5, 6},
		DstMAC:       []byte{6, 5, 4, 3, 2, 1},
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := layers.IPv4{
		Version:  4,
		IHL:      5,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    []byte{10, 0, 0, 1},
		DstIP:    []byte{10, 0, 0, 2},
	}
	tcp := layers.TCP{SrcPort: 1234, DstPort: 5678}
	tcp.SetNetworkLayerForChecksum(&ip)

	buf := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{ComputeChecksums: true, FixLengths: true}
	require.NoError(t, gopacket.SerializeLayers(buf, opts, &eth, &ip, &tcp))

	assert.Nil(t, extractUDPPayload(buf.Bytes()))
}
