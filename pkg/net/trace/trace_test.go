package trace

import (
	"bytes"
	"net"
	"path/filepath"
	"testing"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	src, dst layers.TCPPort
	seq      uint32
	payload  []byte
}

func readFrames(t *testing.T, data []byte) []frame {
	t.Helper()
	r, err := pcapgo.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, layers.LinkTypeEthernet, r.LinkType())

	var out []frame
	for {
		raw, _, err := r.ReadPacketData()
		if err != nil {
			break
		}
		pkt := gopacket.NewPacket(raw, layers.LayerTypeEthernet, gopacket.Default)
		tcp, ok := pkt.Layer(layers.LayerTypeTCP).(*layers.TCP)
		require.True(t, ok)
		out = append(out, frame{src: tcp.SrcPort, dst: tcp.DstPort, seq: tcp.Seq, payload: tcp.Payload})
	}
	return out
}

func TestFlowDirectionsAndSequence(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	// a requester: outbound traffic is the client's
	flow := rec.Flow(nil, nil, true)
	flow.Trace(true, []byte{0x01, 0x00, 0x00, 0x00, 0x00, 0x02, 0xAA, 0xBB})
	flow.Trace(false, []byte{0x02, 0x00, 0x00, 0x00, 0x00, 0x00})
	flow.Trace(true, []byte{0x05, 0x00, 0x00, 0x00, 0x00, 0x04, 0, 0, 0, 0})

	frames := readFrames(t, buf.Bytes())
	require.Len(t, frames, 3)
	assert.Equal(t, layers.TCPPort(50000), frames[0].src)
	assert.Equal(t, layers.TCPPort(DICOMPort), frames[0].dst)
	assert.Equal(t, uint32(1), frames[0].seq)
	assert.Equal(t, layers.TCPPort(DICOMPort), frames[1].src)
	assert.Equal(t, uint32(1), frames[1].seq)
	assert.Equal(t, uint32(9), frames[2].seq)
	assert.Equal(t, byte(0x05), frames[2].payload[0])
}

func TestAcceptorFlowUsesTCPAddresses(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	client := &net.TCPAddr{IP: net.ParseIP("10.0.0.1"), Port: 40000}
	server := &net.TCPAddr{IP: net.ParseIP("10.0.0.2"), Port: 11112}
	flow := rec.Flow(client, server, false)
	flow.Trace(true, []byte("response"))

	frames := readFrames(t, buf.Bytes())
	require.Len(t, frames, 1)
	assert.Equal(t, layers.TCPPort(11112), frames[0].src)
	assert.Equal(t, layers.TCPPort(40000), frames[0].dst)
}

func TestLargePayloadIsSegmented(t *testing.T) {
	var buf bytes.Buffer
	rec, err := NewRecorder(&buf)
	require.NoError(t, err)

	payload := bytes.Repeat([]byte{0x42}, 2*segmentSize+10)
	require.NoError(t, rec.Flow(nil, nil, true).Write(true, payload))

	frames := readFrames(t, buf.Bytes())
	require.Len(t, frames, 3)
	assert.Len(t, frames[2].payload, 10)
	assert.Equal(t, uint32(1+2*segmentSize), frames[2].seq)
}

func TestCreate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assoc.pcap")
	rec, err := Create(path)
	require.NoError(t, err)
	require.NoError(t, rec.Flow(nil, nil, true).Write(true, []byte("x")))
	require.NoError(t, rec.Close())
}
