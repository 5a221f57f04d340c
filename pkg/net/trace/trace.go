// Package trace writes association traffic to a pcap file as synthetic
// Ethernet/IPv4/TCP frames so it can be opened in a packet analyzer.
package trace

import (
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
)

const (
	// DICOMPort is used for the server side of flows without a TCP address.
	DICOMPort = 104
	// segmentSize keeps every frame within a standard Ethernet MTU.
	segmentSize = 1460
	snapLen     = 65535
)

var (
	clientMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x01}
	serverMAC = net.HardwareAddr{0x00, 0x00, 0x00, 0x00, 0x00, 0x02}
	clientIP  = net.IPv4(192, 168, 100, 10).To4()
	serverIP  = net.IPv4(192, 168, 100, 20).To4()
)

// Recorder serializes frames from any number of flows into one capture.
type Recorder struct {
	mu       sync.Mutex
	w        *pcapgo.Writer
	closer   io.Closer
	now      func() time.Time
	nextPort uint16
}

// NewRecorder writes the pcap file header to w.
func NewRecorder(w io.Writer) (*Recorder, error) {
	pw := pcapgo.NewWriter(w)
	if err := pw.WriteFileHeader(snapLen, layers.LinkTypeEthernet); err != nil {
		return nil, fmt.Errorf("write pcap header: %w", err)
	}
	return &Recorder{w: pw, now: time.Now, nextPort: 50000}, nil
}

// Create starts a capture file at path.
func Create(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create pcap: %w", err)
	}
	r, err := NewRecorder(f)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

func (r *Recorder) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// Flow is one TCP conversation. It satisfies the association Tracer.
type Flow struct {
	r                  *Recorder
	clientIP, serverIP net.IP
	clientPort         uint16
	serverPort         uint16
	clientSeq          uint32
	serverSeq          uint32
	// outboundIsClient is true when the traced side opened the connection.
	outboundIsClient bool
}

// Flow starts a conversation between client and server. Addresses that are
// not IPv4 TCP endpoints are replaced by synthetic ones.
func (r *Recorder) Flow(client, server net.Addr, outboundIsClient bool) *Flow {
	r.mu.Lock()
	defer r.mu.Unlock()
	f := &Flow{
		r:                r,
		clientIP:         clientIP,
		serverIP:         serverIP,
		clientPort:       r.nextPort,
		serverPort:       DICOMPort,
		clientSeq:        1,
		serverSeq:        1,
		outboundIsClient: outboundIsClient,
	}
	r.nextPort++
	if ip, port, ok := endpoint(client); ok {
		f.clientIP, f.clientPort = ip, port
	}
	if ip, port, ok := endpoint(server); ok {
		f.serverIP, f.serverPort = ip, port
	}
	return f
}

func endpoint(addr net.Addr) (net.IP, uint16, bool) {
	tcp, ok := addr.(*net.TCPAddr)
	if !ok || tcp.IP.To4() == nil {
		return nil, 0, false
	}
	return tcp.IP.To4(), uint16(tcp.Port), true
}

// Trace records one PDU. Write failures are dropped; a capture is a
// debugging aid and must not disturb the association.
func (f *Flow) Trace(outbound bool, raw []byte) {
	_ = f.Write(outbound == f.outboundIsClient, raw)
}

// Write records payload sent by the client (fromClient) or the server,
// split into MTU sized segments.
func (f *Flow) Write(fromClient bool, payload []byte) error {
	f.r.mu.Lock()
	defer f.r.mu.Unlock()
	for len(payload) > 0 {
		n := min(len(payload), segmentSize)
		if err := f.segment(fromClient, payload[:n]); err != nil {
			return err
		}
		payload = payload[n:]
	}
	return nil
}

func (f *Flow) segment(fromClient bool, data []byte) error {
	srcMAC, dstMAC := clientMAC, serverMAC
	srcIP, dstIP := f.clientIP, f.serverIP
	srcPort, dstPort := f.clientPort, f.serverPort
	seq, ack := &f.clientSeq, f.serverSeq
	if !fromClient {
		srcMAC, dstMAC = dstMAC, srcMAC
		srcIP, dstIP = dstIP, srcIP
		srcPort, dstPort = dstPort, srcPort
		seq, ack = &f.serverSeq, f.clientSeq
	}

	ethernet := &layers.Ethernet{
		SrcMAC:       srcMAC,
		DstMAC:       dstMAC,
		EthernetType: layers.EthernetTypeIPv4,
	}
	ip := &layers.IPv4{
		Version:  4,
		TTL:      64,
		Protocol: layers.IPProtocolTCP,
		SrcIP:    srcIP,
		DstIP:    dstIP,
	}
	tcp := &layers.TCP{
		SrcPort: layers.TCPPort(srcPort),
		DstPort: layers.TCPPort(dstPort),
		ACK:     true,
		PSH:     true,
		Seq:     *seq,
		Ack:     ack,
		Window:  65535,
	}
	_ = tcp.SetNetworkLayerForChecksum(ip)
	*seq += uint32(len(data))

	buffer := gopacket.NewSerializeBuffer()
	opts := gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true}
	if err := gopacket.SerializeLayers(buffer, opts, ethernet, ip, tcp, gopacket.Payload(data)); err != nil {
		return fmt.Errorf("serialize packet: %w", err)
	}
	b := buffer.Bytes()
	if err := f.r.w.WritePacket(gopacket.CaptureInfo{
		Timestamp:     f.r.now(),
		CaptureLength: len(b),
		Length:        len(b),
	}, b); err != nil {
		return fmt.Errorf("write packet: %w", err)
	}
	return nil
}
