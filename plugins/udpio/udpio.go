// Package udpio implements the common TSDuck ip/udp plugin pair: an
// Input that reads TS packets from a UDP (unicast or multicast) socket
// and an Output that writes them back out the same way.
package udpio

import (
	"fmt"
	"net"
	"time"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// datagramPackets is the number of TS packets packed into one UDP
// datagram by the sender side; 7 packets of 188 bytes fill the common
// 1316-byte MPEG-over-IP payload size exactly.
const datagramPackets = 7
const datagramSize = datagramPackets * buffer.PacketSize

// Config is shared by the Input and Output sides of this plugin pair.
type Config struct {
	// Addr is host:port to listen on (Input) or send to (Output).
	Addr string `mapstructure:"addr"`
	// Interface selects the multicast interface by name; empty uses the
	// system default.
	Interface string `mapstructure:"interface"`
	// ReadTimeout bounds how long Receive blocks before reporting
	// end-of-input on an idle socket; zero means block indefinitely.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`
}

// Reader is the Input side: it listens on a UDP socket (joining a
// multicast group if Addr's host is a multicast address) and slices
// incoming datagrams into fixed-size TS packets.
type Reader struct {
	cfg    Config
	report plugin.ReportSink
	conn   *net.UDPConn
	buf    []byte
}

// Writer is the Output side: it sends packets, batched into datagrams, to
// the configured UDP destination.
type Writer struct {
	cfg    Config
	report plugin.ReportSink
	conn   *net.UDPConn
}

// NewReader constructs an unconfigured Reader.
func NewReader() *Reader { return &Reader{} }

// NewWriter constructs an unconfigured Writer.
func NewWriter() *Writer { return &Writer{} }

func (r *Reader) Kind() plugin.Kind { return plugin.KindInput }
func (w *Writer) Kind() plugin.Kind { return plugin.KindOutput }

func (r *Reader) ResetContext() error { return nil }
func (w *Writer) ResetContext() error { return nil }

func (r *Reader) Analyze(options map[string]any) error {
	cfg := Config{}
	if err := plugin.Decode(options, &cfg); err != nil {
		return fmt.Errorf("udpio: reader: %w", err)
	}
	if cfg.Addr == "" {
		return fmt.Errorf("udpio: reader: addr is required")
	}
	r.cfg = cfg
	return nil
}

func (w *Writer) Analyze(options map[string]any) error {
	cfg := Config{}
	if err := plugin.Decode(options, &cfg); err != nil {
		return fmt.Errorf("udpio: writer: %w", err)
	}
	if cfg.Addr == "" {
		return fmt.Errorf("udpio: writer: addr is required")
	}
	w.cfg = cfg
	return nil
}

// Start opens (or reopens, on restart) the listening socket, joining the
// multicast group when Addr's host is a multicast address.
func (r *Reader) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", r.cfg.Addr)
	if err != nil {
		return fmt.Errorf("udpio: reader: resolve %q: %w", r.cfg.Addr, err)
	}

	var conn *net.UDPConn
	if udpAddr.IP != nil && udpAddr.IP.IsMulticast() {
		var iface *net.Interface
		if r.cfg.Interface != "" {
			iface, err = net.InterfaceByName(r.cfg.Interface)
			if err != nil {
				return fmt.Errorf("udpio: reader: interface %q: %w", r.cfg.Interface, err)
			}
		}
		conn, err = net.ListenMulticastUDP("udp", iface, udpAddr)
	} else {
		conn, err = net.ListenUDP("udp", udpAddr)
	}
	if err != nil {
		return fmt.Errorf("udpio: reader: listen %q: %w", r.cfg.Addr, err)
	}
	r.conn = conn
	r.buf = make([]byte, 64*1024)
	return nil
}

func (w *Writer) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", w.cfg.Addr)
	if err != nil {
		return fmt.Errorf("udpio: writer: resolve %q: %w", w.cfg.Addr, err)
	}
	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return fmt.Errorf("udpio: writer: dial %q: %w", w.cfg.Addr, err)
	}
	w.conn = conn
	return nil
}

func (r *Reader) Stop() error {
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}

func (w *Writer) Stop() error {
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

func (r *Reader) HandlePacketTimeout() bool { return true }
func (w *Writer) HandlePacketTimeout() bool { return true }

func (r *Reader) IsRealTime() bool { return true }
func (w *Writer) IsRealTime() bool { return true }

func (r *Reader) RedirectReport(sink plugin.ReportSink) plugin.ReportSink {
	prev := r.report
	r.report = sink
	return prev
}

func (w *Writer) RedirectReport(sink plugin.ReportSink) plugin.ReportSink {
	prev := w.report
	w.report = sink
	return prev
}

// Receive reads one datagram and slices it into complete 188-byte
// packets, discarding any trailing partial packet. A socket read timeout
// returns zero packets and no error, leaving the decision to the caller's
// timeout/abort machinery; any other receive error is returned.
func (r *Reader) Receive(pkts []buffer.Packet, meta []buffer.Metadata) (int, error) {
	if r.cfg.ReadTimeout > 0 {
		r.conn.SetReadDeadline(time.Now().Add(r.cfg.ReadTimeout))
	}
	n, _, err := r.conn.ReadFromUDP(r.buf)
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return 0, nil
		}
		return 0, err
	}

	count := n / buffer.PacketSize
	if count > len(pkts) {
		count = len(pkts)
	}
	now := time.Now()
	for i := 0; i < count; i++ {
		copy(pkts[i][:], r.buf[i*buffer.PacketSize:(i+1)*buffer.PacketSize])
		meta[i] = buffer.Metadata{Flags: buffer.FlagValid, Timestamp: now, InputTimestamp: now}
	}
	return count, nil
}

// Send packs count packets into as few datagrams as fit datagramPackets
// each and writes them to the configured destination.
func (w *Writer) Send(pkts []buffer.Packet, meta []buffer.Metadata, count int) error {
	out := make([]byte, 0, datagramSize)
	for i := 0; i < count; i++ {
		out = append(out, pkts[i][:]...)
		if len(out) == datagramSize || i == count-1 {
			if _, err := w.conn.Write(out); err != nil {
				return fmt.Errorf("udpio: writer: %w", err)
			}
			out = out[:0]
		}
	}
	return nil
}

func init() {
	plugin.RegisterInput("udp", func() plugin.Input { return NewReader() })
	plugin.RegisterOutput("udp", func() plugin.Output { return NewWriter() })
}
