// Package pcapinput implements an Input plugin that replays a pcap file
// of captured TS-over-UDP traffic: each UDP datagram's payload is sliced
// into 188-byte TS packets, the common MPEG-over-IP carriage format.
package pcapinput

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/tsgopipe/tsgopipe/internal/buffer"
	"github.com/tsgopipe/tsgopipe/pkg/plugin"
)

// Config is the plugin's decoded option set.
type Config struct {
	// File is the path to a pcap (not pcap-ng) capture file.
	File string `mapstructure:"file"`
	// Loop replays the file repeatedly instead of ending input once
	// exhausted; useful for soak-testing a pipeline.
	Loop bool `mapstructure:"loop"`
}

// Reader is the pcap-file Input plugin.
type Reader struct {
	cfg    Config
	report plugin.ReportSink

	file    *os.File
	pcap    *pcapgo.Reader
	pending []byte // leftover TS bytes from a partially-consumed datagram
}

// New constructs an unconfigured Reader.
func New() *Reader { return &Reader{} }

func (r *Reader) Kind() plugin.Kind { return plugin.KindInput }

func (r *Reader) ResetContext() error {
	r.pending = nil
	return nil
}

func (r *Reader) Analyze(options map[string]any) error {
	cfg := Config{}
	if err := plugin.Decode(options, &cfg); err != nil {
		return fmt.Errorf("pcapinput: %w", err)
	}
	if cfg.File == "" {
		return fmt.Errorf("pcapinput: file is required")
	}
	r.cfg = cfg
	return nil
}

func (r *Reader) Start() error {
	return r.open()
}

func (r *Reader) open() error {
	f, err := os.Open(r.cfg.File)
	if err != nil {
		return fmt.Errorf("pcapinput: open %q: %w", r.cfg.File, err)
	}
	pr, err := pcapgo.NewReader(f)
	if err != nil {
		f.Close()
		return fmt.Errorf("pcapinput: parse %q: %w", r.cfg.File, err)
	}
	r.file = f
	r.pcap = pr
	r.pending = nil
	return nil
}

func (r *Reader) Stop() error {
	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file, r.pcap = nil, nil
	return err
}

func (r *Reader) HandlePacketTimeout() bool { return true }
func (r *Reader) IsRealTime() bool          { return false }

func (r *Reader) RedirectReport(sink plugin.ReportSink) plugin.ReportSink {
	prev := r.report
	r.report = sink
	return prev
}

// Receive drains pending TS bytes first, then decodes further pcap
// records, extracting each one's UDP payload, until pkts is full or the
// file is exhausted (or, if Loop is set, reopens and continues).
func (r *Reader) Receive(pkts []buffer.Packet, meta []buffer.Metadata) (int, error) {
	produced := 0
	now := time.Now()
	for produced < len(pkts) {
		for len(r.pending) >= buffer.PacketSize && produced < len(pkts) {
			copy(pkts[produced][:], r.pending[:buffer.PacketSize])
			meta[produced] = buffer.Metadata{Flags: buffer.FlagValid, Timestamp: now, InputTimestamp: now}
			r.pending = r.pending[buffer.PacketSize:]
			produced++
		}
		if produced == len(pkts) {
			break
		}

		payload, _, err := r.pcap.ReadPacketData()
		if err == io.EOF {
			if r.cfg.Loop {
				if reopenErr := r.reopen(); reopenErr != nil {
					return produced, reopenErr
				}
				continue
			}
			return produced, nil
		}
		if err != nil {
			return produced, fmt.Errorf("pcapinput: read: %w", err)
		}

		r.pending = extractUDPPayload(payload)
	}
	return produced, nil
}

func (r *Reader) reopen() error {
	if err := r.Stop(); err != nil {
		return err
	}
	return r.open()
}

// extractUDPPayload decodes an Ethernet/IP/UDP frame and returns its
// payload bytes, or nil if the frame doesn't carry a UDP datagram.
func extractUDPPayload(data []byte) []byte {
	pkt := gopacket.NewPacket(data, layers.LayerTypeEthernet, gopacket.NoCopy)
	udpLayer := pkt.Layer(layers.LayerTypeUDP)
	if udpLayer == nil {
		return nil
	}
	udp, ok := udpLayer.(*layers.UDP)
	if !ok {
		return nil
	}
	return udp.Payload
}

func init() {
	plugin.RegisterInput("pcapinput", func() plugin.Input { return New() })
}
