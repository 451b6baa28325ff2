// Command scanhead-replay replays a captured pcap file of scan-head UDP
// traffic through the same fragment assembler the live client uses, so a
// recorded capture can be re-analyzed without a physical head attached.
package main

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"

	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/wire"
)

func main() {
	path := flag.String("pcap", "", "path to a pcap file of captured scan-head UDP traffic")
	flag.Parse()

	if *path == "" {
		log.Fatal("scanhead-replay: -pcap is required")
	}

	f, err := os.Open(*path)
	if err != nil {
		log.Fatalf("scanhead-replay: open %s: %v", *path, err)
	}
	defer f.Close()

	reader, err := pcapgo.NewReader(f)
	if err != nil {
		log.Fatalf("scanhead-replay: read pcap header: %v", err)
	}

	asm := profile.NewAssembler(profile.RawLen/64, 500*time.Millisecond, nil)
	source := gopacket.NewPacketSource(reader, reader.LinkType())

	var profiles, statuses, malformed int
	for pkt := range source.Packets() {
		udpLayer := pkt.Layer(layers.LayerTypeUDP)
		if udpLayer == nil {
			continue
		}
		udp := udpLayer.(*layers.UDP)
		buf := udp.Payload
		if len(buf) < wire.HeaderSize {
			continue
		}

		hdr, err := wire.DecodeHeader(buf)
		if err != nil {
			malformed++
			continue
		}

		switch hdr.Type {
		case wire.TypeData:
			frag, err := wire.DecodeFragment(buf)
			if err != nil {
				malformed++
				continue
			}
			p, err := asm.Feed(frag, pkt.Metadata().Timestamp)
			if err != nil {
				malformed++
				continue
			}
			if p != nil {
				profiles++
			}
		case wire.TypeStatus:
			if _, err := wire.DecodeStatus(buf); err != nil {
				malformed++
				continue
			}
			statuses++
		}
	}

	log.Printf("scanhead-replay: %d profiles assembled, %d status packets, %d malformed datagrams", profiles, statuses, malformed)
}
