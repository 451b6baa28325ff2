// Command profile-recorder connects to a single scan head and persists
// every assembled profile to a local sqlite database until interrupted.
package main

import (
	"context"
	"flag"
	"log"
	"net"
	"os"
	"os/signal"
	"time"

	"github.com/scanworks/scanhead-client/internal/head"
	"github.com/scanworks/scanhead-client/internal/netio"
	"github.com/scanworks/scanhead-client/internal/presets"
	"github.com/scanworks/scanhead-client/internal/profile"
	"github.com/scanworks/scanhead-client/internal/profilelog"
)

func main() {
	headIP := flag.String("head", "", "scan head IP address")
	headPort := flag.Int("port", 10940, "scan head command port")
	serial := flag.Uint("serial", 0, "scan head serial number")
	preset := flag.String("preset", "XYFullLMFull", "scan preset name")
	rateHz := flag.Float64("rate", 1000, "scan rate in Hz")
	dbPath := flag.String("db", "profiles.db", "output sqlite database path")
	flag.Parse()

	if *headIP == "" {
		log.Fatal("profile-recorder: -head is required")
	}

	store, err := profilelog.Open(*dbPath)
	if err != nil {
		log.Fatalf("profile-recorder: open database: %v", err)
	}
	defer store.Close()

	factory := netio.NewRealSocketFactory()
	headAddr := &net.UDPAddr{IP: net.ParseIP(*headIP), Port: *headPort}
	clientIP := net.ParseIP("0.0.0.0")

	h, err := head.New(factory, headAddr, clientIP, 0, 0, uint32(*serial))
	if err != nil {
		log.Fatalf("profile-recorder: create head session: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := h.Connect(ctx); err != nil {
		log.Fatalf("profile-recorder: connect: %v", err)
	}
	defer h.Disconnect()

	p, err := presets.Get(*preset)
	if err != nil {
		log.Fatalf("profile-recorder: %v", err)
	}
	if err := h.StartScanning(p.ToParams(*rateHz, 0, profile.RawLen-1)); err != nil {
		log.Fatalf("profile-recorder: start scanning: %v", err)
	}
	defer h.StopScanning()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt)

	runCtx, runCancel := context.WithCancel(context.Background())
	go func() {
		<-stop
		runCancel()
	}()

	var recorded int
	for {
		prof, err := h.TakeNextProfile(runCtx)
		if err != nil {
			break
		}
		if err := store.Insert(prof, time.Now()); err != nil {
			log.Printf("profile-recorder: insert failed: %v", err)
			continue
		}
		recorded++
	}
	log.Printf("profile-recorder: recorded %d profiles", recorded)
}
