// ABOUTME: Entry point for the Cadenza streaming player
// ABOUTME: Parses CLI flags, discovers the server, and starts playback
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/Cadenza-Audio/cadenza-go/internal/discovery"
	"github.com/Cadenza-Audio/cadenza-go/internal/ui"
	"github.com/Cadenza-Audio/cadenza-go/internal/version"
	"github.com/Cadenza-Audio/cadenza-go/pkg/cadenza"
)

var (
	serverURL = flag.String("server", "", "Server base URL (skip mDNS), e.g. http://host:8930")
	trackID   = flag.String("track", "", "Track ID to play (required)")
	name      = flag.String("name", "", "Player friendly name (default: hostname-cadenza)")
	volume    = flag.Int("volume", 100, "Initial volume (0-100)")
	logFile   = flag.String("log-file", "cadenza-player.log", "Log file path")
	noTUI     = flag.Bool("no-tui", false, "Disable TUI, use streaming logs instead")
)

func main() {
	flag.Parse()

	if *trackID == "" {
		fmt.Fprintln(os.Stderr, "usage: cadenza-player -track <id> [-server <url>]")
		os.Exit(2)
	}

	useTUI := !*noTUI

	f, err := os.OpenFile(*logFile, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	defer func() { _ = f.Close() }()

	if useTUI {
		// TUI mode: log only to file
		log.SetOutput(f)
	} else {
		log.SetOutput(io.MultiWriter(os.Stdout, f))
	}

	playerName := *name
	if playerName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		playerName = fmt.Sprintf("%s-cadenza", hostname)
	}

	log.Printf("Starting %s v%s: %s", version.Product, version.Version, playerName)

	// TUI setup
	var tuiProg *tea.Program
	var controls *ui.Controls

	if useTUI {
		controls = ui.NewControls()
		tuiProg, err = ui.Run(controls)
		if err != nil {
			log.Fatalf("Failed to start TUI: %v", err)
		}
		go tuiProg.Run()
	}

	updateTUI := func(msg ui.StatusMsg) {
		if tuiProg != nil {
			tuiProg.Send(msg)
		}
	}

	// Resolve the server, via mDNS when not given explicitly
	server := *serverURL
	if server == "" {
		log.Printf("Starting server discovery...")
		disc := discovery.NewManager(discovery.Config{PlayerName: playerName, Port: 8930})
		disc.Advertise()
		disc.Browse()

		select {
		case found := <-disc.Servers():
			server = fmt.Sprintf("http://%s:%d", found.Host, found.Port)
			log.Printf("Discovered server at %s", server)
		case <-time.After(10 * time.Second):
			log.Fatalf("No server found after 10 seconds")
		}
		disc.Stop()
	}

	trackEnded := make(chan struct{}, 1)

	player, err := cadenza.NewPlayer(cadenza.Config{
		ServerURL:  server,
		PlayerName: playerName,
		Volume:     float64(*volume) / 100.0,
		OnStateChange: func(state string) {
			updateTUI(ui.StatusMsg{State: state})
		},
		OnTrackEnd: func() {
			select {
			case trackEnded <- struct{}{}:
			default:
			}
		},
		OnUnderrun: func(total uint64) {
			log.Printf("Underrun (total: %d)", total)
		},
		OnError: func(err error) {
			log.Printf("Feed error: %v", err)
		},
	})
	if err != nil {
		log.Fatalf("Failed to create player: %v", err)
	}

	if err := player.Connect(); err != nil {
		log.Printf("Signaling unavailable, continuing without events: %v", err)
	} else {
		go logEvents(player)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := player.Load(ctx, *trackID); err != nil {
		cancel()
		log.Fatalf("Failed to load track %s: %v", *trackID, err)
	}
	if err := player.Play(ctx); err != nil {
		cancel()
		log.Fatalf("Failed to start playback: %v", err)
	}
	cancel()

	info := player.Info()
	updateTUI(ui.StatusMsg{
		TrackID:    info.TrackID,
		ServerName: server,
		Codec:      info.Codec,
		SampleRate: info.SampleRate,
		Channels:   info.Channels,
		BitDepth:   info.BitDepth,
		Duration:   info.Duration,
	})

	if controls != nil {
		go handleControls(player, controls)
	}
	if tuiProg != nil {
		go statusUpdateLoop(player, updateTUI)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if controls != nil {
		select {
		case <-controls.Quit:
			log.Printf("Received quit from TUI")
		case <-sigChan:
			log.Printf("Shutdown signal received")
		case <-trackEnded:
			log.Printf("Track finished")
			tuiProg.Quit()
		}
	} else {
		select {
		case <-sigChan:
			log.Printf("Shutdown signal received")
		case <-trackEnded:
			log.Printf("Track finished")
		}
	}

	if err := player.Close(); err != nil {
		log.Printf("Error closing player: %v", err)
	}

	log.Printf("Player stopped")
}

// handleControls processes transport commands from the TUI
func handleControls(player *cadenza.Player, controls *ui.Controls) {
	for {
		select {
		case <-controls.Toggle:
			if err := player.Toggle(); err != nil {
				log.Printf("Toggle: %v", err)
			}
		case msg := <-controls.Seek:
			target := player.Position() + msg.Delta
			if target < 0 {
				target = 0
			}
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := player.Seek(ctx, target); err != nil {
				log.Printf("Seek to %.1fs: %v", target, err)
			}
			cancel()
		case msg := <-controls.Volume:
			player.SetVolume(float64(msg.Percent) / 100.0)
		case <-controls.Quit:
			return
		}
	}
}

// statusUpdateLoop periodically pushes playback status to the TUI
func statusUpdateLoop(player *cadenza.Player, updateTUI func(ui.StatusMsg)) {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	info := player.Info()
	frameSize := info.SampleRate * info.Channels

	for range ticker.C {
		stats := player.Stats()
		buf := player.BufferStatus()

		bufferSeconds := 0.0
		if frameSize > 0 {
			bufferSeconds = float64(buf.Size) / float64(frameSize)
		}

		updateTUI(ui.StatusMsg{
			State:         player.State(),
			Position:      stats.CurrentTime,
			BufferHealth:  buf.Health,
			BufferSeconds: bufferSeconds,
			FramesPlayed:  int64(stats.FramesPlayed),
			Underruns:     int64(stats.Underruns),
		})
	}
}

// logEvents logs server-push notifications
func logEvents(player *cadenza.Player) {
	for ev := range player.Events() {
		log.Printf("Server event: %s %s", ev.Type, string(ev.Payload))
	}
}
