package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"floppier/host/bridge"
	"floppier/host/device"
	"floppier/host/relay"
	"floppier/host/serial"
	"floppier/protocol"
)

var (
	deviceFlag = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", serial.DefaultBaud, "Baud rate (ignored for USB CDC)")
	list       = flag.Bool("list", false, "List serial ports and exit")
	verbose    = flag.Bool("verbose", false, "Enable debug logging")
	songPath   = flag.String("song", "", "JSON song routing file for midi, play and relay")
	drives     = flag.Int("drives", 8, "Drives routed one per channel when no song is given")
	input      = flag.String("in", "", "Raw MIDI source for the midi command (default stdin)")
	listen     = flag.String("listen", "localhost:8765", "Listen address for the relay command")
)

var logger = slog.Default()

func initLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level:     level,
		AddSource: debug,
	})
	logger = slog.New(h)
	slog.SetDefault(logger)
}

func main() {
	flag.Usage = usage
	flag.Parse()
	initLogger(*verbose)

	if *list {
		if err := listPorts(os.Stdout); err != nil {
			logger.Error("list failed", "err", err)
			os.Exit(1)
		}
		return
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, args); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("command failed", "command", args[0], "err", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: floppier-host [flags] <command> [args]")
	fmt.Fprintln(os.Stderr, "\nCommands:")
	fmt.Fprintln(os.Stderr, "  note <addr> <pitch>            - Start a note (pitch: Hz or name like A4)")
	fmt.Fprintln(os.Stderr, "  off <addr>                     - Stop a note")
	fmt.Fprintln(os.Stderr, "  reset <addr>                   - Rehome drives")
	fmt.Fprintln(os.Stderr, "  silence                        - Stop every drive")
	fmt.Fprintln(os.Stderr, "  hold <addr> <pitch> [duration] - Play a note for a while (default 5m)")
	fmt.Fprintln(os.Stderr, "  midi                           - Play raw MIDI from -in or stdin")
	fmt.Fprintln(os.Stderr, "  play [file.mid]                - Play a standard MIDI file")
	fmt.Fprintln(os.Stderr, "  relay                          - Accept MIDI over WebSocket on -listen")
	fmt.Fprintln(os.Stderr, "\nAddresses: 3 (drive), g1 (group), all")
	fmt.Fprintln(os.Stderr, "\nFlags:")
	flag.PrintDefaults()
}

func listPorts(w io.Writer) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}
	if len(ports) == 0 {
		fmt.Fprintln(w, "no serial ports found")
		return nil
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

func run(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]

	// validate arguments before touching the port
	var (
		addr    protocol.Address
		milliHz uint32
		err     error
	)
	duration := 5 * time.Minute
	switch cmd {
	case "note", "hold":
		if len(rest) < 2 {
			return fmt.Errorf("%s needs an address and a pitch", cmd)
		}
		if addr, err = parseAddress(rest[0]); err != nil {
			return err
		}
		if milliHz, err = parsePitch(rest[1]); err != nil {
			return err
		}
		if cmd == "hold" && len(rest) > 2 {
			if duration, err = time.ParseDuration(rest[2]); err != nil {
				return fmt.Errorf("bad duration %q: %w", rest[2], err)
			}
		}
	case "off", "reset":
		if len(rest) < 1 {
			return fmt.Errorf("%s needs an address", cmd)
		}
		if addr, err = parseAddress(rest[0]); err != nil {
			return err
		}
	case "silence", "midi", "play", "relay":
	default:
		return fmt.Errorf("unknown command %q", cmd)
	}

	dev, err := device.Connect(&serial.Config{Device: *deviceFlag, Baud: *baud, ReadTimeout: 100}, logger)
	if err != nil {
		return err
	}
	defer dev.Close()

	switch cmd {
	case "note":
		return dev.NoteOn(addr, milliHz)
	case "off":
		return dev.NoteOff(addr)
	case "reset":
		return dev.Reset(addr)
	case "silence":
		return dev.SilenceAll()
	case "hold":
		return dev.Hold(ctx, addr, milliHz, duration)
	}

	song, err := loadSong()
	if err != nil {
		return err
	}
	b, err := bridge.New(song, dev, logger)
	if err != nil {
		return err
	}

	switch cmd {
	case "midi":
		return playStream(ctx, b)
	case "play":
		path := song.Path
		if len(rest) > 0 {
			path = rest[0]
		}
		return playFile(ctx, b, path)
	default:
		return relay.New(b, logger).ListenAndServe(ctx, *listen)
	}
}

func loadSong() (*bridge.Song, error) {
	if *songPath == "" {
		return bridge.DefaultSong(*drives), nil
	}
	return bridge.LoadSong(*songPath)
}

func playStream(ctx context.Context, b *bridge.Bridge) error {
	var r io.Reader = os.Stdin
	if *input != "" {
		f, err := os.Open(*input)
		if err != nil {
			return fmt.Errorf("failed to open midi input: %w", err)
		}
		defer f.Close()
		r = f
	}
	logger.Info("midi: reading", "source", sourceName())

	err := bridge.ReadStream(ctx, r, b)
	if rerr := b.Release(); err == nil {
		err = rerr
	}
	return err
}

func sourceName() string {
	if *input == "" {
		return "stdin"
	}
	return *input
}

func playFile(ctx context.Context, b *bridge.Bridge, path string) error {
	if path == "" {
		return errors.New("play needs a midi file")
	}
	events, err := bridge.ReadFile(path)
	if err != nil {
		return err
	}
	var length time.Duration
	if len(events) > 0 {
		length = events[len(events)-1].At
	}
	logger.Info("play: starting", "file", path, "events", len(events), "length", length)

	p := &bridge.Player{Bridge: b}
	if err := p.Play(ctx, events); err != nil {
		return err
	}
	logger.Info("play: finished", "dropped", b.Dropped())
	return nil
}
