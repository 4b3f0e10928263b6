package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alxayo/ascii-chat-go/internal/config"
)

// version is injected at build time with -ldflags "-X main.version=...".
var version = "dev"

// cliConfig holds user-supplied flag values prior to translation into a
// config.Snapshot, mirroring cmd/rtmp-server/flags.go's cliConfig shape:
// parse into plain fields first, validate, then build the domain type.
type cliConfig struct {
	configPath string
	logLevel   string

	address string
	port    int

	width, height int
	maxFPS        int
	fpsLimit      int

	audioEnabled     bool
	opusBitrate      int
	compressionLevel int

	encryptEnabled bool
	serverKey      string

	reconnectAttempts int

	snapshotMode  bool
	snapshotDelay int

	playbackGain float64

	metricsAddr string
	showVersion bool
}

func parseFlags(args []string) (*cliConfig, error) {
	fs := flag.NewFlagSet("chat-client", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	cfg := &cliConfig{}

	fs.StringVar(&cfg.configPath, "config", "", "YAML config file path (overrides defaults, overridden by explicit flags)")
	fs.StringVar(&cfg.logLevel, "log-level", "info", "Log level: debug|info|warn|error")

	fs.StringVar(&cfg.address, "address", "127.0.0.1", "Server address")
	fs.IntVar(&cfg.port, "port", 8080, "Server port")

	fs.IntVar(&cfg.width, "width", 80, "Terminal render width")
	fs.IntVar(&cfg.height, "height", 24, "Terminal render height")
	fs.IntVar(&cfg.maxFPS, "max-fps", 30, "Maximum capture frame rate")
	fs.IntVar(&cfg.fpsLimit, "fps-limit", 30, "Client-side render frame-rate limit")

	fs.BoolVar(&cfg.audioEnabled, "audio", true, "Enable the audio capture/playback pipelines")
	fs.IntVar(&cfg.opusBitrate, "opus-bitrate", 128_000, "Opus encoder target bitrate")
	fs.IntVar(&cfg.compressionLevel, "compression-level", 3, "zstd compression level (0 disables compression)")

	fs.BoolVar(&cfg.encryptEnabled, "encrypt", true, "Require an encrypted session")
	fs.StringVar(&cfg.serverKey, "server-key", "", "Pin the server's expected fingerprint (sha256:base64); empty uses trust-on-first-use")

	fs.IntVar(&cfg.reconnectAttempts, "reconnect-attempts", -1, "Reconnect attempts: -1 unlimited, 0 none, N bounded")

	fs.BoolVar(&cfg.snapshotMode, "snapshot-mode", false, "Render one snapshot then exit instead of streaming indefinitely")
	fs.IntVar(&cfg.snapshotDelay, "snapshot-delay", 0, "Seconds to wait after the first frame before exiting in snapshot mode")

	fs.Float64Var(&cfg.playbackGain, "playback-gain", 1.0, "Linear gain applied to decoded audio before the device sink")

	fs.StringVar(&cfg.metricsAddr, "metrics-addr", "", "Address to serve Prometheus /metrics on (empty disables)")
	fs.BoolVar(&cfg.showVersion, "version", false, "Print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if cfg.width <= 0 || cfg.height <= 0 {
		return nil, fmt.Errorf("width and height must be positive")
	}
	if cfg.fpsLimit <= 0 {
		return nil, fmt.Errorf("fps-limit must be positive")
	}
	switch cfg.logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("invalid log-level %q", cfg.logLevel)
	}

	return cfg, nil
}

// snapshot builds the config.Snapshot this run will publish via config.Init,
// starting from config.Load's result (or the package defaults) and applying
// every explicitly-parsed flag on top — the same layering
// cmd/rtmp-server/main.go applies between its flags and srv.Config.
func (cfg *cliConfig) snapshot() (*config.Snapshot, error) {
	var s *config.Snapshot
	if cfg.configPath != "" {
		loaded, err := config.Load(cfg.configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config file %q: %w", cfg.configPath, err)
		}
		s = loaded
	} else {
		s = &config.Snapshot{}
		*s = *config.Get()
	}

	s.Address = cfg.address
	s.Port = cfg.port
	s.Width = cfg.width
	s.Height = cfg.height
	s.MaxFPS = cfg.maxFPS
	s.FPSLimit = cfg.fpsLimit
	s.AudioEnabled = cfg.audioEnabled
	s.OpusBitrate = cfg.opusBitrate
	s.CompressionLevel = cfg.compressionLevel
	s.EncryptEnabled = cfg.encryptEnabled
	s.ServerKey = cfg.serverKey
	s.ReconnectAttempts = cfg.reconnectAttempts
	s.SnapshotMode = cfg.snapshotMode
	s.SnapshotDelay = cfg.snapshotDelay
	s.PlaybackGain = cfg.playbackGain
	return s, nil
}
