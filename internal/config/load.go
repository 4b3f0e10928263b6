package config

import (
	"os"

	"gopkg.in/yaml.v3"
)

// fileConfig mirrors the option table in SPEC_FULL.md §6; it is the
// on-disk shape the (out-of-scope) option parser would assemble from CLI
// flags and/or a config file before handing the core a Snapshot.
type fileConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`

	Width    int `yaml:"width"`
	Height   int `yaml:"height"`
	MaxFPS   int `yaml:"max_fps"`
	FPSLimit int `yaml:"fps_limit"`

	AudioEnabled     bool `yaml:"audio_enabled"`
	OpusBitrate      int  `yaml:"opus_bitrate"`
	CompressionLevel int  `yaml:"compression_level"`

	EncryptEnabled bool   `yaml:"encrypt_enabled"`
	ServerKey      string `yaml:"server_key"`

	ReconnectAttempts int `yaml:"reconnect_attempts"`

	SnapshotMode  bool `yaml:"snapshot_mode"`
	SnapshotDelay int  `yaml:"snapshot_delay"`

	PlaybackGain float64 `yaml:"playback_gain"`
}

// Load reads a YAML config file and returns a fully-populated Snapshot,
// falling back to the package defaults for any field the file omits.
func Load(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	fc := fileConfig{}
	fc.fromSnapshot(fallback)
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, err
	}
	return fc.toSnapshot(), nil
}

func (fc *fileConfig) fromSnapshot(s *Snapshot) {
	fc.Address = s.Address
	fc.Port = s.Port
	fc.Width = s.Width
	fc.Height = s.Height
	fc.MaxFPS = s.MaxFPS
	fc.FPSLimit = s.FPSLimit
	fc.AudioEnabled = s.AudioEnabled
	fc.OpusBitrate = s.OpusBitrate
	fc.CompressionLevel = s.CompressionLevel
	fc.EncryptEnabled = s.EncryptEnabled
	fc.ServerKey = s.ServerKey
	fc.ReconnectAttempts = s.ReconnectAttempts
	fc.SnapshotMode = s.SnapshotMode
	fc.SnapshotDelay = s.SnapshotDelay
	fc.PlaybackGain = s.PlaybackGain
}

func (fc *fileConfig) toSnapshot() *Snapshot {
	return &Snapshot{
		Address:           fc.Address,
		Port:              fc.Port,
		Width:             fc.Width,
		Height:            fc.Height,
		MaxFPS:            fc.MaxFPS,
		FPSLimit:          fc.FPSLimit,
		AudioEnabled:      fc.AudioEnabled,
		OpusBitrate:       fc.OpusBitrate,
		CompressionLevel:  fc.CompressionLevel,
		EncryptEnabled:    fc.EncryptEnabled,
		ServerKey:         fc.ServerKey,
		ReconnectAttempts: fc.ReconnectAttempts,
		SnapshotMode:      fc.SnapshotMode,
		SnapshotDelay:     fc.SnapshotDelay,
		PlaybackGain:      fc.PlaybackGain,
	}
}
