package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	appdefaults "github.com/saker-ai/spiritio-client/config"
	"github.com/saker-ai/spiritio-client/internal/logger"
)

const envPrefix = "spiritio"

// TransportConfig controls the signaling channel.
type TransportConfig struct {
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
	WriteTimeout     time.Duration `mapstructure:"write_timeout"`
	SendQueue        int           `mapstructure:"send_queue"`
}

// MediaConfig controls local capture and the peer connection.
type MediaConfig struct {
	Enabled     bool     `mapstructure:"enabled"`
	Video       bool     `mapstructure:"video"`
	Audio       bool     `mapstructure:"audio"`
	ICEServers  []string `mapstructure:"ice_servers"`
	AudioFile   string   `mapstructure:"audio_file"`
	VideoFile   string   `mapstructure:"video_file"`
	SampleRate  int      `mapstructure:"sample_rate"`
	FrameMs     int      `mapstructure:"frame_ms"`
	OpusBitrate int      `mapstructure:"opus_bitrate"`
	RecordDir   string   `mapstructure:"record_dir"`
}

// StorageConfig locates the locally persisted state.
type StorageConfig struct {
	CommandLogPath    string `mapstructure:"command_log_path"`
	CredentialService string `mapstructure:"credential_service"`
	CredentialKey     string `mapstructure:"credential_key"`
	CredentialFile    string `mapstructure:"credential_file"`
}

// RouterConfig tunes the signaling router.
type RouterConfig struct {
	TaskQueue int `mapstructure:"task_queue"`
}

// Config represents a config.
type Config struct {
	RootDir     string          `mapstructure:"-"`
	PageURL     string          `mapstructure:"page_url"`
	Room        string          `mapstructure:"room"`
	WSPath      string          `mapstructure:"ws_path"`
	DataDir     string          `mapstructure:"data_dir"`
	GrammarPath string          `mapstructure:"grammar_path"`
	StatusAddr  string          `mapstructure:"status_addr"`
	Transport   TransportConfig `mapstructure:"transport"`
	Media       MediaConfig     `mapstructure:"media"`
	Storage     StorageConfig   `mapstructure:"storage"`
	Router      RouterConfig    `mapstructure:"router"`
	Log         logger.Config   `mapstructure:"log"`
}

// Load reads the embedded defaults, then conf.yaml from the resolved root dir when present.
func Load() (Config, error) {
	rootDir, err := resolveRootDir()
	if err != nil {
		return Config{}, err
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigName("conf")
	v.AddConfigPath(rootDir)

	if err := v.MergeInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return Config{}, err
		}
	}

	return finish(v, rootDir)
}

// LoadConfig reads the embedded defaults merged with the given file. An empty path falls back to Load.
func LoadConfig(configPath string) (Config, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		return Load()
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return Config{}, err
	}

	rootDir := strings.TrimSpace(os.Getenv("SPIRITIO_ROOT_DIR"))
	if rootDir == "" {
		rootDir = filepath.Dir(absPath)
		if filepath.Base(rootDir) == "config" {
			rootDir = filepath.Dir(rootDir)
		}
	}

	v, err := newViper()
	if err != nil {
		return Config{}, err
	}
	v.SetConfigFile(absPath)
	if err := v.MergeInConfig(); err != nil {
		return Config{}, err
	}

	return finish(v, rootDir)
}

func newViper() (*viper.Viper, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if err := v.ReadConfig(bytes.NewReader(appdefaults.Default)); err != nil {
		return nil, fmt.Errorf("load embedded config: %w", err)
	}

	v.SetDefault("ws_path", "/ws")
	v.SetDefault("data_dir", "./data")
	v.SetDefault("transport.handshake_timeout", 10*time.Second)
	v.SetDefault("transport.write_timeout", 5*time.Second)
	v.SetDefault("transport.send_queue", 64)
	v.SetDefault("media.sample_rate", 48000)
	v.SetDefault("media.frame_ms", 20)
	v.SetDefault("router.task_queue", 256)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file.name", "spiritio.log")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v, nil
}

func finish(v *viper.Viper, rootDir string) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	cfg.RootDir = rootDir
	derivePaths(&cfg)
	normalize(&cfg)
	return cfg, nil
}

func resolveRootDir() (string, error) {
	if root := strings.TrimSpace(os.Getenv("SPIRITIO_ROOT_DIR")); root != "" {
		return filepath.Abs(root)
	}

	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	dir := wd
	for i := 0; i < 6; i++ {
		if fileExists(filepath.Join(dir, "conf.yaml")) {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return wd, nil
}

func derivePaths(cfg *Config) {
	cfg.DataDir = resolvePath(cfg.RootDir, cfg.DataDir, "data")
	cfg.Storage.CommandLogPath = resolvePath(cfg.DataDir, cfg.Storage.CommandLogPath, "commands.db")
	cfg.Storage.CredentialFile = resolvePath(cfg.DataDir, cfg.Storage.CredentialFile, "access_token")
	cfg.Log.File.Path = resolvePath(cfg.RootDir, cfg.Log.File.Path, filepath.Join("data", "logs"))
	cfg.GrammarPath = resolveOptionalPath(cfg.RootDir, cfg.GrammarPath)
	cfg.Media.AudioFile = resolveOptionalPath(cfg.RootDir, cfg.Media.AudioFile)
	cfg.Media.VideoFile = resolveOptionalPath(cfg.RootDir, cfg.Media.VideoFile)
	cfg.Media.RecordDir = resolveOptionalPath(cfg.RootDir, cfg.Media.RecordDir)
}

func normalize(cfg *Config) {
	cfg.PageURL = strings.TrimSpace(cfg.PageURL)
	cfg.Room = strings.TrimSpace(cfg.Room)
	if !strings.HasPrefix(cfg.WSPath, "/") {
		cfg.WSPath = "/" + cfg.WSPath
	}
	if cfg.Media.SampleRate <= 0 {
		cfg.Media.SampleRate = 48000
	}
	if cfg.Media.FrameMs <= 0 {
		cfg.Media.FrameMs = 20
	}
	if cfg.Transport.SendQueue <= 0 {
		cfg.Transport.SendQueue = 64
	}
	if cfg.Router.TaskQueue <= 0 {
		cfg.Router.TaskQueue = 256
	}
	servers := cfg.Media.ICEServers[:0]
	for _, server := range cfg.Media.ICEServers {
		if server = strings.TrimSpace(server); server != "" {
			servers = append(servers, server)
		}
	}
	cfg.Media.ICEServers = servers
}

func resolvePath(rootDir string, configured string, fallback string) string {
	path := strings.TrimSpace(configured)
	if path == "" {
		path = fallback
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(rootDir, path)
}

func resolveOptionalPath(rootDir string, configured string) string {
	if strings.TrimSpace(configured) == "" {
		return ""
	}
	return resolvePath(rootDir, configured, "")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
