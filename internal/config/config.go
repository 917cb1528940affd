package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains local state and log directories.
type Paths struct {
	StateDir string `toml:"state_dir"`
	LogDir   string `toml:"log_dir"`
}

// SFTP contains connection settings for an SSH file transfer remote.
type SFTP struct {
	Host                  string `toml:"host"`
	Port                  int    `toml:"port"`
	Username              string `toml:"username"`
	Password              string `toml:"password"`
	PrivateKeyPath        string `toml:"private_key_path"`
	KeyPassphrase         string `toml:"key_passphrase"`
	KnownHostsPath        string `toml:"known_hosts_path"`
	InsecureIgnoreHostKey bool   `toml:"insecure_ignore_host_key"`
	ConnectTimeout        int    `toml:"connect_timeout"`
}

// S3 contains connection settings for an S3-compatible object store remote.
type S3 struct {
	Endpoint     string `toml:"endpoint"`
	Region       string `toml:"region"`
	Bucket       string `toml:"bucket"`
	AccessKey    string `toml:"access_key"`
	SecretKey    string `toml:"secret_key"`
	UsePathStyle bool   `toml:"use_path_style"`
}

// Remote selects the transport and the directories to synchronize.
type Remote struct {
	Type  string   `toml:"type"`
	Roots []string `toml:"roots"`
	SFTP  SFTP     `toml:"sftp"`
	S3    S3       `toml:"s3"`
}

// Library contains configuration for the local library structure. Folder
// names are relative to BaseDir.
type Library struct {
	BaseDir      string `toml:"base_dir"`
	MoviesDir    string `toml:"movies_dir"`
	ShowsDir     string `toml:"shows_dir"`
	MusicDir     string `toml:"music_dir"`
	BooksDir     string `toml:"books_dir"`
	DownloadsDir string `toml:"downloads_dir"`
}

// Categories contains the extension lists and thresholds used to place files.
type Categories struct {
	VideoExtensions     []string `toml:"video_extensions"`
	AudioExtensions     []string `toml:"audio_extensions"`
	BookExtensions      []string `toml:"book_extensions"`
	CompanionExtensions []string `toml:"companion_extensions"`
	MovieMinSizeGB      float64  `toml:"movie_min_size_gb"`
}

// Sync contains configuration for sync runs.
type Sync struct {
	TrackingFile              string `toml:"tracking_file"`
	DeleteRemoteAfterTransfer bool   `toml:"delete_remote_after_transfer"`
	RetryAttempts             int    `toml:"retry_attempts"`
	RetryDelaySeconds         int    `toml:"retry_delay_seconds"`
	Resume                    bool   `toml:"resume"`
}

// Prune contains configuration for remote retention.
type Prune struct {
	DaysOld int `toml:"days_old"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Sync           bool   `toml:"sync"`
	Prune          bool   `toml:"prune"`
	Bootstrap      bool   `toml:"bootstrap"`
	Errors         bool   `toml:"errors"`
	// SyncMinFiles suppresses sync notifications for runs that handled fewer
	// files than this.
	SyncMinFiles int `toml:"sync_min_files"`
}

// Metrics contains configuration for the Prometheus textfile export.
type Metrics struct {
	TextfileDir string `toml:"textfile_dir"`
}

// Config encapsulates all configuration values for mediasync.
//
// Configuration sections by subsystem:
//   - Paths: state and log directories
//   - Remote: transport selection, roots, SFTP and S3 credentials
//   - Library: local destination folders
//   - Categories: extension lists and the movie size threshold
//   - Sync: ledger location, retries, resume, remote deletion
//   - Prune: remote retention window
//   - Logging: log format, level, and retention
//   - Notifications: ntfy push notification settings
//   - Metrics: node_exporter textfile output
type Config struct {
	Paths         Paths         `toml:"paths"`
	Remote        Remote        `toml:"remote"`
	Library       Library       `toml:"library"`
	Categories    Categories    `toml:"categories"`
	Sync          Sync          `toml:"sync"`
	Prune         Prune         `toml:"prune"`
	Logging       Logging       `toml:"logging"`
	Notifications Notifications `toml:"notifications"`
	Metrics       Metrics       `toml:"metrics"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("mediasync.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state, log, and ledger directories. The
// library base is created on a best-effort basis so prune and bootstrap can
// run while external storage is unavailable.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.StateDir, c.Paths.LogDir, filepath.Dir(c.Sync.TrackingFile)}
	if strings.TrimSpace(c.Metrics.TextfileDir) != "" {
		dirs = append(dirs, c.Metrics.TextfileDir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if strings.TrimSpace(c.Library.BaseDir) != "" {
		_ = os.MkdirAll(c.Library.BaseDir, 0o755)
	}
	return nil
}

// HistoryPath returns the location of the run history database.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LibraryRoots returns the absolute categorized library folders in the order
// they are searched for local duplicates: movies, shows, music, books,
// downloads.
func (c *Config) LibraryRoots() []string {
	names := []string{
		c.Library.MoviesDir,
		c.Library.ShowsDir,
		c.Library.MusicDir,
		c.Library.BooksDir,
		c.Library.DownloadsDir,
	}
	roots := make([]string, 0, len(names))
	for _, name := range names {
		roots = append(roots, filepath.Join(c.Library.BaseDir, filepath.FromSlash(name)))
	}
	return roots
}

// RetryDelay returns the fixed pause inserted before each transfer retry.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.Sync.RetryDelaySeconds) * time.Second
}

// ConnectTimeout returns the SFTP dial timeout.
func (c *Config) ConnectTimeout() time.Duration {
	return time.Duration(c.Remote.SFTP.ConnectTimeout) * time.Second
}

// UsesPrivateKey reports whether SFTP authentication uses the configured key
// file. A key wins when both a key and a password are configured.
func (c *Config) UsesPrivateKey() bool {
	return strings.TrimSpace(c.Remote.SFTP.PrivateKeyPath) != ""
}

// SetTrackingFile overrides the ledger location with an expanded path.
func (c *Config) SetTrackingFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	expanded, err := expandPath(path)
	if err != nil {
		return fmt.Errorf("sync.tracking_file: %w", err)
	}
	c.Sync.TrackingFile = expanded
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

func defaultStateDir() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "mediasync")
	}
	return "~/.local/share/mediasync"
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
