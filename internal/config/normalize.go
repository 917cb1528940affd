package config

import (
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeRemote(); err != nil {
		return err
	}
	if err := c.normalizeLibrary(); err != nil {
		return err
	}
	c.normalizeCategories()
	if err := c.normalizeSync(); err != nil {
		return err
	}
	c.normalizeLogging()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
	return c.normalizeMetrics()
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir()
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.StateDir, "logs")
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRemote() error {
	c.Remote.Type = strings.ToLower(strings.TrimSpace(c.Remote.Type))
	if c.Remote.Type == "" {
		c.Remote.Type = defaultRemoteType
	}
	c.Remote.Roots = normalizeRoots(c.Remote.Roots)

	sftp := &c.Remote.SFTP
	sftp.Host = strings.TrimSpace(sftp.Host)
	sftp.Username = strings.TrimSpace(sftp.Username)
	if sftp.Port == 0 {
		sftp.Port = defaultSFTPPort
	}
	if sftp.ConnectTimeout <= 0 {
		sftp.ConnectTimeout = defaultConnectTimeout
	}
	if sftp.Password == "" {
		if value, ok := os.LookupEnv("MEDIASYNC_SFTP_PASSWORD"); ok {
			sftp.Password = value
		}
	}
	if sftp.KeyPassphrase == "" {
		if value, ok := os.LookupEnv("MEDIASYNC_SFTP_KEY_PASSPHRASE"); ok {
			sftp.KeyPassphrase = value
		}
	}
	var err error
	if sftp.PrivateKeyPath, err = expandPath(strings.TrimSpace(sftp.PrivateKeyPath)); err != nil {
		return fmt.Errorf("remote.sftp.private_key_path: %w", err)
	}
	if strings.TrimSpace(sftp.KnownHostsPath) == "" {
		sftp.KnownHostsPath = defaultKnownHostsPath
	}
	if sftp.KnownHostsPath, err = expandPath(sftp.KnownHostsPath); err != nil {
		return fmt.Errorf("remote.sftp.known_hosts_path: %w", err)
	}

	s3 := &c.Remote.S3
	s3.Endpoint = strings.TrimSpace(s3.Endpoint)
	s3.Bucket = strings.TrimSpace(s3.Bucket)
	s3.Region = strings.TrimSpace(s3.Region)
	if s3.Region == "" {
		s3.Region = defaultS3Region
	}
	s3.AccessKey = strings.TrimSpace(s3.AccessKey)
	if s3.AccessKey == "" {
		if value, ok := os.LookupEnv("MEDIASYNC_S3_ACCESS_KEY"); ok {
			s3.AccessKey = strings.TrimSpace(value)
		}
	}
	s3.SecretKey = strings.TrimSpace(s3.SecretKey)
	if s3.SecretKey == "" {
		if value, ok := os.LookupEnv("MEDIASYNC_S3_SECRET_KEY"); ok {
			s3.SecretKey = strings.TrimSpace(value)
		}
	}
	return nil
}

// normalizeRoots cleans remote roots into slash-separated absolute paths and
// drops blanks and duplicates while keeping the configured order.
func normalizeRoots(roots []string) []string {
	out := make([]string, 0, len(roots))
	seen := make(map[string]struct{}, len(roots))
	for _, root := range roots {
		trimmed := strings.TrimSpace(strings.ReplaceAll(root, "\\", "/"))
		if trimmed == "" {
			continue
		}
		if !strings.HasPrefix(trimmed, "/") {
			trimmed = "/" + trimmed
		}
		cleaned := path.Clean(trimmed)
		if _, ok := seen[cleaned]; ok {
			continue
		}
		seen[cleaned] = struct{}{}
		out = append(out, cleaned)
	}
	return out
}

func (c *Config) normalizeLibrary() error {
	var err error
	if c.Library.BaseDir, err = expandPath(strings.TrimSpace(c.Library.BaseDir)); err != nil {
		return fmt.Errorf("library.base_dir: %w", err)
	}
	folders := []struct {
		value    *string
		fallback string
	}{
		{&c.Library.MoviesDir, defaultMoviesDir},
		{&c.Library.ShowsDir, defaultShowsDir},
		{&c.Library.MusicDir, defaultMusicDir},
		{&c.Library.BooksDir, defaultBooksDir},
		{&c.Library.DownloadsDir, defaultDownloadsDir},
	}
	for _, folder := range folders {
		trimmed := strings.Trim(strings.TrimSpace(filepath.ToSlash(*folder.value)), "/")
		if trimmed == "" {
			trimmed = folder.fallback
		}
		*folder.value = path.Clean(trimmed)
	}
	return nil
}

func (c *Config) normalizeCategories() {
	c.Categories.VideoExtensions = normalizeExtensions(c.Categories.VideoExtensions, defaultVideoExtensions)
	c.Categories.AudioExtensions = normalizeExtensions(c.Categories.AudioExtensions, defaultAudioExtensions)
	c.Categories.BookExtensions = normalizeExtensions(c.Categories.BookExtensions, defaultBookExtensions)
	c.Categories.CompanionExtensions = normalizeExtensions(c.Categories.CompanionExtensions, defaultCompanionExtensions)
}

// normalizeExtensions lower-cases entries, adds the leading dot, and removes
// duplicates. An empty list falls back to the defaults.
func normalizeExtensions(values, fallback []string) []string {
	if len(values) == 0 {
		return cloneStrings(fallback)
	}
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		ext := strings.ToLower(strings.TrimSpace(value))
		if ext == "" || ext == "." {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		if _, ok := seen[ext]; ok {
			continue
		}
		seen[ext] = struct{}{}
		out = append(out, ext)
	}
	if len(out) == 0 {
		return cloneStrings(fallback)
	}
	return out
}

func (c *Config) normalizeSync() error {
	var err error
	if strings.TrimSpace(c.Sync.TrackingFile) == "" {
		c.Sync.TrackingFile = filepath.Join(c.Paths.StateDir, defaultTrackingFileName)
	}
	if c.Sync.TrackingFile, err = expandPath(c.Sync.TrackingFile); err != nil {
		return fmt.Errorf("sync.tracking_file: %w", err)
	}
	if c.Sync.RetryAttempts == 0 {
		c.Sync.RetryAttempts = defaultRetryAttempts
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func (c *Config) normalizeMetrics() error {
	var err error
	if c.Metrics.TextfileDir, err = expandPath(strings.TrimSpace(c.Metrics.TextfileDir)); err != nil {
		return fmt.Errorf("metrics.textfile_dir: %w", err)
	}
	return nil
}
