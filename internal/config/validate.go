package config

import (
	"errors"
	"fmt"
	"maps"
	"path/filepath"
	"slices"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRemote(); err != nil {
		return err
	}
	if err := c.validateLibrary(); err != nil {
		return err
	}
	if err := c.validateCategories(); err != nil {
		return err
	}
	if err := c.validateSync(); err != nil {
		return err
	}
	if c.Prune.DaysOld < 0 {
		return errors.New("prune.days_old must be >= 0")
	}
	if c.Notifications.SyncMinFiles < 0 {
		return errors.New("notifications.sync_min_files must be >= 0")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if len(c.Remote.Roots) == 0 {
		return errors.New("remote.roots must include at least one directory")
	}
	switch c.Remote.Type {
	case "sftp":
		return c.validateSFTP()
	case "s3":
		if c.Remote.S3.Bucket == "" {
			return errors.New("remote.s3.bucket must be set when remote.type is \"s3\"")
		}
		if (c.Remote.S3.AccessKey == "") != (c.Remote.S3.SecretKey == "") {
			return errors.New("remote.s3.access_key and remote.s3.secret_key must be set together")
		}
		return nil
	default:
		return fmt.Errorf("remote.type: unsupported value %q (expected \"sftp\" or \"s3\")", c.Remote.Type)
	}
}

func (c *Config) validateSFTP() error {
	sftp := c.Remote.SFTP
	if sftp.Host == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = defaultConfigPath
		}
		return fmt.Errorf("remote.sftp.host is required. Edit %s (create with 'mediasync config init')", defaultPath)
	}
	if sftp.Port <= 0 || sftp.Port > 65535 {
		return errors.New("remote.sftp.port must be between 1 and 65535")
	}
	if sftp.Username == "" {
		return errors.New("remote.sftp.username must be set")
	}
	if sftp.Password == "" && sftp.PrivateKeyPath == "" {
		return errors.New("remote.sftp.password or remote.sftp.private_key_path must be set (or set MEDIASYNC_SFTP_PASSWORD)")
	}
	return nil
}

func (c *Config) validateLibrary() error {
	if c.Library.BaseDir == "" {
		return errors.New("library.base_dir must be set")
	}
	names := map[string]string{
		"library.movies_dir":    c.Library.MoviesDir,
		"library.shows_dir":     c.Library.ShowsDir,
		"library.music_dir":     c.Library.MusicDir,
		"library.books_dir":     c.Library.BooksDir,
		"library.downloads_dir": c.Library.DownloadsDir,
	}
	seen := make(map[string]string, len(names))
	for _, key := range slices.Sorted(maps.Keys(names)) {
		value := names[key]
		if filepath.IsAbs(value) || value == ".." || strings.HasPrefix(value, "../") {
			return fmt.Errorf("%s must be relative to library.base_dir", key)
		}
		if other, ok := seen[value]; ok {
			return fmt.Errorf("%s duplicates %s (%q)", key, other, value)
		}
		seen[value] = key
	}
	return nil
}

func (c *Config) validateCategories() error {
	if c.Categories.MovieMinSizeGB < 0 {
		return errors.New("categories.movie_min_size_gb must be >= 0")
	}
	owners := make(map[string]string)
	lists := []struct {
		key    string
		values []string
	}{
		{"categories.video_extensions", c.Categories.VideoExtensions},
		{"categories.audio_extensions", c.Categories.AudioExtensions},
		{"categories.book_extensions", c.Categories.BookExtensions},
		{"categories.companion_extensions", c.Categories.CompanionExtensions},
	}
	for _, list := range lists {
		for _, ext := range list.values {
			if owner, ok := owners[ext]; ok {
				return fmt.Errorf("%s: extension %q already listed in %s", list.key, ext, owner)
			}
			owners[ext] = list.key
		}
	}
	return nil
}

func (c *Config) validateSync() error {
	if c.Sync.RetryAttempts < 1 {
		return errors.New("sync.retry_attempts must be >= 1")
	}
	if c.Sync.RetryDelaySeconds < 0 {
		return errors.New("sync.retry_delay_seconds must be >= 0")
	}
	if c.Sync.TrackingFile == "" {
		return errors.New("sync.tracking_file must be set")
	}
	return nil
}
