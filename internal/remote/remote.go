package remote

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"time"

	"mediasync/internal/config"
	"mediasync/internal/logging"
	"mediasync/internal/services"
)

// ErrNotExist reports that a remote path does not exist.
var ErrNotExist = fs.ErrNotExist

// Entry describes a single remote directory entry.
type Entry struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
	IsDir   bool
	// IsRegular is false for symlinks, sockets, and other special files.
	IsRegular bool
}

// Client is the remote file store used by sync, prune, and bootstrap runs.
type Client interface {
	// ReadDir lists the direct children of dir.
	ReadDir(ctx context.Context, dir string) ([]Entry, error)
	// Stat returns metadata for a single path, or ErrNotExist.
	Stat(ctx context.Context, path string) (Entry, error)
	// Open returns a reader positioned at offset bytes into the file.
	Open(ctx context.Context, path string, offset int64) (io.ReadCloser, error)
	// Remove deletes a file. Removing a missing file returns ErrNotExist.
	Remove(ctx context.Context, path string) error
	Close() error
}

// Exists reports whether path is present on the remote.
func Exists(ctx context.Context, client Client, path string) (bool, error) {
	_, err := client.Stat(ctx, path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Dial opens the transport selected by remote.type. Failures are tagged with
// services.ErrConnection.
func Dial(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Client, error) {
	logger = logging.NewComponentLogger(logger, "remote")
	var (
		client Client
		err    error
	)
	switch cfg.Remote.Type {
	case "s3":
		client, err = DialS3(ctx, S3Options{
			Endpoint:     cfg.Remote.S3.Endpoint,
			Region:       cfg.Remote.S3.Region,
			Bucket:       cfg.Remote.S3.Bucket,
			AccessKey:    cfg.Remote.S3.AccessKey,
			SecretKey:    cfg.Remote.S3.SecretKey,
			UsePathStyle: cfg.Remote.S3.UsePathStyle,
		})
	default:
		sftpCfg := cfg.Remote.SFTP
		if sftpCfg.PrivateKeyPath != "" && sftpCfg.Password != "" {
			logging.WarnWithContext(logger, "both private key and password configured; using private key", "sftp_auth_ambiguous",
				logging.String(logging.FieldErrorHint, "remove remote.sftp.password or remote.sftp.private_key_path"),
				logging.String(logging.FieldImpact, "password is ignored"),
			)
		}
		if sftpCfg.InsecureIgnoreHostKey {
			logging.WarnWithContext(logger, "host key verification disabled", "sftp_host_key_unchecked",
				logging.String(logging.FieldErrorHint, "set remote.sftp.insecure_ignore_host_key = false and add the host to known_hosts"),
				logging.String(logging.FieldImpact, "connection is open to man-in-the-middle attacks"),
			)
		}
		client, err = DialSFTP(ctx, SFTPOptions{
			Host:                  sftpCfg.Host,
			Port:                  sftpCfg.Port,
			Username:              sftpCfg.Username,
			Password:              sftpCfg.Password,
			PrivateKeyPath:        sftpCfg.PrivateKeyPath,
			KeyPassphrase:         sftpCfg.KeyPassphrase,
			KnownHostsPath:        sftpCfg.KnownHostsPath,
			InsecureIgnoreHostKey: sftpCfg.InsecureIgnoreHostKey,
			Timeout:               cfg.ConnectTimeout(),
		})
	}
	if err != nil {
		return nil, services.Wrap(services.ErrConnection, "remote", "dial "+cfg.Remote.Type, "cannot establish remote session", err)
	}
	logger.Info("remote session opened",
		logging.String(logging.FieldEventType, "remote_connected"),
		logging.String("transport", cfg.Remote.Type),
	)
	return client, nil
}
