package remote

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"path"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPOptions contains the connection parameters for DialSFTP.
type SFTPOptions struct {
	Host                  string
	Port                  int
	Username              string
	Password              string
	PrivateKeyPath        string
	KeyPassphrase         string
	KnownHostsPath        string
	InsecureIgnoreHostKey bool
	Timeout               time.Duration
}

// SFTPClient implements Client over an SSH connection.
type SFTPClient struct {
	ssh  *ssh.Client
	sftp *sftp.Client
}

// DialSFTP connects and authenticates. A private key is used when configured,
// otherwise the password.
func DialSFTP(ctx context.Context, opts SFTPOptions) (*SFTPClient, error) {
	auth, err := authMethod(opts)
	if err != nil {
		return nil, err
	}
	hostKeyCallback, err := hostKeyCallback(opts)
	if err != nil {
		return nil, err
	}
	sshConfig := &ssh.ClientConfig{
		User:            opts.Username,
		Auth:            []ssh.AuthMethod{auth},
		HostKeyCallback: hostKeyCallback,
		Timeout:         opts.Timeout,
	}

	addr := net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port))
	dialer := net.Dialer{Timeout: opts.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	if opts.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(opts.Timeout))
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, addr, sshConfig)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("ssh handshake with %s: %w", addr, err)
	}
	_ = conn.SetDeadline(time.Time{})
	sshClient := ssh.NewClient(sshConn, chans, reqs)

	sftpClient, err := sftp.NewClient(sshClient)
	if err != nil {
		sshClient.Close()
		return nil, fmt.Errorf("start sftp subsystem: %w", err)
	}
	return &SFTPClient{ssh: sshClient, sftp: sftpClient}, nil
}

func authMethod(opts SFTPOptions) (ssh.AuthMethod, error) {
	if opts.PrivateKeyPath == "" {
		if opts.Password == "" {
			return nil, errors.New("no sftp credentials configured")
		}
		return ssh.Password(opts.Password), nil
	}
	keyBytes, err := os.ReadFile(opts.PrivateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	var signer ssh.Signer
	if opts.KeyPassphrase != "" {
		signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(opts.KeyPassphrase))
	} else {
		signer, err = ssh.ParsePrivateKey(keyBytes)
	}
	if err != nil {
		return nil, fmt.Errorf("parse private key %s: %w", opts.PrivateKeyPath, err)
	}
	return ssh.PublicKeys(signer), nil
}

func hostKeyCallback(opts SFTPOptions) (ssh.HostKeyCallback, error) {
	if opts.InsecureIgnoreHostKey {
		return ssh.InsecureIgnoreHostKey(), nil
	}
	callback, err := knownhosts.New(opts.KnownHostsPath)
	if err != nil {
		return nil, fmt.Errorf("load known_hosts %s: %w", opts.KnownHostsPath, err)
	}
	return callback, nil
}

// ReadDir lists the direct children of dir.
func (c *SFTPClient) ReadDir(ctx context.Context, dir string) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	infos, err := c.sftp.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(infos))
	for _, info := range infos {
		if info.Name() == "." || info.Name() == ".." {
			continue
		}
		entries = append(entries, entryFromInfo(path.Join(dir, info.Name()), info))
	}
	return entries, nil
}

// Stat returns metadata for path.
func (c *SFTPClient) Stat(ctx context.Context, p string) (Entry, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	info, err := c.sftp.Stat(p)
	if err != nil {
		return Entry{}, normalizeSFTPError(p, err)
	}
	return entryFromInfo(p, info), nil
}

// Open returns a reader starting at offset.
func (c *SFTPClient) Open(ctx context.Context, p string, offset int64) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	file, err := c.sftp.Open(p)
	if err != nil {
		return nil, normalizeSFTPError(p, err)
	}
	if offset > 0 {
		if _, err := file.Seek(offset, io.SeekStart); err != nil {
			file.Close()
			return nil, fmt.Errorf("seek %s to %d: %w", p, offset, err)
		}
	}
	return file, nil
}

// Remove deletes the file at path.
func (c *SFTPClient) Remove(ctx context.Context, p string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return normalizeSFTPError(p, c.sftp.Remove(p))
}

// Close releases the SFTP session and the underlying SSH connection.
func (c *SFTPClient) Close() error {
	sftpErr := c.sftp.Close()
	var sshErr error
	if c.ssh != nil {
		sshErr = c.ssh.Close()
	}
	if sftpErr != nil {
		return sftpErr
	}
	if sshErr != nil && !errors.Is(sshErr, net.ErrClosed) {
		return sshErr
	}
	return nil
}

func entryFromInfo(p string, info fs.FileInfo) Entry {
	return Entry{
		Path:      p,
		Name:      info.Name(),
		Size:      info.Size(),
		ModTime:   info.ModTime(),
		IsDir:     info.IsDir(),
		IsRegular: info.Mode().IsRegular(),
	}
}

// normalizeSFTPError keeps ErrNotExist detectable; pkg/sftp already maps
// SSH_FX_NO_SUCH_FILE onto fs.ErrNotExist.
func normalizeSFTPError(p string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", p, ErrNotExist)
	}
	return err
}
