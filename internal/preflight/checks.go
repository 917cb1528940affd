package preflight

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/sys/unix"

	"mediasync/internal/config"
)

// CheckDirectoryAccess verifies that a directory exists and is readable and writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFileReadable verifies that a regular file exists and can be read.
func CheckFileReadable(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: not readable: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (readable)", path)}
}

// CheckTransport verifies the prerequisites of the configured remote
// transport without opening a connection. The detail names the config key
// to fix when the check fails.
func CheckTransport(cfg *config.Config) Result {
	const name = "Remote transport"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	switch cfg.Remote.Type {
	case "sftp":
		return checkSFTP(name, cfg.Remote.SFTP)
	case "s3":
		if strings.TrimSpace(cfg.Remote.S3.Bucket) == "" {
			return Result{Name: name, Detail: "s3: bucket not configured (set remote.s3.bucket)"}
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("s3://%s", cfg.Remote.S3.Bucket)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unsupported remote.type %q", cfg.Remote.Type)}
	}
}

func checkSFTP(name string, sftp config.SFTP) Result {
	var notes []string
	if strings.TrimSpace(sftp.PrivateKeyPath) != "" {
		key := CheckFileReadable("Private key", sftp.PrivateKeyPath)
		if !key.Passed {
			return Result{Name: name, Detail: fmt.Sprintf("sftp: private key %s (check remote.sftp.private_key_path)", key.Detail)}
		}
		notes = append(notes, "key auth")
	} else {
		notes = append(notes, "password auth")
	}
	if sftp.InsecureIgnoreHostKey {
		notes = append(notes, "host key checking disabled")
	} else {
		hosts := CheckFileReadable("Known hosts", sftp.KnownHostsPath)
		if !hosts.Passed {
			return Result{Name: name, Detail: fmt.Sprintf("sftp: known_hosts %s (check remote.sftp.known_hosts_path)", hosts.Detail)}
		}
	}
	return Result{
		Name:   name,
		Passed: true,
		Detail: fmt.Sprintf("sftp://%s@%s:%d (%s)", sftp.Username, sftp.Host, sftp.Port, strings.Join(notes, ", ")),
	}
}
