package sink

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	"github.com/apex/log"
	"github.com/pkg/errors"
	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

const SFTPScheme = "sftp"

// sftp status code for an operation the server doesn't implement.
const sshFxOpUnsupported = 8

// SFTPProvider stores objects on a remote host. References hold the path
// relative to root.
type SFTPProvider struct {
	client   *sftp.Client
	conn     io.Closer
	root     string
	uploadTo string
	now      func() time.Time
}

func NewSFTPProvider(client *sftp.Client, root, uploadTo string) *SFTPProvider {
	return &SFTPProvider{client: client, root: root, uploadTo: uploadTo, now: time.Now}
}

// DialSFTPProvider connects to addr with password authentication. When
// knownHostsPath is empty the host key isn't checked.
func DialSFTPProvider(addr, user, password, knownHostsPath, root, uploadTo string) (*SFTPProvider, error) {
	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if knownHostsPath != "" {
		var err error
		if hostKeyCallback, err = knownhosts.New(knownHostsPath); err != nil {
			return nil, errors.Wrapf(err, "reading known hosts %s", knownHostsPath)
		}
	} else {
		log.Warnf("No known hosts file configured, host key for %s will not be verified", addr)
	}

	sshConfig := &ssh.ClientConfig{
		User:            user,
		Auth:            []ssh.AuthMethod{ssh.Password(password)},
		HostKeyCallback: hostKeyCallback,
		Timeout:         30 * time.Second,
	}

	conn, err := ssh.Dial("tcp", addr, sshConfig)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to %s", addr)
	}

	client, err := sftp.NewClient(conn)
	if err != nil {
		_ = conn.Close()
		return nil, errors.Wrapf(err, "starting sftp session with %s", addr)
	}

	p := NewSFTPProvider(client, root, uploadTo)
	p.conn = conn
	return p, nil
}

func (p *SFTPProvider) Close() error {
	err := p.client.Close()
	if p.conn != nil {
		if connErr := p.conn.Close(); err == nil {
			err = connErr
		}
	}

	return err
}

func (p *SFTPProvider) Scheme() string {
	return SFTPScheme
}

func (p *SFTPProvider) Allocate(_ context.Context, uploadID, filename string) (string, error) {
	name := ObjectName(p.uploadTo, p.now(), uploadID, filename)
	fullPath := path.Join(p.root, name)

	if err := p.client.MkdirAll(path.Dir(fullPath)); err != nil {
		return "", errors.Wrapf(err, "creating remote directory for %s", fullPath)
	}

	f, err := p.client.OpenFile(fullPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL)
	if err != nil {
		return "", errors.Wrapf(err, "allocating remote %s", fullPath)
	}

	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "closing remote %s", fullPath)
	}

	return MakeRef(SFTPScheme, name), nil
}

func (p *SFTPProvider) Size(_ context.Context, ref string) (int64, error) {
	fullPath, err := p.pathFor(ref)
	if err != nil {
		return 0, err
	}

	fi, err := p.client.Stat(fullPath)
	if err != nil {
		return 0, errors.Wrapf(err, "stat remote %s", fullPath)
	}

	return fi.Size(), nil
}

// Append seeks to the current end instead of relying on O_APPEND, not all
// servers honor the append flag.
func (p *SFTPProvider) Append(_ context.Context, ref string, data []byte) (err error) {
	fullPath, err := p.pathFor(ref)
	if err != nil {
		return err
	}

	f, err := p.client.OpenFile(fullPath, os.O_WRONLY)
	if err != nil {
		return errors.Wrapf(err, "opening remote %s", fullPath)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "closing remote %s", fullPath)
		}
	}()

	if _, err = f.Seek(0, io.SeekEnd); err != nil {
		return errors.Wrapf(err, "seeking to end of remote %s", fullPath)
	}

	if _, err = f.Write(data); err != nil {
		return errors.Wrapf(err, "appending to remote %s", fullPath)
	}

	if err = f.Sync(); err != nil && !isOpUnsupported(err) {
		return errors.Wrapf(err, "syncing remote %s", fullPath)
	}

	return nil
}

func (p *SFTPProvider) Delete(_ context.Context, ref string) error {
	fullPath, err := p.pathFor(ref)
	if err != nil {
		return err
	}

	if err := p.client.Remove(fullPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return errors.Wrapf(err, "removing remote %s", fullPath)
	}

	return nil
}

func (p *SFTPProvider) pathFor(ref string) (string, error) {
	scheme, name, err := ParseRef(ref)
	switch {
	case err != nil:
		return "", err
	case scheme != SFTPScheme:
		return "", errors.Wrapf(ErrBadRef, "'%s' is not an %s reference", ref, SFTPScheme)
	default:
		return path.Join(p.root, path.Clean("/"+name)), nil
	}
}

func isOpUnsupported(err error) bool {
	var statusErr *sftp.StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == sshFxOpUnsupported
	}

	return errors.Is(err, sftp.ErrSSHFxOpUnsupported)
}
