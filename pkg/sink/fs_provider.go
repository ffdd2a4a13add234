package sink

import (
	"context"
	"os"
	"path"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

const FileScheme = "file"

// FsProvider stores objects on an afero filesystem. Production uses a
// BasePathFs rooted at the upload directory, tests use a MemMapFs.
type FsProvider struct {
	fs       afero.Fs
	uploadTo string
	now      func() time.Time
}

func NewFsProvider(fs afero.Fs, uploadTo string) *FsProvider {
	return &FsProvider{fs: fs, uploadTo: uploadTo, now: time.Now}
}

// NewOsFsProvider keeps every object under root.
func NewOsFsProvider(root, uploadTo string) *FsProvider {
	return NewFsProvider(afero.NewBasePathFs(afero.NewOsFs(), root), uploadTo)
}

func (p *FsProvider) Scheme() string {
	return FileScheme
}

func (p *FsProvider) Allocate(_ context.Context, uploadID, filename string) (string, error) {
	name := ObjectName(p.uploadTo, p.now(), uploadID, filename)

	if err := p.fs.MkdirAll(path.Dir(name), 0755); err != nil {
		return "", errors.Wrapf(err, "creating directory for %s", name)
	}

	f, err := p.fs.OpenFile(name, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0640)
	if err != nil {
		return "", errors.Wrapf(err, "allocating %s", name)
	}

	if err := f.Close(); err != nil {
		return "", errors.Wrapf(err, "closing %s", name)
	}

	return MakeRef(FileScheme, name), nil
}

func (p *FsProvider) Size(_ context.Context, ref string) (int64, error) {
	name, err := p.pathFor(ref)
	if err != nil {
		return 0, err
	}

	fi, err := p.fs.Stat(name)
	if err != nil {
		return 0, errors.Wrapf(err, "stat %s", name)
	}

	return fi.Size(), nil
}

func (p *FsProvider) Append(_ context.Context, ref string, data []byte) (err error) {
	name, err := p.pathFor(ref)
	if err != nil {
		return err
	}

	f, err := p.fs.OpenFile(name, os.O_WRONLY|os.O_APPEND, 0)
	if err != nil {
		return errors.Wrapf(err, "opening %s for append", name)
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = errors.Wrapf(closeErr, "closing %s", name)
		}
	}()

	if _, err = f.Write(data); err != nil {
		return errors.Wrapf(err, "appending to %s", name)
	}

	if err = f.Sync(); err != nil {
		return errors.Wrapf(err, "syncing %s", name)
	}

	return nil
}

func (p *FsProvider) Delete(_ context.Context, ref string) error {
	name, err := p.pathFor(ref)
	if err != nil {
		return err
	}

	if err := p.fs.Remove(name); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", name)
	}

	return nil
}

func (p *FsProvider) pathFor(ref string) (string, error) {
	scheme, name, err := ParseRef(ref)
	switch {
	case err != nil:
		return "", err
	case scheme != FileScheme:
		return "", errors.Wrapf(ErrBadRef, "'%s' is not a %s reference", ref, FileScheme)
	default:
		return name, nil
	}
}
