// Package sink holds the byte stores that chunk data is appended to. A
// record only ever keeps the opaque reference handed out by Allocate, the
// reference's scheme picks the Provider that owns it.
package sink

import (
	"context"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/pkg/errors"
)

// Sink is the storage surface the upload coordinators use.
type Sink interface {
	// Allocate creates an empty object for uploadID and returns its reference.
	Allocate(ctx context.Context, uploadID, filename string) (string, error)

	// Size returns the number of bytes currently stored under ref.
	Size(ctx context.Context, ref string) (int64, error)

	// Append opens ref, writes data at the end, syncs and closes it. The
	// handle never outlives the call.
	Append(ctx context.Context, ref string, data []byte) error

	// Delete removes ref. Deleting an object that is already gone is not an error.
	Delete(ctx context.Context, ref string) error
}

// Provider is a Sink bound to one reference scheme.
type Provider interface {
	Sink
	Scheme() string
}

var ErrBadRef = errors.New("bad sink reference")

// MakeRef builds "<scheme>://<path>".
func MakeRef(scheme, p string) string {
	return fmt.Sprintf("%s://%s", scheme, p)
}

// ParseRef splits a reference into its scheme and path.
func ParseRef(ref string) (scheme string, p string, err error) {
	i := strings.Index(ref, "://")
	if i <= 0 || i+3 == len(ref) {
		return "", "", errors.Wrapf(ErrBadRef, "'%s'", ref)
	}

	return ref[:i], ref[i+3:], nil
}

// ObjectName lays out the name of a new object. uploadTo is a directory
// layout that may contain the date tokens %Y, %m, %d, %H, %M and %S.
func ObjectName(uploadTo string, now time.Time, uploadID, filename string) string {
	base := uploadID
	if s := slug.Make(strings.TrimSuffix(filename, path.Ext(filename))); s != "" {
		base = fmt.Sprintf("%s-%s", uploadID, s)
	}

	return path.Join(expandDateLayout(uploadTo, now), base+".part")
}

func expandDateLayout(layout string, now time.Time) string {
	r := strings.NewReplacer(
		"%Y", now.Format("2006"),
		"%m", now.Format("01"),
		"%d", now.Format("02"),
		"%H", now.Format("15"),
		"%M", now.Format("04"),
		"%S", now.Format("05"),
	)

	return strings.TrimPrefix(path.Clean("/"+r.Replace(layout)), "/")
}
