package chunked

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/sink"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// addUpload creates an upload with one chunk, created age ago.
func addUpload(t *testing.T, env *testEnv, age time.Duration, complete bool) *mcmodel.ChunkedUpload {
	c := env.uploadCoordinator(nil)
	c.now = func() time.Time { return time.Now().Add(-age) }

	view, err := c.HandleChunk(ctx, chunkReq("", "", "abc", user1))
	require.NoError(t, err)

	if complete {
		_, err = env.completionCoordinator(nil).Complete(ctx, CompleteRequest{UploadID: view.UploadID, User: user1})
		require.NoError(t, err)
	}

	return mustUpload(t, env, view.UploadID)
}

func TestSweepWithZeroDeltaDeletesEverything(t *testing.T) {
	env := newTestEnv()
	a := addUpload(t, env, 0, false)
	b := addUpload(t, env, 0, true)

	summary, err := NewReaper(env.uploads, env.sink, nil).Sweep(ctx, SweepOptions{
		Now:             time.Now().Add(time.Millisecond),
		ExpirationDelta: 0,
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{a.UploadID, b.UploadID}, summary.DeletedIDs)
	assert.Equal(t, 1, summary.Counts[mcmodel.ChunkedUploadStatusComplete])
	assert.Equal(t, 1, summary.Counts[mcmodel.ChunkedUploadStatusUploading])
	assert.Empty(t, summary.SinkErrors)
	assert.Equal(t, 0, env.uploads.Count())
	assert.False(t, env.refExists(t, a.StorageRef))
	assert.False(t, env.refExists(t, b.StorageRef))
}

func TestSweepWithOneDayDeltaKeepsFreshUploads(t *testing.T) {
	env := newTestEnv()
	addUpload(t, env, 0, false)
	addUpload(t, env, time.Hour, true)

	summary, err := NewReaper(env.uploads, env.sink, nil).Sweep(ctx, SweepOptions{
		Now:             time.Now(),
		ExpirationDelta: 24 * time.Hour,
	})
	require.NoError(t, err)

	assert.Empty(t, summary.DeletedIDs)
	assert.Equal(t, 2, env.uploads.Count())
	assert.Equal(t, []string{
		"Deleted upload ids: [].",
		"0 complete uploads were deleted.",
		"0 incomplete uploads were deleted.",
	}, summary.Lines())
}

func TestSweepDeletesExactlyTheExpiredSet(t *testing.T) {
	env := newTestEnv()
	oldest := addUpload(t, env, 72*time.Hour, true)
	old := addUpload(t, env, 48*time.Hour, false)
	fresh := addUpload(t, env, 2*time.Hour, false)

	summary, err := NewReaper(env.uploads, env.sink, nil).Sweep(ctx, SweepOptions{
		Now:             time.Now(),
		ExpirationDelta: 24 * time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{oldest.UploadID, old.UploadID}, summary.DeletedIDs, "oldest first")
	assert.Equal(t, []string{
		"Deleted upload ids: [" + oldest.UploadID + ", " + old.UploadID + "].",
		"1 complete uploads were deleted.",
		"1 incomplete uploads were deleted.",
	}, summary.Lines())

	assert.Equal(t, 1, env.uploads.Count())
	assert.True(t, env.refExists(t, fresh.StorageRef))
	assert.Equal(t, fresh.UploadID, mustUpload(t, env, fresh.UploadID).UploadID)
}

func TestInteractiveSweep(t *testing.T) {
	env := newTestEnv()
	first := addUpload(t, env, 72*time.Hour, false)
	second := addUpload(t, env, 48*time.Hour, false)

	in := strings.NewReader("maybe\nN\n\nY\n")
	var out bytes.Buffer
	reaper := NewReaper(env.uploads, env.sink, NewLinePrompter(in, &out))

	summary, err := reaper.Sweep(ctx, SweepOptions{Now: time.Now(), ExpirationDelta: 24 * time.Hour, Interactive: true})
	require.NoError(t, err)

	assert.Equal(t, []string{second.UploadID}, summary.DeletedIDs)
	assert.Equal(t, 1, env.uploads.Count())
	assert.Equal(t, first.UploadID, mustUpload(t, env, first.UploadID).UploadID)

	firstPrompt := "Do you want to delete " + first.String() + "? (y/n): "
	secondPrompt := "Do you want to delete " + second.String() + "? (y/n): "
	assert.Equal(t, firstPrompt+firstPrompt+secondPrompt+secondPrompt, out.String())
}

func TestInteractiveSweepStopsAtEndOfInput(t *testing.T) {
	env := newTestEnv()
	addUpload(t, env, 48*time.Hour, false)

	reaper := NewReaper(env.uploads, env.sink, NewLinePrompter(strings.NewReader(""), &bytes.Buffer{}))
	_, err := reaper.Sweep(ctx, SweepOptions{Now: time.Now(), ExpirationDelta: 24 * time.Hour, Interactive: true})
	require.Error(t, err)
	assert.Equal(t, 1, env.uploads.Count())
}

func TestInteractiveSweepNeedsPrompter(t *testing.T) {
	env := newTestEnv()
	_, err := NewReaper(env.uploads, env.sink, nil).Sweep(ctx, SweepOptions{Now: time.Now(), Interactive: true})
	require.Error(t, err)
}

func TestSweepKeepsGoingWhenSinkIsMissing(t *testing.T) {
	env := newTestEnv()
	upload := addUpload(t, env, 48*time.Hour, false)

	_, p, err := sink.ParseRef(upload.StorageRef)
	require.NoError(t, err)
	require.NoError(t, env.fs.Remove(p))

	summary, err := NewReaper(env.uploads, env.sink, nil).Sweep(ctx, SweepOptions{Now: time.Now(), ExpirationDelta: 24 * time.Hour})
	require.NoError(t, err)
	assert.Equal(t, []string{upload.UploadID}, summary.DeletedIDs)
	assert.Empty(t, summary.SinkErrors)
}

func TestStartPeriodicSweep(t *testing.T) {
	env := newTestEnv()
	old := addUpload(t, env, 2*time.Hour, false)
	fresh := addUpload(t, env, 0, false)

	stop := NewReaper(env.uploads, env.sink, nil).StartPeriodicSweep(time.Hour, 5*time.Millisecond)
	defer stop()

	_, oldPath, err := sink.ParseRef(old.StorageRef)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		exists, _ := afero.Exists(env.fs, oldPath)
		return env.uploads.Count() == 1 && !exists
	}, 2*time.Second, 10*time.Millisecond)
	stop()
	stop()

	assert.Equal(t, fresh.UploadID, mustUpload(t, env, fresh.UploadID).UploadID)
	assert.True(t, env.refExists(t, fresh.StorageRef))
}

func TestStartPeriodicSweepDisabled(t *testing.T) {
	env := newTestEnv()
	addUpload(t, env, 2*time.Hour, false)

	stop := NewReaper(env.uploads, env.sink, nil).StartPeriodicSweep(time.Hour, 0)
	stop()
	assert.Equal(t, 1, env.uploads.Count())
}

func TestSweepTellsHooksAboutDeletedUploads(t *testing.T) {
	env := newTestEnv()
	a := addUpload(t, env, 2*time.Hour, false)
	addUpload(t, env, 0, false)
	hooks := &recordingHooks{}

	summary, err := NewReaper(env.uploads, env.sink, nil).WithHooks(hooks).Sweep(ctx, SweepOptions{
		Now:             time.Now(),
		ExpirationDelta: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{a.UploadID}, summary.DeletedIDs)
	assert.Equal(t, []string{a.UploadID}, hooks.deleted)
}

func TestSweepKeepsUploadWhenSinkDeleteFails(t *testing.T) {
	env := newTestEnv()
	upload := addUpload(t, env, 2*time.Hour, false)
	spy := &spySink{Sink: env.sink, deleteErr: errors.New("permission denied")}
	hooks := &recordingHooks{}

	summary, err := NewReaper(env.uploads, spy, nil).WithHooks(hooks).Sweep(ctx, SweepOptions{
		Now:             time.Now(),
		ExpirationDelta: time.Hour,
	})
	require.NoError(t, err)

	assert.Empty(t, summary.DeletedIDs)
	assert.Equal(t, 0, summary.Counts[mcmodel.ChunkedUploadStatusUploading])
	require.Contains(t, summary.SinkErrors, upload.StorageRef)
	assert.Empty(t, hooks.deleted)
	assert.Equal(t, 1, env.uploads.Count())
	assert.True(t, env.refExists(t, upload.StorageRef))

	spy.deleteErr = nil
	summary, err = NewReaper(env.uploads, spy, nil).Sweep(ctx, SweepOptions{
		Now:             time.Now(),
		ExpirationDelta: time.Hour,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{upload.UploadID}, summary.DeletedIDs)
	assert.Equal(t, 0, env.uploads.Count())
	assert.False(t, env.refExists(t, upload.StorageRef))
}
