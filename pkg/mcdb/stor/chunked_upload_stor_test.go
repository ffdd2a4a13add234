package stor_test

import (
	"errors"
	"testing"
	"time"

	"github.com/materials-commons/mcupload/pkg/mcdb/mcmodel"
	"github.com/materials-commons/mcupload/pkg/mcdb/stor"
	"github.com/materials-commons/mcupload/pkg/tutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

// forEachStor runs fn against the gorm (sqlite) stor and the in memory stor
// so both keep the same behavior.
func forEachStor(t *testing.T, fn func(t *testing.T, s stor.ChunkedUploadStor)) {
	t.Run("Gorm", func(t *testing.T) {
		fn(t, stor.NewGormChunkedUploadStor(tutil.NewSqliteDB(t)))
	})

	t.Run("InMemory", func(t *testing.T) {
		fn(t, stor.NewInMemoryChunkedUploadStor())
	})
}

func TestCreateAndGetChunkedUpload(t *testing.T) {
	forEachStor(t, func(t *testing.T, s stor.ChunkedUploadStor) {
		created, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{
			Filename:   "test-file.txt",
			StorageRef: "file://chunked_uploads/a.part",
		})
		require.NoError(t, err)
		assert.Len(t, created.UploadID, 32)
		assert.Equal(t, mcmodel.ChunkedUploadStatusUploading, created.Status)
		assert.NotZero(t, created.ID)

		found, err := s.GetChunkedUploadByUploadID(created.UploadID)
		require.NoError(t, err)
		assert.Equal(t, created.UploadID, found.UploadID)
		assert.Equal(t, "test-file.txt", found.Filename)
		assert.Equal(t, "file://chunked_uploads/a.part", found.StorageRef)
		assert.Equal(t, int64(0), found.Offset)
		assert.Nil(t, found.CompletedAt)
		assert.False(t, found.CreatedAt.IsZero())
	})
}

func TestCreateKeepsAssignedUploadID(t *testing.T) {
	forEachStor(t, func(t *testing.T, s stor.ChunkedUploadStor) {
		created, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{UploadID: "preassigned", Filename: "f", StorageRef: "file://f"})
		require.NoError(t, err)
		assert.Equal(t, "preassigned", created.UploadID)

		_, err = s.CreateChunkedUpload(&mcmodel.ChunkedUpload{UploadID: "preassigned", Filename: "g", StorageRef: "file://g"})
		assert.Error(t, err, "upload_id must be unique")
	})
}

func TestGetMissingChunkedUpload(t *testing.T) {
	forEachStor(t, func(t *testing.T, s stor.ChunkedUploadStor) {
		_, err := s.GetChunkedUploadByUploadID("does-not-exist")
		require.Error(t, err)
		assert.True(t, errors.Is(err, stor.ErrNotFound))
	})
}

func TestUpdateOffsetAndComplete(t *testing.T) {
	forEachStor(t, func(t *testing.T, s stor.ChunkedUploadStor) {
		upload, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{Filename: "f", StorageRef: "file://f"})
		require.NoError(t, err)

		upload.Offset = 9
		require.NoError(t, s.UpdateChunkedUploadOffset(upload, 0))

		found, err := s.GetChunkedUploadByUploadID(upload.UploadID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), found.Offset)

		completedAt := time.Now()
		require.NoError(t, s.MarkChunkedUploadComplete(found, completedAt))
		assert.True(t, found.IsComplete())
		require.NotNil(t, found.CompletedAt)

		found, err = s.GetChunkedUploadByUploadID(upload.UploadID)
		require.NoError(t, err)
		assert.True(t, found.IsComplete())
		require.NotNil(t, found.CompletedAt)
		assert.WithinDuration(t, completedAt, *found.CompletedAt, time.Second)

		err = s.MarkChunkedUploadComplete(found, time.Now())
		assert.True(t, errors.Is(err, stor.ErrAlreadyComplete), "status never flips twice")

		found.Offset = 14
		err = s.UpdateChunkedUploadOffset(found, 9)
		assert.True(t, errors.Is(err, stor.ErrAlreadyComplete), "complete uploads never move")

		found, err = s.GetChunkedUploadByUploadID(upload.UploadID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), found.Offset)
	})
}

func TestUpdateOffsetFromStaleOffset(t *testing.T) {
	forEachStor(t, func(t *testing.T, s stor.ChunkedUploadStor) {
		upload, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{Filename: "f", StorageRef: "file://f"})
		require.NoError(t, err)

		upload.Offset = 9
		require.NoError(t, s.UpdateChunkedUploadOffset(upload, 0))

		upload.Offset = 5
		err = s.UpdateChunkedUploadOffset(upload, 0)
		assert.True(t, errors.Is(err, stor.ErrOffsetChanged))

		found, err := s.GetChunkedUploadByUploadID(upload.UploadID)
		require.NoError(t, err)
		assert.Equal(t, int64(9), found.Offset)

		require.NoError(t, s.DeleteChunkedUpload(found))
		found.Offset = 20
		err = s.UpdateChunkedUploadOffset(found, 9)
		assert.True(t, errors.Is(err, stor.ErrNotFound))
	})
}

func TestListCreatedBeforeAndDelete(t *testing.T) {
	forEachStor(t, func(t *testing.T, s stor.ChunkedUploadStor) {
		base := time.Now().Add(-48 * time.Hour)
		old1, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{Filename: "old1", StorageRef: "file://1", CreatedAt: base})
		require.NoError(t, err)
		old2, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{Filename: "old2", StorageRef: "file://2", CreatedAt: base.Add(time.Hour)})
		require.NoError(t, err)
		_, err = s.CreateChunkedUpload(&mcmodel.ChunkedUpload{Filename: "new", StorageRef: "file://3"})
		require.NoError(t, err)

		uploads, err := s.ListChunkedUploadsCreatedBefore(time.Now().Add(-24 * time.Hour))
		require.NoError(t, err)
		require.Len(t, uploads, 2)
		assert.Equal(t, old1.UploadID, uploads[0].UploadID)
		assert.Equal(t, old2.UploadID, uploads[1].UploadID)

		require.NoError(t, s.DeleteChunkedUpload(&uploads[0]))
		_, err = s.GetChunkedUploadByUploadID(old1.UploadID)
		assert.True(t, errors.Is(err, stor.ErrNotFound))

		uploads, err = s.ListChunkedUploadsCreatedBefore(time.Now().Add(time.Minute))
		require.NoError(t, err)
		assert.Len(t, uploads, 2)
	})
}

func TestUserStorAPIToken(t *testing.T) {
	userStors := map[string]stor.UserStor{
		"Gorm":     stor.NewGormUserStor(tutil.NewSqliteDB(t)),
		"InMemory": stor.NewInMemoryUserStor(nil),
	}

	for name, s := range userStors {
		t.Run(name, func(t *testing.T) {
			user, err := s.CreateUser(&mcmodel.User{Email: "user1@test.com"})
			require.NoError(t, err)
			assert.NotEmpty(t, user.UUID)
			assert.NotEmpty(t, user.ApiToken)

			found, err := s.GetUserByAPIToken(user.ApiToken)
			require.NoError(t, err)
			assert.Equal(t, user.ID, found.ID)

			found, err = s.GetUserByID(user.ID)
			require.NoError(t, err)
			assert.Equal(t, "user1@test.com", found.Email)

			_, err = s.GetUserByAPIToken("bad-token")
			assert.True(t, errors.Is(err, stor.ErrNotFound))
		})
	}
}

func TestGormChunkedUploadStorMySQL(t *testing.T) {
	if !tutil.IsIntegrationTest() {
		t.Skip("Not an integration test run")
	}

	dsn := "mc:mcpw@tcp(127.0.0.1:3306)/mc?charset=utf8mb4&parseTime=True&loc=Local"
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	require.NoErrorf(t, err, "Failed to open db: %s", err)
	require.NoError(t, db.AutoMigrate(&mcmodel.User{}, &mcmodel.ChunkedUpload{}))

	s := stor.NewGormChunkedUploadStor(db)
	upload, err := s.CreateChunkedUpload(&mcmodel.ChunkedUpload{Filename: "mysql.txt", StorageRef: "file://mysql.part"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DeleteChunkedUpload(upload) })

	found, err := s.GetChunkedUploadByUploadID(upload.UploadID)
	require.NoError(t, err)
	assert.Equal(t, "mysql.txt", found.Filename)
}
