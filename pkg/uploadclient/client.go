// Package uploadclient sends files to mcuploadd in chunks and resumes
// interrupted uploads from the offset the server reports.
package uploadclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/apex/log"
	"github.com/go-resty/resty/v2"
)

const DefaultChunkSize = 8 * 1024 * 1024

// maxResyncs bounds how many times an upload follows the server's offset
// before giving up.
const maxResyncs = 5

type UploadResponse struct {
	UploadID string    `json:"upload_id"`
	Offset   int64     `json:"offset"`
	Expires  time.Time `json:"expires"`
}

type CompleteResponse struct {
	SizeChecked bool `json:"size_checked"`
}

type StatusResponse struct {
	UploadID    string     `json:"upload_id"`
	Filename    string     `json:"filename"`
	Offset      int64      `json:"offset"`
	Status      string     `json:"status"`
	Expires     time.Time  `json:"expires"`
	CompletedAt *time.Time `json:"completed_at"`
}

type Client struct {
	rc        *resty.Client
	ChunkSize int64

	// lastError holds the parsed body of the last failed call.
	lastError *ErrorResponse
}

func NewClient(baseURL, apikey string) *Client {
	rc := resty.New().SetBaseURL(baseURL)
	if apikey != "" {
		rc.SetHeader("apikey", apikey)
	}

	return &Client{rc: rc, ChunkSize: DefaultChunkSize}
}

// LastError returns the error body of the last call that failed, or nil.
func (c *Client) LastError() *ErrorResponse {
	return c.lastError
}

// SendChunk sends data as the bytes starting at start of a file that is
// total bytes long. An empty uploadID starts a new upload.
func (c *Client) SendChunk(ctx context.Context, uploadID, filename string, data []byte, start, total int64) (*UploadResponse, error) {
	var result UploadResponse

	req := c.rc.R().
		SetContext(ctx).
		SetHeader("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, start+int64(len(data))-1, total)).
		SetFileReader("file", filename, bytes.NewReader(data)).
		SetResult(&result)

	if uploadID != "" {
		req.SetFormData(map[string]string{"upload_id": uploadID})
	}

	resp, err := req.Post("/api/chunked-uploads")
	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	return &result, nil
}

// Complete marks the upload complete. A negative expectedSize skips the
// server side size check.
func (c *Client) Complete(ctx context.Context, uploadID string, expectedSize int64) (*CompleteResponse, error) {
	var result CompleteResponse

	form := map[string]string{"upload_id": uploadID}
	if expectedSize >= 0 {
		form["expected_size"] = strconv.FormatInt(expectedSize, 10)
	}

	resp, err := c.rc.R().
		SetContext(ctx).
		SetFormData(form).
		SetResult(&result).
		Post("/api/chunked-uploads/complete")

	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	return &result, nil
}

func (c *Client) Status(ctx context.Context, uploadID string) (*StatusResponse, error) {
	var result StatusResponse

	resp, err := c.rc.R().
		SetContext(ctx).
		SetPathParam("upload_id", uploadID).
		SetResult(&result).
		Get("/api/chunked-uploads/{upload_id}")

	if err := c.checkResponse(resp, err); err != nil {
		return nil, err
	}

	return &result, nil
}

// UploadFile sends the file at path and completes the upload, checking the
// size on the server. When uploadID is set the upload resumes from the
// offset the server has. Returns the upload id.
func (c *Client) UploadFile(ctx context.Context, path, uploadID string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return "", err
	}

	if fi.Size() == 0 {
		return "", fmt.Errorf("%s is empty, nothing to upload", path)
	}

	var offset int64
	if uploadID != "" {
		status, err := c.Status(ctx, uploadID)
		if err != nil {
			return "", err
		}
		offset = status.Offset
		log.Infof("Resuming upload %s of %s at byte %d", uploadID, path, offset)
	}

	uploadID, err = c.upload(ctx, f, filepath.Base(path), fi.Size(), uploadID, offset)
	if err != nil {
		return uploadID, err
	}

	if _, err := c.Complete(ctx, uploadID, fi.Size()); err != nil {
		return uploadID, err
	}

	return uploadID, nil
}

// upload sends chunks from offset to the end of r. When the server says the
// upload is at a different offset the loop continues from there.
func (c *Client) upload(ctx context.Context, r io.ReaderAt, filename string, size int64, uploadID string, offset int64) (string, error) {
	chunkSize := c.ChunkSize
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	buf := make([]byte, chunkSize)
	resyncs := 0

	for offset < size {
		n, err := r.ReadAt(buf[:min(chunkSize, size-offset)], offset)
		if err != nil && err != io.EOF {
			return uploadID, err
		}

		resp, err := c.SendChunk(ctx, uploadID, filename, buf[:n], offset, size)
		if err != nil {
			if c.lastError != nil && c.lastError.Offset != nil && resyncs < maxResyncs {
				resyncs++
				log.Warnf("Server is at offset %d not %d, continuing from there", *c.lastError.Offset, offset)
				offset = *c.lastError.Offset
				continue
			}

			return uploadID, err
		}

		uploadID = resp.UploadID
		offset = resp.Offset
	}

	return uploadID, nil
}

func (c *Client) checkResponse(resp *resty.Response, err error) error {
	c.lastError = nil

	if err != nil {
		return err
	}

	if resp.IsError() {
		c.lastError, err = ToErrorFromResponse(resp)
		return err
	}

	return nil
}
