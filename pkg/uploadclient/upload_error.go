package uploadclient

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-resty/resty/v2"
)

var ErrUploadAPI = errors.New("upload api")

// ErrorResponse is the JSON body mcuploadd sends back with an error. Offset
// is set when the chunk didn't start at the server's offset, Size when the
// stored size didn't match.
type ErrorResponse struct {
	Detail string `json:"detail"`
	Offset *int64 `json:"offset,omitempty"`
	Size   *int64 `json:"size,omitempty"`
	Status int    `json:"-"`
}

func ToErrorFromResponse(resp *resty.Response) (*ErrorResponse, error) {
	var errorResponse ErrorResponse
	if err := json.Unmarshal(resp.Body(), &errorResponse); err != nil {
		return nil, errors.Join(ErrUploadAPI, fmt.Errorf("(HTTP Status: %d)- unable to parse json error response: %s", resp.StatusCode(), err))
	}

	errorResponse.Status = resp.StatusCode()
	return &errorResponse, errors.Join(ErrUploadAPI, fmt.Errorf("(HTTP Status: %d)- %s", resp.StatusCode(), errorResponse.Detail))
}
