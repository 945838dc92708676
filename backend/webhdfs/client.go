package webhdfs

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"

	json "github.com/goccy/go-json"
	"github.com/mwantia/folders/data"
)

const (
	opList    = "LISTSTATUS"
	opSummary = "GETCONTENTSUMMARY"
	opCreate  = "CREATE"
	opOpen    = "OPEN"
	opStatus  = "GETFILESTATUS"
	opDelete  = "DELETE"
	opMkdirs  = "MKDIRS"

	typeDirectory = "DIRECTORY"
	typeFile      = "FILE"
)

type fileStatus struct {
	PathSuffix       string `json:"pathSuffix"`
	Type             string `json:"type"`
	Length           int64  `json:"length"`
	Owner            string `json:"owner"`
	Group            string `json:"group"`
	Permission       string `json:"permission"`
	Replication      int    `json:"replication"`
	BlockSize        int64  `json:"blockSize"`
	ModificationTime int64  `json:"modificationTime"`
}

type contentSummary struct {
	DirectoryCount int64 `json:"directoryCount"`
	FileCount      int64 `json:"fileCount"`
	Length         int64 `json:"length"`
	SpaceConsumed  int64 `json:"spaceConsumed"`
	SpaceQuota     int64 `json:"spaceQuota"`
}

// RemoteError is the decoded RemoteException of a failed request.
type RemoteError struct {
	StatusCode int    `json:"-"`
	Exception  string `json:"exception"`
	ClassName  string `json:"javaClassName"`
	Message    string `json:"message"`
}

func (e *RemoteError) Error() string {
	if e.Exception == "" {
		return fmt.Sprintf("webhdfs: unexpected status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhdfs: %s (%d): %s", e.Exception, e.StatusCode, e.Message)
}

// endpoint builds the namenode url of op for key below the configured root.
func (wb *WebHdfsBackend) endpoint(key, op string, params url.Values) string {
	u := *wb.base
	u.Path = wb.base.Path + path.Join(wb.options.Root, key)

	query := url.Values{}
	for name, values := range params {
		query[name] = values
	}
	query.Set("op", op)
	query.Set("user.name", wb.options.Username)
	u.RawQuery = query.Encode()
	return u.String()
}

func (wb *WebHdfsBackend) do(ctx context.Context, client *http.Client, method, target string, body io.Reader, size int64) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
		if size >= 0 {
			req.ContentLength = size
		}
	}
	return client.Do(req)
}

// call runs the namenode operation hdfsOp and decodes the json answer
// into out. Failures are reported as op.
func (wb *WebHdfsBackend) call(ctx context.Context, method, op, hdfsOp, p, key string, params url.Values, out any) error {
	resp, err := wb.do(ctx, wb.client, method, wb.endpoint(key, hdfsOp, params), nil, -1)
	if err != nil {
		return data.BackendError(op, p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return responseError(op, p, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return data.BackendError(op, p, fmt.Errorf("failed to decode %s response: %w", hdfsOp, err))
	}
	return nil
}

func (wb *WebHdfsBackend) status(ctx context.Context, op, p, key string) (*fileStatus, error) {
	var out struct {
		FileStatus fileStatus `json:"FileStatus"`
	}
	if err := wb.call(ctx, http.MethodGet, op, opStatus, p, key, nil, &out); err != nil {
		return nil, err
	}
	return &out.FileStatus, nil
}

func (wb *WebHdfsBackend) list(ctx context.Context, p, key string) ([]fileStatus, error) {
	var out struct {
		FileStatuses struct {
			FileStatus []fileStatus `json:"FileStatus"`
		} `json:"FileStatuses"`
	}
	if err := wb.call(ctx, http.MethodGet, "ls", opList, p, key, nil, &out); err != nil {
		return nil, err
	}
	return out.FileStatuses.FileStatus, nil
}

func (wb *WebHdfsBackend) summary(ctx context.Context, p, key string) (*contentSummary, error) {
	var out struct {
		ContentSummary contentSummary `json:"ContentSummary"`
	}
	if err := wb.call(ctx, http.MethodGet, "ls", opSummary, p, key, nil, &out); err != nil {
		return nil, err
	}
	return &out.ContentSummary, nil
}

// boolean runs an operation answered with {"boolean": ...}.
func (wb *WebHdfsBackend) boolean(ctx context.Context, method, op, hdfsOp, p, key string, params url.Values) (bool, error) {
	var out struct {
		Boolean bool `json:"boolean"`
	}
	if err := wb.call(ctx, method, op, hdfsOp, p, key, params, &out); err != nil {
		return false, err
	}
	return out.Boolean, nil
}

func responseError(op, p string, resp *http.Response) error {
	var envelope struct {
		RemoteException RemoteError `json:"RemoteException"`
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	_ = json.Unmarshal(body, &envelope)

	remote := &envelope.RemoteException
	remote.StatusCode = resp.StatusCode

	switch {
	case resp.StatusCode == http.StatusNotFound, remote.Exception == "FileNotFoundException":
		return data.NewError(data.ErrNotExist, op, p, remote)
	case remote.Exception == "FileAlreadyExistsException":
		return data.NewError(data.ErrExist, op, p, remote)
	}
	return data.BackendError(op, p, remote)
}
