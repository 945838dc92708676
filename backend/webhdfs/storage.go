package webhdfs

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
)

func (wb *WebHdfsBackend) Ls(ctx context.Context, p string) ([]*data.Entry, error) {
	key, err := data.CleanPath(p)
	if err != nil {
		return nil, err
	}

	statuses, err := wb.list(ctx, p, key)
	if err != nil {
		return nil, err
	}
	// LISTSTATUS on a file answers with the file itself.
	if len(statuses) == 1 && statuses[0].PathSuffix == "" && statuses[0].Type != typeDirectory {
		return nil, data.NotDirectory("ls", p)
	}

	dir := data.JoinPath(key)
	entries := make([]*data.Entry, 0, len(statuses))
	for _, status := range statuses {
		if status.PathSuffix == "" {
			continue
		}

		var entry *data.Entry
		if status.Type == typeDirectory {
			entry = data.NewFolder(dir, status.PathSuffix)
		} else {
			entry = data.NewFile(dir, status.PathSuffix, status.Length)
			entry.Meta["replication"] = status.Replication
			entry.Meta["blockSize"] = status.BlockSize
		}

		entry.WithTime(time.UnixMilli(status.ModificationTime))
		entry.Meta["owner"] = status.Owner
		entry.Meta["group"] = status.Group
		entry.Meta["permission"] = status.Permission
		entries = append(entries, entry)
	}

	if !wb.options.Summaries {
		return entries, nil
	}

	err = backend.Enrich(ctx, wb.settings, entries, func(ctx context.Context, entry *data.Entry) error {
		summary, err := wb.summary(ctx, entry.FullPath, path.Join(key, entry.Name))
		if err != nil {
			return err
		}

		entry.Size = summary.Length
		entry.Meta["directoryCount"] = summary.DirectoryCount
		entry.Meta["fileCount"] = summary.FileCount
		entry.Meta["spaceConsumed"] = summary.SpaceConsumed
		entry.Meta["spaceQuota"] = summary.SpaceQuota
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (wb *WebHdfsBackend) Cat(ctx context.Context, p string) (*data.CatResult, error) {
	return wb.RangeCat(ctx, p, data.Range{})
}

func (wb *WebHdfsBackend) RangeCat(ctx context.Context, p string, rng data.Range) (*data.CatResult, error) {
	key, err := data.CleanPath(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("cat", p)
	}

	status, err := wb.status(ctx, "cat", p, key)
	if err != nil {
		return nil, err
	}
	if status.Type == typeDirectory {
		return nil, data.IsDirectory("cat", p)
	}

	size := status.Length
	params := url.Values{}
	if rng.Offset > 0 || rng.Length > 0 {
		if rng.Offset >= size {
			return backend.NewCatResult(ctx, io.NopCloser(bytes.NewReader(nil)), 0, data.Base(key)), nil
		}

		size -= rng.Offset
		if rng.Length > 0 {
			size = min(rng.Length, size)
		}
		params.Set("offset", strconv.FormatInt(rng.Offset, 10))
		params.Set("length", strconv.FormatInt(size, 10))
	}

	// The client follows the redirect to the datanode.
	resp, err := wb.do(ctx, wb.client, http.MethodGet, wb.endpoint(key, opOpen, params), nil, -1)
	if err != nil {
		return nil, data.BackendError("cat", p, err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		return nil, responseError("cat", p, resp)
	}
	return backend.NewCatResult(ctx, resp.Body, size, data.Base(key)), nil
}

// Write creates the file in two steps: the namenode answers CREATE with
// the datanode location, the content is then streamed there.
func (wb *WebHdfsBackend) Write(ctx context.Context, p string, r io.Reader, size int64) (data.WriteResult, error) {
	key, err := data.CleanPath(p)
	if err != nil {
		return nil, err
	}
	if key == "" {
		return nil, data.IsDirectory("write", p)
	}

	status, err := wb.status(ctx, "write", p, key)
	switch {
	case err == nil && status.Type == typeDirectory:
		return nil, data.IsDirectory("write", p)
	case err != nil && !errors.Is(err, data.ErrNotExist):
		return nil, err
	}

	params := url.Values{"overwrite": {"true"}}
	resp, err := wb.do(ctx, wb.upload, http.MethodPut, wb.endpoint(key, opCreate, params), nil, -1)
	if err != nil {
		return nil, data.BackendError("write", p, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusTemporaryRedirect {
		if resp.StatusCode >= http.StatusBadRequest {
			return nil, responseError("write", p, resp)
		}
		return nil, data.BackendError("write", p, fmt.Errorf("expected redirect, got %s", resp.Status))
	}

	location, err := resp.Location()
	if err != nil {
		return nil, data.BackendError("write", p, err)
	}

	put, err := wb.do(ctx, wb.client, http.MethodPut, location.String(), r, size)
	if err != nil {
		return nil, data.BackendError("write", p, err)
	}
	defer put.Body.Close()

	if put.StatusCode != http.StatusCreated && put.StatusCode != http.StatusOK {
		return nil, responseError("write", p, put)
	}

	wb.settings.Logger.Debug("Write: created '%s' through '%s'", key, location.Host)
	return data.WriteSuccess(data.JoinPath(key)), nil
}

func (wb *WebHdfsBackend) Unlink(ctx context.Context, p string) error {
	key, err := data.CleanPath(p)
	if err != nil {
		return err
	}
	if key == "" {
		return data.IsDirectory("unlink", p)
	}

	status, err := wb.status(ctx, "unlink", p, key)
	if err != nil {
		return err
	}
	if status.Type == typeDirectory {
		return data.IsDirectory("unlink", p)
	}

	return wb.delete(ctx, "unlink", p, key, false)
}

func (wb *WebHdfsBackend) Mkdir(ctx context.Context, p string) error {
	if err := backend.CheckDepth(backend.CapabilityMkdir, p, wb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(p)
	if err != nil {
		return err
	}

	_, err = wb.status(ctx, "mkdir", p, key)
	switch {
	case err == nil:
		return data.Exists("mkdir", p)
	case !errors.Is(err, data.ErrNotExist):
		return err
	}

	ok, err := wb.boolean(ctx, http.MethodPut, "mkdir", opMkdirs, p, key, nil)
	if err != nil {
		return err
	}
	if !ok {
		return data.BackendError("mkdir", p, errors.New("namenode refused to create the directory"))
	}
	return nil
}

func (wb *WebHdfsBackend) Rmdir(ctx context.Context, p string) error {
	if err := backend.CheckDepth(backend.CapabilityRmdir, p, wb.options.MinDepth); err != nil {
		return err
	}

	key, err := data.CleanPath(p)
	if err != nil {
		return err
	}

	status, err := wb.status(ctx, "rmdir", p, key)
	if err != nil {
		return err
	}
	if status.Type != typeDirectory {
		return data.NotDirectory("rmdir", p)
	}

	return wb.delete(ctx, "rmdir", p, key, true)
}

func (wb *WebHdfsBackend) delete(ctx context.Context, op, p, key string, recursive bool) error {
	params := url.Values{"recursive": {strconv.FormatBool(recursive)}}
	ok, err := wb.boolean(ctx, http.MethodDelete, op, opDelete, p, key, params)
	if err != nil {
		return err
	}
	if !ok {
		return data.NotFound(op, p)
	}
	return nil
}
