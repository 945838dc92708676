package webhdfs

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"slices"
	"strconv"
	"strings"
	"sync"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/mwantia/folders/backend"
	"github.com/mwantia/folders/data"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMtime = int64(1700000000000)

// fakeNode answers the namenode REST calls from an in-memory tree and
// serves file content under /datanode like a redirect target.
type fakeNode struct {
	mu    sync.Mutex
	files map[string][]byte
	dirs  map[string]bool
	// failing directories answer GETCONTENTSUMMARY with an error.
	failing map[string]bool
	creates int
}

func newFakeNode() *fakeNode {
	return &fakeNode{
		files:   make(map[string][]byte),
		dirs:    map[string]bool{"/": true},
		failing: make(map[string]bool),
	}
}

func (fn *fakeNode) put(p string, content string) {
	fn.mkdirs(path.Dir(p))
	fn.files[p] = []byte(content)
}

func (fn *fakeNode) mkdirs(p string) {
	for p != "/" {
		fn.dirs[p] = true
		p = path.Dir(p)
	}
}

// The helpers below are called from tests while the server is running.

func (fn *fakeNode) add(p, content string) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	fn.put(p, content)
}

func (fn *fakeNode) addDir(p string, failing bool) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	fn.mkdirs(p)
	fn.failing[p] = failing
}

func (fn *fakeNode) read(p string) (string, bool) {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	content, ok := fn.files[p]
	return string(content), ok
}

func (fn *fakeNode) isDir(p string) bool {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	return fn.dirs[p]
}

func (fn *fakeNode) createCount() int {
	fn.mu.Lock()
	defer fn.mu.Unlock()
	return fn.creates
}

func (fn *fakeNode) children(dir string) []string {
	var names []string
	for p := range fn.dirs {
		if p != "/" && path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	for p := range fn.files {
		if path.Dir(p) == dir {
			names = append(names, path.Base(p))
		}
	}
	slices.Sort(names)
	return names
}

func (fn *fakeNode) status(p, suffix string) map[string]any {
	status := map[string]any{
		"pathSuffix":       suffix,
		"owner":            "hdfs",
		"group":            "supergroup",
		"permission":       "755",
		"modificationTime": testMtime,
	}
	if content, ok := fn.files[p]; ok {
		status["type"] = typeFile
		status["length"] = len(content)
		status["permission"] = "644"
		status["replication"] = 3
		status["blockSize"] = 134217728
	} else {
		status["type"] = typeDirectory
		status["length"] = 0
	}
	return status
}

func (fn *fakeNode) exists(p string) bool {
	_, file := fn.files[p]
	return file || fn.dirs[p]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeException(w http.ResponseWriter, code int, exception, message string) {
	writeJSON(w, code, map[string]any{
		"RemoteException": map[string]string{
			"exception":     exception,
			"javaClassName": "org.apache.hadoop." + exception,
			"message":       message,
		},
	})
}

func (fn *fakeNode) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	fn.mu.Lock()
	defer fn.mu.Unlock()

	if p, ok := strings.CutPrefix(r.URL.Path, "/datanode"); ok {
		fn.datanode(w, r, p)
		return
	}

	p := path.Clean("/" + strings.TrimPrefix(r.URL.Path, "/webhdfs/v1"))
	query := r.URL.Query()
	if query.Get("user.name") != "hdfs" {
		writeException(w, http.StatusUnauthorized, "SecurityException", "missing user.name")
		return
	}

	op := query.Get("op")
	if !fn.exists(p) && op != opCreate && op != opMkdirs && op != opDelete {
		writeException(w, http.StatusNotFound, "FileNotFoundException", "File does not exist: "+p)
		return
	}

	switch op {
	case opStatus:
		writeJSON(w, http.StatusOK, map[string]any{"FileStatus": fn.status(p, "")})

	case opList:
		statuses := []map[string]any{}
		if _, file := fn.files[p]; file {
			statuses = append(statuses, fn.status(p, ""))
		} else {
			for _, name := range fn.children(p) {
				statuses = append(statuses, fn.status(path.Join(p, name), name))
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"FileStatuses": map[string]any{"FileStatus": statuses}})

	case opSummary:
		if fn.failing[p] {
			writeException(w, http.StatusInternalServerError, "IOException", "summary unavailable")
			return
		}
		var length, files, dirs int64
		for fp, content := range fn.files {
			if strings.HasPrefix(fp, p+"/") {
				length += int64(len(content))
				files++
			}
		}
		for dp := range fn.dirs {
			if dp == p || strings.HasPrefix(dp, p+"/") {
				dirs++
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{"ContentSummary": map[string]any{
			"directoryCount": dirs,
			"fileCount":      files,
			"length":         length,
			"spaceConsumed":  length * 3,
			"spaceQuota":     -1,
		}})

	case opOpen:
		http.Redirect(w, r, "/datanode"+p+"?"+r.URL.RawQuery, http.StatusTemporaryRedirect)

	case opCreate:
		if query.Get("overwrite") != "true" {
			writeException(w, http.StatusForbidden, "FileAlreadyExistsException", p)
			return
		}
		http.Redirect(w, r, "/datanode"+p+"?op=CREATE", http.StatusTemporaryRedirect)

	case opMkdirs:
		fn.mkdirs(p)
		writeJSON(w, http.StatusOK, map[string]bool{"boolean": true})

	case opDelete:
		if !fn.exists(p) {
			writeJSON(w, http.StatusOK, map[string]bool{"boolean": false})
			return
		}
		if len(fn.children(p)) > 0 && query.Get("recursive") != "true" {
			writeException(w, http.StatusForbidden, "PathIsNotEmptyDirectoryException", p+" is non empty")
			return
		}
		delete(fn.files, p)
		for fp := range fn.files {
			if strings.HasPrefix(fp, p+"/") {
				delete(fn.files, fp)
			}
		}
		for dp := range fn.dirs {
			if dp == p || strings.HasPrefix(dp, p+"/") {
				delete(fn.dirs, dp)
			}
		}
		writeJSON(w, http.StatusOK, map[string]bool{"boolean": true})

	default:
		writeException(w, http.StatusBadRequest, "IllegalArgumentException", "unknown op "+op)
	}
}

func (fn *fakeNode) datanode(w http.ResponseWriter, r *http.Request, p string) {
	switch r.Method {
	case http.MethodPut:
		content, err := io.ReadAll(r.Body)
		if err != nil {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fn.put(p, string(content))
		fn.creates++
		w.WriteHeader(http.StatusCreated)

	case http.MethodGet:
		content := fn.files[p]
		query := r.URL.Query()
		offset, _ := strconv.Atoi(query.Get("offset"))
		end := len(content)
		if l := query.Get("length"); l != "" {
			length, _ := strconv.Atoi(l)
			end = min(offset+length, end)
		}
		w.Write(content[offset:end])
	}
}

func newTestBackend(t *testing.T, opts backend.Options) (*WebHdfsBackend, *fakeNode) {
	t.Helper()

	node := newFakeNode()
	server := httptest.NewServer(node)
	t.Cleanup(server.Close)

	if opts == nil {
		opts = backend.Options{}
	}
	opts["baseUrl"] = server.URL + "/webhdfs/v1"
	opts["username"] = "hdfs"

	wb, err := NewWebHdfsBackend(opts, nil)
	require.NoError(t, err)
	return wb, node
}

func TestWebHdfs_ListingWithSummaries(t *testing.T) {
	wb, node := newTestBackend(t, nil)
	ctx := t.Context()

	node.add("/user/data/a.txt", strings.Repeat("a", 123))
	node.add("/user/data/logs/x.log", strings.Repeat("x", 10))
	node.add("/user/data/logs/y.log", strings.Repeat("y", 5))
	node.addDir("/user/data/empty", false)
	node.addDir("/user/data/broken", true)

	require.NoError(t, wb.Open(ctx))

	entries, err := wb.Ls(ctx, "/user/data")
	require.NoError(t, err)
	require.NoError(t, data.ValidateListing("/user/data", entries))
	require.Len(t, entries, 4)

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		names = append(names, entry.Name)
	}
	assert.Equal(t, []string{"a.txt", "broken", "empty", "logs"}, names, "listing order is kept")

	file := entries[0]
	assert.False(t, file.IsFolder())
	assert.Equal(t, int64(123), file.Size)
	assert.Equal(t, "txt", file.Extension)
	assert.Equal(t, testMtime, file.ModificationTime)
	assert.Equal(t, "hdfs", file.Meta["owner"])
	assert.Equal(t, "644", file.Meta["permission"])
	assert.Equal(t, 3, file.Meta["replication"])

	broken := entries[1]
	assert.True(t, broken.IsFolder())
	assert.Equal(t, int64(0), broken.Size)
	assert.NotContains(t, broken.Meta, "fileCount")

	empty := entries[2]
	assert.Equal(t, int64(1), empty.Meta["directoryCount"])
	assert.Equal(t, int64(0), empty.Meta["fileCount"])

	logs := entries[3]
	assert.Equal(t, int64(15), logs.Size)
	assert.Equal(t, int64(2), logs.Meta["fileCount"])
	assert.Equal(t, int64(45), logs.Meta["spaceConsumed"])
	assert.Equal(t, int64(-1), logs.Meta["spaceQuota"])

	_, err = wb.Ls(ctx, "/user/data/a.txt")
	assert.ErrorIs(t, err, data.ErrNotDirectory)

	_, err = wb.Ls(ctx, "/user/missing")
	assert.ErrorIs(t, err, data.ErrNotExist)

	var remote *RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Equal(t, http.StatusNotFound, remote.StatusCode)
	assert.Equal(t, "FileNotFoundException", remote.Exception)
}

func TestWebHdfs_SummariesDisabled(t *testing.T) {
	wb, node := newTestBackend(t, backend.Options{"summaries": "false"})
	node.add("/dir/file.bin", "12345")

	entries, err := wb.Ls(t.Context(), "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(0), entries[0].Size)
	assert.NotContains(t, entries[0].Meta, "fileCount")
}

func TestWebHdfs_WriteCatAndRange(t *testing.T) {
	wb, node := newTestBackend(t, nil)
	ctx := t.Context()

	result, err := wb.Write(ctx, "/tmp/hello.txt", strings.NewReader("hello webhdfs"), 13)
	require.NoError(t, err)
	assert.Equal(t, data.WriteSuccessMessage, result["message"])
	assert.Equal(t, "/tmp/hello.txt", result["uri"])
	assert.Equal(t, 1, node.createCount())

	cat, err := wb.Cat(ctx, "/tmp/hello.txt")
	require.NoError(t, err)
	got, err := io.ReadAll(cat.Stream)
	require.NoError(t, err)
	require.NoError(t, cat.Stream.Close())
	assert.Equal(t, "hello webhdfs", string(got))
	assert.Equal(t, int64(13), cat.Size)
	assert.Equal(t, "hello.txt", cat.Name)

	part, err := wb.RangeCat(ctx, "/tmp/hello.txt", data.Range{Offset: 6, Length: 3})
	require.NoError(t, err)
	got, _ = io.ReadAll(part.Stream)
	assert.Equal(t, "web", string(got))
	assert.Equal(t, int64(3), part.Size)

	tail, err := wb.RangeCat(ctx, "/tmp/hello.txt", data.Range{Offset: 6})
	require.NoError(t, err)
	got, _ = io.ReadAll(tail.Stream)
	assert.Equal(t, "webhdfs", string(got))

	beyond, err := wb.RangeCat(ctx, "/tmp/hello.txt", data.Range{Offset: 100})
	require.NoError(t, err)
	assert.Equal(t, int64(0), beyond.Size)

	_, err = wb.Cat(ctx, "/tmp")
	assert.ErrorIs(t, err, data.ErrIsDirectory)
	_, err = wb.Cat(ctx, "/tmp/nope.txt")
	assert.ErrorIs(t, err, data.ErrNotExist)
	_, err = wb.Write(ctx, "/tmp", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, data.ErrIsDirectory)

	_, err = wb.Write(ctx, "/tmp/stream.txt", io.MultiReader(strings.NewReader("chunk-"), strings.NewReader("ed")), -1)
	require.NoError(t, err)
	content, _ := node.read("/tmp/stream.txt")
	assert.Equal(t, "chunk-ed", content)
}

func TestWebHdfs_DirectoryOperations(t *testing.T) {
	wb, node := newTestBackend(t, nil)
	ctx := t.Context()

	require.NoError(t, wb.Mkdir(ctx, "/projects/alpha/"))
	assert.True(t, node.isDir("/projects/alpha"))
	assert.ErrorIs(t, wb.Mkdir(ctx, "/projects/alpha"), data.ErrExist)

	_, err := wb.Write(ctx, "/projects/alpha/notes.md", strings.NewReader("# notes"), 7)
	require.NoError(t, err)
	assert.ErrorIs(t, wb.Mkdir(ctx, "/projects/alpha/notes.md"), data.ErrExist)
	assert.ErrorIs(t, wb.Unlink(ctx, "/projects/alpha"), data.ErrIsDirectory)
	assert.ErrorIs(t, wb.Rmdir(ctx, "/projects/alpha/notes.md"), data.ErrNotDirectory)

	require.NoError(t, wb.Unlink(ctx, "/projects/alpha/notes.md"))
	assert.ErrorIs(t, wb.Unlink(ctx, "/projects/alpha/notes.md"), data.ErrNotExist)

	_, err = wb.Write(ctx, "/projects/alpha/deep/file.txt", strings.NewReader("x"), 1)
	require.NoError(t, err)
	require.NoError(t, wb.Rmdir(ctx, "/projects/alpha"))
	_, found := node.read("/projects/alpha/deep/file.txt")
	assert.False(t, found)
	assert.ErrorIs(t, wb.Rmdir(ctx, "/projects/alpha"), data.ErrNotExist)

	err = wb.Rmdir(ctx, "/")
	assert.Equal(t, data.KindProtected, data.KindOf(err))
	assert.Contains(t, err.Error(), "Unable to delete configured services")
}

func TestWebHdfs_Options(t *testing.T) {
	wb, node := newTestBackend(t, backend.Options{"root": "user/data"})
	node.add("/user/data/a.txt", "a")
	node.add("/other.txt", "o")

	entries, err := wb.Ls(t.Context(), "/")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "/a.txt", entries[0].FullPath)

	_, err = NewWebHdfsBackend(backend.Options{"baseUrl": "http://namenode:9870/webhdfs/v1"}, nil)
	assert.ErrorIs(t, err, data.ErrConfig)

	_, err = NewWebHdfsBackend(backend.Options{"baseUrl": "ftp://namenode/webhdfs/v1", "username": "hdfs"}, nil)
	assert.ErrorIs(t, err, data.ErrConfig)

	wrongUser, err := NewWebHdfsBackend(backend.Options{"baseUrl": wb.options.BaseURL, "username": "mallory"}, nil)
	require.NoError(t, err)
	err = wrongUser.Open(t.Context())
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Equal(t, http.StatusUnauthorized, remote.StatusCode)
}
