package bot

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDownloadFileID(t *testing.T) {
	var handlerCalled bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/foo.jpeg":
			handlerCalled = true
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte("123"))
		case "/empty.jpeg":
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	getFileDirectURL := func(fileID string) (string, error) {
		return fmt.Sprintf("%s/%s.jpeg", ts.URL, fileID), nil
	}

	data, err := downloadFileID(getFileDirectURL, "foo")
	require.NoError(t, err)
	assert.Equal(t, []byte("123"), data)
	assert.True(t, handlerCalled)

	_, err = downloadFileID(getFileDirectURL, "missing")
	assert.ErrorContains(t, err, "status 404")

	_, err = downloadFileID(getFileDirectURL, "empty")
	assert.ErrorContains(t, err, "empty file")

	_, err = downloadFileID(func(string) (string, error) { return "", fmt.Errorf("no such file") }, "x")
	assert.ErrorContains(t, err, "no such file")
}
