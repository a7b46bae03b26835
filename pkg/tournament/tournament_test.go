package tournament_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	"github.com/absmach/modelfactory/pkg/tournament"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetch(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		switch r.URL.Path {
		case "/round.zip":
			_, _ = w.Write([]byte("zip-bytes"))
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer ts.Close()

	cases := []struct {
		desc  string
		url   string
		calls int32
		err   error
	}{
		{desc: "downloads archive", url: ts.URL + "/round.zip", calls: 1},
		{desc: "server error is not retried", url: ts.URL + "/down", calls: 1, err: pkgerrors.ErrRemoteFetch},
		{desc: "empty url", url: "", calls: 0, err: pkgerrors.ErrRemoteFetch},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			calls.Store(0)
			dir := filepath.Join(t.TempDir(), "data")

			path, err := tournament.NewFetcher(tc.url, nil).Fetch(context.Background(), dir)
			assert.Equal(t, tc.calls, calls.Load())
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)

				return
			}
			require.NoError(t, err)
			assert.Equal(t, filepath.Join(dir, tournament.ArchiveName), path)
			data, err := os.ReadFile(path)
			require.NoError(t, err)
			assert.Equal(t, "zip-bytes", string(data))
		})
	}
}
