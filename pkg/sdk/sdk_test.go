package sdk_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/sdk"
	"github.com/absmach/modelfactory/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTrain(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/train", r.URL.Path)
		assert.Equal(t, sdk.CTJSON, r.Header.Get("Content-Type"))

		var req struct {
			Competition string              `json:"competition"`
			Config      modelfactory.Config `json:"config"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.Competition != "imdb" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"unknown domain"}`))

			return
		}
		w.WriteHeader(http.StatusCreated)
		assert.NoError(t, json.NewEncoder(w).Encode(run.Run{ID: "run-1", Competition: req.Competition, Epochs: req.Config.Training.Epochs}))
	}))
	defer ts.Close()

	client := sdk.NewSDK(sdk.Config{ManagerURL: ts.URL})

	cfg := modelfactory.Config{Training: modelfactory.TrainingConfig{Epochs: 4}}
	r, err := client.Train("imdb", cfg)
	require.NoError(t, err)
	assert.Equal(t, "run-1", r.ID)
	assert.Equal(t, 4, r.Epochs)

	_, err = client.Train("mnist", cfg)
	assert.ErrorContains(t, err, "400: unknown domain")
}

func TestListEpochs(t *testing.T) {
	cases := []struct {
		desc   string
		offset uint64
		limit  uint64
		query  string
	}{
		{desc: "default paging", query: ""},
		{desc: "limit only", limit: 5, query: "limit=5"},
		{desc: "offset and limit", offset: 2, limit: 5, query: "offset=2&limit=5"},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/runs/run-1/epochs", r.URL.Path)
				assert.Equal(t, tc.query, r.URL.RawQuery)
				assert.NoError(t, json.NewEncoder(w).Encode(run.EpochPage{Total: 1, Epochs: []run.Epoch{{RunID: "run-1", Epoch: 1}}}))
			}))
			defer ts.Close()

			page, err := sdk.NewSDK(sdk.Config{ManagerURL: ts.URL}).ListEpochs("run-1", tc.offset, tc.limit)
			require.NoError(t, err)
			assert.Equal(t, uint64(1), page.Total)
		})
	}
}

func TestGetRunNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer ts.Close()

	_, err := sdk.NewSDK(sdk.Config{ManagerURL: ts.URL}).GetRun("missing")
	assert.ErrorContains(t, err, "unexpected response code: 404")
}
