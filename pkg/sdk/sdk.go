package sdk

import (
	"bytes"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/run"
)

const CTJSON string = "application/json"

type PageMetadata struct {
	Offset uint64 `json:"offset"`
	Limit  uint64 `json:"limit"`
}

type SDK interface {
	// Train trains a competition engine and returns the finished run.
	//
	// example:
	//  cfg, _ := modelfactory.LoadConfig("imdb.toml")
	//  r, _ := sdk.Train("imdb", cfg)
	//  fmt.Println(r.BestScore)
	Train(competition string, cfg modelfactory.Config) (run.Run, error)

	// Predict runs inference of a competition engine. With submit set the
	// manager writes the prediction files.
	//
	// example:
	//  cfg, _ := modelfactory.LoadConfig("bengali.toml")
	//  p, _ := sdk.Predict("bengali", cfg, true)
	//  fmt.Println(p.Run.SubmissionPath)
	Predict(competition string, cfg modelfactory.Config, submit bool) (Prediction, error)

	// GetRun gets a run by id.
	//
	// example:
	//  r, _ := sdk.GetRun("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040")
	//  fmt.Println(r)
	GetRun(id string) (run.Run, error)

	// ListRuns lists runs, newest first.
	//
	// example:
	//  page, _ := sdk.ListRuns(0, 10)
	//  fmt.Println(page)
	ListRuns(offset uint64, limit uint64) (run.RunPage, error)

	// ListEpochs lists the epochs recorded for a run.
	//
	// example:
	//  page, _ := sdk.ListEpochs("b1d10738-c5d7-4ff1-8f4d-b9328ce6f040", 0, 10)
	//  fmt.Println(page)
	ListEpochs(runID string, offset uint64, limit uint64) (run.EpochPage, error)

	// Competitions lists the competitions the manager can run.
	Competitions() ([]string, error)
}

type mfSDK struct {
	managerURL string
	client     *http.Client
}

type Config struct {
	ManagerURL      string
	TLSVerification bool
}

func NewSDK(cfg Config) SDK {
	return &mfSDK{
		managerURL: cfg.ManagerURL,
		client: &http.Client{
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: !cfg.TLSVerification,
				},
			},
		},
	}
}

type errorRes struct {
	Err string `json:"error"`
}

func (sdk *mfSDK) processRequest(method, reqURL string, data []byte, expectedRespCode int) ([]byte, error) {
	req, err := http.NewRequest(method, reqURL, bytes.NewReader(data))
	if err != nil {
		return []byte{}, err
	}

	req.Header.Add("Content-Type", CTJSON)

	resp, err := sdk.client.Do(req)
	if err != nil {
		return []byte{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return []byte{}, err
	}

	if resp.StatusCode != expectedRespCode {
		var e errorRes
		if err := json.Unmarshal(body, &e); err == nil && e.Err != "" {
			return []byte{}, fmt.Errorf("unexpected response code: %d: %s", resp.StatusCode, e.Err)
		}

		return []byte{}, fmt.Errorf("unexpected response code: %d", resp.StatusCode)
	}

	return body, nil
}
