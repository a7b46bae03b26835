package sdk

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/submission"
	"github.com/absmach/modelfactory/run"
)

const (
	trainEndpoint        = "/train"
	predictEndpoint      = "/predict"
	runsEndpoint         = "/runs"
	competitionsEndpoint = "/competitions"
)

// Prediction is a finished prediction run with its outputs.
type Prediction struct {
	Run         run.Run                                     `json:"run"`
	Records     []submission.Record                         `json:"records,omitempty"`
	Tournaments map[string]submission.TournamentPredictions `json:"tournaments,omitempty"`
}

type runReq struct {
	Competition string              `json:"competition"`
	Config      modelfactory.Config `json:"config"`
	Submit      bool                `json:"submit,omitempty"`
}

func (sdk *mfSDK) Train(competition string, cfg modelfactory.Config) (run.Run, error) {
	data, err := json.Marshal(runReq{Competition: competition, Config: cfg})
	if err != nil {
		return run.Run{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.managerURL+trainEndpoint, data, http.StatusCreated)
	if err != nil {
		return run.Run{}, err
	}

	var r run.Run
	if err := json.Unmarshal(body, &r); err != nil {
		return run.Run{}, err
	}

	return r, nil
}

func (sdk *mfSDK) Predict(competition string, cfg modelfactory.Config, submit bool) (Prediction, error) {
	data, err := json.Marshal(runReq{Competition: competition, Config: cfg, Submit: submit})
	if err != nil {
		return Prediction{}, err
	}

	body, err := sdk.processRequest(http.MethodPost, sdk.managerURL+predictEndpoint, data, http.StatusOK)
	if err != nil {
		return Prediction{}, err
	}

	var p Prediction
	if err := json.Unmarshal(body, &p); err != nil {
		return Prediction{}, err
	}

	return p, nil
}

func (sdk *mfSDK) GetRun(id string) (run.Run, error) {
	url := sdk.managerURL + runsEndpoint + "/" + id

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return run.Run{}, err
	}

	var r run.Run
	if err := json.Unmarshal(body, &r); err != nil {
		return run.Run{}, err
	}

	return r, nil
}

func (sdk *mfSDK) ListRuns(offset, limit uint64) (run.RunPage, error) {
	url := sdk.managerURL + runsEndpoint + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return run.RunPage{}, err
	}

	var p run.RunPage
	if err := json.Unmarshal(body, &p); err != nil {
		return run.RunPage{}, err
	}

	return p, nil
}

func (sdk *mfSDK) ListEpochs(runID string, offset, limit uint64) (run.EpochPage, error) {
	url := sdk.managerURL + runsEndpoint + "/" + runID + "/epochs" + pageQuery(offset, limit)

	body, err := sdk.processRequest(http.MethodGet, url, nil, http.StatusOK)
	if err != nil {
		return run.EpochPage{}, err
	}

	var p run.EpochPage
	if err := json.Unmarshal(body, &p); err != nil {
		return run.EpochPage{}, err
	}

	return p, nil
}

func (sdk *mfSDK) Competitions() ([]string, error) {
	body, err := sdk.processRequest(http.MethodGet, sdk.managerURL+competitionsEndpoint, nil, http.StatusOK)
	if err != nil {
		return nil, err
	}

	var res struct {
		Competitions []string `json:"competitions"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, err
	}

	return res.Competitions, nil
}

func pageQuery(offset, limit uint64) string {
	queries := make([]string, 0)
	if offset > 0 {
		queries = append(queries, fmt.Sprintf("offset=%d", offset))
	}
	if limit > 0 {
		queries = append(queries, fmt.Sprintf("limit=%d", limit))
	}
	if len(queries) == 0 {
		return ""
	}

	return "?" + strings.Join(queries, "&")
}
