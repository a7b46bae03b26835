package api

import (
	"net/http"

	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/run"
	"github.com/absmach/supermq"
)

var (
	_ supermq.Response = (*runResponse)(nil)
	_ supermq.Response = (*predictionResponse)(nil)
	_ supermq.Response = (*listRunResponse)(nil)
	_ supermq.Response = (*listEpochResponse)(nil)
	_ supermq.Response = (*competitionsResponse)(nil)
)

type runResponse struct {
	run.Run
	created bool
}

func (r runResponse) Code() int {
	if r.created {
		return http.StatusCreated
	}

	return http.StatusOK
}

func (r runResponse) Headers() map[string]string {
	if r.created {
		return map[string]string{
			"Location": "/runs/" + r.ID,
		}
	}

	return map[string]string{}
}

func (r runResponse) Empty() bool {
	return false
}

type predictionResponse struct {
	manager.Prediction
}

func (p predictionResponse) Code() int {
	return http.StatusOK
}

func (p predictionResponse) Headers() map[string]string {
	return map[string]string{
		"Location": "/runs/" + p.Run.ID,
	}
}

func (p predictionResponse) Empty() bool {
	return false
}

type listRunResponse struct {
	run.RunPage
}

func (l listRunResponse) Code() int {
	return http.StatusOK
}

func (l listRunResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listRunResponse) Empty() bool {
	return false
}

type listEpochResponse struct {
	run.EpochPage
}

func (l listEpochResponse) Code() int {
	return http.StatusOK
}

func (l listEpochResponse) Headers() map[string]string {
	return map[string]string{}
}

func (l listEpochResponse) Empty() bool {
	return false
}

type competitionsResponse struct {
	Competitions []string `json:"competitions"`
}

func (c competitionsResponse) Code() int {
	return http.StatusOK
}

func (c competitionsResponse) Headers() map[string]string {
	return map[string]string{}
}

func (c competitionsResponse) Empty() bool {
	return false
}
