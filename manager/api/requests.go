package api

import (
	"errors"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/pkg/api"
	apiutil "github.com/absmach/supermq/api/http/util"
)

var errMissingCompetition = errors.New("missing competition")

type runReq struct {
	Competition string              `json:"competition"`
	Config      modelfactory.Config `json:"config"`
	Submit      bool                `json:"submit,omitempty"`
}

func (r *runReq) validate() error {
	if r.Competition == "" {
		return errMissingCompetition
	}

	return nil
}

type entityReq struct {
	id string
}

func (e *entityReq) validate() error {
	if e.id == "" {
		return apiutil.ErrMissingID
	}

	return nil
}

type listEntityReq struct {
	id            string
	offset, limit uint64
}

func (e *listEntityReq) validate() error {
	if e.limit > api.MaxLimitSize {
		return apiutil.ErrLimitSize
	}

	return nil
}
