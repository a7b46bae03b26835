package api

import (
	"context"
	"errors"

	"github.com/absmach/modelfactory/manager"
	pkgerrors "github.com/absmach/modelfactory/pkg/errors"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-kit/kit/endpoint"
)

func trainEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(runReq)
		if !ok {
			return runResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return runResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.Train(ctx, req.Competition, req.Config)
		if err != nil {
			return runResponse{}, err
		}

		return runResponse{
			Run:     r,
			created: true,
		}, nil
	}
}

func predictEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(runReq)
		if !ok {
			return predictionResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return predictionResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		p, err := svc.Predict(ctx, req.Competition, req.Config.WithSubmission(req.Submit))
		if err != nil {
			return predictionResponse{}, err
		}

		return predictionResponse{
			Prediction: p,
		}, nil
	}
}

func getRunEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(entityReq)
		if !ok {
			return runResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return runResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		r, err := svc.GetRun(ctx, req.id)
		if err != nil {
			return runResponse{}, err
		}

		return runResponse{
			Run: r,
		}, nil
	}
}

func listRunsEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listRunResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listRunResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		runs, err := svc.ListRuns(ctx, req.offset, req.limit)
		if err != nil {
			return listRunResponse{}, err
		}

		return listRunResponse{
			RunPage: runs,
		}, nil
	}
}

func listEpochsEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, request any) (any, error) {
		req, ok := request.(listEntityReq)
		if !ok {
			return listEpochResponse{}, errors.Join(apiutil.ErrValidation, pkgerrors.ErrInvalidData)
		}
		if err := req.validate(); err != nil {
			return listEpochResponse{}, errors.Join(apiutil.ErrValidation, err)
		}

		epochs, err := svc.ListEpochs(ctx, req.id, req.offset, req.limit)
		if err != nil {
			return listEpochResponse{}, err
		}

		return listEpochResponse{
			EpochPage: epochs,
		}, nil
	}
}

func competitionsEndpoint(svc manager.Service) endpoint.Endpoint {
	return func(ctx context.Context, _ any) (any, error) {
		names, err := svc.Competitions(ctx)
		if err != nil {
			return competitionsResponse{}, err
		}

		return competitionsResponse{
			Competitions: names,
		}, nil
	}
}
