package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/pkg/api"
	"github.com/absmach/supermq"
	apiutil "github.com/absmach/supermq/api/http/util"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func MakeHandler(svc manager.Service, logger *slog.Logger, instanceID string) http.Handler {
	mux := chi.NewRouter()

	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(apiutil.LoggingErrorEncoder(logger, api.EncodeError)),
	}

	mux.Post("/train", otelhttp.NewHandler(kithttp.NewServer(
		trainEndpoint(svc),
		decodeRunReq,
		api.EncodeResponse,
		opts...,
	), "train").ServeHTTP)
	mux.Post("/predict", otelhttp.NewHandler(kithttp.NewServer(
		predictEndpoint(svc),
		decodeRunReq,
		api.EncodeResponse,
		opts...,
	), "predict").ServeHTTP)
	mux.Get("/competitions", otelhttp.NewHandler(kithttp.NewServer(
		competitionsEndpoint(svc),
		kithttp.NopRequestDecoder,
		api.EncodeResponse,
		opts...,
	), "list-competitions").ServeHTTP)

	mux.Route("/runs", func(r chi.Router) {
		r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
			listRunsEndpoint(svc),
			decodeListEntityReq(""),
			api.EncodeResponse,
			opts...,
		), "list-runs").ServeHTTP)
		r.Route("/{runID}", func(r chi.Router) {
			r.Get("/", otelhttp.NewHandler(kithttp.NewServer(
				getRunEndpoint(svc),
				decodeEntityReq("runID"),
				api.EncodeResponse,
				opts...,
			), "get-run").ServeHTTP)
			r.Get("/epochs", otelhttp.NewHandler(kithttp.NewServer(
				listEpochsEndpoint(svc),
				decodeListEntityReq("runID"),
				api.EncodeResponse,
				opts...,
			), "list-epochs").ServeHTTP)
		})
	})

	mux.Get("/health", supermq.Health("modelfactory", instanceID))
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func decodeEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		return entityReq{
			id: chi.URLParam(r, key),
		}, nil
	}
}

func decodeRunReq(_ context.Context, r *http.Request) (any, error) {
	if !strings.Contains(r.Header.Get("Content-Type"), api.ContentType) {
		return nil, errors.Join(apiutil.ErrValidation, apiutil.ErrUnsupportedContentType)
	}

	var req runReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, errors.Join(err, apiutil.ErrValidation)
	}

	return req, nil
}

// decodeListEntityReq reads the paging query and, when key is set, the
// owning entity from the path.
func decodeListEntityReq(key string) kithttp.DecodeRequestFunc {
	return func(_ context.Context, r *http.Request) (any, error) {
		o, err := apiutil.ReadNumQuery[uint64](r, api.OffsetKey, api.DefOffset)
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}

		l, err := apiutil.ReadNumQuery[uint64](r, api.LimitKey, api.DefLimit)
		if err != nil {
			return nil, errors.Join(apiutil.ErrValidation, err)
		}

		req := listEntityReq{
			offset: o,
			limit:  l,
		}
		if key != "" {
			req.id = chi.URLParam(r, key)
		}

		return req, nil
	}
}
