package manager_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/manager/mocks"
	"github.com/absmach/modelfactory/pkg/mqtt"
	"github.com/absmach/modelfactory/run"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func TestHandle(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	cases := []struct {
		desc   string
		req    mqtt.Request
		method string
	}{
		{
			desc: "train request",
			req: mqtt.Request{
				Kind:        run.KindTrain,
				Competition: "imdb",
				Config:      modelfactory.Config{Model: modelfactory.ModelConfig{Name: "linear"}},
			},
			method: "Train",
		},
		{
			desc:   "predict request",
			req:    mqtt.Request{Kind: run.KindPredict, Competition: "numerai"},
			method: "Predict:false",
		},
		{
			desc:   "predict request with submission",
			req:    mqtt.Request{Kind: run.KindPredict, Competition: "numerai", Submit: true},
			method: "Predict:true",
		},
		{
			desc: "unknown kind",
			req:  mqtt.Request{Kind: "status", Competition: "imdb"},
		},
	}

	for _, tc := range cases {
		t.Run(tc.desc, func(t *testing.T) {
			svc := new(mocks.MockService)
			called := make(chan string, 1)
			svc.On("Train", mock.Anything, "imdb", mock.AnythingOfType("modelfactory.Config")).
				Run(func(args mock.Arguments) {
					cfg := args.Get(2).(modelfactory.Config)
					called <- "Train:" + cfg.Model.Name
				}).
				Return(run.Run{}, nil)
			svc.On("Predict", mock.Anything, "numerai", mock.Anything).
				Run(func(args mock.Arguments) {
					cfg := args.Get(2).(modelfactory.Config)
					called <- fmt.Sprintf("Predict:%t", cfg.Output.ToCSV)
				}).
				Return(manager.Prediction{}, nil)

			err := manager.Handle(svc, logger)(context.Background(), tc.req)
			assert.NoError(t, err)

			switch tc.method {
			case "":
				select {
				case m := <-called:
					t.Fatalf("unexpected call %s", m)
				case <-time.After(20 * time.Millisecond):
				}
			case "Train":
				assert.Equal(t, "Train:linear", <-called)
			default:
				assert.Equal(t, tc.method, <-called)
			}
		})
	}
}
