// Package mqtt carries run requests and run progress over an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/run"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	connTimeout    = 10
	reconnTimeout  = 1
	disconnTimeout = 250
)

var (
	errPublishTimeout     = errors.New("failed to publish due to timeout reached")
	errSubscribeTimeout   = errors.New("failed to subscribe due to timeout reached")
	errUnsubscribeTimeout = errors.New("failed to unsubscribe due to timeout reached")
	errEmptyID            = errors.New("empty ID")
	errEmptyRunID         = errors.New("empty run ID")

	// ErrInvalidRequest is returned for control messages that cannot be
	// turned into a Request.
	ErrInvalidRequest = errors.New("invalid control message")

	statusTopicTemplate = "modelfactory/clients/%s/status"
	lwtPayloadTemplate  = `{"status":"offline","client_id":"%s"}`
)

// ControlTopic is the topic prefix run requests are received on. The run
// kind is the last topic level.
const ControlTopic = "modelfactory/control"

// EpochTopic is the topic epoch progress of a run is published on.
func EpochTopic(runID string) string {
	return RunTopic(runID) + "/epochs"
}

// RunTopic is the topic the final record of a run is published on.
func RunTopic(runID string) string {
	return "modelfactory/runs/" + runID
}

// Request asks the manager to start a run.
type Request struct {
	Kind        run.Kind            `json:"-"`
	Competition string              `json:"competition"`
	Config      modelfactory.Config `json:"config"`
	Submit      bool                `json:"submit"`
}

// Progress is one update of a watched run. Exactly one field is set; Run
// is only delivered once the run has finished.
type Progress struct {
	Epoch *run.Epoch
	Run   *run.Run
}

type (
	RequestHandler  func(ctx context.Context, req Request) error
	ProgressHandler func(p Progress) error
)

// PubSub publishes run progress and delivers run requests.
type PubSub interface {
	// PublishEpoch publishes ep on the epoch topic of its run.
	PublishEpoch(ctx context.Context, ep run.Epoch) error

	// PublishRun publishes the final record of r on its run topic.
	PublishRun(ctx context.Context, r run.Run) error

	// SubscribeRequests delivers every train and predict request
	// published under ControlTopic to h.
	SubscribeRequests(ctx context.Context, h RequestHandler) error

	// WatchRun delivers progress of runID to h until the returned stop
	// function is called.
	WatchRun(ctx context.Context, runID string, h ProgressHandler) (stop func(context.Context) error, err error)

	Disconnect(ctx context.Context) error
}

type pubsub struct {
	client  mqtt.Client
	qos     byte
	timeout time.Duration
	logger  *slog.Logger
}

func NewPubSub(url string, qos byte, id, username, password string, timeout time.Duration, logger *slog.Logger) (PubSub, error) {
	if id == "" {
		return nil, errEmptyID
	}

	client, err := newClient(url, id, username, password, timeout, logger)
	if err != nil {
		return nil, err
	}

	return &pubsub{
		client:  client,
		qos:     qos,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (ps *pubsub) PublishEpoch(ctx context.Context, ep run.Epoch) error {
	if ep.RunID == "" {
		return errEmptyRunID
	}

	return ps.publish(ctx, EpochTopic(ep.RunID), ep)
}

func (ps *pubsub) PublishRun(ctx context.Context, r run.Run) error {
	if r.ID == "" {
		return errEmptyRunID
	}

	return ps.publish(ctx, RunTopic(r.ID), r)
}

func (ps *pubsub) publish(ctx context.Context, topic string, msg any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	token := ps.client.Publish(topic, ps.qos, false, data)
	if token.Error() != nil {
		return token.Error()
	}

	if ok := token.WaitTimeout(ps.timeout); !ok {
		return errPublishTimeout
	}

	return nil
}

func (ps *pubsub) SubscribeRequests(ctx context.Context, h RequestHandler) error {
	return ps.subscribe(ControlTopic+"/#", ps.requestHandler(ctx, h))
}

func (ps *pubsub) WatchRun(ctx context.Context, runID string, h ProgressHandler) (func(context.Context) error, error) {
	if runID == "" {
		return nil, errEmptyRunID
	}
	topic := RunTopic(runID) + "/#"
	if err := ps.subscribe(topic, ps.progressHandler(runID, h)); err != nil {
		return nil, err
	}

	return func(context.Context) error {
		return ps.unsubscribe(topic)
	}, nil
}

func (ps *pubsub) subscribe(topic string, h mqtt.MessageHandler) error {
	token := ps.client.Subscribe(topic, ps.qos, h)
	if token.Error() != nil {
		return token.Error()
	}
	if ok := token.WaitTimeout(ps.timeout); !ok {
		return errSubscribeTimeout
	}

	return nil
}

func (ps *pubsub) unsubscribe(topic string) error {
	token := ps.client.Unsubscribe(topic)
	if token.Error() != nil {
		return token.Error()
	}

	if ok := token.WaitTimeout(ps.timeout); !ok {
		return errUnsubscribeTimeout
	}

	return nil
}

func (ps *pubsub) Disconnect(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		ps.client.Disconnect(disconnTimeout)

		return nil
	}
}

func newClient(address, id, username, password string, timeout time.Duration, logger *slog.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(address).
		SetClientID(id).
		SetUsername(username).
		SetPassword(password).
		SetCleanSession(true).
		SetAutoReconnect(true).
		SetConnectTimeout(connTimeout * time.Second).
		SetMaxReconnectInterval(reconnTimeout * time.Minute)

	opts.SetWill(fmt.Sprintf(statusTopicTemplate, id), fmt.Sprintf(lwtPayloadTemplate, id), 0, false)

	opts.SetOnConnectHandler(func(_ mqtt.Client) {
		logger.Info("MQTT connection established")
	})

	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		args := []any{}
		if err != nil {
			args = append(args, slog.Any("error", err))
		}

		logger.Info("MQTT connection lost", args...)
	})

	opts.SetReconnectingHandler(func(_ mqtt.Client, options *mqtt.ClientOptions) {
		args := []any{}
		if options != nil {
			args = append(args,
				slog.String("client_id", options.ClientID),
				slog.String("username", options.Username),
			)
		}

		logger.Info("MQTT reconnecting", args...)
	})

	client := mqtt.NewClient(opts)

	token := client.Connect()
	if token.Error() != nil {
		return nil, errors.Join(errors.New("failed to connect to MQTT broker"), token.Error())
	}

	if ok := token.WaitTimeout(timeout); !ok {
		return nil, errors.New("timeout reached while connecting to MQTT broker")
	}

	return client, nil
}

func (ps *pubsub) requestHandler(ctx context.Context, h RequestHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		req, ok, err := decodeRequest(m.Topic(), m.Payload())
		if err != nil {
			ps.logger.Warn("Failed to decode run request", slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}
		if !ok {
			return
		}
		if err := h(ctx, req); err != nil {
			ps.logger.Warn("Failed to handle run request", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}

func (ps *pubsub) progressHandler(runID string, h ProgressHandler) mqtt.MessageHandler {
	return func(_ mqtt.Client, m mqtt.Message) {
		defer m.Ack()

		p, ok, err := decodeProgress(runID, m.Topic(), m.Payload())
		if err != nil {
			ps.logger.Warn("Failed to decode run progress", slog.String("topic", m.Topic()), slog.Any("error", err))

			return
		}
		if !ok {
			return
		}
		if err := h(p); err != nil {
			ps.logger.Warn("Failed to handle run progress", slog.String("topic", m.Topic()), slog.Any("error", err))
		}
	}
}

// decodeRequest reports false for control topics that do not name a run
// kind.
func decodeRequest(topic string, payload []byte) (Request, bool, error) {
	var kind run.Kind
	switch strings.TrimPrefix(topic, ControlTopic+"/") {
	case string(run.KindTrain):
		kind = run.KindTrain
	case string(run.KindPredict):
		kind = run.KindPredict
	default:
		return Request{}, false, nil
	}

	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return Request{}, false, errors.Join(ErrInvalidRequest, err)
	}
	if req.Competition == "" {
		return Request{}, false, errors.Join(ErrInvalidRequest, errors.New("missing competition"))
	}
	req.Kind = kind

	return req, true, nil
}

func decodeProgress(runID, topic string, payload []byte) (Progress, bool, error) {
	switch topic {
	case EpochTopic(runID):
		var ep run.Epoch
		if err := json.Unmarshal(payload, &ep); err != nil {
			return Progress{}, false, err
		}

		return Progress{Epoch: &ep}, true, nil
	case RunTopic(runID):
		var r run.Run
		if err := json.Unmarshal(payload, &r); err != nil {
			return Progress{}, false, err
		}

		return Progress{Run: &r}, true, nil
	default:
		return Progress{}, false, nil
	}
}
