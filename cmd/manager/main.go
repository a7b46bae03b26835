package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/url"
	"os"
	"time"

	modelfactory "github.com/absmach/modelfactory"
	"github.com/absmach/modelfactory/engine"
	"github.com/absmach/modelfactory/manager"
	"github.com/absmach/modelfactory/manager/api"
	"github.com/absmach/modelfactory/manager/middleware"
	"github.com/absmach/modelfactory/pkg/blobstore"
	"github.com/absmach/modelfactory/pkg/mqtt"
	"github.com/absmach/modelfactory/pkg/storage"
	"github.com/absmach/supermq/pkg/jaeger"
	"github.com/absmach/supermq/pkg/prometheus"
	"github.com/absmach/supermq/pkg/server"
	httpserver "github.com/absmach/supermq/pkg/server/http"
	"github.com/caarlos0/env/v11"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"
)

const (
	svcName       = "modelfactory"
	defHTTPPort   = "7070"
	envPrefixHTTP = "MF_HTTP_"
	pathEnv       = ".env"
)

type envConfig struct {
	LogLevel     string        `env:"MF_LOG_LEVEL"           envDefault:"info"`
	InstanceID   string        `env:"MF_INSTANCE_ID"`
	MQTTAddress  string        `env:"MF_MQTT_ADDRESS"`
	MQTTQoS      uint8         `env:"MF_MQTT_QOS"            envDefault:"1"`
	MQTTTimeout  time.Duration `env:"MF_MQTT_TIMEOUT"        envDefault:"30s"`
	MQTTUsername string        `env:"MF_MQTT_USERNAME"`
	MQTTPassword string        `env:"MF_MQTT_PASSWORD"`
	BlobKind     string        `env:"MF_BLOB_KIND"`
	BlobEndpoint string        `env:"MF_BLOB_ENDPOINT"`
	BlobSecure   bool          `env:"MF_BLOB_SECURE"         envDefault:"false"`
	Schedule     string        `env:"MF_SCHEDULE"`
	ScheduleTZ   string        `env:"MF_SCHEDULE_TIMEZONE"   envDefault:"UTC"`
	ScheduleComp string        `env:"MF_SCHEDULE_COMPETITION" envDefault:"numerai"`
	ScheduleConf string        `env:"MF_SCHEDULE_CONFIG"`
	OTELURL      url.URL       `env:"MF_OTEL_URL"`
	TraceRatio   float64       `env:"MF_TRACE_RATIO"         envDefault:"0"`
	Storage      storage.Config
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	if _, err := os.Stat(pathEnv); err == nil {
		_ = godotenv.Load(pathEnv)
	}

	cfg := envConfig{}
	if err := env.Parse(&cfg); err != nil {
		log.Fatalf("failed to load configuration : %s", err.Error())
	}

	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		log.Fatalf("failed to parse log level: %s", err.Error())
	}
	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	logger := slog.New(logHandler)
	slog.SetDefault(logger)

	var tp trace.TracerProvider
	switch {
	case cfg.OTELURL == (url.URL{}):
		tp = noop.NewTracerProvider()
	default:
		sdktp, err := jaeger.NewProvider(ctx, svcName, cfg.OTELURL, cfg.InstanceID, cfg.TraceRatio)
		if err != nil {
			logger.Error("failed to initialize opentelemetry", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := sdktp.Shutdown(ctx); err != nil {
				logger.Error("error shutting down tracer provider", slog.Any("error", err))
			}
		}()
		tp = sdktp
	}
	tracer := tp.Tracer(svcName)

	repos, err := storage.NewRepositories(cfg.Storage)
	if err != nil {
		logger.Error("failed to initialize storage", slog.String("type", cfg.Storage.Type), slog.String("error", err.Error()))

		return
	}
	if repos.Closer != nil {
		defer closeWithLog(logger, "storage", repos.Closer)
	}

	deps := engine.Deps{Logger: logger}
	if cfg.BlobKind != "" {
		blobs, err := blobstore.NewProvider(cfg.BlobKind, cfg.BlobEndpoint, cfg.BlobSecure)
		if err != nil {
			logger.Error("failed to initialize blob store", slog.String("kind", cfg.BlobKind), slog.String("error", err.Error()))

			return
		}
		defer closeWithLog(logger, "blob store", blobs)
		deps.Blobs = blobs
	}

	var pubsub mqtt.PubSub
	if cfg.MQTTAddress != "" {
		pubsub, err = mqtt.NewPubSub(cfg.MQTTAddress, cfg.MQTTQoS, svcName+"-"+cfg.InstanceID, cfg.MQTTUsername, cfg.MQTTPassword, cfg.MQTTTimeout, logger)
		if err != nil {
			logger.Error("failed to initialize mqtt pubsub", slog.String("error", err.Error()))

			return
		}
		defer func() {
			if err := pubsub.Disconnect(context.WithoutCancel(ctx)); err != nil {
				logger.Error("failed to disconnect mqtt pubsub", slog.Any("error", err))
			}
		}()
	}

	svc := manager.NewService(engine.DefaultFactory(), deps, repos.Runs, repos.Epochs, pubsub, logger)
	svc = middleware.Logging(logger, svc)
	svc = middleware.Tracing(tracer, svc)
	counter, latency := prometheus.MakeMetrics(svcName, "api")
	svc = middleware.Metrics(counter, latency, svc)

	if pubsub != nil {
		if err := manager.Subscribe(ctx, svc, pubsub, logger); err != nil {
			logger.Error("failed to subscribe to control topics", slog.String("error", err.Error()))

			return
		}
	}

	if cfg.Schedule != "" {
		cs, err := newCronScheduler(svc, cfg, logger)
		if err != nil {
			logger.Error("failed to initialize cron scheduler", slog.String("error", err.Error()))

			return
		}
		g.Go(func() error {
			return cs.Start(ctx)
		})
	}

	httpServerConfig := server.Config{Port: defHTTPPort}
	if err := env.ParseWithOptions(&httpServerConfig, env.Options{Prefix: envPrefixHTTP}); err != nil {
		logger.Error(fmt.Sprintf("failed to load %s HTTP server configuration : %s", svcName, err.Error()))

		return
	}

	hs := httpserver.NewServer(ctx, cancel, svcName, httpServerConfig, api.MakeHandler(svc, logger, cfg.InstanceID), logger)

	g.Go(func() error {
		return hs.Start()
	})

	g.Go(func() error {
		return server.StopSignalHandler(ctx, cancel, logger, svcName, hs)
	})

	if err := g.Wait(); err != nil {
		logger.Error(fmt.Sprintf("%s service exited with error: %s", svcName, err))
	}
}

func newCronScheduler(svc manager.Service, cfg envConfig, logger *slog.Logger) (manager.CronScheduler, error) {
	if cfg.ScheduleConf == "" {
		return nil, modelfactory.MissingParam("MF_SCHEDULE_CONFIG")
	}
	runCfg, err := modelfactory.LoadConfig(cfg.ScheduleConf)
	if err != nil {
		return nil, err
	}

	return manager.NewCronScheduler(svc, manager.Schedule{
		Expression:  cfg.Schedule,
		Timezone:    cfg.ScheduleTZ,
		Competition: cfg.ScheduleComp,
		Config:      runCfg,
	}, 0, logger)
}

func closeWithLog(logger *slog.Logger, name string, c io.Closer) {
	if err := c.Close(); err != nil {
		logger.Error("failed to close "+name, slog.Any("error", err))
	}
}
