// Command draftforged runs the content-generation service: the four-agent
// pipeline behind the streaming HTTP API, with optional Mongo persistence,
// Redis-backed catalog search and event mirroring, and Temporal-backed
// background evaluation.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"goa.design/clue/health"
	"goa.design/clue/log"

	"github.com/draftforge/draftforge/config"
	catalogredis "github.com/draftforge/draftforge/features/catalog/redis"
	evalmongo "github.com/draftforge/draftforge/features/eval/mongo"
	evaltemporal "github.com/draftforge/draftforge/features/eval/temporal"
	"github.com/draftforge/draftforge/features/model/anthropic"
	"github.com/draftforge/draftforge/features/model/bedrock"
	"github.com/draftforge/draftforge/features/model/middleware"
	"github.com/draftforge/draftforge/features/model/openai"
	"github.com/draftforge/draftforge/features/research"
	runmongo "github.com/draftforge/draftforge/features/run/mongo"
	pulsesink "github.com/draftforge/draftforge/features/stream/pulse"
	pulseclient "github.com/draftforge/draftforge/features/stream/pulse/clients/pulse"
	"github.com/draftforge/draftforge/pipeline"
	"github.com/draftforge/draftforge/pipeline/engine"
	engineinmem "github.com/draftforge/draftforge/pipeline/engine/inmem"
	"github.com/draftforge/draftforge/pipeline/eval"
	evalinmem "github.com/draftforge/draftforge/pipeline/eval/inmem"
	"github.com/draftforge/draftforge/pipeline/model"
	"github.com/draftforge/draftforge/pipeline/roles"
	"github.com/draftforge/draftforge/pipeline/run"
	runinmem "github.com/draftforge/draftforge/pipeline/run/inmem"
	"github.com/draftforge/draftforge/pipeline/stream"
	"github.com/draftforge/draftforge/pipeline/telemetry"
	"github.com/draftforge/draftforge/web"
)

func main() {
	var (
		configF = flag.String("config", "", "Path to the YAML configuration file")
		dbgF    = flag.Bool("debug", false, "Enable debug logs")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
		log.Debugf(ctx, "debug logs enabled")
	}

	cfg, err := config.Load(*configF)
	if err != nil {
		log.Fatalf(ctx, err, "load configuration")
	}

	if err := realMain(ctx, cfg); err != nil {
		log.Fatalf(ctx, err, "service failed")
	}
	log.Printf(ctx, "exited")
}

func realMain(ctx context.Context, cfg config.Config) error {
	// Model clients, one per role, each behind the adaptive rate limiter
	// when a token budget is configured.
	writerClient, err := buildModelClient(ctx, cfg, cfg.Models.Writer)
	if err != nil {
		return fmt.Errorf("writer model: %w", err)
	}
	editorClient, err := buildModelClient(ctx, cfg, cfg.Models.Editor)
	if err != nil {
		return fmt.Errorf("editor model: %w", err)
	}
	judgeClient, err := buildModelClient(ctx, cfg, cfg.Models.Judge)
	if err != nil {
		return fmt.Errorf("judge model: %w", err)
	}

	// Role agents.
	grounder, err := research.New(research.Options{BaseURL: cfg.Research.BaseURL, APIKey: cfg.Research.APIKey})
	if err != nil {
		return fmt.Errorf("research client: %w", err)
	}
	researcher, err := roles.NewResearcher(grounder)
	if err != nil {
		return err
	}

	var pingers []health.Pinger

	if cfg.Redis.Addr == "" {
		return errors.New("redis.addr is required for catalog search")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	catalog, err := catalogredis.New(rdb, catalogredis.Options{})
	if err != nil {
		return fmt.Errorf("catalog: %w", err)
	}
	if err := catalog.EnsureIndex(ctx); err != nil {
		log.Errorf(ctx, err, "ensure catalog index")
	}
	pingers = append(pingers, catalog)
	product, err := roles.NewProduct(catalog, 0)
	if err != nil {
		return err
	}

	writer, err := roles.NewWriter(writerClient, cfg.Models.Writer.Model, 0)
	if err != nil {
		return err
	}
	editor, err := roles.NewEditor(editorClient, cfg.Models.Editor.Model, 0)
	if err != nil {
		return err
	}

	// Persistence: Mongo when configured, in-memory otherwise.
	var (
		runs      run.Store
		evals     eval.Store
		mongoDown func()
	)
	if cfg.Mongo.URI != "" {
		client, err := mongo.Connect(mongooptions.Client().ApplyURI(cfg.Mongo.URI))
		if err != nil {
			return fmt.Errorf("connect mongo: %w", err)
		}
		mongoDown = func() {
			shctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if derr := client.Disconnect(shctx); derr != nil {
				log.Errorf(ctx, derr, "mongo disconnect")
			}
		}
		runStore, err := runmongo.New(runmongo.Options{Client: client, Database: cfg.Mongo.Database})
		if err != nil {
			return fmt.Errorf("run store: %w", err)
		}
		evalStore, err := evalmongo.New(evalmongo.Options{Client: client, Database: cfg.Mongo.Database})
		if err != nil {
			return fmt.Errorf("evaluation store: %w", err)
		}
		runs, evals = runStore, evalStore
		pingers = append(pingers, runStore, evalStore)
	} else {
		log.Printf(ctx, "mongo not configured, using in-memory stores")
		runs, evals = runinmem.New(), evalinmem.New()
	}
	if mongoDown != nil {
		defer mongoDown()
	}

	// Evaluation: six model-judged dimensions behind an engine. Temporal
	// when configured, in-process otherwise.
	judges, err := eval.DefaultJudges(judgeClient, cfg.Models.Judge.Model)
	if err != nil {
		return fmt.Errorf("judges: %w", err)
	}
	runner, err := eval.NewRunner(judges, evals, eval.WithLogger(telemetry.NewClueLogger()))
	if err != nil {
		return fmt.Errorf("evaluation runner: %w", err)
	}

	var evalEngine engine.Engine
	if cfg.Temporal.HostPort != "" {
		tc, err := temporalclient.NewLazyClient(temporalclient.Options{
			HostPort:  cfg.Temporal.HostPort,
			Namespace: cfg.Temporal.Namespace,
		})
		if err != nil {
			return fmt.Errorf("temporal client: %w", err)
		}
		defer tc.Close()
		if cfg.Temporal.RunWorker {
			w := worker.New(tc, cfg.Temporal.TaskQueue, worker.Options{})
			evaltemporal.RegisterWorker(w, runner)
			if err := w.Start(); err != nil {
				return fmt.Errorf("start temporal worker: %w", err)
			}
			defer w.Stop()
		}
		evalEngine, err = evaltemporal.New(evaltemporal.Options{
			Client:     tc,
			TaskQueue:  cfg.Temporal.TaskQueue,
			Dimensions: runner.Names(),
		})
		if err != nil {
			return fmt.Errorf("temporal engine: %w", err)
		}
	} else {
		log.Printf(ctx, "temporal not configured, evaluating in process")
		evalEngine, err = engineinmem.New(runner, telemetry.NewClueLogger())
		if err != nil {
			return fmt.Errorf("evaluation engine: %w", err)
		}
	}
	defer func() {
		shctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if cerr := evalEngine.Close(shctx); cerr != nil {
			log.Errorf(ctx, cerr, "evaluation engine close")
		}
	}()

	// Optional Pulse event mirror.
	var mirror stream.Sink
	if cfg.Mirror.Enabled {
		pc, err := pulseclient.New(pulseclient.Options{
			Redis:        rdb,
			StreamMaxLen: cfg.Mirror.StreamMaxLen,
		})
		if err != nil {
			return fmt.Errorf("pulse client: %w", err)
		}
		mirror, err = pulsesink.NewSink(pulsesink.Options{Client: pc})
		if err != nil {
			return fmt.Errorf("pulse mirror: %w", err)
		}
		defer func() {
			if cerr := mirror.Close(context.Background()); cerr != nil {
				log.Errorf(ctx, cerr, "mirror close")
			}
		}()
	}

	orch, err := pipeline.New(pipeline.Options{
		Researcher:   researcher,
		Product:      product,
		Writer:       writer,
		Editor:       editor,
		MaxRevisions: cfg.Pipeline.MaxRevisions,
		Runs:         runs,
		Logger:       telemetry.NewClueLogger(),
		Metrics:      telemetry.NewClueMetrics(),
		Tracer:       telemetry.NewClueTracer(),
	})
	if err != nil {
		return fmt.Errorf("orchestrator: %w", err)
	}

	svc, err := web.New(web.Options{
		Orchestrator:   orch,
		Runs:           runs,
		Evals:          evals,
		Engine:         evalEngine,
		Mirror:         mirror,
		AllowedOrigins: cfg.HTTP.AllowedOrigins,
		Pingers:        pingers,
	})
	if err != nil {
		return fmt.Errorf("http service: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           svc.Handler(ctx),
		ReadHeaderTimeout: 60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
		errc <- fmt.Errorf("signal: %s", <-c)
	}()
	go func() {
		log.Printf(ctx, "HTTP server listening on %q", cfg.HTTP.Addr)
		errc <- srv.ListenAndServe()
	}()

	err = <-errc
	log.Printf(ctx, "shutting down (%v)", err)

	shctx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout.Std())
	defer cancel()
	if serr := srv.Shutdown(shctx); serr != nil {
		log.Errorf(ctx, serr, "http shutdown")
	}
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return nil
}

// buildModelClient constructs the provider client selected for one role and
// wraps it with the adaptive rate limiter when a token budget is set.
func buildModelClient(ctx context.Context, cfg config.Config, rm config.RoleModel) (model.Client, error) {
	var (
		client model.Client
		err    error
	)
	switch rm.Provider {
	case config.ProviderOpenAI:
		client, err = openai.NewFromAPIKey(cfg.Models.OpenAIAPIKey, rm.Model)
	case config.ProviderAnthropic:
		client, err = anthropic.NewFromAPIKey(cfg.Models.AnthropicAPIKey, rm.Model)
	case config.ProviderBedrock:
		loaded, lerr := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Models.BedrockRegion))
		if lerr != nil {
			return nil, fmt.Errorf("load aws config: %w", lerr)
		}
		client, err = bedrock.New(bedrockruntime.NewFromConfig(loaded), bedrock.Options{DefaultModel: rm.Model})
	default:
		return nil, fmt.Errorf("unknown provider %q", rm.Provider)
	}
	if err != nil {
		return nil, err
	}
	if tpm := cfg.RateLimit.TokensPerMinute; tpm > 0 {
		limiter := middleware.NewAdaptiveRateLimiter(float64(tpm), float64(tpm))
		client = limiter.Middleware()(client)
	}
	return client, nil
}
