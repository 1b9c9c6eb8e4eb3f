package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/fatinm1/promptrix/pkg/logging"
	"github.com/fatinm1/promptrix/services/llm"
	"github.com/fatinm1/promptrix/services/promptrix/evaluation"
	"github.com/fatinm1/promptrix/services/promptrix/middleware"
	"github.com/fatinm1/promptrix/services/promptrix/observability"
	"github.com/fatinm1/promptrix/services/promptrix/routes"
	"github.com/fatinm1/promptrix/services/promptrix/storage"
)

func initTracer() (func(context.Context), error) {
	ctx := context.Background()

	otelEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otelEndpoint == "" {
		otelEndpoint = "localhost:4317"
	}
	conn, err := grpc.NewClient(otelEndpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, err
	}
	traceExporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, err
	}
	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceNameKey.String("promptrix-service")))
	if err != nil {
		return nil, err
	}
	bsp := sdktrace.NewBatchSpanProcessor(traceExporter)
	traceProvider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithSpanProcessor(bsp))
	otel.SetTracerProvider(traceProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.
		TraceContext{}, propagation.Baggage{}))

	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, time.Second*5)
		defer cancel()
		if err := traceExporter.Shutdown(ctx); err != nil {
			slog.Error("failed to shutdown OTLP exporter", "error", err)
		}
	}, nil
}

func runServe(cmd *cobra.Command, args []string) {
	port := config.Server.Port
	if port == "" {
		port = os.Getenv("PROMPTRIX_PORT")
	}
	if port == "" {
		port = "12310"
	}

	logLevel := logging.LevelInfo
	if os.Getenv("PROMPTRIX_DEBUG") != "" {
		logLevel = logging.LevelDebug
	}
	logger := logging.New(logging.Config{
		Level:   logLevel,
		LogDir:  os.Getenv("PROMPTRIX_LOG_DIR"),
		Service: "api",
		JSON:    true,
	})
	defer func() { _ = logger.Close() }()
	slog.SetDefault(logger.Slog())

	observability.InitMetrics()

	cleanup, err := initTracer()
	if err != nil {
		log.Fatalf("failed to setup the OTLP tracer: %v", err)
	}
	defer cleanup(context.Background())

	dataPath := config.Storage.Path
	if dataPath == "" {
		dataPath = os.Getenv("PROMPTRIX_DATA_DIR")
	}
	if dataPath == "" {
		dataPath = "./data/promptrix"
	}
	storeCfg := storage.DefaultConfig()
	storeCfg.Path = dataPath
	storeCfg.Logger = logger.Slog()
	store, err := storage.New(storeCfg)
	if err != nil {
		log.Fatalf("Failed to open the result store: %v", err)
	}
	defer func() { _ = store.Close() }()

	slog.Info("Configuring the LLM client")
	backend := config.LLM.Backend
	if backend == "" {
		backend = os.Getenv("LLM_BACKEND_TYPE")
	}
	var llmClient llm.LLMClient
	switch backend {
	case "openai":
		llmClient, err = llm.NewOpenAIClient()
		slog.Info("Using OpenAI LLM backend")
	case "ollama":
		llmClient, err = llm.NewOllamaClient()
		slog.Info("Using Ollama LLM backend")
	default:
		slog.Warn("LLM_BACKEND_TYPE not set or invalid, defaulting to ollama")
		llmClient, err = llm.NewOllamaClient()
	}
	if err != nil {
		log.Fatalf("Failed to initialize LLM client: %v", err)
	}

	evaluator := evaluation.NewEvaluator(llmClient, store)
	runner := evaluation.NewRunner(evaluator, store, store, evaluation.DefaultRunConcurrency)

	var authProvider middleware.AuthProvider = middleware.NopAuthProvider{}
	token := config.Auth.Token
	if token == "" {
		token = os.Getenv("PROMPTRIX_API_TOKEN")
	}
	if token != "" {
		authProvider = middleware.StaticTokenProvider{Token: token}
		slog.Info("API token auth enabled")
	}

	router := gin.Default()
	router.Use(otelgin.Middleware("promptrix-service"))
	routes.SetupRoutes(router, store, runner, authProvider)

	slog.Info("Starting the Promptrix server", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
