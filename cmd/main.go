package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"github.com/Dood345/AlexaWhenDidI/handler"
	"github.com/Dood345/AlexaWhenDidI/internal/integrations/alexaapi"
	"github.com/Dood345/AlexaWhenDidI/internal/integrations/gemini"
	"github.com/Dood345/AlexaWhenDidI/internal/integrations/paramstore"
	"github.com/Dood345/AlexaWhenDidI/internal/repository"
	"github.com/Dood345/AlexaWhenDidI/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	tasksTable := mustEnv("TASKS_TABLE")
	paramPrefix := mustEnv("PARAM_PREFIX")
	geminiModel := envDefault("GEMINI_MODEL", "gemini-2.5-flash")
	defaultTimezone := envDefault("DEFAULT_TIMEZONE", "America/Chicago")

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	taskStore, err := repository.New(awsdynamodb.NewFromConfig(cfg), tasksTable)
	if err != nil {
		slog.Error("failed to create task store", "err", err)
		os.Exit(1)
	}
	geminiClient, err := gemini.NewClient(ssmClient, paramPrefix)
	if err != nil {
		slog.Error("failed to create Gemini client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	taskService, err := usecase.NewTaskService(taskStore, geminiClient, alexaapi.New(), geminiModel, defaultTimezone)
	if err != nil {
		slog.Error("failed to create task service", "err", err)
		os.Exit(1)
	}

	h, err := handler.NewHandler(taskService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
		os.Exit(1)
	}
	return v
}

func envDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
