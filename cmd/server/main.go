package main

import (
	"context"
	"time"

	"github.com/m2tx/tutor_agent/internal/agent"
	"github.com/m2tx/tutor_agent/internal/config"
	"github.com/m2tx/tutor_agent/internal/index"
	"github.com/m2tx/tutor_agent/internal/llm"
	"github.com/m2tx/tutor_agent/internal/logging"
	"github.com/m2tx/tutor_agent/internal/repository"
	"github.com/m2tx/tutor_agent/internal/retrieval"
	"github.com/m2tx/tutor_agent/internal/server"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func main() {
	logger := logging.NewLoggerWithService("tutor")
	config.LoadEnv(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	ctx := context.Background()
	client, err := llm.NewGenAIClient(ctx, cfg.APIKey)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create reasoning service client")
	}
	gen := llm.NewGenAIGenerator(client, cfg.LLMCallTimeout)

	var (
		sessions repository.SessionRepository = repository.NewMemorySessionRepository(cfg.SessionMaxHistory)
		resolver retrieval.CollectionResolver = retrieval.StaticResolver{}
		assigner server.Assigner
	)
	if cfg.MongoEnabled {
		mongoClient, err := connectMongo(ctx, cfg.MongoURI)
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to MongoDB")
		}
		defer func() {
			if err := mongoClient.Disconnect(ctx); err != nil {
				logger.WithError(err).Warn("MongoDB disconnect")
			}
		}()

		database := mongoClient.Database(cfg.MongoDB)
		collections := repository.NewMongoCollectionResolver(database, "collections")
		sessions = repository.NewMongoSessionRepository(database, "sessions", cfg.SessionMaxHistory)
		resolver = collections
		assigner = collections
	} else {
		logger.Warn("MongoDB disabled, sessions are kept in memory")
	}

	idx := index.NewLocal(cfg.DocumentsDir, logger)
	pipeline := retrieval.NewPipeline(
		idx,
		retrieval.NewEvaluator(gen, cfg.EvaluatorModel, logger),
		resolver,
		logger,
		retrieval.Config{
			SnippetTopK: cfg.SnippetTopK,
			PageTopK:    cfg.PageTopK,
			CallTimeout: cfg.IndexCallTimeout,
		},
	)

	policies := agent.DefaultPolicies(agent.Models{
		Answer:      cfg.AnswerModel,
		Explanation: cfg.ExplanationModel,
		General:     cfg.GeneralModel,
	})
	if err := agent.LoadPolicyOverrides(cfg.PoliciesFile, policies); err != nil {
		logger.WithError(err).Fatal("Invalid policy overrides")
	}

	tutor := agent.NewTutor(agent.TutorConfig{
		Generator:       gen,
		Router:          agent.NewRouter(gen, cfg.RouterModel, logger),
		Searcher:        pipeline,
		Policies:        policies,
		DefaultLanguage: cfg.DefaultLanguage,
		Logger:          logger,
	})

	router := server.NewRouter(
		server.NewHandler(tutor, sessions, logger),
		server.NewCollectionsHandler(idx, assigner, logger),
		logger,
	)

	if err := server.Start(server.DefaultConfig(cfg.HTTPPort), router, logger); err != nil {
		logger.WithError(err).Error("Server shutdown")
	}
}

func connectMongo(ctx context.Context, uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return client, nil
}
