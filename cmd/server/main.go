package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/config"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/consumer"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/database"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fanout"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/feed"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/fetch"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/follow"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/logs"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/metrics"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/middleware"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/post"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/publish"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/queue"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/storage"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/timeline"
	"github.com/ArthurDelaporte/OnlyFeed-Timeline/internal/user"
)

// collaborators are the stores and services the strategies run against.
type collaborators struct {
	posts    post.Store
	timeline timeline.Store
	graph    follow.Graph
	profiles user.Directory
	queue    queue.Queue
	closers  []func()
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		logs.Fatal("Invalid configuration", map[string]interface{}{"error": err})
	}
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	if err := metrics.Register(reg); err != nil {
		logs.Fatal("Failed to register metrics", map[string]interface{}{"error": err})
	}

	deps, err := buildCollaborators(ctx, cfg)
	if err != nil {
		logs.Fatal("Failed to initialize collaborators", map[string]interface{}{"error": err})
	}
	defer deps.close()

	engine := fetch.NewEngine(deps.posts, cfg.FetchMaxWorkers)
	push := fanout.NewPushStrategy(deps.timeline, deps.profiles)
	pull := fanout.NewPullStrategy(deps.graph, engine, deps.profiles, cfg.PullAllowPartial)
	hybrid := fanout.NewHybridStrategy(push, pull, deps.graph, deps.posts, cfg.CelebrityThreshold)
	router := fanout.NewRouter(push, pull, hybrid)

	strategy, err := router.Resolve(cfg.FanoutStrategy)
	if err != nil {
		logs.Fatal("Unknown fan-out strategy", map[string]interface{}{"error": err})
	}

	logs.LogJSON(logs.LevelInfo, "Timeline service starting", map[string]interface{}{
		"env":       cfg.Env,
		"strategy":  strategy.Name(),
		"timeline":  cfg.TimelineBackend,
		"queue":     cfg.QueueBackend,
		"threshold": cfg.CelebrityThreshold,
		"port":      cfg.Port,
	})

	publisher := publish.NewPublisher(deps.posts, deps.graph, deps.queue, strategy, cfg.FanoutBatchSize)
	worker := consumer.New(deps.queue, strategy, deps.posts, deps.profiles, consumer.Options{
		Workers:      cfg.ConsumerWorkers,
		PollInterval: cfg.ConsumerPollInterval,
	})

	r := gin.New()
	r.Use(gin.Recovery(), middleware.CORSMiddleware(), middleware.LoggingMiddleware())
	feed.NewHandler(strategy, publisher, router.Names(), reg).RegisterRoutes(r)

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        r,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logs.Fatal("Server failed to start", map[string]interface{}{"error": err})
		}
	}()

	<-ctx.Done()
	logs.LogJSON(logs.LevelInfo, "Shutdown signal received", nil)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logs.LogJSON(logs.LevelError, "Server shutdown failed", map[string]interface{}{"error": err})
	}
	wg.Wait()

	logs.LogJSON(logs.LevelInfo, "Server gracefully stopped", nil)
}

// buildCollaborators connects the configured backends. Without a database
// URL the follower graph, profiles and posts live in memory, which is only
// meant for local runs. A social graph URL takes over the follower graph
// from either.
func buildCollaborators(ctx context.Context, cfg *config.Config) (*collaborators, error) {
	deps := &collaborators{}

	if cfg.DBUrl != "" {
		if err := database.Connect(cfg.DBUrl); err != nil {
			return nil, err
		}
		if cfg.AutoMigrate {
			if err := database.Migrate(&timeline.Entry{}, &follow.Follow{}, &user.User{}); err != nil {
				return nil, err
			}
		}

		pool, err := database.NewPostsPool(ctx, cfg.PostsDBUrl, int32(cfg.FetchMaxWorkers))
		if err != nil {
			return nil, err
		}
		deps.closers = append(deps.closers, pool.Close)

		posts := post.NewPgStore(pool)
		if cfg.AutoMigrate {
			if err := posts.EnsureSchema(ctx); err != nil {
				deps.close()
				return nil, err
			}
		}
		deps.posts = posts
		deps.graph = follow.NewGormGraph(database.DB)
		deps.profiles = user.NewGormDirectory(database.DB)
	} else {
		logs.LogJSON(logs.LevelWarn, "No database configured, using in-memory collaborators", nil)
		deps.posts = post.NewMemoryStore()
		deps.graph = follow.NewMemoryGraph()
		deps.profiles = user.NewMemoryDirectory()
	}

	if cfg.SocialGraphURL != "" {
		deps.graph = follow.NewHTTPGraph(cfg.SocialGraphURL, cfg.SocialGraphTimeout)
	}

	needsAWS := cfg.TimelineBackend == config.BackendDynamoDB || cfg.QueueBackend == config.BackendSQS
	var awsCfg storageClients
	if needsAWS {
		var err error
		awsCfg, err = newStorageClients(ctx, cfg)
		if err != nil {
			deps.close()
			return nil, err
		}
	}

	switch cfg.TimelineBackend {
	case config.BackendPostgres:
		deps.timeline = timeline.NewGormStore(database.DB)
	case config.BackendDynamoDB:
		deps.timeline = timeline.NewDynamoStore(awsCfg.dynamo, cfg.DynamoTableName)
	default:
		deps.timeline = timeline.NewMemoryStore()
	}

	switch cfg.QueueBackend {
	case config.BackendSQS:
		deps.queue = queue.NewSQSQueue(awsCfg.sqs, cfg.SQSQueueURL, cfg.VisibilityTimeout)
	default:
		deps.queue = queue.NewMemoryQueue(cfg.VisibilityTimeout)
	}

	return deps, nil
}

type storageClients struct {
	dynamo timeline.DynamoAPI
	sqs    queue.SQSAPI
}

func newStorageClients(ctx context.Context, cfg *config.Config) (storageClients, error) {
	awsCfg, err := storage.LoadAWSConfig(ctx, storage.AWSOptions{
		Region:          cfg.AWSRegion,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretKey,
		EndpointURL:     cfg.AWSEndpointURL,
	})
	if err != nil {
		return storageClients{}, err
	}
	return storageClients{
		dynamo: storage.NewDynamoDBClient(awsCfg, cfg.AWSEndpointURL),
		sqs:    storage.NewSQSClient(awsCfg, cfg.AWSEndpointURL),
	}, nil
}

func (c *collaborators) close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}
