package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/golang/glog"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"medquiz-service/internal/app"
	"medquiz-service/internal/config"
	"medquiz-service/internal/customquiz"
	"medquiz-service/internal/identity"
	"medquiz-service/internal/infra/memory"
	redisinfra "medquiz-service/internal/infra/redis"
	"medquiz-service/internal/llm"
	"medquiz-service/internal/questiongen"
	transport "medquiz-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.close()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
	}
	redisTTL := config.TTLDuration(cfg.Redis.TTL, defaultCacheTTL)
	quizTTL := config.TTLDuration(cfg.Quiz.TTL, defaultCacheTTL)

	var docs customquiz.DocumentStore
	var sessions app.SessionRegistry
	var liveness transport.LivenessCounter
	if redisClient != nil {
		docs = redisinfra.NewQuizRepository(redisClient, store.docs, quizTTL)
		registry := redisinfra.NewSessionStore(redisClient, redisTTL)
		sessions, liveness = registry, registry
	} else {
		docs = memory.NewQuizRepository(store.docs, quizTTL)
		sessions = memory.NewSessionStore()
	}

	llmCfg := llmConfig(cfg)
	provider, err := llm.NewProvider(ctx, llmCfg)
	if err != nil {
		return err
	}
	if llmCfg.Provider == llm.ProviderMock {
		glog.Warning("llm: mock provider configured, practice questions will not load")
	}
	genCfg := questiongen.DefaultConfig()
	genCfg.Timeout = llmCfg.Timeout
	generator := questiongen.New(provider, genCfg)

	service := app.NewQuizService(app.Deps{
		Sessions:  sessions,
		Quizzes:   customquiz.NewStore(docs),
		Configs:   store.configs,
		Questions: generator,
		Doubts:    generator,
	}, serviceConfig(cfg))

	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if !verifier.Enabled() {
		glog.Warning("auth: no jwt secret configured, every request is anonymous")
	}

	server := &http.Server{
		Addr: ":" + finalPort,
		Handler: transport.NewRouter(service, transport.RouterOptions{
			Verifier:    verifier,
			CORSOrigins: cfg.Server.CORSOrigins,
			Liveness:    liveness,
		}),
		ReadHeaderTimeout: 15 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		glog.Infof("starting quiz service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		glog.Info("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
