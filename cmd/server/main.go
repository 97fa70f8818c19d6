package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"showcase/internal/config"
	"showcase/internal/db"
	"showcase/internal/identity"
	"showcase/internal/middleware"
	"showcase/internal/router"
	"showcase/internal/services"
	"showcase/internal/utils"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
)

func main() {
	configPath := flag.String("config", "", "optional config file (yaml, json or toml)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func newLogger(cfg *config.Config) *slog.Logger {
	if cfg.IsProduction() {
		return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize Database
	store, err := db.Open(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			slog.Error("failed to close database", "error", err)
		}
	}()

	cache, closeCache, err := newCache(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeCache()

	deadline, err := services.NewDeadline(cfg.Submission.Deadline, cfg.Submission.GatesVoting)
	if err != nil {
		return err
	}

	metrics := services.NewMetrics()
	tokens := identity.NewTokens(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)

	ranking := services.NewRankingService(store.DB, cache, cfg.Cache.TTL)
	consistency := services.NewConsistencyService(store.DB, metrics, cfg.Consistency.Interval)
	engine := services.NewVoteEngine(store.DB, services.NewProjectGate(), services.NewUserDirectory(), metrics)
	engine.OnCommit(consistency.ScheduleCheck)
	accounts := services.NewAccountService(store.DB, tokens)
	projects := services.NewProjectService(store.DB, deadline, cfg.Submission.AutoApprove)

	if err := accounts.EnsureAdmin(ctx, cfg.Auth.AdminUsername, cfg.Auth.AdminPassword); err != nil {
		return err
	}

	// 启动后台一致性核对
	consistency.Start(ctx)
	defer consistency.Stop()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(logger))

	// Load Templates using Multitemplate to avoid collision and allow handler names
	r.HTMLRender = loadTemplates(cfg.Server.TemplatesDir)

	router.RegisterRoutes(r, router.Deps{
		Tokens:        tokens,
		SessionSecret: cfg.Auth.SessionSecret,
		SecureCookies: cfg.IsProduction(),
		Accounts:      accounts,
		Projects:      projects,
		Ranking:       ranking,
		Engine:        engine,
		Consistency:   consistency,
		Deadline:      deadline,
		Metrics:       metrics,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Showcase server starting", "port", cfg.Server.Port, "env", cfg.Server.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func newCache(ctx context.Context, cfg *config.Config) (utils.Cache, func(), error) {
	if cfg.Cache.Driver == "redis" {
		rc, err := utils.NewRedisCache(ctx, utils.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, err
		}
		return rc, func() { rc.Close() }, nil
	}

	lc, err := utils.NewLocalCache(cfg.Cache.Size)
	if err != nil {
		return nil, nil, err
	}
	return lc, func() {}, nil
}

func loadTemplates(templatesDir string) multitemplate.Renderer {
	r := multitemplate.NewRenderer()

	layouts, err := filepath.Glob(templatesDir + "/layouts/*.html")
	if err != nil {
		panic(err)
	}

	components, err := filepath.Glob(templatesDir + "/components/*.html")
	if err != nil {
		panic(err)
	}

	assemble := func(view string) []string {
		files := make([]string, 0, len(layouts)+len(components)+1)
		files = append(files, layouts...)
		files = append(files, components...)
		files = append(files, view)
		return files
	}

	r.AddFromFilesFuncs("project/list.html", funcMap, assemble(templatesDir+"/views/project/list.html")...)
	r.AddFromFilesFuncs("project/detail.html", funcMap, assemble(templatesDir+"/views/project/detail.html")...)
	r.AddFromFilesFuncs("error.html", funcMap, assemble(templatesDir+"/views/error.html")...)

	// HTMX 片段
	r.AddFromFilesFuncs("vote_button.html", funcMap, templatesDir+"/components/vote_button.html")

	return r
}

var funcMap = template.FuncMap{
	"dict": func(values ...interface{}) (map[string]interface{}, error) {
		if len(values)%2 != 0 {
			return nil, fmt.Errorf("invalid dict call")
		}
		dict := make(map[string]interface{}, len(values)/2)
		for i := 0; i < len(values); i += 2 {
			key, ok := values[i].(string)
			if !ok {
				return nil, fmt.Errorf("dict keys must be strings")
			}
			dict[key] = values[i+1]
		}
		return dict, nil
	},
	"add": func(a, b int) int {
		return a + b
	},
	"timeAgo": func(t time.Time) string {
		seconds := int(time.Since(t).Seconds())
		switch {
		case seconds < 60:
			return fmt.Sprintf("%d秒前", seconds)
		case seconds < 3600:
			return fmt.Sprintf("%d分钟前", seconds/60)
		case seconds < 86400:
			return fmt.Sprintf("%d小时前", seconds/3600)
		case seconds < 2592000:
			return fmt.Sprintf("%d天前", seconds/86400)
		}
		return t.Format("2006-01-02")
	},
	"deref": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
}
