package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/learnhub-api/internal/handler"
	"github.com/noah-isme/learnhub-api/internal/models"
	"github.com/noah-isme/learnhub-api/internal/repository"
	"github.com/noah-isme/learnhub-api/internal/repository/memory"
	"github.com/noah-isme/learnhub-api/internal/service"
	"github.com/noah-isme/learnhub-api/pkg/cache"
	"github.com/noah-isme/learnhub-api/pkg/config"
	"github.com/noah-isme/learnhub-api/pkg/database"
	"github.com/noah-isme/learnhub-api/pkg/export"
	"github.com/noah-isme/learnhub-api/pkg/jobs"
	"github.com/noah-isme/learnhub-api/pkg/logger"
	"github.com/noah-isme/learnhub-api/pkg/storage"
)

const shutdownTimeout = 15 * time.Second

type userStore interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type courseStore interface {
	List(ctx context.Context, filter models.CourseFilter) ([]models.Course, error)
	FindByID(ctx context.Context, id string) (*models.Course, error)
	Create(ctx context.Context, course *models.Course) error
	Update(ctx context.Context, course *models.Course) error
	Delete(ctx context.Context, id string) error
	AppendSection(ctx context.Context, courseID string, section models.Section) error
}

type enrollmentStore interface {
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	Exists(ctx context.Context, studentID, courseID string) (bool, error)
	CountByCourse(ctx context.Context, courseIDs []string) (map[string]int, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.EnrolledCourse, error)
}

type activityStore interface {
	Create(ctx context.Context, log *models.ActivityLog) error
	ListWithActors(ctx context.Context) ([]models.ActivityEntry, error)
}

// stores is the storage backend selected by STORE_DRIVER.
type stores struct {
	users       userStore
	courses     courseStore
	enrollments enrollmentStore
	activities  activityStore
	pinger      handler.Pinger
	close       func() error
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func newServeCommand() *cobra.Command {
	var migrate bool
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("migrate") {
				cfg.Database.MigrateOnStart = migrate
			}
			return serve(cmd.Context(), cfg)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving (postgres driver only)")
	return cmd
}

func serve(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logr, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	backend, err := openStores(ctx, cfg, logr)
	if err != nil {
		return err
	}
	defer backend.close() //nolint:errcheck

	location, err := time.LoadLocation(cfg.Export.Timezone)
	if err != nil {
		logr.Warn("unknown export timezone, using UTC", zap.String("timezone", cfg.Export.Timezone), zap.Error(err))
		location = time.UTC
	}

	metrics := service.NewMetricsService()
	gate := service.NewGate(nil)
	validate := validator.New()
	signer := storage.NewSignedURLSigner(cfg.Media.SigningSecret, cfg.Media.URLTTL, cfg.Media.BaseURL)

	catalogCache, closeCache := openCatalogCache(ctx, cfg, metrics, logr)
	defer closeCache()

	worker := service.NewAuditWorker(backend.activities, metrics, logr)
	auditQueue := jobs.NewQueue("audit", worker.Handle, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		RetryDelay: cfg.Audit.RetryDelay,
		Logger:     logr,
		OnDrop:     worker.Dropped,
	})
	audit := service.NewAuditRecorder(auditQueue, worker, logr)

	auth := service.NewAuthService(backend.users, validate, logr, service.AuthConfig{
		Secret:     cfg.JWT.Secret,
		Expiration: cfg.JWT.Expiration,
		Issuer:     cfg.JWT.Issuer,
	})
	courses := service.NewCourseService(service.CourseServiceDeps{
		Courses:     backend.courses,
		Users:       backend.users,
		Enrollments: backend.enrollments,
		Gate:        gate,
		Audit:       audit,
		Cache:       catalogCache,
		Signer:      signer,
		Validator:   validate,
		Logger:      logr,
	})
	enrollments := service.NewEnrollmentService(backend.enrollments, backend.courses, gate, audit, catalogCache, metrics, logr)
	activities := service.NewActivityService(backend.activities, gate, export.NewCSVExporter(), export.NewPDFExporter(), metrics, logr, service.ActivityExportConfig{
		Location:   location,
		TimeLayout: cfg.Export.TimeLayout,
	})

	router := handler.NewRouter(handler.RouterConfig{
		APIPrefix:      cfg.APIPrefix,
		QueryTimeout:   cfg.Database.QueryTimeout,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
	}, handler.Dependencies{
		Resolver:    auth,
		Gate:        gate,
		Auth:        auth,
		Courses:     courses,
		Enrollments: enrollments,
		Activities:  activities,
		Media:       signer,
		Metrics:     metrics,
		Store:       backend.pinger,
		Logger:      logr,
	})
	if cfg.Env != config.EnvProduction {
		router.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", server.Addr, err)
	}
	logr.Sugar().Infow("server starting", "addr", server.Addr, "env", cfg.Env, "store", cfg.StoreDriver)
	if err := runServer(ctx, server, listener, auditQueue, logr); err != nil {
		logr.Error("server stopped with error", zap.Error(err))
		return err
	}
	logr.Info("server stopped")
	return nil
}

// runServer serves until ctx is done. The audit queue is started before the first request can
// arrive and is stopped only after the server has drained, so every request can still record.
func runServer(ctx context.Context, server *http.Server, listener net.Listener, queue *jobs.Queue, logr *zap.Logger) error {
	queueCtx, stopQueue := context.WithCancel(context.WithoutCancel(ctx))
	defer stopQueue()
	queue.Start(queueCtx)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		return queue.Run(queueCtx)
	})
	group.Go(func() error {
		if err := server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		logr.Info("server shutting down")
		err := server.Shutdown(shutdownCtx)
		stopQueue()
		return err
	})
	return group.Wait()
}

func openStores(ctx context.Context, cfg *config.Config, logr *zap.Logger) (*stores, error) {
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		logr.Warn("using in-memory store; data is lost on restart")
		store := memory.NewStore()
		return &stores{
			users:       store.Users(),
			courses:     store.Courses(),
			enrollments: store.Enrollments(),
			activities:  store.Activities(),
			pinger:      store,
			close:       func() error { return nil },
		}, nil
	case config.StoreDriverPostgres, "":
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		if cfg.Database.MigrateOnStart {
			if err := database.Migrate(ctx, db.DB, cfg.Database.MigrationsTable); err != nil {
				_ = db.Close()
				return nil, err
			}
		}
		return postgresStores(db), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func postgresStores(db *sqlx.DB) *stores {
	return &stores{
		users:       repository.NewUserRepository(db),
		courses:     repository.NewCourseRepository(db),
		enrollments: repository.NewEnrollmentRepository(db),
		activities:  repository.NewActivityRepository(db),
		pinger:      pingFunc(db.PingContext),
		close:       db.Close,
	}
}

// openCatalogCache connects Redis when the catalog cache is enabled. An unreachable Redis only
// disables caching.
func openCatalogCache(ctx context.Context, cfg *config.Config, metrics *service.MetricsService, logr *zap.Logger) (*service.CacheService, func()) {
	if !cfg.Catalog.CacheEnabled {
		return nil, func() {}
	}
	client, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("catalog cache disabled", zap.Error(err))
		return nil, func() {}
	}
	var universal redis.UniversalClient = client
	repo := repository.NewCacheRepository(universal, logr)
	return service.NewCacheService(repo, metrics, cfg.Catalog.CacheTTL, logr, true), func() { _ = repo.Close() }
}
