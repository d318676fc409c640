package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"dictat/internal/core/auth"
	"dictat/internal/core/authz"
	"dictat/internal/core/cache"
	"dictat/internal/core/config"
	"dictat/internal/core/database"
	"dictat/internal/repo"
	"dictat/internal/service/account"
	"dictat/internal/service/audit"
	"dictat/internal/service/dictation"
	"dictat/internal/service/transcription"
	"dictat/internal/storage"
	"dictat/internal/transport/http/handler"
	"dictat/internal/transport/http/router"
	"dictat/pkg/utils"
)

// App 组装根：数据库、缓存、各服务与两个 HTTP 引擎共用同一套依赖
type App struct {
	Cfg *config.Config
	Log *zap.Logger
	DB  *gorm.DB
	// redis 未配置时为 nil：不缓存授权结果，也不支持令牌吊销
	Cache *cache.Cache

	Accounts       *account.Service
	Dictations     *dictation.Service
	Transcriptions *transcription.Service
	Audit          *audit.Service

	tokens  *auth.TokenManager
	modules *router.Registry
	checks  map[string]router.HealthCheck
}

func New(cfg *config.Config, log *zap.Logger) (*App, error) {
	db, err := database.NewGorm(cfg.DB, log)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))

	a := &App{Cfg: cfg, Log: log, DB: db}
	a.checks = map[string]router.HealthCheck{"db": a.pingDB}

	if cfg.Redis.Addr != "" {
		a.Cache = cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, cfg.App.Name+":")
		if err := a.Cache.Ping(context.Background()); err != nil {
			// 启动时连不上不致命：授权缓存回源，吊销检查放行并告警
			log.Warn("redis unavailable at startup", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		}
		a.checks["redis"] = a.Cache.Ping
	}

	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func (a *App) wire() error {
	cfg, log := a.Cfg, a.Log

	hasher, err := utils.NewPasswordHasher(cfg.Auth.PasswordAlgorithm)
	if err != nil {
		return err
	}
	files, err := storage.New(storage.Config{
		BasePath:       cfg.Storage.AudioPath,
		MaxUploadBytes: cfg.Storage.MaxUploadBytes,
		AllowedFormats: cfg.Storage.AllowedFormats,
		ChunkSize:      cfg.Storage.ChunkSize,
	})
	if err != nil {
		return err
	}
	a.tokens = &auth.TokenManager{
		Secret:     []byte(cfg.JWT.Secret),
		Issuer:     cfg.JWT.Issuer,
		AccessTTL:  cfg.JWT.AccessTTL(),
		RefreshTTL: cfg.JWT.RefreshTTL(),
		Leeway:     time.Duration(cfg.JWT.LeewaySec) * time.Second,
	}

	var eval authz.Evaluator
	if cfg.OPA.Enabled {
		eval = authz.NewOPAClient(cfg.OPA.URL, cfg.OPA.PolicyPath, time.Duration(cfg.OPA.TimeoutSec)*time.Second)
	}
	decider := authz.New(eval, a.Cache, time.Duration(cfg.Redis.AuthzCacheTTLSec)*time.Second, log.Named("authz"))

	users := repo.NewUserRepo(a.DB)
	dictations := repo.NewDictationRepo(a.DB)
	tx := repo.NewTxManager(a.DB)

	a.Audit = audit.NewService(repo.NewAuditRepo(a.DB), log.Named("audit"))

	accountDeps := account.Deps{
		Users:             users,
		Hasher:            hasher,
		Tokens:            a.tokens,
		Audit:             a.Audit,
		Log:               log,
		AllowRegistration: cfg.Auth.AllowRegistration,
	}
	// 避免把 nil *cache.Cache 装进接口
	if a.Cache != nil {
		accountDeps.Revocations = a.Cache
	}
	a.Accounts = account.NewService(accountDeps)

	a.Dictations = dictation.NewService(dictation.Deps{
		Repo:    dictations,
		Users:   users,
		Tx:      tx,
		Authz:   decider,
		Storage: files,
		Audit:   a.Audit,
		Log:     log,
	})
	a.Transcriptions = transcription.NewService(transcription.Deps{
		Repo:       repo.NewTranscriptionRepo(a.DB),
		Dictations: dictations,
		Tx:         tx,
		Authz:      decider,
		Audit:      a.Audit,
		Log:        log,
	})

	a.modules = router.NewRegistry(
		handler.NewAuthHandler(a.Accounts, log),
		handler.NewDictationHandler(a.Dictations, log),
		handler.NewTranscriptionHandler(a.Transcriptions, log),
		handler.NewAdminHandler(a.Accounts, a.Dictations, a.Audit, log),
	)
	return nil
}

func (a *App) routerDeps() router.Deps {
	return router.Deps{
		Log:  a.Log,
		HTTP: a.Cfg.App.HTTP,
		// multipart 边界和其它字段留 1MB 余量
		MaxBodyBytes: a.Cfg.Storage.MaxUploadBytes + 1<<20,
		Tokens:       a.tokens,
		Revocations:  a.Accounts,
		Modules:      a.modules,
		Checks:       a.checks,
	}
}

func (a *App) APIEngine() *gin.Engine   { return router.NewAPIEngine(a.routerDeps()) }
func (a *App) AdminEngine() *gin.Engine { return router.NewAdminEngine(a.routerDeps()) }

func (a *App) Migrate() error {
	if err := repo.Migrate(a.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	a.Log.Info("automigrate done")
	return nil
}

func (a *App) pingDB(ctx context.Context) error {
	sqlDB, err := a.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (a *App) Close() {
	if a.Cache != nil {
		_ = a.Cache.Close()
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
