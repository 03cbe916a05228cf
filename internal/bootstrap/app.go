package bootstrap

import (
	"context"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"prepai/internal/config"
	"prepai/internal/model"
	"prepai/internal/platform/logger"
	mysqlClient "prepai/internal/platform/mysql"
	rabbitmqClient "prepai/internal/platform/rabbitmq"
	redisClient "prepai/internal/platform/redis"
	"prepai/internal/repository"
	"prepai/internal/storage"
	"prepai/internal/worker"
)

type App struct {
	Config      *config.Config
	Log         *logger.Logger
	MySQL       *gorm.DB
	Redis       *redis.Client
	MQConn      *amqp.Connection
	Store       *storage.GCSStore
	AuditWorker *worker.TurnAuditWorker

	StartedAt time.Time
}

func New(ctx context.Context) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config failed: %w", err)
	}

	log, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, fmt.Errorf("init logger failed: %w", err)
	}

	mysqlDB, err := mysqlClient.New(ctx, cfg.MySQLDSN())
	if err != nil {
		return nil, err
	}
	if err := mysqlDB.AutoMigrate(
		&model.User{},
		&model.Document{},
		&model.Chunk{},
		&model.Chat{},
		&model.Message{},
		&model.TurnEvent{},
	); err != nil {
		return nil, fmt.Errorf("auto migrate tables failed: %w", err)
	}

	redisCli, err := redisClient.New(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		return nil, err
	}

	mqConn, err := rabbitmqClient.New(ctx, cfg.RabbitMQ.URL)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewGCSStore(ctx, cfg.Storage, log)
	if err != nil {
		return nil, err
	}

	turnEventRepo := repository.NewTurnEventRepository(mysqlDB)
	auditWorker := worker.NewTurnAuditWorker(mqConn, turnEventRepo, cfg.RabbitMQ.TurnAuditQueue, log)
	if err := auditWorker.Start(ctx); err != nil {
		return nil, fmt.Errorf("start audit worker failed: %w", err)
	}

	return &App{
		Config:      cfg,
		Log:         log,
		MySQL:       mysqlDB,
		Redis:       redisCli,
		MQConn:      mqConn,
		Store:       store,
		AuditWorker: auditWorker,
		StartedAt:   time.Now(),
	}, nil
}

func (a *App) Close() error {
	var closeErr error
	if a.Redis != nil {
		if err := a.Redis.Close(); err != nil {
			closeErr = err
		}
	}
	if a.AuditWorker != nil {
		a.AuditWorker.Close()
	}
	if a.MQConn != nil {
		if err := a.MQConn.Close(); err != nil {
			closeErr = err
		}
	}
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			closeErr = err
		}
	}
	if a.MySQL != nil {
		sqlDB, err := a.MySQL.DB()
		if err == nil {
			if err := sqlDB.Close(); err != nil {
				closeErr = err
			}
		}
	}
	if a.Log != nil {
		a.Log.Close()
	}
	return closeErr
}
