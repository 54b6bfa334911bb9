package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/auth"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/config"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/domain"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/handler"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/mailer"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/repository"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/userid"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	/**********************************************
	 * 创建 logger
	 **********************************************/
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	/**********************************************
	 * 加载配置
	 **********************************************/
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	if cfg.UsesDefaultSecret() && cfg.Environment != "development" {
		logger.Warn("JWT_SECRET is not set, falling back to the default secret")
	}

	/**********************************************
	 * 连接数据库
	 **********************************************/
	dbpool, err := sql.Open("pgx", cfg.Database.DSN)
	if err != nil {
		logger.Error("failed to create database pool", "error", err)
		return
	}
	defer dbpool.Close()

	dbpool.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	dbpool.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	dbpool.SetConnMaxIdleTime(time.Duration(cfg.Database.MaxIdleTime) * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.Database.ConnectTimeout)*time.Second)
	defer cancel()

	// sql.Open 只是创建数据库连接池对象，并不会立即连接到数据库，因此需要显式地 ping 一下
	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}

	/**********************************************
	 * 创建 repository
	 **********************************************/
	repo := repository.NewRepository(cfg, dbpool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to create schema", "error", err)
		return
	}

	allocator := userid.NewAllocator(repo)

	/**********************************************
	 * 确保数据库中存在初始管理员
	 **********************************************/
	if err := ensureInitialAdmin(ctx, cfg, repo, allocator); err != nil {
		logger.Error("failed to create initial admin", "error", err)
		return
	}

	/**********************************************
	 * 连接 rabbitmq（可选）
	 **********************************************/
	var mail handler.MailPublisher
	if cfg.RabbitMQ.DSN != "" {
		conn, err := amqp.Dial(cfg.RabbitMQ.DSN)
		if err != nil {
			logger.Error("failed to connect to rabbitmq", "error", err)
			return
		}
		defer conn.Close()

		ch, err := conn.Channel()
		if err != nil {
			logger.Error("failed to open channel", "error", err)
			return
		}
		defer ch.Close()

		if _, err := mailer.DeclareQueue(ch, cfg.RabbitMQ.Queue); err != nil {
			logger.Error("failed to declare queue", "error", err)
			return
		}

		mail = mailer.NewPublisher(ch, cfg.RabbitMQ.Queue, time.Duration(cfg.RabbitMQ.PublishTimeout)*time.Second)
	} else {
		logger.Info("RABBITMQ_DSN is not set, mail notifications are disabled")
	}

	/**********************************************
	 * 连接 redis（可选）
	 **********************************************/
	var revoker handler.TokenRevoker
	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password:     cfg.Redis.Password,
			DB:           0,
			ReadTimeout:  time.Duration(cfg.Redis.OperationTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Redis.OperationTimeout) * time.Second,
		})
		defer rdb.Close()

		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Error("failed to connect to redis", "error", err)
			return
		}

		revoker = auth.NewRevocationStore(rdb)
	} else {
		logger.Info("REDIS_HOST is not set, logout will not revoke tokens")
	}

	/**********************************************
	 * 创建 handler
	 **********************************************/
	tokens := auth.NewTokenService(cfg.JWT.Secret, cfg.JWT.Expiration)

	handler, err := handler.NewHandler(cfg, repo, allocator, tokens, revoker, mail)
	if err != nil {
		logger.Error("failed to create handler", "error", err)
		return
	}
	handler.RegisterRoutes()

	/**********************************************
	 * 启动 HTTP 服务器
	 **********************************************/
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Server.Port),
		Handler:      handler.Mux,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		logger.Info("starting server", "port", cfg.Server.Port, "accessPolicy", cfg.Access.Policy)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			return
		}
	}()

	<-quit
	logger.Info("shutting down server")

	ctx, cancel = context.WithTimeout(context.Background(), time.Duration(cfg.Server.ShutdownTimeout)*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("failed to shut down server", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

func ensureInitialAdmin(ctx context.Context, cfg *config.Config, repo *repository.Repository, allocator *userid.Allocator) error {
	if cfg.InitialAdmin.Email == "" || cfg.InitialAdmin.Password == "" {
		return nil
	}

	email := strings.ToLower(strings.TrimSpace(cfg.InitialAdmin.Email))

	// 已存在则跳过，避免每次启动都消耗一个序号
	if _, err := repo.GetUserByEmail(ctx, email); err == nil {
		return nil
	} else if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	passwordHash, err := auth.HashPassword(cfg.InitialAdmin.Password)
	if err != nil {
		return err
	}

	admin := &domain.User{
		Name:         cfg.InitialAdmin.Name,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         domain.RoleAdmin,
	}
	if err := allocator.Assign(ctx, admin); err != nil {
		return err
	}

	if err := repo.CreateUser(ctx, admin); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.ConstraintName == repository.ConstraintUsersEmail {
			// 并发启动的另一个实例已经创建了初始管理员
			return nil
		}
		return err
	}

	slog.Info("created initial admin", "userId", admin.UserID, "email", admin.Email)
	return nil
}
