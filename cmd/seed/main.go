package main

import (
	"context"
	"database/sql"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/roadwatch-dev/pothole-tracker/backend/internal/config"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/repository"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/seed"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/userid"
	"github.com/roadwatch-dev/pothole-tracker/backend/internal/utils"

	_ "github.com/jackc/pgx/v5/stdlib"
)

func main() {
	var op int
	var n int
	var file string

	flag.IntVar(&op, "op", 0, "operation to run (1: insert random users, 2: insert random potholes, 3: import potholes from csv)")
	flag.IntVar(&n, "n", 5, "number of records to insert")
	flag.StringVar(&file, "f", "", "csv file for -op 3")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 读取配置文件
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 创建数据库连接池
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

	if err := dbpool.PingContext(ctx); err != nil {
		logger.Error("failed to connect to database", "error", err)
		return
	}

	repo := repository.NewRepository(cfg, dbpool)
	if err := repo.EnsureSchema(ctx); err != nil {
		logger.Error("failed to create schema", "error", err)
		return
	}

	// 批量插入可能超过连接超时，后续操作不再沿用上面的 ctx
	ctx = context.Background()

	switch op {
	case 0:
		slog.Error("no operation given")
	case 1:
		if n <= 0 {
			slog.Error("-n must be positive")
			return
		}

		allocator := userid.NewAllocator(repo)
		cnt := 0
		for i := 0; i < n; i++ {
			user, err := utils.GenerateRandomUser(cfg.Seed.User.Password, cfg.Seed.EmailDomain)
			if err != nil {
				slog.Error("failed to generate user", slog.String("error", err.Error()))
				continue
			}

			if err := allocator.Assign(ctx, user); err != nil {
				slog.Error("failed to allocate user id", slog.String("error", err.Error()))
				continue
			}

			if err := repo.CreateUser(ctx, user); err != nil {
				slog.Error("failed to insert user", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("inserted users", slog.Int("count", cnt))
	case 2:
		if n <= 0 {
			slog.Error("-n must be positive")
			return
		}

		cnt := 0
		for i := 0; i < n; i++ {
			p := utils.GenerateRandomPothole(cfg.Seed.CenterLat, cfg.Seed.CenterLng)
			if err := repo.CreatePothole(ctx, p); err != nil {
				slog.Error("failed to insert pothole", slog.String("error", err.Error()))
				continue
			}

			cnt++
		}

		slog.Info("inserted potholes", slog.Int("count", cnt))
	case 3:
		if file == "" {
			slog.Error("-f is required for -op 3")
			return
		}

		f, err := os.Open(file)
		if err != nil {
			slog.Error("failed to open csv", slog.String("error", err.Error()))
			return
		}
		defer f.Close()

		cnt, err := seed.ImportPotholes(ctx, repo, f)
		if err != nil {
			slog.Error("import stopped", slog.Int("imported", cnt), slog.String("error", err.Error()))
			return
		}

		slog.Info("imported potholes", slog.Int("count", cnt))
	default:
		slog.Error("unknown operation", slog.Int("op", op))
	}
}
