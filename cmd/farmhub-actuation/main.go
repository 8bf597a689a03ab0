package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"farmhub-actuation/internal/config"
	"farmhub-actuation/internal/logger"
	"farmhub-actuation/internal/service"

	"go.uber.org/zap"
)

func main() {
	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// 2. 初始化日志
	log, err := logger.NewLogger(cfg.Log.Level, cfg.Log.Format, "farmhub-actuation")
	if err != nil {
		panic(fmt.Sprintf("Failed to init logger: %v", err))
	}
	defer log.Sync()

	// 3. 创建服务
	svc, err := service.NewActuationService(cfg, log)
	if err != nil {
		log.Fatal("Failed to create actuation service",
			zap.Error(err),
		)
	}
	defer svc.Stop()

	// 4. 启动服务
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := svc.Start(ctx); err != nil {
		log.Fatal("Failed to start actuation service",
			zap.Error(err),
		)
	}

	// 5. 等待信号（优雅关闭）
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info("Received signal, shutting down",
		zap.String("signal", sig.String()),
	)

	log.Info("Actuation service stopped")
}
