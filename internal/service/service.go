package service

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"farmhub-actuation/internal/cache"
	"farmhub-actuation/internal/config"
	"farmhub-actuation/internal/consumer"
	"farmhub-actuation/internal/correlator"
	"farmhub-actuation/internal/database"
	"farmhub-actuation/internal/dispatcher"
	"farmhub-actuation/internal/events"
	"farmhub-actuation/internal/httpapi"
	"farmhub-actuation/internal/models"
	"farmhub-actuation/internal/mqtt"
	"farmhub-actuation/internal/notifier"
	"farmhub-actuation/internal/pipeline"
	"farmhub-actuation/internal/redisx"
	"farmhub-actuation/internal/repository"
	"farmhub-actuation/internal/supervisor"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// ActuationService 执行核心服务（整合各层）
type ActuationService struct {
	config      *config.Config
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	logger      *zap.Logger

	// 各层组件
	actionRepo    *repository.ActionRepository
	thresholdRepo *repository.ThresholdRepository
	ruleRepo      *repository.RuleRepository
	configCache   *cache.ConfigCache
	streamPub     *events.StreamPublisher
	webhook       *notifier.WebhookNotifier
	supervisor    *supervisor.Supervisor
	dispatcher    *dispatcher.Dispatcher
	pipe          *pipeline.Pipeline
	telemetry     *consumer.TelemetryConsumer
	correlator    *correlator.Correlator
	httpServer    *http.Server
}

// NewActuationService 创建执行核心服务
func NewActuationService(cfg *config.Config, logger *zap.Logger) (*ActuationService, error) {
	// 1. 连接数据库
	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	// 2. 连接 Redis
	redisClient := redisx.NewRedisClient(&cfg.Redis)
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	// 3. 连接 MQTT
	mqttClient, err := mqtt.NewClient(&cfg.MQTT, logger)
	if err != nil {
		db.Close()
		redisClient.Close()
		return nil, fmt.Errorf("failed to connect mqtt broker: %w", err)
	}

	// 4. Repository 层
	actionRepo := repository.NewActionRepository(db, logger)
	thresholdRepo := repository.NewThresholdRepository(db, logger)
	ruleRepo := repository.NewRuleRepository(db, logger)

	// 5. 配置缓存与事件出口
	configCache := cache.NewConfigCache(
		redisClient,
		thresholdRepo,
		ruleRepo,
		cfg.Cache.ThresholdKeyPrefix,
		cfg.Cache.RuleKeyPrefix,
		cfg.Cache.ConfigTTL,
		logger,
	)
	streamPub := events.NewStreamPublisher(redisClient, cfg.Stream.ActionStream, logger)
	webhook := notifier.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.Timeout, logger)
	sink := &eventFanout{stream: streamPub, webhook: webhook}

	// 6. 状态机：监督器 + 调度器（互相引用，经 SetRedispatcher 接线）
	sup := supervisor.NewSupervisor(cfg.Dispatch.TimeoutWindow, actionRepo, sink, logger)
	disp := dispatcher.NewDispatcher(cfg, actionRepo, mqttClient, sup, sink, logger)
	sup.SetRedispatcher(disp)

	// 7. 处理管线与 MQTT 入口
	pipe := pipeline.NewPipeline(configCache, disp, webhook, logger)
	telemetry := consumer.NewTelemetryConsumer(cfg.Topics.Telemetry, mqttClient, pipe, logger)
	corr := correlator.NewCorrelator(cfg.Topics.Status, mqttClient, sup, logger)

	// 8. HTTP API
	router := httpapi.NewRouter(logger)
	router.RegisterActionRoutes(httpapi.NewActionHandler(disp, actionRepo, logger))
	router.RegisterHealthRoute(httpapi.NewHealthHandler(db, redisClient, mqttClient.IsConnected, logger))
	httpServer := &http.Server{
		Addr:    cfg.HTTP.ListenAddr,
		Handler: router,
	}

	return &ActuationService{
		config:        cfg,
		db:            db,
		redisClient:   redisClient,
		mqttClient:    mqttClient,
		logger:        logger,
		actionRepo:    actionRepo,
		thresholdRepo: thresholdRepo,
		ruleRepo:      ruleRepo,
		configCache:   configCache,
		streamPub:     streamPub,
		webhook:       webhook,
		supervisor:    sup,
		dispatcher:    disp,
		pipe:          pipe,
		telemetry:     telemetry,
		correlator:    corr,
		httpServer:    httpServer,
	}, nil
}

// Start 启动服务：先订阅 ack 通道再订阅遥测，避免命令先于关联器就绪
func (s *ActuationService) Start(ctx context.Context) error {
	s.logger.Info("Starting actuation service",
		zap.String("listen_addr", s.config.HTTP.ListenAddr),
		zap.String("telemetry_topic", s.config.Topics.Telemetry),
	)

	if err := s.correlator.Start(); err != nil {
		return fmt.Errorf("failed to start correlator: %w", err)
	}
	if err := s.telemetry.Start(); err != nil {
		return fmt.Errorf("failed to start telemetry consumer: %w", err)
	}

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("HTTP server error",
				zap.Error(err),
			)
		}
	}()

	return nil
}

// Stop 优雅停止：先停新输入（MQTT/HTTP），再停监督器，最后关连接
func (s *ActuationService) Stop() error {
	s.logger.Info("Stopping actuation service")

	s.telemetry.Stop()
	s.correlator.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("Failed to shutdown HTTP server",
			zap.Error(err),
		)
	}

	s.supervisor.Shutdown()
	s.mqttClient.Disconnect()

	if err := s.db.Close(); err != nil {
		s.logger.Error("Failed to close database",
			zap.Error(err),
		)
	}
	if err := s.redisClient.Close(); err != nil {
		s.logger.Error("Failed to close redis",
			zap.Error(err),
		)
	}

	return nil
}

// eventFanout 动作生命周期事件分发：写入 Redis Stream，终态失败时另发 Webhook
type eventFanout struct {
	stream  *events.StreamPublisher
	webhook *notifier.WebhookNotifier
}

func (f *eventFanout) PublishActionEvent(ctx context.Context, action *models.Action, event string) {
	f.stream.PublishActionEvent(ctx, action, event)

	if event == "failed" || event == "error" {
		f.webhook.NotifyActionFailed(ctx, action)
	}
}
