package notifier

import (
	"context"
	"time"

	"farmhub-actuation/internal/models"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// WebhookNotifier 告知外部系统的 Webhook 通知器
// URL 为空时禁用；通知失败只记录日志，不影响调度主流程
type WebhookNotifier struct {
	httpClient *resty.Client
	webhookURL string
	logger     *zap.Logger
}

// notification Webhook 载荷
type notification struct {
	Kind      string                     `json:"kind"` // unmatched_violation, action_failed
	Violation *models.ThresholdViolation `json:"violation,omitempty"`
	Context   *models.ViolationContext   `json:"context,omitempty"`
	Action    *models.Action             `json:"action,omitempty"`
	Timestamp int64                      `json:"timestamp"`
}

// NewWebhookNotifier 创建 Webhook 通知器
func NewWebhookNotifier(webhookURL string, timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	client := resty.New().
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("Content-Type", "application/json")

	return &WebhookNotifier{
		httpClient: client,
		webhookURL: webhookURL,
		logger:     logger,
	}
}

// NotifyUnmatchedViolation 越限但无规则命中时通知
func (n *WebhookNotifier) NotifyUnmatchedViolation(ctx context.Context, violation models.ThresholdViolation, vctx models.ViolationContext) {
	if n.webhookURL == "" {
		return
	}

	n.post(ctx, notification{
		Kind:      "unmatched_violation",
		Violation: &violation,
		Context:   &vctx,
		Timestamp: time.Now().Unix(),
	})
}

// NotifyActionFailed 动作终态 failed/error 时通知
func (n *WebhookNotifier) NotifyActionFailed(ctx context.Context, action *models.Action) {
	if n.webhookURL == "" {
		return
	}

	n.post(ctx, notification{
		Kind:      "action_failed",
		Action:    action,
		Timestamp: time.Now().Unix(),
	})
}

func (n *WebhookNotifier) post(ctx context.Context, payload notification) {
	resp, err := n.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		Post(n.webhookURL)
	if err != nil {
		n.logger.Warn("Webhook notification failed",
			zap.String("kind", payload.Kind),
			zap.Error(err),
		)
		return
	}

	if resp.IsError() {
		n.logger.Warn("Webhook notification rejected",
			zap.String("kind", payload.Kind),
			zap.Int("status_code", resp.StatusCode()),
		)
	}
}
