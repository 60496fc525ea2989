// Package jobs は認証イベントを非同期に処理し、アクティビティとして記録します。
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/yourusername/fishcare-api/internal/auth"
	"github.com/yourusername/fishcare-api/internal/config"
)

const (
	taskTypeAuthEvent = "auth:event"
	queueAuth         = "auth"
)

// Manager は認証イベントの投入とワーカーを管理します。
type Manager struct {
	client *asynq.Client
	server *asynq.Server
	mux    *asynq.ServeMux
	store  *Store
	logger *slog.Logger
}

var _ auth.EventPublisher = (*Manager)(nil)

// NewManager は Manager を初期化します。
func NewManager(cfg *config.Config, store *Store, logger *slog.Logger) (*Manager, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if store == nil {
		return nil, errors.New("store is nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	opt, err := asynq.ParseRedisURI(cfg.QueueRedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis url: %w", err)
	}

	client := asynq.NewClient(opt)
	server := asynq.NewServer(
		opt,
		asynq.Config{
			Concurrency: 2,
			Queues: map[string]int{
				queueAuth: 1,
			},
		},
	)

	mux := asynq.NewServeMux()
	manager := &Manager{
		client: client,
		server: server,
		mux:    mux,
		store:  store,
		logger: logger,
	}
	mux.HandleFunc(taskTypeAuthEvent, manager.handleEventTask)
	return manager, nil
}

// StartWorkers は Asynq サーバーをバックグラウンドで起動します。
func (m *Manager) StartWorkers() {
	go func() {
		if err := m.server.Run(m.mux); err != nil && !errors.Is(err, asynq.ErrServerClosed) {
			m.logger.Error("asynq server stopped with error", "error", err)
		}
	}()
}

// Shutdown はサーバーとクライアント、アクティビティストアの接続を閉じます。
func (m *Manager) Shutdown(ctx context.Context) error {
	if m.server != nil {
		m.server.Shutdown()
	}
	var errs []error
	if m.client != nil {
		errs = append(errs, m.client.Close())
	}
	errs = append(errs, m.store.Close())
	return errors.Join(errs...)
}

// Publish は認証イベントをキューに投入します。
func (m *Manager) Publish(ctx context.Context, event auth.Event) error {
	task, err := newEventTask(event)
	if err != nil {
		return err
	}
	info, err := m.client.EnqueueContext(ctx, task, asynq.MaxRetry(1))
	if err != nil {
		return err
	}
	m.logger.DebugContext(ctx, "auth event enqueued", "task_id", info.ID, "type", event.Type)
	return nil
}

func newEventTask(event auth.Event) (*asynq.Task, error) {
	if event.Mobile == "" {
		return nil, fmt.Errorf("event mobile is required")
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(taskTypeAuthEvent, body, asynq.Queue(queueAuth)), nil
}

func (m *Manager) handleEventTask(ctx context.Context, task *asynq.Task) error {
	var event auth.Event
	if err := json.Unmarshal(task.Payload(), &event); err != nil {
		// 壊れたペイロードは再試行しても直らない
		return fmt.Errorf("decode auth event: %v: %w", err, asynq.SkipRetry)
	}
	if event.Mobile == "" {
		return fmt.Errorf("missing mobile in payload: %w", asynq.SkipRetry)
	}

	activity, err := m.store.Apply(ctx, event)
	if err != nil {
		return err
	}
	m.logger.InfoContext(ctx, "auth activity recorded",
		"type", event.Type,
		"mobile", activity.Mobile,
		"failed_logins", activity.FailedLogins,
	)
	return nil
}
