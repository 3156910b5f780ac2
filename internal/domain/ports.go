package domain

import (
	"context"
	"time"
)

// OutboxPublisher публикует события из transactional outbox.
type OutboxPublisher interface {
	// Publish передаёт событие наружу; должен быть идемпотентным.
	Publish(event OutboxMessage) error
}

// OutboxRepository позволяет сохранять события для последующей публикации.
type OutboxRepository interface {
	Enqueue(ctx context.Context, msg OutboxMessage) (OutboxMessage, error)
	PullPending(ctx context.Context, limit int) ([]OutboxMessage, error)
	Stats(ctx context.Context) (OutboxStats, error)
	MarkSent(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string) error
	// DeleteProcessedBefore удаляет до limit обработанных (sent/failed) сообщений,
	// обновлённых не позже before, и возвращает число удалённых.
	DeleteProcessedBefore(ctx context.Context, before time.Time, limit int) (int, error)
}

// TimelineRepository хранит события жизненного цикла заказа.
type TimelineRepository interface {
	Append(ctx context.Context, event TimelineEvent) error
	List(ctx context.Context, orderID string) ([]TimelineEvent, error)
}

// OrderOperation задаёт константы операций протокола для метрик/логов.
type OrderOperation string

const (
	OrderOperationAdd    OrderOperation = "add_line_item"
	OrderOperationRemove OrderOperation = "remove_line_item"
	OrderOperationSubmit OrderOperation = "submit"
)
