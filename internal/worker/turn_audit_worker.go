package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"prepai/internal/model"
	"prepai/internal/platform/logger"
	"prepai/internal/repository"
)

// TurnAuditWorker consumes interview turn events and persists them as audit
// rows, keeping the write out of the interview request path.
type TurnAuditWorker struct {
	conn      *amqp.Connection
	repo      *repository.TurnEventRepository
	queueName string
	log       *logger.Logger

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewTurnAuditWorker(conn *amqp.Connection, repo *repository.TurnEventRepository, queueName string, log *logger.Logger) *TurnAuditWorker {
	return &TurnAuditWorker{
		conn:      conn,
		repo:      repo,
		queueName: queueName,
		log:       log.With("component", "turn_audit_worker"),
	}
}

func (w *TurnAuditWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}

				var event model.TurnEvent
				if err := json.Unmarshal(d.Body, &event); err != nil {
					w.log.Warnw("decode turn event failed", "error", err)
					_ = d.Nack(false, false)
					continue
				}

				if err := w.repo.Create(&event); err != nil {
					w.log.Warnw("persist turn event failed", "error", err, "chat_id", event.ChatID)
					_ = d.Nack(false, false)
					continue
				}

				_ = d.Ack(false)
			}
		}
	}()

	return nil
}

func (w *TurnAuditWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
