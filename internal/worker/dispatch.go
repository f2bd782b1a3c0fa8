// Package worker обслуживает входящие обновления разговора.
// Обновления одного пользователя должны обрабатываться строго в порядке
// прихода: стек навигации и черновые поля сессии не переживают
// конкурентную мутацию. Обновления разных пользователей независимы.
package worker

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Task - единица работы: одно обновление разговора
type Task func(ctx context.Context)

// Dispatcher распределяет задачи по полосам, хэшируя chat id: все
// задачи одного чата попадают в одну полосу и выполняются одним
// воркером последовательно. Полос меньше, чем чатов, поэтому соседство
// в полосе лишь добавляет очередность, но не ломает порядок внутри чата.
type Dispatcher struct {
	lanes  []chan Task
	logger *zap.Logger
	wg     sync.WaitGroup

	mu      sync.Mutex
	stopped bool
}

// NewDispatcher создает новый Dispatcher
func NewDispatcher(lanes, queueSize int, logger *zap.Logger) *Dispatcher {
	d := &Dispatcher{
		lanes:  make([]chan Task, lanes),
		logger: logger,
	}
	for i := range d.lanes {
		d.lanes[i] = make(chan Task, queueSize)
	}
	return d
}

// Start запускает воркер на каждую полосу
func (d *Dispatcher) Start(ctx context.Context) {
	for i := range d.lanes {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop закрывает полосы и дожидается завершения воркеров.
// Уже поставленные задачи дорабатываются. Единственный сигнал
// остановки воркеров - закрытие полосы: отмена контекста не должна
// ронять очередь на полпути.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	for _, lane := range d.lanes {
		close(lane)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

// Dispatch ставит задачу в полосу чата. Переполненная полоса роняет
// задачу: пользователь повторит действие, а забитая очередь не должна
// тормозить остальных. После Stop задачи молча отбрасываются: источник
// обновлений может дорабатывать, пока приложение гасится.
func (d *Dispatcher) Dispatch(chatID int64, task Task) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		d.logger.Debug("dispatcher stopped, dropping update", zap.Int64("chat_id", chatID))
		return
	}

	lane := d.laneFor(chatID)
	select {
	case lane <- task:
	default:
		d.logger.Warn("lane is full, dropping update", zap.Int64("chat_id", chatID))
	}
}

func (d *Dispatcher) laneFor(chatID int64) chan Task {
	idx := chatID % int64(len(d.lanes))
	if idx < 0 {
		idx += int64(len(d.lanes))
	}
	return d.lanes[idx]
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()

	d.logger.Debug("dispatch worker started", zap.Int("lane", id))

	for task := range d.lanes[id] {
		task(ctx)
	}

	d.logger.Debug("dispatch worker stopping", zap.Int("lane", id))
}
