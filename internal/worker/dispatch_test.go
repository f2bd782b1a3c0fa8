package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDispatcher_PerChatOrdering(t *testing.T) {
	d := NewDispatcher(4, 256, zap.NewNop())
	d.Start(context.Background())

	const perChat = 50
	chats := []int64{1, 2, 3, 100, -7}

	var mu sync.Mutex
	seen := make(map[int64][]int)

	var wg sync.WaitGroup
	wg.Add(len(chats) * perChat)
	for _, chatID := range chats {
		for i := 0; i < perChat; i++ {
			chatID, i := chatID, i
			d.Dispatch(chatID, func(_ context.Context) {
				defer wg.Done()
				mu.Lock()
				seen[chatID] = append(seen[chatID], i)
				mu.Unlock()
			})
		}
	}
	wg.Wait()
	d.Stop()

	for _, chatID := range chats {
		got := seen[chatID]
		assert.Len(t, got, perChat)
		for i, v := range got {
			assert.Equal(t, i, v, "chat %d: update %d processed out of order", chatID, i)
		}
	}
}

func TestDispatcher_FullLaneDropsTask(t *testing.T) {
	// Воркеры не запущены: полоса емкостью 1 переполняется второй задачей
	d := NewDispatcher(1, 1, zap.NewNop())

	var ran atomic.Int32
	d.Dispatch(1, func(_ context.Context) { ran.Add(1) })
	d.Dispatch(1, func(_ context.Context) { ran.Add(1) })

	d.Start(context.Background())
	d.Stop()

	assert.Equal(t, int32(1), ran.Load())
}

func TestDispatcher_StopDuringDispatch(t *testing.T) {
	d := NewDispatcher(2, 4, zap.NewNop())
	d.Start(context.Background())

	// Источник обновлений продолжает сыпать задачи, пока идет остановка:
	// Dispatch не должен падать на закрытой полосе
	done := make(chan struct{})
	var producers sync.WaitGroup
	for p := 0; p < 4; p++ {
		producers.Add(1)
		go func(chatID int64) {
			defer producers.Done()
			for {
				select {
				case <-done:
					return
				default:
					d.Dispatch(chatID, func(_ context.Context) {})
				}
			}
		}(int64(p))
	}

	time.Sleep(5 * time.Millisecond)
	d.Stop()
	close(done)
	producers.Wait()
}

func TestDispatcher_DispatchAfterStopIsDropped(t *testing.T) {
	d := NewDispatcher(1, 4, zap.NewNop())
	d.Start(context.Background())
	d.Stop()

	var ran atomic.Int32
	d.Dispatch(1, func(_ context.Context) { ran.Add(1) })

	assert.Zero(t, ran.Load())
}

func TestDispatcher_CanceledContextDoesNotDropQueue(t *testing.T) {
	d := NewDispatcher(2, 16, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		d.Dispatch(int64(i), func(_ context.Context) { ran.Add(1) })
	}

	// Отмена контекста до Stop не должна ронять уже поставленные задачи
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Stop()

	assert.Equal(t, int32(10), ran.Load())
}

func TestDispatcher_StopDrainsQueuedTasks(t *testing.T) {
	d := NewDispatcher(2, 16, zap.NewNop())

	var ran atomic.Int32
	for i := 0; i < 10; i++ {
		d.Dispatch(int64(i), func(_ context.Context) {
			time.Sleep(time.Millisecond)
			ran.Add(1)
		})
	}

	d.Start(context.Background())
	d.Stop()

	assert.Equal(t, int32(10), ran.Load())
}
