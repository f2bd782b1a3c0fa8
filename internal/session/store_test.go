package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_GetCreatesLazily(t *testing.T) {
	store := NewStore()

	sess := store.Get(100)
	require.NotNil(t, sess)
	assert.Equal(t, int64(100), sess.ChatID)
	assert.Empty(t, sess.Step)

	// Повторный Get возвращает ту же сессию
	sess.Step = "AMOUNT_INPUT"
	assert.Equal(t, "AMOUNT_INPUT", store.Get(100).Step)
}

func TestStore_Reset(t *testing.T) {
	store := NewStore()

	store.Get(100).Step = "CARD_INPUT"
	store.Reset(100)

	assert.Empty(t, store.Get(100).Step)
}

func TestStore_ConcurrentAccess(t *testing.T) {
	store := NewStore()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(chatID int64) {
			defer wg.Done()
			sess := store.Get(chatID)
			sess.Step = "PLATFORM_SELECTION"
			store.Reset(chatID)
			store.Get(chatID)
		}(int64(i))
	}
	wg.Wait()
}

func TestStore_NegativeChatID(t *testing.T) {
	store := NewStore()
	sess := store.Get(-42)
	require.NotNil(t, sess)
	assert.Equal(t, int64(-42), sess.ChatID)
}

func TestSession_Stack(t *testing.T) {
	sess := &Session{ChatID: 1}

	sess.Push("PLATFORM_SELECTION")
	sess.Push("USER_ID_INPUT")

	step, ok := sess.Pop()
	require.True(t, ok)
	assert.Equal(t, "USER_ID_INPUT", step)

	step, ok = sess.Pop()
	require.True(t, ok)
	assert.Equal(t, "PLATFORM_SELECTION", step)

	_, ok = sess.Pop()
	assert.False(t, ok)
}

func TestSession_TakeShown(t *testing.T) {
	sess := &Session{ChatID: 1}

	sess.TrackMessage(10)
	sess.TrackMessage(11)

	assert.Equal(t, []int{10, 11}, sess.TakeShown())
	assert.Empty(t, sess.TakeShown())
}

func TestSession_ClearScratch(t *testing.T) {
	sess := &Session{ChatID: 1}
	sess.Push("CARD_INPUT")
	sess.Platform = "X"
	sess.Amount = 50000
	sess.TrackMessage(5)

	sess.ClearScratch()

	assert.Equal(t, 0, sess.StackDepth())
	assert.Empty(t, sess.Platform)
	assert.Zero(t, sess.Amount)
	// Показанные сообщения не очищаются: их еще предстоит удалить
	assert.Equal(t, []int{5}, sess.TakeShown())
}
