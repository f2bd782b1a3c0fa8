// Package session хранит состояние разговора по chat id.
// Состояние живет в памяти процесса: при рестарте пользователь просто
// начинает сценарий заново.
package session

import "sync"

// Session представляет состояние разговора одного пользователя.
// Мутируется только из воркера, обслуживающего этот chat id, поэтому
// собственной блокировки не несет.
type Session struct {
	ChatID int64

	// Step - тег текущего состояния сценария
	Step string

	// stack - стек пройденных состояний для кнопки "Назад"
	stack []string

	// Flow - активный сценарий: topup, withdraw или bonus
	Flow string

	// Поля, собираемые по шагам сценария
	Platform       string
	PlatformUserID string
	FullName       string
	CardNumber     string
	Code           string
	Amount         int64

	// shown - id показанных сообщений, подлежащих удалению перед
	// следующим приглашением
	shown []int
}

// Push запоминает состояние в стеке навигации
func (s *Session) Push(step string) {
	s.stack = append(s.stack, step)
}

// Pop снимает последнее состояние со стека навигации.
// Пустой стек означает возврат в главное меню.
func (s *Session) Pop() (string, bool) {
	if len(s.stack) == 0 {
		return "", false
	}
	step := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return step, true
}

// StackDepth возвращает глубину стека навигации
func (s *Session) StackDepth() int {
	return len(s.stack)
}

// TrackMessage запоминает id показанного сообщения
func (s *Session) TrackMessage(messageID int) {
	s.shown = append(s.shown, messageID)
}

// TakeShown возвращает id показанных сообщений и очищает список
func (s *Session) TakeShown() []int {
	shown := s.shown
	s.shown = nil
	return shown
}

// ClearScratch сбрасывает собранные поля и стек, не трогая список
// показанных сообщений
func (s *Session) ClearScratch() {
	s.stack = nil
	s.Flow = ""
	s.Platform = ""
	s.PlatformUserID = ""
	s.FullName = ""
	s.CardNumber = ""
	s.Code = ""
	s.Amount = 0
}

const stripeCount = 64

type stripe struct {
	mu       sync.Mutex
	sessions map[int64]*Session
}

// Store - потокобезопасное хранилище сессий с шардированием блокировок
// по chat id вместо одного глобального мьютекса.
type Store struct {
	stripes [stripeCount]stripe
}

// NewStore создает новое хранилище сессий
func NewStore() *Store {
	s := &Store{}
	for i := range s.stripes {
		s.stripes[i].sessions = make(map[int64]*Session)
	}
	return s
}

func (s *Store) stripeFor(chatID int64) *stripe {
	idx := chatID % stripeCount
	if idx < 0 {
		idx += stripeCount
	}
	return &s.stripes[idx]
}

// Get возвращает сессию пользователя, создавая ее при первом обращении
func (s *Store) Get(chatID int64) *Session {
	st := s.stripeFor(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()

	sess, ok := st.sessions[chatID]
	if !ok {
		sess = &Session{ChatID: chatID}
		st.sessions[chatID] = sess
	}
	return sess
}

// Reset удаляет сессию пользователя
func (s *Store) Reset(chatID int64) {
	st := s.stripeFor(chatID)
	st.mu.Lock()
	defer st.mu.Unlock()
	delete(st.sessions, chatID)
}
