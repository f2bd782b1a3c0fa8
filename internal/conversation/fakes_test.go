package conversation

import (
	"context"
	"sync"

	"github.com/uzpay/cashdesk-bot/internal/domain"
	"github.com/uzpay/cashdesk-bot/internal/repository/postgres"
)

// Фейки в памяти для прогонки сценариев целиком.

type sentMessage struct {
	ID      int
	Text    string
	Buttons []Button
}

type fakeMessenger struct {
	nextID  int
	sent    []sentMessage
	deleted []int
}

func (m *fakeMessenger) Send(_ int64, text string, buttons []Button) (int, error) {
	m.nextID++
	m.sent = append(m.sent, sentMessage{ID: m.nextID, Text: text, Buttons: buttons})
	return m.nextID, nil
}

func (m *fakeMessenger) Delete(_ int64, messageID int) error {
	m.deleted = append(m.deleted, messageID)
	return nil
}

func (m *fakeMessenger) last() sentMessage {
	if len(m.sent) == 0 {
		return sentMessage{}
	}
	return m.sent[len(m.sent)-1]
}

type fakeRequests struct {
	mu     sync.Mutex
	nextID int64
	rows   map[int64]*domain.Request
}

func newFakeRequests() *fakeRequests {
	return &fakeRequests{rows: make(map[int64]*domain.Request)}
}

func (f *fakeRequests) CreateRequest(_ context.Context, req *domain.Request) (*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	copied := *req
	copied.ID = f.nextID
	f.rows[copied.ID] = &copied
	out := copied
	return &out, nil
}

func (f *fakeRequests) GetRequestByID(_ context.Context, id int64) (*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.rows[id]
	if !ok {
		return nil, postgres.ErrRequestNotFound
	}
	copied := *req
	return &copied, nil
}

func (f *fakeRequests) GetOpenRequest(_ context.Context, chatID int64, platform, platformUserID string, status domain.RequestStatus) (*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var found *domain.Request
	for _, req := range f.rows {
		if req.ChatID != chatID || req.Platform != platform || req.PlatformUserID != platformUserID || req.Status != status {
			continue
		}
		if found == nil || req.ID > found.ID {
			found = req
		}
	}
	if found == nil {
		return nil, postgres.ErrRequestNotFound
	}
	copied := *found
	return &copied, nil
}

func (f *fakeRequests) GetRequestsByStatus(_ context.Context, status domain.RequestStatus) ([]*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Request
	for _, req := range f.rows {
		if req.Status == status {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRequests) GetRequestsByChatID(_ context.Context, chatID int64) ([]*domain.Request, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*domain.Request
	for _, req := range f.rows {
		if req.ChatID == chatID {
			copied := *req
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (f *fakeRequests) UpdateRequestStatus(_ context.Context, id int64, expected, next domain.RequestStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.rows[id]
	if !ok {
		return postgres.ErrRequestNotFound
	}
	if req.Status != expected {
		return postgres.ErrWrongStatus
	}
	req.Status = next
	return nil
}

func (f *fakeRequests) SetUniqueAmount(_ context.Context, id int64, uniqueAmount float64, adminCardID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.rows[id]
	if !ok {
		return postgres.ErrRequestNotFound
	}
	req.UniqueAmount = uniqueAmount
	req.AdminCardID = &adminCardID
	return nil
}

func (f *fakeRequests) SetPartnerResult(_ context.Context, id int64, partnerTxID, billID, payURL *string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	req, ok := f.rows[id]
	if !ok {
		return postgres.ErrRequestNotFound
	}
	req.PartnerTxID = partnerTxID
	req.BillID = billID
	req.PayURL = payURL
	return nil
}

func (f *fakeRequests) byID(id int64) *domain.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[id]
}

type fakeBalances struct {
	mu       sync.Mutex
	balances map[int64]*domain.Balance
	refs     map[int64]int64
}

func newFakeBalances() *fakeBalances {
	return &fakeBalances{
		balances: make(map[int64]*domain.Balance),
		refs:     make(map[int64]int64),
	}
}

func (f *fakeBalances) get(chatID int64) *domain.Balance {
	b, ok := f.balances[chatID]
	if !ok {
		b = &domain.Balance{ChatID: chatID}
		f.balances[chatID] = b
	}
	return b
}

func (f *fakeBalances) GetBalance(_ context.Context, chatID int64) (*domain.Balance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	copied := *f.get(chatID)
	return &copied, nil
}

func (f *fakeBalances) CreditTickets(_ context.Context, chatID int64, tickets int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(chatID).Tickets += tickets
	return nil
}

func (f *fakeBalances) SpendTickets(_ context.Context, chatID int64, tickets int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.get(chatID)
	if b.Tickets < tickets {
		return postgres.ErrInsufficientTickets
	}
	b.Tickets -= tickets
	return nil
}

func (f *fakeBalances) CreditAmount(_ context.Context, chatID int64, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.get(chatID).Amount += amount
	return nil
}

func (f *fakeBalances) SpendAmount(_ context.Context, chatID int64, amount float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	b := f.get(chatID)
	if b.Amount < amount {
		return postgres.ErrInsufficientFunds
	}
	b.Amount -= amount
	return nil
}

func (f *fakeBalances) GetReferrer(_ context.Context, chatID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ref, ok := f.refs[chatID]
	if !ok {
		return 0, postgres.ErrReferrerNotFound
	}
	return ref, nil
}

func (f *fakeBalances) SetReferrer(_ context.Context, chatID, referrerChatID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.refs[chatID]; !ok {
		f.refs[chatID] = referrerChatID
	}
	return nil
}

type fakePlatforms struct {
	platforms map[string]*domain.Platform
}

func (f *fakePlatforms) GetPlatformByName(_ context.Context, name string) (*domain.Platform, error) {
	p, ok := f.platforms[name]
	if !ok {
		return nil, postgres.ErrPlatformNotFound
	}
	return p, nil
}

func (f *fakePlatforms) GetActivePlatforms(_ context.Context) ([]*domain.Platform, error) {
	var out []*domain.Platform
	for _, p := range f.platforms {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakePlatforms) CreatePlatform(_ context.Context, p *domain.Platform) (*domain.Platform, error) {
	f.platforms[p.Name] = p
	return p, nil
}

func (f *fakePlatforms) SetPlatformActive(_ context.Context, name string, active bool) error {
	p, ok := f.platforms[name]
	if !ok {
		return postgres.ErrPlatformNotFound
	}
	p.Active = active
	return nil
}

type fakeCards struct {
	active *domain.CollectionCard
}

func (f *fakeCards) GetActiveCard(_ context.Context) (*domain.CollectionCard, error) {
	if f.active == nil {
		return nil, postgres.ErrNoActiveCard
	}
	return f.active, nil
}

func (f *fakeCards) GetCards(_ context.Context) ([]*domain.CollectionCard, error) {
	if f.active == nil {
		return nil, nil
	}
	return []*domain.CollectionCard{f.active}, nil
}

func (f *fakeCards) CreateCard(_ context.Context, number, owner string) (*domain.CollectionCard, error) {
	f.active = &domain.CollectionCard{ID: 1, Number: number, Owner: owner, Active: true}
	return f.active, nil
}

func (f *fakeCards) SetCardActive(_ context.Context, _ int64, _ bool) error {
	return nil
}

type fakeGateway struct {
	lookupUser   *domain.PartnerUser
	lookupErr    error
	depositErr   error
	depositCalls int
	payoutCalls  int
	payoutGross  float64
	payoutErr    error
}

func (f *fakeGateway) LookupUser(_ context.Context, _ *domain.Platform, userID string) (*domain.PartnerUser, error) {
	if f.lookupErr != nil {
		return nil, f.lookupErr
	}
	if f.lookupUser != nil {
		return f.lookupUser, nil
	}
	return &domain.PartnerUser{UserID: userID, FullName: "Test User"}, nil
}

func (f *fakeGateway) Deposit(_ context.Context, _ *domain.Platform, _ string, _ float64, _ string) error {
	f.depositCalls++
	return f.depositErr
}

func (f *fakeGateway) Payout(_ context.Context, _ *domain.Platform, _, _ string) (float64, error) {
	f.payoutCalls++
	if f.payoutErr != nil {
		return 0, f.payoutErr
	}
	return f.payoutGross, nil
}

type fakeIssuer struct {
	transfer *domain.Transfer
	err      error
}

func (f *fakeIssuer) FindIncomingTransfer(_ context.Context, _ string, _ float64) (*domain.Transfer, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.transfer, nil
}
