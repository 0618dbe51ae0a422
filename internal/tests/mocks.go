package tests

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"taxibot/internal/domain"
	"taxibot/internal/gateway"
	"taxibot/internal/redis"
	"taxibot/internal/repository"
	"taxibot/internal/service"
)

// testLogger returns a logger that discards everything.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// ──────────────────────────────────────────────
// MOCK RIDER REPOSITORY
// ──────────────────────────────────────────────

// MockRiderRepository is a mock implementation of RiderRepository.
type MockRiderRepository struct {
	mu     sync.RWMutex
	riders map[int64]*domain.Rider

	// Counters for verification
	CreateCallCount int32

	// Error injection
	CreateError error
}

// NewMockRiderRepository creates a new mock rider repository.
func NewMockRiderRepository() *MockRiderRepository {
	return &MockRiderRepository{
		riders: make(map[int64]*domain.Rider),
	}
}

// AddRider adds a rider to the mock repository.
func (m *MockRiderRepository) AddRider(rider *domain.Rider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ChatID] = rider
}

func (m *MockRiderRepository) Create(ctx context.Context, rider *domain.Rider) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.riders[rider.ChatID] = rider
	return nil
}

func (m *MockRiderRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.Rider, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rider, ok := m.riders[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *rider
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[int64]*domain.Driver

	GetCallCount int32
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[int64]*domain.Driver),
	}
}

// AddDriver adds a driver to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.ChatID] = driver
}

func (m *MockDriverRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.Driver, error) {
	atomic.AddInt32(&m.GetCallCount, 1)
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

// ──────────────────────────────────────────────
// MOCK ORDER REPOSITORY
// ──────────────────────────────────────────────

// MockOrderRepository is a mock implementation of OrderRepository. Claim and
// pickup writes are serialized under the mutex so their conditional
// semantics hold under concurrent callers.
type MockOrderRepository struct {
	mu     sync.Mutex
	orders map[string]*domain.Order

	// Counters for verification
	CreateCallCount int32
	UpdateCallCount int32
	ClaimCallCount  int32

	// Error injection
	CreateError error
	UpdateError error
	ClaimError  error
}

// NewMockOrderRepository creates a new mock order repository.
func NewMockOrderRepository() *MockOrderRepository {
	return &MockOrderRepository{
		orders: make(map[string]*domain.Order),
	}
}

// AddOrder adds an order to the mock repository.
func (m *MockOrderRepository) AddOrder(order *domain.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
}

func (m *MockOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders[order.ID] = &copy
	return nil
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *order
	return &copy, nil
}

func (m *MockOrderRepository) FindActiveOrder(ctx context.Context, riderChatID int64) (*domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var matches []*domain.Order
	for _, o := range m.orders {
		if o.RiderChatID == riderChatID {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return nil, repository.ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	copy := *matches[0]
	return &copy, nil
}

func (m *MockOrderRepository) Update(ctx context.Context, order *domain.Order) error {
	atomic.AddInt32(&m.UpdateCallCount, 1)
	if m.UpdateError != nil {
		return m.UpdateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.orders[order.ID]
	if !ok {
		return repository.ErrNotFound
	}
	existing.Direction = order.Direction
	existing.PartySize = order.PartySize
	existing.DepartureTime = order.DepartureTime
	existing.Description = order.Description
	existing.Status = order.Status
	return nil
}

func (m *MockOrderRepository) SetPickupLocation(ctx context.Context, id, link string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return false, repository.ErrNotFound
	}
	if order.PickupLink != "" {
		return false, nil
	}
	order.PickupLink = link
	return true, nil
}

func (m *MockOrderRepository) AtomicClaim(ctx context.Context, id string, driverChatID int64) (bool, error) {
	atomic.AddInt32(&m.ClaimCallCount, 1)
	if m.ClaimError != nil {
		return false, m.ClaimError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	order, ok := m.orders[id]
	if !ok {
		return false, nil
	}
	if order.Status != domain.OrderStatusBroadcast || order.DriverChatID != 0 {
		return false, nil
	}
	order.DriverChatID = driverChatID
	order.Assigned = true
	order.Status = domain.OrderStatusAssigned
	return true, nil
}

// ──────────────────────────────────────────────
// MOCK GROUP REPOSITORY
// ──────────────────────────────────────────────

// MockGroupRepository is a mock implementation of GroupRepository.
type MockGroupRepository struct {
	mu     sync.RWMutex
	groups map[int64]*domain.GroupChannel

	CreateCallCount int32
	CreateError     error
	GetAllError     error
}

// NewMockGroupRepository creates a new mock group repository.
func NewMockGroupRepository() *MockGroupRepository {
	return &MockGroupRepository{
		groups: make(map[int64]*domain.GroupChannel),
	}
}

// AddGroup adds a group channel to the mock repository.
func (m *MockGroupRepository) AddGroup(group *domain.GroupChannel) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group.ChatID] = group
}

func (m *MockGroupRepository) Create(ctx context.Context, group *domain.GroupChannel) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[group.ChatID] = group
	return nil
}

func (m *MockGroupRepository) GetByChatID(ctx context.Context, chatID int64) (*domain.GroupChannel, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	group, ok := m.groups[chatID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *group
	return &copy, nil
}

func (m *MockGroupRepository) GetAll(ctx context.Context) ([]*domain.GroupChannel, error) {
	if m.GetAllError != nil {
		return nil, m.GetAllError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.GroupChannel, 0, len(m.groups))
	for _, g := range m.groups {
		copy := *g
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ChatID < result[j].ChatID })
	return result, nil
}

// ──────────────────────────────────────────────
// MOCK SESSION STORE
// ──────────────────────────────────────────────

// MockSessionStore is an in-memory implementation of SessionStoreInterface.
type MockSessionStore struct {
	mu       sync.RWMutex
	sessions map[int64]*redis.Session

	SaveCallCount   int32
	DeleteCallCount int32

	SaveError error
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{
		sessions: make(map[int64]*redis.Session),
	}
}

func (m *MockSessionStore) Get(ctx context.Context, chatID int64) (*redis.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[chatID]
	if !ok {
		return nil, nil
	}
	copy := *session
	return &copy, nil
}

func (m *MockSessionStore) Save(ctx context.Context, session *redis.Session) error {
	atomic.AddInt32(&m.SaveCallCount, 1)
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session.UpdatedAt = time.Now()
	copy := *session
	m.sessions[session.ChatID] = &copy
	return nil
}

func (m *MockSessionStore) Delete(ctx context.Context, chatID int64) error {
	atomic.AddInt32(&m.DeleteCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, chatID)
	return nil
}

// ──────────────────────────────────────────────
// MOCK GUARD STORE
// ──────────────────────────────────────────────

// MockGuardStore is an in-memory implementation of GuardStoreInterface.
type MockGuardStore struct {
	mu       sync.Mutex
	acquired map[string]bool

	AcquireError error
}

// NewMockGuardStore creates a new mock guard store.
func NewMockGuardStore() *MockGuardStore {
	return &MockGuardStore{
		acquired: make(map[string]bool),
	}
}

func (m *MockGuardStore) AcquireBroadcastOnce(ctx context.Context, orderID string, ttl time.Duration) (bool, error) {
	if m.AcquireError != nil {
		return false, m.AcquireError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.acquired[orderID] {
		return false, nil
	}
	m.acquired[orderID] = true
	return true, nil
}

func (m *MockGuardStore) Release(ctx context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.acquired, orderID)
	return nil
}

// Held reports whether the marker for an order is currently set.
func (m *MockGuardStore) Held(orderID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.acquired[orderID]
}

// ──────────────────────────────────────────────
// MOCK MESSENGER
// ──────────────────────────────────────────────

// SentMessage records one outbound message captured by MockMessenger.
type SentMessage struct {
	ChatID  int64
	Body    string
	Buttons []gateway.Button
	Contact bool
}

// MockMessenger is a mock implementation of gateway.Messenger. It records
// every outbound message and can fail sends to selected chats.
type MockMessenger struct {
	mu            sync.Mutex
	sent          []SentMessage
	deleted       [][2]int64
	answered      []string
	nextMessageID int64

	// Error injection
	FailChats map[int64]error
	AnswerErr error
	DeleteErr error
}

// NewMockMessenger creates a new mock messenger.
func NewMockMessenger() *MockMessenger {
	return &MockMessenger{
		FailChats: make(map[int64]error),
	}
}

func (m *MockMessenger) SendText(ctx context.Context, chatID int64, body string, buttons ...gateway.Button) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailChats[chatID]; ok {
		return 0, err
	}
	m.nextMessageID++
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Body: body, Buttons: buttons})
	return m.nextMessageID, nil
}

func (m *MockMessenger) SendContactRequest(ctx context.Context, chatID int64, body string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.FailChats[chatID]; ok {
		return 0, err
	}
	m.nextMessageID++
	m.sent = append(m.sent, SentMessage{ChatID: chatID, Body: body, Contact: true})
	return m.nextMessageID, nil
}

func (m *MockMessenger) DeleteMessage(ctx context.Context, chatID int64, messageID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DeleteErr != nil {
		return m.DeleteErr
	}
	m.deleted = append(m.deleted, [2]int64{chatID, messageID})
	return nil
}

func (m *MockMessenger) AnswerAction(ctx context.Context, actionID string, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.AnswerErr != nil {
		return m.AnswerErr
	}
	m.answered = append(m.answered, actionID)
	return nil
}

// Sent returns a snapshot of all recorded messages.
func (m *MockMessenger) Sent() []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMessage, len(m.sent))
	copy(out, m.sent)
	return out
}

// SentTo returns the messages delivered to one chat.
func (m *MockMessenger) SentTo(chatID int64) []SentMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SentMessage
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

// ──────────────────────────────────────────────
// MOCK BROADCASTER
// ──────────────────────────────────────────────

// MockBroadcaster is a mock implementation of BroadcasterInterface.
type MockBroadcaster struct {
	mu     sync.Mutex
	orders []*domain.Order

	CallCount int32

	// Outcomes and BroadcastError are returned verbatim.
	Outcomes       []service.DeliveryOutcome
	BroadcastError error
}

// NewMockBroadcaster creates a new mock broadcaster.
func NewMockBroadcaster() *MockBroadcaster {
	return &MockBroadcaster{}
}

func (m *MockBroadcaster) Broadcast(ctx context.Context, order *domain.Order, rider *domain.Rider) ([]service.DeliveryOutcome, error) {
	atomic.AddInt32(&m.CallCount, 1)
	if m.BroadcastError != nil {
		return nil, m.BroadcastError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *order
	m.orders = append(m.orders, &copy)
	return m.Outcomes, nil
}

// LastOrder returns the most recently broadcast order, or nil.
func (m *MockBroadcaster) LastOrder() *domain.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.orders) == 0 {
		return nil
	}
	return m.orders[len(m.orders)-1]
}
