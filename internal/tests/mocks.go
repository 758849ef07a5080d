package tests

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"safedrive/internal/domain"
	"safedrive/internal/mpesa"
	"safedrive/internal/repository"
	"safedrive/internal/service"
)

var (
	_ repository.TripRepository     = (*MockTripRepository)(nil)
	_ repository.PaymentRepository  = (*MockPaymentRepository)(nil)
	_ repository.DriverRepository   = (*MockDriverRepository)(nil)
	_ repository.UserRepository     = (*MockUserRepository)(nil)
	_ repository.SettingsRepository = (*MockSettingsRepository)(nil)
	_ service.PaymentGateway        = (*MockGateway)(nil)
	_ service.Notifier              = (*MockNotifier)(nil)
)

// ──────────────────────────────────────────────
// MOCK TRIP REPOSITORY
// ──────────────────────────────────────────────

// MockTripRepository is a mock implementation of TripRepository. The
// conditional transition methods mirror the production semantics: they
// check the current state under the lock and report whether they applied.
type MockTripRepository struct {
	mu    sync.RWMutex
	trips map[string]*domain.Trip

	// Counters for verification
	CreateCallCount   int32
	AcceptCallCount   int32
	CompleteCallCount int32

	// Error injection
	CreateError   error
	AcceptError   error
	CompleteError error
}

// NewMockTripRepository creates a new mock trip repository.
func NewMockTripRepository() *MockTripRepository {
	return &MockTripRepository{
		trips: make(map[string]*domain.Trip),
	}
}

// AddTrip adds a trip to the mock repository.
func (m *MockTripRepository) AddTrip(trip *domain.Trip) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
}

// GetTrip returns a trip for test assertions.
func (m *MockTripRepository) GetTrip(id string) *domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.trips[id]
}

// CountTrips returns the number of stored trips.
func (m *MockTripRepository) CountTrips() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.trips)
}

func (m *MockTripRepository) Create(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trips[trip.ID] = trip
	return nil
}

func (m *MockTripRepository) GetByID(ctx context.Context, id string) (*domain.Trip, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	trip, ok := m.trips[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	// Return a copy to avoid mutation issues.
	copy := *trip
	return &copy, nil
}

func (m *MockTripRepository) ListByPassenger(ctx context.Context, passengerID string, f repository.TripFilter) ([]*domain.Trip, error) {
	return m.list(func(t *domain.Trip) bool {
		return t.PassengerID == passengerID && matchesFilter(t, f)
	}), nil
}

func (m *MockTripRepository) ListByDriver(ctx context.Context, driverID string, f repository.TripFilter) ([]*domain.Trip, error) {
	return m.list(func(t *domain.Trip) bool {
		return t.DriverID == driverID && matchesFilter(t, f)
	}), nil
}

func (m *MockTripRepository) ListAll(ctx context.Context, f repository.TripFilter) ([]*domain.Trip, error) {
	return m.list(func(t *domain.Trip) bool {
		return matchesFilter(t, f)
	}), nil
}

func (m *MockTripRepository) ListAvailable(ctx context.Context, limit int) ([]*domain.Trip, error) {
	trips := m.list(func(t *domain.Trip) bool {
		return t.Status == domain.TripStatusRequested && t.DriverID == ""
	})
	if limit > 0 && len(trips) > limit {
		trips = trips[:limit]
	}
	return trips, nil
}

func (m *MockTripRepository) Accept(ctx context.Context, tripID, driverID string, at time.Time) (bool, error) {
	atomic.AddInt32(&m.AcceptCallCount, 1)
	if m.AcceptError != nil {
		return false, m.AcceptError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok || trip.Status != domain.TripStatusRequested {
		return false, nil
	}
	trip.DriverID = driverID
	trip.Status = domain.TripStatusAccepted
	trip.AcceptedAt = at
	return true, nil
}

func (m *MockTripRepository) StartDriving(ctx context.Context, tripID, driverID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok || trip.Status != domain.TripStatusAccepted || trip.DriverID != driverID {
		return false, nil
	}
	trip.Status = domain.TripStatusDriving
	trip.StartedAt = at
	return true, nil
}

func (m *MockTripRepository) Complete(ctx context.Context, tripID, driverID string, at time.Time, ps domain.PaymentStatus) (bool, error) {
	atomic.AddInt32(&m.CompleteCallCount, 1)
	if m.CompleteError != nil {
		return false, m.CompleteError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok || trip.DriverID != driverID {
		return false, nil
	}
	if trip.Status != domain.TripStatusAccepted && trip.Status != domain.TripStatusDriving {
		return false, nil
	}
	trip.Status = domain.TripStatusCompleted
	trip.CompletedAt = at
	trip.PaymentStatus = ps
	return true, nil
}

func (m *MockTripRepository) Cancel(ctx context.Context, tripID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok || trip.Terminal() {
		return false, nil
	}
	trip.Status = domain.TripStatusCancelled
	trip.CancelledAt = at
	return true, nil
}

func (m *MockTripRepository) SetRating(ctx context.Context, tripID string, rating int, feedback string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok || trip.Rating != 0 {
		return false, nil
	}
	trip.Rating = rating
	trip.Feedback = feedback
	return true, nil
}

func (m *MockTripRepository) SetPaymentStatusIfPending(ctx context.Context, tripID string, ps domain.PaymentStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	trip, ok := m.trips[tripID]
	if !ok || trip.PaymentStatus != domain.PaymentStatusPending {
		return false, nil
	}
	trip.PaymentStatus = ps
	return true, nil
}

func (m *MockTripRepository) AverageDriverRating(ctx context.Context, driverID string) (float64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var sum, n int
	for _, t := range m.trips {
		if t.DriverID == driverID && t.Rating > 0 {
			sum += t.Rating
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return float64(sum) / float64(n), true, nil
}

func (m *MockTripRepository) list(keep func(*domain.Trip) bool) []*domain.Trip {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Trip, 0)
	for _, t := range m.trips {
		if keep(t) {
			copy := *t
			result = append(result, &copy)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result
}

func matchesFilter(t *domain.Trip, f repository.TripFilter) bool {
	return f.Status == "" || t.Status == f.Status
}

// ──────────────────────────────────────────────
// MOCK PAYMENT REPOSITORY
// ──────────────────────────────────────────────

// MockPaymentRepository is a mock implementation of PaymentRepository.
type MockPaymentRepository struct {
	mu       sync.RWMutex
	payments map[string]*domain.Payment

	// Counters for verification
	CreateCallCount     int32
	MarkPaidCallCount   int32
	MarkFailedCallCount int32

	// Error injection
	CreateError   error
	MarkPaidError error
}

// NewMockPaymentRepository creates a new mock payment repository.
func NewMockPaymentRepository() *MockPaymentRepository {
	return &MockPaymentRepository{
		payments: make(map[string]*domain.Payment),
	}
}

// AddPayment adds a payment to the mock repository.
func (m *MockPaymentRepository) AddPayment(payment *domain.Payment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payments[payment.ID] = payment
}

// GetPayment returns a payment for test assertions.
func (m *MockPaymentRepository) GetPayment(id string) *domain.Payment {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.payments[id]
}

// CountPayments returns the number of stored payment rows.
func (m *MockPaymentRepository) CountPayments() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.payments)
}

func (m *MockPaymentRepository) CreateIfNoActive(ctx context.Context, payment *domain.Payment) (bool, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return false, m.CreateError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.payments {
		if p.TripID == payment.TripID && p.Status != domain.PaymentStatusFailed {
			return false, nil
		}
	}
	m.payments[payment.ID] = payment
	return true, nil
}

func (m *MockPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	payment, ok := m.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *payment
	return &copy, nil
}

func (m *MockPaymentRepository) GetByCheckoutRequestID(ctx context.Context, checkoutRequestID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.CheckoutRequestID == checkoutRequestID {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) GetActiveByTripID(ctx context.Context, tripID string) (*domain.Payment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, p := range m.payments {
		if p.TripID == tripID && p.Status != domain.PaymentStatusFailed {
			copy := *p
			return &copy, nil
		}
	}
	return nil, nil
}

func (m *MockPaymentRepository) ListByPassenger(ctx context.Context, passengerID string, limit int) ([]*domain.Payment, error) {
	// The mock has no trip join; tests seed what they need and assert
	// through GetPayment instead.
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Payment, 0, len(m.payments))
	for _, p := range m.payments {
		copy := *p
		result = append(result, &copy)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (m *MockPaymentRepository) SetCheckoutRequestID(ctx context.Context, id, checkoutRequestID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.CheckoutRequestID = checkoutRequestID
	return nil
}

func (m *MockPaymentRepository) UpdatePhone(ctx context.Context, id, phone string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok {
		return repository.ErrNotFound
	}
	payment.Phone = phone
	return nil
}

func (m *MockPaymentRepository) MarkPaidIfPending(ctx context.Context, id, receiptNumber string) (bool, error) {
	atomic.AddInt32(&m.MarkPaidCallCount, 1)
	if m.MarkPaidError != nil {
		return false, m.MarkPaidError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok || payment.Status != domain.PaymentStatusPending {
		return false, nil
	}
	payment.Status = domain.PaymentStatusPaid
	payment.MpesaReceiptNumber = receiptNumber
	return true, nil
}

func (m *MockPaymentRepository) SetReceiptIfMissing(ctx context.Context, id, receiptNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok || payment.Status != domain.PaymentStatusPaid || payment.MpesaReceiptNumber != "" {
		return false, nil
	}
	payment.MpesaReceiptNumber = receiptNumber
	return true, nil
}

func (m *MockPaymentRepository) MarkFailedIfPending(ctx context.Context, id string) (bool, error) {
	atomic.AddInt32(&m.MarkFailedCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	payment, ok := m.payments[id]
	if !ok || payment.Status != domain.PaymentStatusPending {
		return false, nil
	}
	payment.Status = domain.PaymentStatusFailed
	return true, nil
}

// ──────────────────────────────────────────────
// MOCK DRIVER REPOSITORY
// ──────────────────────────────────────────────

// MockDriverRepository is a mock implementation of DriverRepository.
type MockDriverRepository struct {
	mu      sync.RWMutex
	drivers map[string]*domain.Driver // keyed by user ID

	// Counters for verification
	CreditTripCallCount int32

	// Error injection
	CreditTripError error
}

// NewMockDriverRepository creates a new mock driver repository.
func NewMockDriverRepository() *MockDriverRepository {
	return &MockDriverRepository{
		drivers: make(map[string]*domain.Driver),
	}
}

// AddDriver adds a driver profile to the mock repository.
func (m *MockDriverRepository) AddDriver(driver *domain.Driver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.UserID] = driver
}

// GetDriver returns a driver profile for test assertions.
func (m *MockDriverRepository) GetDriver(userID string) *domain.Driver {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.drivers[userID]
}

func (m *MockDriverRepository) Create(ctx context.Context, driver *domain.Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drivers[driver.UserID] = driver
	return nil
}

func (m *MockDriverRepository) GetByUserID(ctx context.Context, userID string) (*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	driver, ok := m.drivers[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *driver
	return &copy, nil
}

func (m *MockDriverRepository) GetAll(ctx context.Context) ([]*domain.Driver, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		copy := *d
		result = append(result, &copy)
	}
	return result, nil
}

func (m *MockDriverRepository) CreditTrip(ctx context.Context, userID string, fare float64) error {
	atomic.AddInt32(&m.CreditTripCallCount, 1)
	if m.CreditTripError != nil {
		return m.CreditTripError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[userID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.TotalTrips++
	driver.TotalEarnings += fare
	return nil
}

func (m *MockDriverRepository) UpdateRating(ctx context.Context, userID string, rating float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	driver, ok := m.drivers[userID]
	if !ok {
		return repository.ErrNotFound
	}
	driver.Rating = rating
	return nil
}

// ──────────────────────────────────────────────
// MOCK USER REPOSITORY
// ──────────────────────────────────────────────

// MockUserRepository is a mock implementation of UserRepository.
type MockUserRepository struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMockUserRepository creates a new mock user repository.
func NewMockUserRepository() *MockUserRepository {
	return &MockUserRepository{
		users: make(map[string]*domain.User),
	}
}

// AddUser adds a user to the mock repository.
func (m *MockUserRepository) AddUser(user *domain.User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
}

func (m *MockUserRepository) Create(ctx context.Context, user *domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[user.ID] = user
	return nil
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	user, ok := m.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *user
	return &copy, nil
}

func (m *MockUserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, u := range m.users {
		if u.Email == email {
			copy := *u
			return &copy, nil
		}
	}
	return nil, repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK SETTINGS REPOSITORY
// ──────────────────────────────────────────────

// MockSettingsRepository is a mock implementation of SettingsRepository.
type MockSettingsRepository struct {
	mu       sync.RWMutex
	settings map[string]*domain.Setting
}

// NewMockSettingsRepository creates a new mock settings repository.
func NewMockSettingsRepository() *MockSettingsRepository {
	return &MockSettingsRepository{
		settings: make(map[string]*domain.Setting),
	}
}

func (m *MockSettingsRepository) Get(ctx context.Context, key string) (*domain.Setting, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	setting, ok := m.settings[key]
	if !ok {
		return nil, nil
	}
	copy := *setting
	return &copy, nil
}

func (m *MockSettingsRepository) Upsert(ctx context.Context, setting *domain.Setting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[setting.Key] = setting
	return nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT GATEWAY
// ──────────────────────────────────────────────

// MockGateway is a mock implementation of the payment gateway.
type MockGateway struct {
	mu sync.Mutex

	// Counters for verification
	PushCallCount  int32
	QueryCallCount int32

	// Configured behaviour
	CheckoutID  string
	PushError   error
	QueryResult *mpesa.QueryResult
	QueryError  error
}

// NewMockGateway creates a mock gateway that accepts pushes.
func NewMockGateway() *MockGateway {
	return &MockGateway{CheckoutID: "ws_CO_test_1"}
}

func (m *MockGateway) InitiatePush(ctx context.Context, phone string, amount float64, reference, description string) (string, error) {
	atomic.AddInt32(&m.PushCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PushError != nil {
		return "", m.PushError
	}
	return m.CheckoutID, nil
}

func (m *MockGateway) QueryStatus(ctx context.Context, checkoutRequestID string) (*mpesa.QueryResult, error) {
	atomic.AddInt32(&m.QueryCallCount, 1)
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.QueryError != nil {
		return nil, m.QueryError
	}
	if m.QueryResult != nil {
		return m.QueryResult, nil
	}
	return &mpesa.QueryResult{Outcome: mpesa.OutcomePending}, nil
}

// ──────────────────────────────────────────────
// MOCK NOTIFIER
// ──────────────────────────────────────────────

// MockNotifier counts notifications without delivering anything.
type MockNotifier struct {
	mu sync.Mutex

	TripAcceptedCount    int32
	TripCompletedCount   int32
	TripCancelledCount   int32
	PaymentReceivedCount int32
	PaymentFailedCount   int32

	// Recipient of the most recent payment notification.
	LastPaymentRecipient string
}

// NewMockNotifier creates a new mock notifier.
func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) NotifyTripAccepted(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.TripAcceptedCount, 1)
	return nil
}

func (m *MockNotifier) NotifyTripCompleted(ctx context.Context, trip *domain.Trip) error {
	atomic.AddInt32(&m.TripCompletedCount, 1)
	return nil
}

func (m *MockNotifier) NotifyTripCancelled(ctx context.Context, trip *domain.Trip, cancelledBy string) error {
	atomic.AddInt32(&m.TripCancelledCount, 1)
	return nil
}

func (m *MockNotifier) NotifyPaymentReceived(ctx context.Context, trip *domain.Trip, payment *domain.Payment) error {
	atomic.AddInt32(&m.PaymentReceivedCount, 1)
	m.mu.Lock()
	m.LastPaymentRecipient = trip.PassengerID
	m.mu.Unlock()
	return nil
}

func (m *MockNotifier) NotifyPaymentFailed(ctx context.Context, trip *domain.Trip, payment *domain.Payment) error {
	atomic.AddInt32(&m.PaymentFailedCount, 1)
	m.mu.Lock()
	m.LastPaymentRecipient = trip.PassengerID
	m.mu.Unlock()
	return nil
}
