package service_test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/radiancemd/inventory-backend/internal/inventory/repository"
	"github.com/radiancemd/inventory-backend/internal/inventory/service"
	"github.com/radiancemd/inventory-backend/pkg/errors"
)

// fakeLotStore is an in-memory lot ledger mirroring the repository's
// optimistic-concurrency semantics: reads hand out copies, mutations check
// the stored version and bump it.
type fakeLotStore struct {
	mu   sync.Mutex
	lots map[string]*repository.InventoryLot

	// failDeductions makes the next n ApplyDeduction calls fail with a
	// concurrency conflict, for retry and rollback scenarios
	failDeductions int

	// failOnCall fails exactly the nth ApplyDeduction call, for
	// mid-plan conflict scenarios
	deductionCalls int
	failOnCall     int
}

func newFakeLotStore() *fakeLotStore {
	return &fakeLotStore{lots: map[string]*repository.InventoryLot{}}
}

func (f *fakeLotStore) put(lot *repository.InventoryLot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *lot
	f.lots[lot.ID] = &cp
}

func (f *fakeLotStore) Create(ctx context.Context, lot *repository.InventoryLot) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if lot.ID == "" {
		lot.ID = uuid.New().String()
	}
	for _, existing := range f.lots {
		if existing.ProductID == lot.ProductID && existing.LocationID == lot.LocationID &&
			existing.LotNumber == lot.LotNumber {
			return errors.DuplicateLot(lot.LotNumber)
		}
	}
	lot.Version = 1
	if lot.CreatedAt.IsZero() {
		lot.CreatedAt = time.Now()
	}
	cp := *lot
	f.lots[lot.ID] = &cp
	return nil
}

func (f *fakeLotStore) GetByID(ctx context.Context, id string) (*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	lot, ok := f.lots[id]
	if !ok {
		return nil, errors.NotFound("lot")
	}
	cp := *lot
	return &cp, nil
}

func (f *fakeLotStore) ListAvailable(ctx context.Context, productID, locationID string) ([]*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var out []*repository.InventoryLot
	for _, lot := range f.lots {
		if lot.ProductID != productID || lot.LocationID != locationID {
			continue
		}
		if lot.Status != repository.LotAvailable || lot.AvailableQuantity() <= 0 || lot.IsExpired(now) {
			continue
		}
		cp := *lot
		out = append(out, &cp)
	}
	return out, nil
}

func (f *fakeLotStore) ListByProduct(ctx context.Context, productID, locationID string) ([]*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*repository.InventoryLot
	for _, lot := range f.lots {
		if lot.ProductID == productID && lot.LocationID == locationID {
			cp := *lot
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLotStore) ApplyDeduction(ctx context.Context, lotID string, quantity, version int) (*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	lot, ok := f.lots[lotID]
	if !ok {
		return nil, errors.NotFound("lot")
	}

	f.deductionCalls++
	if f.failDeductions > 0 {
		f.failDeductions--
		return nil, errors.ConcurrencyConflict(lotID)
	}
	if f.failOnCall > 0 && f.deductionCalls == f.failOnCall {
		return nil, errors.ConcurrencyConflict(lotID)
	}

	switch {
	case lot.Status == repository.LotQuarantine:
		return nil, errors.LotQuarantined(lotID)
	case lot.Status != repository.LotAvailable:
		return nil, errors.ConcurrencyConflict(lotID)
	case lot.AvailableQuantity() < quantity:
		return nil, errors.InsufficientQuantity(lotID, quantity, lot.AvailableQuantity())
	case lot.Version != version:
		return nil, errors.ConcurrencyConflict(lotID)
	}

	lot.CurrentQuantity -= quantity
	lot.Version++
	if lot.CurrentQuantity == 0 {
		lot.Status = repository.LotDepleted
	}
	cp := *lot
	return &cp, nil
}

func (f *fakeLotStore) ApplyAddition(ctx context.Context, lotID string, quantity, version int, reactivate bool) (*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if quantity <= 0 {
		return nil, errors.InvalidQuantity(quantity)
	}

	lot, ok := f.lots[lotID]
	if !ok {
		return nil, errors.NotFound("lot")
	}
	if lot.Status == repository.LotExpired {
		return nil, errors.Conflict("cannot add stock to an expired lot")
	}
	if lot.Status == repository.LotDepleted && !reactivate {
		return nil, errors.Conflict("lot is depleted; reactivation requires an explicit override")
	}
	if lot.Status == repository.LotQuarantine {
		return nil, errors.LotQuarantined(lotID)
	}
	if lot.Version != version {
		return nil, errors.ConcurrencyConflict(lotID)
	}
	if lot.CurrentQuantity+quantity > lot.InitialQuantity {
		return nil, errors.BadRequest("addition would exceed the lot's initial quantity")
	}

	lot.CurrentQuantity += quantity
	lot.Status = repository.LotAvailable
	lot.Version++
	cp := *lot
	return &cp, nil
}

func (f *fakeLotStore) SetQuarantine(ctx context.Context, lotID string, quarantined bool, userID string) (*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lot, ok := f.lots[lotID]
	if !ok {
		return nil, errors.NotFound("lot")
	}
	if quarantined {
		lot.Status = repository.LotQuarantine
	} else {
		if lot.CurrentQuantity == 0 {
			lot.Status = repository.LotDepleted
		} else {
			lot.Status = repository.LotAvailable
		}
	}
	lot.Version++
	cp := *lot
	return &cp, nil
}

func (f *fakeLotStore) MarkOpened(ctx context.Context, lotID string, openedAt time.Time, userID string) (*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lot, ok := f.lots[lotID]
	if !ok {
		return nil, errors.NotFound("lot")
	}
	if lot.Status != repository.LotAvailable {
		return nil, errors.Conflict("only an available lot can be opened")
	}
	for _, other := range f.lots {
		if other.ID != lotID && other.ProductID == lot.ProductID && other.LocationID == lot.LocationID {
			other.OpenedDate = nil
		}
	}
	lot.OpenedDate = &openedAt
	lot.Version++
	cp := *lot
	return &cp, nil
}

func (f *fakeLotStore) MarkExpired(ctx context.Context, lotID string) (*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	lot, ok := f.lots[lotID]
	if !ok {
		return nil, errors.NotFound("lot")
	}
	if lot.Status != repository.LotAvailable || !lot.IsExpired(time.Now()) {
		return nil, errors.ConcurrencyConflict(lotID)
	}
	lot.Status = repository.LotExpired
	lot.Version++
	cp := *lot
	return &cp, nil
}

func (f *fakeLotStore) ListExpiring(ctx context.Context, withinDays int) ([]*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	cutoff := now.AddDate(0, 0, withinDays)
	var out []*repository.InventoryLot
	for _, lot := range f.lots {
		if lot.Status != repository.LotAvailable || lot.CurrentQuantity == 0 {
			continue
		}
		if lot.ExpirationDate.After(now) && !lot.ExpirationDate.After(cutoff) {
			cp := *lot
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeLotStore) ListExpired(ctx context.Context) ([]*repository.InventoryLot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	var out []*repository.InventoryLot
	for _, lot := range f.lots {
		if lot.Status == repository.LotAvailable && lot.IsExpired(now) {
			cp := *lot
			out = append(out, &cp)
		}
	}
	return out, nil
}

// fakeProductStore is an in-memory product catalog
type fakeProductStore struct {
	products map[string]*repository.Product
}

func newFakeProductStore(products ...*repository.Product) *fakeProductStore {
	f := &fakeProductStore{products: map[string]*repository.Product{}}
	for _, p := range products {
		f.products[p.ID] = p
	}
	return f
}

func (f *fakeProductStore) GetByID(ctx context.Context, id string) (*repository.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, errors.ProductNotFound(id)
	}
	return p, nil
}

func (f *fakeProductStore) GetAllActive(ctx context.Context) ([]*repository.Product, error) {
	var out []*repository.Product
	for _, p := range f.products {
		if p.IsActive && p.TrackByLot {
			out = append(out, p)
		}
	}
	return out, nil
}

// fakeTransactionStore records ledger entries in memory
type fakeTransactionStore struct {
	mu   sync.Mutex
	txns []*repository.InventoryTransaction

	failCreate bool
}

func newFakeTransactionStore() *fakeTransactionStore {
	return &fakeTransactionStore{}
}

func (f *fakeTransactionStore) Create(ctx context.Context, txn *repository.InventoryTransaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failCreate {
		return errors.Internal("transaction store unavailable")
	}
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}
	txn.CreatedAt = time.Now()
	cp := *txn
	f.txns = append(f.txns, &cp)
	return nil
}

func (f *fakeTransactionStore) ListByLot(ctx context.Context, lotID string) ([]*repository.InventoryTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryTransaction
	for _, t := range f.txns {
		if t.LotID == lotID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) ListByProduct(ctx context.Context, productID, locationID string, from, to time.Time) ([]*repository.InventoryTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryTransaction
	for _, t := range f.txns {
		if t.ProductID == productID && t.LocationID == locationID &&
			!t.CreatedAt.Before(from) && t.CreatedAt.Before(to) {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) ListByPatient(ctx context.Context, patientID string) ([]*repository.InventoryTransaction, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryTransaction
	for _, t := range f.txns {
		if t.PatientID != nil && *t.PatientID == patientID && t.TransactionType == repository.TxnTreatmentUse {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) ListPatientsForLot(ctx context.Context, lotID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	seen := map[string]bool{}
	var out []string
	for _, t := range f.txns {
		if t.LotID == lotID && t.TransactionType == repository.TxnTreatmentUse && t.PatientID != nil && !seen[*t.PatientID] {
			seen[*t.PatientID] = true
			out = append(out, *t.PatientID)
		}
	}
	return out, nil
}

func (f *fakeTransactionStore) byType(txnType repository.TransactionType) []*repository.InventoryTransaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryTransaction
	for _, t := range f.txns {
		if t.TransactionType == txnType {
			out = append(out, t)
		}
	}
	return out
}

// fakeAlertStore is an in-memory alert store
type fakeAlertStore struct {
	mu     sync.Mutex
	alerts map[string]*repository.InventoryAlert
}

func newFakeAlertStore() *fakeAlertStore {
	return &fakeAlertStore{alerts: map[string]*repository.InventoryAlert{}}
}

func (f *fakeAlertStore) Create(ctx context.Context, alert *repository.InventoryAlert) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if alert.ID == "" {
		alert.ID = uuid.New().String()
	}
	if alert.Status == "" {
		alert.Status = repository.AlertActive
	}
	alert.CreatedAt = time.Now()
	cp := *alert
	f.alerts[alert.ID] = &cp
	return nil
}

func (f *fakeAlertStore) GetByID(ctx context.Context, id string) (*repository.InventoryAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert")
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAlertStore) List(ctx context.Context, filter repository.AlertFilter) ([]*repository.InventoryAlert, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryAlert
	for _, a := range f.alerts {
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		if filter.AlertType != "" && a.AlertType != filter.AlertType {
			continue
		}
		if filter.ProductID != "" && a.ProductID != filter.ProductID {
			continue
		}
		if filter.LocationID != "" && a.LocationID != filter.LocationID {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

func (f *fakeAlertStore) ListActive(ctx context.Context, locationID string) ([]*repository.InventoryAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryAlert
	for _, a := range f.alerts {
		if a.LocationID == locationID && (a.Status == repository.AlertActive || a.Status == repository.AlertAcknowledged) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeAlertStore) GetActiveStockAlert(ctx context.Context, productID, locationID string) (*repository.InventoryAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.ProductID != productID || a.LocationID != locationID {
			continue
		}
		if a.Status != repository.AlertActive && a.Status != repository.AlertAcknowledged {
			continue
		}
		switch a.AlertType {
		case repository.AlertLowStock, repository.AlertCriticalLow, repository.AlertOutOfStock:
			cp := *a
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeAlertStore) ExistsActive(ctx context.Context, alertType repository.AlertType, productID string, lotID *string, locationID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.alerts {
		if a.AlertType != alertType || a.ProductID != productID || a.LocationID != locationID {
			continue
		}
		if a.Status != repository.AlertActive && a.Status != repository.AlertAcknowledged {
			continue
		}
		if lotID == nil && a.LotID == nil {
			return true, nil
		}
		if lotID != nil && a.LotID != nil && *lotID == *a.LotID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAlertStore) Acknowledge(ctx context.Context, id, userID string) (*repository.InventoryAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert")
	}
	if a.Status != repository.AlertActive {
		return nil, errors.Conflict("alert is already " + string(a.Status))
	}
	now := time.Now()
	a.Status = repository.AlertAcknowledged
	a.AcknowledgedBy = &userID
	a.AcknowledgedAt = &now
	cp := *a
	return &cp, nil
}

func (f *fakeAlertStore) Resolve(ctx context.Context, id, userID string) (*repository.InventoryAlert, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.alerts[id]
	if !ok {
		return nil, errors.NotFound("alert")
	}
	if a.Status == repository.AlertResolved {
		return nil, errors.Conflict("alert is already resolved")
	}
	now := time.Now()
	a.Status = repository.AlertResolved
	a.ResolvedBy = &userID
	a.ResolvedAt = &now
	cp := *a
	return &cp, nil
}

func (f *fakeAlertStore) MarkNotificationSent(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.alerts[id]; ok {
		a.NotificationSent = true
	}
	return nil
}

func (f *fakeAlertStore) activeOfType(alertType repository.AlertType) []*repository.InventoryAlert {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*repository.InventoryAlert
	for _, a := range f.alerts {
		if a.AlertType == alertType && (a.Status == repository.AlertActive || a.Status == repository.AlertAcknowledged) {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out
}

// recordingPublisher captures published events for assertions
type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{}
}

func (p *recordingPublisher) record(eventType string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, eventType)
}

func (p *recordingPublisher) has(eventType string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range p.events {
		if e == eventType {
			return true
		}
	}
	return false
}

func (p *recordingPublisher) PublishLotReceived(ctx context.Context, lot *repository.InventoryLot, receivedBy string) {
	p.record("lot.received")
}

func (p *recordingPublisher) PublishStockDeducted(ctx context.Context, result *service.DeductionResult, performedBy string) {
	p.record("stock.deducted")
}

func (p *recordingPublisher) PublishStockAdjusted(ctx context.Context, lot *repository.InventoryLot, adjustment int, reason, performedBy string) {
	p.record("stock.adjusted")
}

func (p *recordingPublisher) PublishAlertGenerated(ctx context.Context, alert *repository.InventoryAlert) {
	p.record("alert.generated")
}
