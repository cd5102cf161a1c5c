package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/radiancemd/inventory-backend/pkg/database"
)

// TransactionType classifies ledger movements
type TransactionType string

const (
	TxnReceive      TransactionType = "receive"
	TxnTreatmentUse TransactionType = "treatment_use"
	TxnAdjustment   TransactionType = "adjustment"
	TxnTransfer     TransactionType = "transfer"
	TxnWaste        TransactionType = "waste"
	TxnReturn       TransactionType = "return"
	TxnExpired      TransactionType = "expired"
)

// InventoryTransaction is one append-only ledger entry. Rows are never
// updated or deleted; corrections are recorded as new adjustment entries.
type InventoryTransaction struct {
	ID              string          `db:"id" json:"id"`
	LotID           string          `db:"lot_id" json:"lot_id"`
	ProductID       string          `db:"product_id" json:"product_id"`
	LocationID      string          `db:"location_id" json:"location_id"`
	TransactionType TransactionType `db:"transaction_type" json:"transaction_type"`

	Quantity       int `db:"quantity" json:"quantity"`
	QuantityBefore int `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int `db:"quantity_after" json:"quantity_after"`

	UnitCost  *float64 `db:"unit_cost" json:"unit_cost,omitempty"`
	TotalCost *float64 `db:"total_cost" json:"total_cost,omitempty"`

	AppointmentID *string `db:"appointment_id" json:"appointment_id,omitempty"`
	PatientID     *string `db:"patient_id" json:"patient_id,omitempty"`
	TreatmentID   *string `db:"treatment_id" json:"treatment_id,omitempty"`
	Reason        *string `db:"reason" json:"reason,omitempty"`
	Notes         *string `db:"notes" json:"notes,omitempty"`

	PerformedBy string    `db:"performed_by" json:"performed_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TransactionRepository persists the append-only transaction log
type TransactionRepository struct {
	db *database.DB
}

// NewTransactionRepository creates a new transaction repository
func NewTransactionRepository(db *database.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create appends a transaction entry
func (r *TransactionRepository) Create(ctx context.Context, txn *InventoryTransaction) error {
	if txn.ID == "" {
		txn.ID = uuid.New().String()
	}

	query := `
		INSERT INTO inventory_transactions (
			id, lot_id, product_id, location_id, transaction_type,
			quantity, quantity_before, quantity_after, unit_cost, total_cost,
			appointment_id, patient_id, treatment_id, reason, notes, performed_by
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING created_at
	`

	err := r.db.QueryRowxContext(ctx, query,
		txn.ID, txn.LotID, txn.ProductID, txn.LocationID, txn.TransactionType,
		txn.Quantity, txn.QuantityBefore, txn.QuantityAfter, txn.UnitCost, txn.TotalCost,
		txn.AppointmentID, txn.PatientID, txn.TreatmentID, txn.Reason, txn.Notes, txn.PerformedBy,
	).Scan(&txn.CreatedAt)
	if err != nil {
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	}
	return nil
}

// ListByLot lists all transactions for a lot in chronological order
func (r *TransactionRepository) ListByLot(ctx context.Context, lotID string) ([]*InventoryTransaction, error) {
	var txns []*InventoryTransaction
	query := `
		SELECT * FROM inventory_transactions
		WHERE lot_id = $1
		ORDER BY created_at, id
	`
	if err := r.db.SelectContext(ctx, &txns, query, lotID); err != nil {
		return nil, err
	}
	return txns, nil
}

// ListByProduct lists transactions for a product at a location within a
// date range, newest first.
func (r *TransactionRepository) ListByProduct(ctx context.Context, productID, locationID string, from, to time.Time) ([]*InventoryTransaction, error) {
	var txns []*InventoryTransaction
	query := `
		SELECT * FROM inventory_transactions
		WHERE product_id = $1 AND location_id = $2
		AND created_at >= $3 AND created_at < $4
		ORDER BY created_at DESC, id DESC
	`
	if err := r.db.SelectContext(ctx, &txns, query, productID, locationID, from, to); err != nil {
		return nil, err
	}
	return txns, nil
}

// ListByPatient lists treatment usage for a patient, for recall
// traceability. Only treatment_use entries carry a patient reference.
func (r *TransactionRepository) ListByPatient(ctx context.Context, patientID string) ([]*InventoryTransaction, error) {
	var txns []*InventoryTransaction
	query := `
		SELECT * FROM inventory_transactions
		WHERE patient_id = $1 AND transaction_type = 'treatment_use'
		ORDER BY created_at DESC
	`
	if err := r.db.SelectContext(ctx, &txns, query, patientID); err != nil {
		return nil, err
	}
	return txns, nil
}

// ListPatientsForLot lists the distinct patients exposed to a lot, for
// recall notification after a manufacturer recall.
func (r *TransactionRepository) ListPatientsForLot(ctx context.Context, lotID string) ([]string, error) {
	var patients []string
	query := `
		SELECT DISTINCT patient_id FROM inventory_transactions
		WHERE lot_id = $1 AND transaction_type = 'treatment_use' AND patient_id IS NOT NULL
		ORDER BY patient_id
	`
	if err := r.db.SelectContext(ctx, &patients, query, lotID); err != nil {
		return nil, err
	}
	return patients, nil
}
