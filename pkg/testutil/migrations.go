package testutil

// InventoryMigrations returns the inventory schema in dependency order.
// The DDL mirrors the production migrations so integration tests exercise
// the same constraints the service relies on.
func InventoryMigrations() []string {
	return []string{
		productsTable,
		lotsTable,
		transactionsTable,
		alertsTable,
	}
}

const productsTable = `
CREATE TABLE IF NOT EXISTS products (
	id UUID PRIMARY KEY,
	name VARCHAR(255) NOT NULL,
	sku VARCHAR(100) UNIQUE,
	category VARCHAR(100) NOT NULL,
	unit_type VARCHAR(50) NOT NULL,
	cost_price NUMERIC(10,2) NOT NULL DEFAULT 0,
	unit_price NUMERIC(10,2) NOT NULL DEFAULT 0,
	reorder_point INTEGER NOT NULL DEFAULT 0,
	reorder_quantity INTEGER NOT NULL DEFAULT 0,
	min_stock_level INTEGER NOT NULL DEFAULT 0,
	requires_refrigeration BOOLEAN NOT NULL DEFAULT false,
	track_by_lot BOOLEAN NOT NULL DEFAULT true,
	is_active BOOLEAN NOT NULL DEFAULT true,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

const lotsTable = `
CREATE TABLE IF NOT EXISTS inventory_lots (
	id UUID PRIMARY KEY,
	product_id UUID NOT NULL REFERENCES products(id),
	location_id VARCHAR(100) NOT NULL,
	lot_number VARCHAR(100) NOT NULL,
	manufacturing_date TIMESTAMPTZ,
	expiration_date TIMESTAMPTZ NOT NULL,
	received_date TIMESTAMPTZ NOT NULL,
	opened_date TIMESTAMPTZ,
	initial_quantity INTEGER NOT NULL,
	current_quantity INTEGER NOT NULL,
	reserved_quantity INTEGER NOT NULL DEFAULT 0,
	status VARCHAR(20) NOT NULL DEFAULT 'available',
	vendor_id VARCHAR(100),
	purchase_order_id VARCHAR(100),
	invoice_number VARCHAR(100),
	purchase_cost NUMERIC(12,2),
	quality_notes TEXT,
	created_by VARCHAR(100) NOT NULL,
	updated_by VARCHAR(100),
	version INTEGER NOT NULL DEFAULT 1,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),

	CONSTRAINT inventory_lots_lot_number_key UNIQUE (product_id, location_id, lot_number),
	CONSTRAINT quantity_nonnegative CHECK (current_quantity >= 0 AND reserved_quantity >= 0),
	CONSTRAINT quantity_within_initial CHECK (current_quantity <= initial_quantity),
	CONSTRAINT status_valid CHECK (status IN ('available', 'quarantine', 'expired', 'depleted'))
);

CREATE INDEX IF NOT EXISTS idx_lots_selection
	ON inventory_lots (product_id, location_id, status, expiration_date);
`

const transactionsTable = `
CREATE TABLE IF NOT EXISTS inventory_transactions (
	id UUID PRIMARY KEY,
	lot_id UUID NOT NULL REFERENCES inventory_lots(id),
	product_id UUID NOT NULL REFERENCES products(id),
	location_id VARCHAR(100) NOT NULL,
	transaction_type VARCHAR(30) NOT NULL,
	quantity INTEGER NOT NULL,
	quantity_before INTEGER NOT NULL,
	quantity_after INTEGER NOT NULL,
	unit_cost NUMERIC(12,4),
	total_cost NUMERIC(12,2),
	appointment_id VARCHAR(100),
	patient_id VARCHAR(100),
	treatment_id VARCHAR(100),
	reason TEXT,
	notes TEXT,
	performed_by VARCHAR(100) NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_transactions_lot ON inventory_transactions (lot_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_product ON inventory_transactions (product_id, location_id, created_at);
CREATE INDEX IF NOT EXISTS idx_transactions_patient ON inventory_transactions (patient_id) WHERE patient_id IS NOT NULL;
`

const alertsTable = `
CREATE TABLE IF NOT EXISTS inventory_alerts (
	id UUID PRIMARY KEY,
	alert_type VARCHAR(30) NOT NULL,
	severity VARCHAR(20) NOT NULL,
	status VARCHAR(20) NOT NULL DEFAULT 'active',
	title VARCHAR(255) NOT NULL,
	message TEXT NOT NULL,
	product_id UUID NOT NULL REFERENCES products(id),
	lot_id UUID REFERENCES inventory_lots(id),
	location_id VARCHAR(100) NOT NULL,
	threshold_value INTEGER,
	current_value INTEGER,
	notification_sent BOOLEAN NOT NULL DEFAULT false,
	acknowledged_by VARCHAR(100),
	acknowledged_at TIMESTAMPTZ,
	resolved_by VARCHAR(100),
	resolved_at TIMESTAMPTZ,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_alerts_active
	ON inventory_alerts (product_id, location_id, alert_type)
	WHERE status IN ('active', 'acknowledged');
`
