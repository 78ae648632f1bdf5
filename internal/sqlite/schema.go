package sqlite

import "github.com/ariefcatur/cafe-pos/internal/migrate"

// Timestamps are stored as unix nanoseconds (UTC), money as integer cents.
var Migrations = []migrate.Migration{
	{Version: "1.0.0", Up: schemaV1},
	{Version: "1.1.0", Up: schemaV1_1},
}

const schemaV1 = `
CREATE TABLE IF NOT EXISTS products (
    id                  TEXT PRIMARY KEY,
    name                TEXT NOT NULL,
    price_cents         INTEGER NOT NULL CHECK (price_cents >= 0),
    image_url           TEXT NOT NULL DEFAULT '',
    is_available        INTEGER NOT NULL DEFAULT 1,
    stock_count         INTEGER NOT NULL DEFAULT 0 CHECK (stock_count >= 0),
    low_stock_threshold INTEGER NOT NULL DEFAULT 10,
    options             TEXT NOT NULL DEFAULT '[]',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS settings (
    id           INTEGER PRIMARY KEY CHECK (id = 1),
    tax_rate_bp  INTEGER NOT NULL,
    tax_included INTEGER NOT NULL DEFAULT 0,
    updated_at   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS orders (
    id                  TEXT PRIMARY KEY,
    order_number        TEXT NOT NULL UNIQUE,
    subtotal_cents      INTEGER NOT NULL,
    tax_cents           INTEGER NOT NULL,
    discount_cents      INTEGER NOT NULL DEFAULT 0 CHECK (discount_cents >= 0),
    total_cents         INTEGER NOT NULL,
    payment_method      TEXT NOT NULL,
    cash_received_cents INTEGER NOT NULL DEFAULT 0,
    change_given_cents  INTEGER NOT NULL DEFAULT 0,
    status              TEXT NOT NULL,
    order_type          TEXT NOT NULL,
    customer_name       TEXT NOT NULL DEFAULT '',
    table_number        TEXT NOT NULL DEFAULT '',
    created_by          TEXT NOT NULL DEFAULT '',
    created_at          INTEGER NOT NULL,
    updated_at          INTEGER NOT NULL,
    completed_at        INTEGER
);

CREATE INDEX IF NOT EXISTS idx_orders_created_at ON orders(created_at);
CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status, created_at);

CREATE TABLE IF NOT EXISTS order_items (
    order_id            TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    line_no             INTEGER NOT NULL,
    product_id          TEXT NOT NULL,
    product_name        TEXT NOT NULL,
    product_price_cents INTEGER NOT NULL,
    product_image_url   TEXT NOT NULL DEFAULT '',
    quantity            INTEGER NOT NULL CHECK (quantity >= 1),
    customization_notes TEXT NOT NULL DEFAULT '',
    selected_options    TEXT NOT NULL DEFAULT '[]',
    base_price_cents    INTEGER NOT NULL,
    options_total_cents INTEGER NOT NULL,
    item_price_cents    INTEGER NOT NULL,
    item_total_cents    INTEGER NOT NULL,
    PRIMARY KEY (order_id, line_no)
);

CREATE TABLE IF NOT EXISTS order_counters (
    day      TEXT PRIMARY KEY,
    last_seq INTEGER NOT NULL
);
`

const schemaV1_1 = `
CREATE TABLE IF NOT EXISTS order_status_log (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    order_id   TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
    status     TEXT NOT NULL,
    changed_by TEXT NOT NULL DEFAULT '',
    changed_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_order_status_log_order ON order_status_log(order_id, id);
`
