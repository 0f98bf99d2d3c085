package journal

// Schema is applied on every open; times are stored as Unix nanoseconds
const Schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	strategy_name   TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	config_hash     TEXT NOT NULL DEFAULT '',
	predictions     TEXT NOT NULL DEFAULT '',
	created_at      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trades (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id     TEXT NOT NULL,
	instrument TEXT NOT NULL,
	side       TEXT NOT NULL,
	quantity   REAL NOT NULL,
	price      REAL NOT NULL,
	trade_time INTEGER NOT NULL,
	commission REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS equity (
	run_id TEXT NOT NULL,
	time   INTEGER NOT NULL,
	equity REAL NOT NULL,
	PRIMARY KEY (run_id, time)
);

CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id, trade_time);
`
