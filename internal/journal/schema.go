package journal

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id         TEXT PRIMARY KEY,
	ts         TEXT NOT NULL,
	symbol     TEXT NOT NULL,
	qty        INTEGER NOT NULL,
	price      REAL NOT NULL,
	action     TEXT NOT NULL,
	reason     TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_symbol ON trades(symbol);
CREATE INDEX IF NOT EXISTS idx_trades_ts ON trades(ts);
`
