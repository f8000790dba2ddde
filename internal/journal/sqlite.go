package journal

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLite stores trade records in a local database file.
type SQLite struct {
	db *sql.DB
}

func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLite{db: db}, nil
}

func (j *SQLite) Record(t TradeRecord) error {
	_, err := j.db.Exec(`
		INSERT INTO trades (id, ts, symbol, qty, price, action, reason)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.Timestamp.UTC().Format(time.RFC3339), t.Symbol, t.Qty, t.Price, t.Action, t.Reason,
	)
	return err
}

// Trades returns every record for a symbol, oldest first.
func (j *SQLite) Trades(symbol string) ([]TradeRecord, error) {
	rows, err := j.db.Query(`
		SELECT id, ts, symbol, qty, price, action, reason
		FROM trades WHERE symbol = ? ORDER BY ts`, symbol)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TradeRecord
	for rows.Next() {
		var t TradeRecord
		var ts string
		if err := rows.Scan(&t.ID, &ts, &t.Symbol, &t.Qty, &t.Price, &t.Action, &t.Reason); err != nil {
			return nil, err
		}
		t.Timestamp, _ = time.Parse(time.RFC3339, ts)
		out = append(out, t)
	}
	return out, rows.Err()
}

func (j *SQLite) Close() error {
	return j.db.Close()
}
