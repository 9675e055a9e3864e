package eventlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/trace"
)

// commitEvery is the number of rows written per transaction.
const commitEvery = 500

// SQLiteIndex indexes events, auctions, contracts and notifications of a run
// in a SQLite database. It is a sim.EventObserver; rows become visible to
// other connections once committed, at the latest on Close.
type SQLiteIndex struct {
	db *sql.DB

	mu   sync.Mutex
	tx   *sql.Tx
	ops  int
	seq  int
	err  error
	once sync.Once
}

// OpenSQLite opens (or creates) the index at path.
func OpenSQLite(path string) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteIndex{db: db}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS events (
			seq INTEGER PRIMARY KEY,
			time REAL NOT NULL,
			kind TEXT NOT NULL,
			vessel TEXT,
			company TEXT,
			info TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_events_kind_time ON events(kind, time);`,
		`CREATE INDEX IF NOT EXISTS idx_events_vessel_time ON events(vessel, time);`,
		`CREATE TABLE IF NOT EXISTS auctions (
			time REAL PRIMARY KEY,
			offered INTEGER NOT NULL,
			awarded INTEGER NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS contracts (
			auction_time REAL NOT NULL,
			trade TEXT NOT NULL,
			company TEXT NOT NULL,
			payment REAL NOT NULL,
			PRIMARY KEY (auction_time, trade)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_contracts_company ON contracts(company);`,
		`CREATE TABLE IF NOT EXISTS notifications (
			auction_time REAL NOT NULL,
			company TEXT NOT NULL,
			status TEXT NOT NULL,
			elapsed_ms REAL NOT NULL,
			error TEXT,
			PRIMARY KEY (auction_time, company)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

// Notify implements sim.EventObserver. The first write error is logged and
// disables the index.
func (s *SQLiteIndex) Notify(_ *sim.Simulator, ev sim.Event, data any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil || s.db == nil {
		return
	}
	if err := s.write(ev, data); err != nil {
		s.err = err
		logrus.Errorf("event index: %v; indexing stopped", err)
	}
}

func (s *SQLiteIndex) write(ev sim.Event, data any) error {
	ctx := context.Background()
	if s.tx == nil {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		s.tx, s.ops = tx, 0
	}

	var vessel, company sql.NullString
	if ve, ok := ev.(sim.VesselEvent); ok {
		vessel = sql.NullString{String: ve.Vessel().Name(), Valid: true}
		company = sql.NullString{String: ve.Vessel().Company(), Valid: true}
	}
	if _, err := s.tx.ExecContext(ctx, `INSERT OR REPLACE INTO events(seq,time,kind,vessel,company,info) VALUES(?,?,?,?,?,?)`,
		s.seq, ev.Time(), trace.Kind(ev), vessel, company, ev.Info()); err != nil {
		return err
	}
	s.seq++
	s.ops++

	if r, ok := data.(*sim.AllocationResult); ok {
		if err := s.writeAuction(ctx, r); err != nil {
			return err
		}
	}
	if s.ops >= commitEvery {
		return s.commit()
	}
	return nil
}

func (s *SQLiteIndex) writeAuction(ctx context.Context, r *sim.AllocationResult) error {
	if _, err := s.tx.ExecContext(ctx, `INSERT OR REPLACE INTO auctions(time,offered,awarded) VALUES(?,?,?)`,
		r.Time, len(r.Trades), r.Awarded()); err != nil {
		return err
	}
	s.ops++
	if r.Ledger != nil {
		for _, c := range r.Ledger.Companies() {
			for _, contract := range r.Ledger.Contracts(c) {
				if _, err := s.tx.ExecContext(ctx, `INSERT OR REPLACE INTO contracts(auction_time,trade,company,payment) VALUES(?,?,?,?)`,
					r.Time, contract.Trade.ID, contract.Company, contract.Payment); err != nil {
					return err
				}
				s.ops++
			}
		}
	}
	for _, n := range r.Notifications {
		var msg sql.NullString
		if n.Err != nil {
			msg = sql.NullString{String: n.Err.Error(), Valid: true}
		}
		if _, err := s.tx.ExecContext(ctx, `INSERT OR REPLACE INTO notifications(auction_time,company,status,elapsed_ms,error) VALUES(?,?,?,?,?)`,
			r.Time, n.Company, string(n.Status), float64(n.Elapsed.Microseconds())/1000, msg); err != nil {
			return err
		}
		s.ops++
	}
	return nil
}

func (s *SQLiteIndex) commit() error {
	if s.tx == nil {
		return nil
	}
	err := s.tx.Commit()
	s.tx = nil
	return err
}

// Close commits pending rows and closes the database.
func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		var commitErr error
		if s.err != nil && s.tx != nil {
			_ = s.tx.Rollback()
			s.tx = nil
		} else {
			commitErr = s.commit()
		}
		err = errors.Join(s.err, commitErr, s.db.Close())
		s.db = nil
	})
	return err
}

// ContractCount returns the number of contracts company won, as indexed.
func (s *SQLiteIndex) ContractCount(ctx context.Context, company string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return 0, errors.New("index closed")
	}
	if err := s.commit(); err != nil {
		return 0, err
	}
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contracts WHERE company=?`, company).Scan(&n)
	return n, err
}
