// Package eventlog persists the events of a run: a zstd-compressed JSONL log
// holding every event with its data, and a SQLite index for queries.
package eventlog

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/sirupsen/logrus"

	"github.com/freight-sim/freight-sim/sim"
	"github.com/freight-sim/freight-sim/sim/trace"
)

// Entry is one line of the event log.
type Entry struct {
	Seq  int             `json:"seq"`
	Time float64         `json:"time"`
	Kind string          `json:"kind"`
	Info string          `json:"info"`
	Data json.RawMessage `json:"data,omitempty"`
}

// JSONLZstdWriter writes one Entry per observed event to a .jsonl.zst file.
// Write errors are logged once and stop further writes; Close reports them.
type JSONLZstdWriter struct {
	mu  sync.Mutex
	f   *os.File
	enc *zstd.Encoder
	w   *bufio.Writer
	seq int
	err error
}

// NewJSONLZstdWriter creates (or truncates) path.
func NewJSONLZstdWriter(path string) (*JSONLZstdWriter, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &JSONLZstdWriter{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// Notify implements sim.EventObserver.
func (w *JSONLZstdWriter) Notify(_ *sim.Simulator, ev sim.Event, data any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.err != nil || w.w == nil {
		return
	}
	entry := Entry{Seq: w.seq, Time: ev.Time(), Kind: trace.Kind(ev), Info: ev.Info()}
	w.seq++
	if data != nil {
		raw, err := json.Marshal(payload(data))
		if err != nil {
			w.fail(fmt.Errorf("encoding %s data: %w", entry.Kind, err))
			return
		}
		entry.Data = raw
	}
	b, err := json.Marshal(entry)
	if err != nil {
		w.fail(err)
		return
	}
	if _, err := w.w.Write(b); err != nil {
		w.fail(err)
		return
	}
	if err := w.w.WriteByte('\n'); err != nil {
		w.fail(err)
	}
}

func (w *JSONLZstdWriter) fail(err error) {
	w.err = err
	logrus.Errorf("event log: %v; no further events are written", err)
}

// Close flushes and closes the log.
func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.w == nil {
		return w.err
	}
	errs := []error{w.err, w.w.Flush(), w.enc.Close(), w.f.Close()}
	w.w, w.enc, w.f = nil, nil, nil
	return errors.Join(errs...)
}

// auctionPayload is the logged form of a *sim.AllocationResult.
type auctionPayload struct {
	Time          float64                   `json:"time"`
	Offered       []string                  `json:"offered"`
	Unallocated   []string                  `json:"unallocated"`
	Contracts     []sim.Contract            `json:"contracts"`
	Notifications []sim.NotificationOutcome `json:"notifications"`
	Schedules     []sim.ScheduleOutcome     `json:"schedules"`
}

func payload(data any) any {
	r, ok := data.(*sim.AllocationResult)
	if !ok {
		return data
	}
	p := auctionPayload{
		Time:          r.Time,
		Offered:       tradeIDs(r.Trades),
		Unallocated:   tradeIDs(r.Unallocated),
		Contracts:     []sim.Contract{},
		Notifications: r.Notifications,
		Schedules:     r.Schedules,
	}
	if r.Ledger != nil {
		for _, c := range r.Ledger.Companies() {
			p.Contracts = append(p.Contracts, r.Ledger.Contracts(c)...)
		}
	}
	return p
}

func tradeIDs(trades []sim.Trade) []string {
	ids := make([]string, len(trades))
	for i, t := range trades {
		ids[i] = t.ID
	}
	return ids
}

// ReadJSONLZstd calls fn for every entry of a log written by JSONLZstdWriter.
func ReadJSONLZstd(r io.Reader, fn func(Entry) error) error {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return fmt.Errorf("decoding entry: %w", err)
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return sc.Err()
}
