// Package transporttest provides an in-memory transport.Transport for tests.
package transporttest

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/ashita-ai/vitrine/internal/transport"
)

var epoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Fake stores rows per table in memory and counts every call. Errors can be
// queued for the next calls or set for all calls.
type Fake struct {
	mu     sync.Mutex
	mode   transport.Mode
	tables map[string][]map[string]any
	nextID int
	calls  map[string]int
	total  int
	queue  []error
	byName map[string][]error
	err    error
}

var _ transport.Transport = (*Fake)(nil)

// New returns an empty Fake reporting the given mode.
func New(mode transport.Mode) *Fake {
	return &Fake{
		mode:   mode,
		tables: map[string][]map[string]any{},
		calls:  map[string]int{},
		byName: map[string][]error{},
	}
}

// Seed inserts rows directly, bypassing call accounting. Rows without an id
// or created_at get generated ones.
func (f *Fake) Seed(table string, rows ...map[string]any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range rows {
		f.insertLocked(table, r)
	}
}

// SetErr makes every subsequent call fail with err until cleared with nil.
func (f *Fake) SetErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

// FailNext makes the next n calls fail with err, ahead of SetErr.
func (f *Fake) FailNext(n int, err error) {
	f.mu.Lock()
	for range n {
		f.queue = append(f.queue, err)
	}
	f.mu.Unlock()
}

// FailMethod makes the next n calls to method fail with err, ahead of
// FailNext and SetErr.
func (f *Fake) FailMethod(method string, n int, err error) {
	f.mu.Lock()
	for range n {
		f.byName[method] = append(f.byName[method], err)
	}
	f.mu.Unlock()
}

// Calls returns the total number of calls made.
func (f *Fake) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.total
}

// CallsTo returns the number of calls made to one method, e.g. "Insert".
func (f *Fake) CallsTo(method string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[method]
}

// Rows returns a copy of the rows stored in table.
func (f *Fake) Rows(table string) []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]map[string]any, len(f.tables[table]))
	for i, r := range f.tables[table] {
		out[i] = maps.Clone(r)
	}
	return out
}

func (f *Fake) Mode() transport.Mode { return f.mode }

func (f *Fake) Select(_ context.Context, table string, q transport.Query) ([]json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeLocked("Select"); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	var matched []map[string]any
	for _, r := range f.tables[table] {
		if matches(r, q.Filters) {
			matched = append(matched, r)
		}
	}
	if len(q.Order) > 0 {
		slices.SortStableFunc(matched, func(a, b map[string]any) int {
			for _, o := range q.Order {
				c := compare(a[o.Column], b[o.Column])
				if o.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	out := make([]json.RawMessage, 0, len(matched))
	for _, r := range matched {
		out = append(out, encode(project(r, q.Columns)))
	}
	return out, nil
}

func (f *Fake) SelectOne(ctx context.Context, table string, q transport.Query) (json.RawMessage, error) {
	rows, err := f.Select(ctx, table, q.WithLimit(1))
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("fake: select one %s: %w", table, transport.ErrNotFound)
	}
	return rows[0], nil
}

func (f *Fake) Count(_ context.Context, table string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeLocked("Count"); err != nil {
		return 0, err
	}
	return int64(len(f.tables[table])), nil
}

func (f *Fake) Insert(_ context.Context, table string, row json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeLocked("Insert"); err != nil {
		return nil, err
	}
	var r map[string]any
	if err := json.Unmarshal(row, &r); err != nil {
		return nil, fmt.Errorf("fake: insert %s: %w", table, err)
	}
	return encode(f.insertLocked(table, r)), nil
}

func (f *Fake) Update(_ context.Context, table, id string, patch json.RawMessage) (json.RawMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeLocked("Update"); err != nil {
		return nil, err
	}
	var p map[string]any
	if err := json.Unmarshal(patch, &p); err != nil {
		return nil, fmt.Errorf("fake: update %s: %w", table, err)
	}
	for _, r := range f.tables[table] {
		if r["id"] == id {
			for k, v := range p {
				if k != "id" {
					r[k] = v
				}
			}
			return encode(r), nil
		}
	}
	return nil, fmt.Errorf("fake: update %s %s: %w", table, id, transport.ErrNotFound)
}

func (f *Fake) Delete(_ context.Context, table, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.takeLocked("Delete"); err != nil {
		return err
	}
	rows := f.tables[table]
	for i, r := range rows {
		if r["id"] == id {
			f.tables[table] = slices.Delete(rows, i, i+1)
			return nil
		}
	}
	return fmt.Errorf("fake: delete %s %s: %w", table, id, transport.ErrNotFound)
}

func (f *Fake) TestConnection(context.Context) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.takeLocked("TestConnection") == nil
}

func (f *Fake) takeLocked(method string) error {
	f.calls[method]++
	f.total++
	if q := f.byName[method]; len(q) > 0 {
		f.byName[method] = q[1:]
		return q[0]
	}
	if len(f.queue) > 0 {
		err := f.queue[0]
		f.queue = f.queue[1:]
		return err
	}
	return f.err
}

func (f *Fake) insertLocked(table string, r map[string]any) map[string]any {
	r = maps.Clone(r)
	if r == nil {
		r = map[string]any{}
	}
	f.nextID++
	if _, ok := r["id"]; !ok {
		r["id"] = fmt.Sprintf("%s-%d", table, f.nextID)
	}
	if _, ok := r["created_at"]; !ok {
		r["created_at"] = epoch.Add(time.Duration(f.nextID) * time.Second).Format(time.RFC3339)
	}
	f.tables[table] = append(f.tables[table], r)
	return r
}

func matches(r map[string]any, filters []transport.Filter) bool {
	for _, flt := range filters {
		v, ok := r[flt.Column]
		if flt.Value == nil {
			if ok && v != nil {
				return false
			}
			continue
		}
		if !ok || fmt.Sprint(v) != fmt.Sprint(flt.Value) {
			return false
		}
	}
	return true
}

func compare(a, b any) int {
	fa, aNum := a.(float64)
	fb, bNum := b.(float64)
	if aNum && bNum {
		return cmp.Compare(fa, fb)
	}
	return cmp.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func project(r map[string]any, cols []string) map[string]any {
	if len(cols) == 0 {
		return r
	}
	out := make(map[string]any, len(cols))
	for _, c := range cols {
		if v, ok := r[c]; ok {
			out[c] = v
		}
	}
	return out
}


func encode(r map[string]any) json.RawMessage {
	raw, _ := json.Marshal(r)
	return raw
}
