// Package entity provides typed CRUD over the showcase tables. Every call
// asks the selector for a transport, retries on the primary path only, and
// records its outcome in the connection log.
package entity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ashita-ai/vitrine/internal/conn"
	"github.com/ashita-ai/vitrine/internal/connlog"
	"github.com/ashita-ai/vitrine/internal/model"
	"github.com/ashita-ai/vitrine/internal/transport"
)

// Actions name the operation in error messages and log metadata.
const (
	ActionFetch  = "fetch"
	ActionCreate = "create"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

// Selector picks the transport for one call. *conn.Selector implements it.
type Selector interface {
	GetOptimalConnection(ctx context.Context) transport.Transport
}

// Operations is the CRUD façade for one table.
type Operations[T model.Record] struct {
	table    string
	selector Selector
	log      *connlog.Logger
	retry    conn.RetryPolicy
}

// NewOperations creates the façade for T's table.
func NewOperations[T model.Record](selector Selector, log *connlog.Logger, retry conn.RetryPolicy) *Operations[T] {
	var zero T
	return &Operations[T]{
		table:    zero.Table(),
		selector: selector,
		log:      log,
		retry:    retry,
	}
}

// Table returns the table this façade operates on.
func (o *Operations[T]) Table() string { return o.table }

// GetAll returns every row, newest first.
func (o *Operations[T]) GetAll(ctx context.Context) ([]T, error) {
	return o.List(ctx, transport.Query{}.OrderBy("created_at", true))
}

// List returns the rows matching q.
func (o *Operations[T]) List(ctx context.Context, q transport.Query) ([]T, error) {
	return execute(ctx, o, ActionFetch, func(ctx context.Context, t transport.Transport) ([]T, error) {
		rows, err := t.Select(ctx, o.table, q)
		if err != nil {
			return nil, err
		}
		out := make([]T, 0, len(rows))
		for _, raw := range rows {
			v, err := decode[T](raw)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}, func(v []T) int { return len(v) })
}

// GetByID returns the row with id, or an error wrapping transport.ErrNotFound.
func (o *Operations[T]) GetByID(ctx context.Context, id string) (T, error) {
	if id == "" {
		var zero T
		return zero, o.rejected(ActionFetch, &model.ValidationError{Field: "id", Message: "缺少必填字段: id"})
	}
	return execute(ctx, o, ActionFetch, func(ctx context.Context, t transport.Transport) (T, error) {
		raw, err := t.SelectOne(ctx, o.table, transport.Query{}.Eq("id", id))
		if err != nil {
			var zero T
			return zero, err
		}
		return decode[T](raw)
	}, one[T])
}

// Create validates rec and inserts it. Invalid records fail before any
// transport is selected.
func (o *Operations[T]) Create(ctx context.Context, rec T) (T, error) {
	if err := model.Validate(rec); err != nil {
		var zero T
		return zero, o.rejected(ActionCreate, err)
	}
	body, err := json.Marshal(rec)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("%s %s failed: %w", ActionCreate, o.table, err)
	}
	return execute(ctx, o, ActionCreate, func(ctx context.Context, t transport.Transport) (T, error) {
		raw, err := t.Insert(ctx, o.table, body)
		if err != nil {
			var zero T
			return zero, err
		}
		return decode[T](raw)
	}, one[T])
}

// Update applies patch to the row with id. Only fields present in patch are
// validated.
func (o *Operations[T]) Update(ctx context.Context, id string, patch map[string]any) (T, error) {
	var zero T
	if id == "" {
		return zero, o.rejected(ActionUpdate, &model.ValidationError{Field: "id", Message: "缺少必填字段: id"})
	}
	if err := model.ValidatePatch(o.table, patch); err != nil {
		return zero, o.rejected(ActionUpdate, err)
	}
	body, err := json.Marshal(patch)
	if err != nil {
		return zero, fmt.Errorf("%s %s failed: %w", ActionUpdate, o.table, err)
	}
	return execute(ctx, o, ActionUpdate, func(ctx context.Context, t transport.Transport) (T, error) {
		raw, err := t.Update(ctx, o.table, id, body)
		if err != nil {
			return zero, err
		}
		return decode[T](raw)
	}, one[T])
}

// Delete removes the row with id. It reports false, without error, when no
// such row exists.
func (o *Operations[T]) Delete(ctx context.Context, id string) (bool, error) {
	if id == "" {
		return false, o.rejected(ActionDelete, &model.ValidationError{Field: "id", Message: "缺少必填字段: id"})
	}
	deleted, err := execute(ctx, o, ActionDelete, func(ctx context.Context, t transport.Transport) (bool, error) {
		if err := t.Delete(ctx, o.table, id); err != nil {
			return false, err
		}
		return true, nil
	}, func(ok bool) int {
		if ok {
			return 1
		}
		return 0
	})
	if errors.Is(err, transport.ErrNotFound) {
		return false, nil
	}
	return deleted, err
}

// execute is the only place that branches on transport mode. The primary
// path goes through conn.WithRetry; the REST path runs once.
func execute[T model.Record, R any](ctx context.Context, o *Operations[T], action string, fn func(context.Context, transport.Transport) (R, error), rows func(R) int) (R, error) {
	t := o.selector.GetOptimalConnection(ctx)
	mode := t.Mode()
	run := func(ctx context.Context) (R, error) { return fn(ctx, t) }

	name := o.table + "." + action
	stop := o.log.StartTimer(name)
	var (
		v   R
		err error
	)
	if mode == transport.ModeSDK {
		v, err = conn.WithRetry(ctx, o.log, name, o.retry, run)
	} else {
		v, err = run(ctx)
	}
	elapsed := stop()

	if err != nil {
		if !errors.Is(err, transport.ErrNotFound) {
			o.log.Error(connlog.CategoryQuery, fmt.Sprintf("%s %s failed", action, o.table), err, map[string]any{
				"table":     o.table,
				"action":    action,
				"mode":      string(mode),
				"errorCode": errorCode(err),
			})
		}
		return v, fmt.Errorf("%s %s failed: %w", action, o.table, err)
	}

	o.log.LogDuration(connlog.LevelInfo, connlog.CategoryQuery, fmt.Sprintf("%s %s", action, o.table), elapsed, map[string]any{
		"table":  o.table,
		"action": action,
		"mode":   string(mode),
		"rows":   rows(v),
	})
	return v, nil
}

func (o *Operations[T]) rejected(action string, err error) error {
	o.log.Warn(connlog.CategoryQuery, fmt.Sprintf("%s %s rejected", action, o.table), map[string]any{
		"table":  o.table,
		"action": action,
		"error":  err.Error(),
	})
	return fmt.Errorf("%s %s failed: %w", action, o.table, err)
}

func decode[T any](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decode row: %w", err)
	}
	return v, nil
}

func one[T any](T) int { return 1 }

func errorCode(err error) string {
	if code := conn.ErrorCode(err); code != "" {
		return code
	}
	return "unknown"
}
