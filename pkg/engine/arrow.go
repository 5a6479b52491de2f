package engine

import (
	"bytes"
	"context"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/arsdragonfly/ultralogi/pkg/errors"
)

// QueryRecords runs an arbitrary query and materializes the result as Arrow
// records of at most the configured batch size. The caller must Release every
// returned record.
func (e *Engine) QueryRecords(ctx context.Context, sqlText string, args ...interface{}) ([]arrow.Record, *arrow.Schema, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, errClosed()
	}

	rows, err := e.db.QueryContext(ctx, sqlText, args...)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "query")
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "result columns")
	}

	// Materialize the result set first; the embedded engine types values
	// dynamically, so the schema is inferred from the data.
	columns := make([][]interface{}, len(cols))
	values := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}

	numRows := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "scan row")
		}
		for i, v := range values {
			if b, ok := v.([]byte); ok {
				// Drivers may reuse byte buffers between scans.
				v = append([]byte(nil), b...)
			}
			columns[i] = append(columns[i], v)
		}
		numRows++
	}
	if err := rows.Err(); err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeEngine, "iterate rows")
	}

	schema := inferSchema(cols, columns)
	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	var records []arrow.Record
	flush := func() {
		if builder.Field(0).Len() == 0 && len(records) > 0 {
			return
		}
		records = append(records, builder.NewRecord())
	}

	for row := 0; row < numRows; row++ {
		for col := range columns {
			if err := appendValue(builder.Field(col), columns[col][row]); err != nil {
				for _, r := range records {
					r.Release()
				}
				return nil, nil, err
			}
		}
		if (row+1)%e.batchRows == 0 {
			records = append(records, builder.NewRecord())
		}
	}
	if numRows == 0 || numRows%e.batchRows != 0 {
		flush()
	}

	return records, schema, nil
}

// QueryIPC runs an arbitrary query and serializes the result as an Arrow IPC
// stream (schema followed by record batches).
func (e *Engine) QueryIPC(ctx context.Context, sqlText string, args ...interface{}) ([]byte, error) {
	records, schema, err := e.QueryRecords(ctx, sqlText, args...)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range records {
			r.Release()
		}
	}()

	var buf bytes.Buffer
	writer := ipc.NewWriter(&buf, ipc.WithSchema(schema))
	for _, rec := range records {
		if err := writer.Write(rec); err != nil {
			_ = writer.Close()
			return nil, errors.Wrap(err, errors.ErrorTypeEngine, "write record batch")
		}
	}
	if err := writer.Close(); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeEngine, "finish ipc stream")
	}

	return buf.Bytes(), nil
}

// inferSchema derives an Arrow schema from materialized column values. The
// first non-nil value in a column decides its type; columns with no values
// default to utf8.
func inferSchema(names []string, columns [][]interface{}) *arrow.Schema {
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		var dt arrow.DataType = arrow.BinaryTypes.String
		for _, v := range columns[i] {
			if v == nil {
				continue
			}
			switch v.(type) {
			case int64:
				dt = arrow.PrimitiveTypes.Int64
			case float64:
				dt = arrow.PrimitiveTypes.Float64
			case bool:
				dt = arrow.FixedWidthTypes.Boolean
			case []byte:
				dt = arrow.BinaryTypes.Binary
			case string:
				dt = arrow.BinaryTypes.String
			}
			break
		}
		fields[i] = arrow.Field{Name: name, Type: dt, Nullable: true}
	}
	return arrow.NewSchema(fields, nil)
}

// appendValue appends one dynamically typed value to an Arrow array builder.
func appendValue(b array.Builder, v interface{}) error {
	if v == nil {
		b.AppendNull()
		return nil
	}

	switch builder := b.(type) {
	case *array.Int64Builder:
		i, ok := v.(int64)
		if !ok {
			return errors.Newf(errors.ErrorTypeInternal, "expected int64 value, got %T", v)
		}
		builder.Append(i)
	case *array.Float64Builder:
		switch val := v.(type) {
		case float64:
			builder.Append(val)
		case int64:
			builder.Append(float64(val))
		default:
			return errors.Newf(errors.ErrorTypeInternal, "expected float64 value, got %T", v)
		}
	case *array.BooleanBuilder:
		val, ok := v.(bool)
		if !ok {
			return errors.Newf(errors.ErrorTypeInternal, "expected bool value, got %T", v)
		}
		builder.Append(val)
	case *array.BinaryBuilder:
		val, ok := v.([]byte)
		if !ok {
			return errors.Newf(errors.ErrorTypeInternal, "expected blob value, got %T", v)
		}
		builder.Append(val)
	case *array.StringBuilder:
		switch val := v.(type) {
		case string:
			builder.Append(val)
		case []byte:
			builder.Append(string(val))
		default:
			return errors.Newf(errors.ErrorTypeInternal, "expected string value, got %T", v)
		}
	default:
		return errors.Newf(errors.ErrorTypeInternal, "unsupported builder type %T", b)
	}
	return nil
}
