// Package store error constructors, built on the shared enhanced error
// component so every failure carries a category and a sentinel kind.
package store

import (
	"database/sql/driver"
	"fmt"
	"strings"

	"github.com/linguanet/linguanet-go/internal/errors"
)

// storeError wraps a driver-level failure.
func storeError(err error, operation string, context ...any) error {
	builder := errors.New(fmt.Errorf("%w: %w", errors.ErrStore, err)).
		Component("store").
		Category(errors.CategoryStore).
		Context("operation", operation)

	if IsConnectionLost(err) {
		builder = builder.Priority(errors.PriorityCritical).Category(errors.CategoryConnection)
	}

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// prepareError reports a placeholder/argument count mismatch. The statement
// never reaches the driver.
func prepareError(query string, want, got int) error {
	return errors.Newf("%w: query expects %d arguments, got %d", errors.ErrQueryPrepare, want, got).
		Component("store").
		Category(errors.CategoryQueryPrepare).
		Context("query", query).
		Build()
}

// schemaError reports a malformed table or column descriptor.
func schemaError(message string, context ...any) error {
	builder := errors.Newf("%w: %s", errors.ErrSchema, message).
		Component("store").
		Category(errors.CategorySchema)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// persistError reports a write the store accepted but did not apply.
func persistError(operation, table string, context ...any) error {
	builder := errors.Newf("%w: %s on %s had no effect", errors.ErrPersist, operation, table).
		Component("store").
		Category(errors.CategoryPersist).
		Context("operation", operation).
		TableContext(table)

	for i := 0; i < len(context)-1; i += 2 {
		if key, ok := context[i].(string); ok {
			builder = builder.Context(key, context[i+1])
		}
	}

	return builder.Build()
}

// connectionLostMarkers are the driver message fragments that indicate the
// session itself is gone rather than a single statement failing.
var connectionLostMarkers = []string{
	"server has gone away",
	"invalid connection",
	"bad connection",
	"broken pipe",
	"connection refused",
	"connection reset",
	"dial tcp",
	"database is closed",
}

// IsConnectionLost reports whether err means the store connection is gone.
// Connection loss is the one condition that fails a whole run: every other
// store error is recorded against its record and the run continues.
func IsConnectionLost(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range connectionLostMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
