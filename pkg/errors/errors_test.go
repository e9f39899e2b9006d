package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataForUnknownCodeFallsBackToInternal(t *testing.T) {
	meta := MetadataFor(Code("SOMETHING_ELSE"))
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.False(t, meta.Expose)
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("connection reset")
	err := Wrap(CodeDependency, cause, "create checkout session")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, CodeDependency, err.Code())
	assert.Contains(t, err.Error(), "connection reset")
}

func TestAsFindsTypedErrorThroughWrapping(t *testing.T) {
	typed := New(CodeNotFound, "store not found")
	wrapped := fmt.Errorf("resolve: %w", typed)

	got := As(wrapped)
	require.NotNil(t, got)
	assert.Equal(t, "store not found", got.Message())
	assert.True(t, IsCode(wrapped, CodeNotFound))
	assert.False(t, IsCode(wrapped, CodeConflict))
	assert.Nil(t, As(stdErrors.New("plain")))
}

func TestWithDetails(t *testing.T) {
	err := Newf(CodeValidation, "product %s not found", "abc").WithDetails(map[string]any{"productId": "abc"})
	assert.Equal(t, "product abc not found", err.Message())
	assert.Equal(t, map[string]any{"productId": "abc"}, err.Details())
}

func TestDumpCapturesPostgresDiagnostics(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_orders_checkout_session", TableName: "orders"}
	err := Wrap(CodeConflict, fmt.Errorf("insert order: %w", pgErr), "order already exists")

	d := Dump(err)
	assert.Equal(t, CodeConflict, d.Code)
	assert.Equal(t, http.StatusConflict, d.HTTPStatus)
	assert.Equal(t, "23505", d.SQLState)
	assert.Equal(t, "idx_orders_checkout_session", d.Constraint)
	assert.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "CONFLICT", fields["error_code"])
	assert.Equal(t, "orders", fields["sql_table"])

	assert.Equal(t, ErrorDump{}, Dump(nil))
}
