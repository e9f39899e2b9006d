package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type sample struct {
	Email string `json:"email" validate:"required,email"`
	Count int    `json:"count" validate:"min=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	var ok sample
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"email":"a@b.co","count":2}`))
	require.NoError(t, DecodeJSONBody(req, &ok))
	assert.Equal(t, 2, ok.Count)

	cases := map[string]string{
		"unknown field": `{"email":"a@b.co","count":1,"extra":true}`,
		"bad email":     `{"email":"nope","count":1}`,
		"min":           `{"email":"a@b.co","count":0}`,
		"malformed":     `{"email":`,
		"trailing":      `{"email":"a@b.co","count":1}{"email":"x@y.z","count":1}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest sample
			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
			err := DecodeJSONBody(req, &dest)
			assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestValidationDetailsUseJSONNames(t *testing.T) {
	err := ValidateStruct(&sample{Email: "bad"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "must be at least 1", details["count"])
}

func TestParsePage(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=10&offset=20", nil)
	page, err := ParsePage(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.Params{Limit: 10, Offset: 20}, page)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	page, err = ParsePage(req)
	require.NoError(t, err)
	assert.Equal(t, pagination.DefaultLimit, page.Limit)

	req = httptest.NewRequest(http.MethodGet, "/?limit=500", nil)
	_, err = ParsePage(req)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestParseUUIDParam(t *testing.T) {
	id := uuid.New()
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", id.String())
	rctx.URLParams.Add("bad", "not-a-uuid")
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	got, err := ParseUUIDParam(req, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = ParseUUIDParam(req, "bad")
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}
