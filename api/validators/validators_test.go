package validators

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/reddragons/storefront-backend/pkg/errors"
)

type addItem struct {
	ProductID string `json:"product_id,omitempty" validate:"required_without=ID,max=64"`
	ID        string `json:"id,omitempty" validate:"required_without=ProductID,max=128"`
	Quantity  int    `json:"quantity" validate:"omitempty,gt=0"`
}

type signup struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

func details(t *testing.T, err error) map[string]string {
	t.Helper()
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	require.Equal(t, pkgerrors.CodeValidation, typed.Code())
	out, _ := typed.Details().(map[string]string)
	return out
}

func postJSON(body string) *http.Request {
	return httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
}

func TestDecodeJSONBodyValid(t *testing.T) {
	var dest signup
	require.NoError(t, DecodeJSONBody(postJSON(`{"email":"fan@reddragons.test","password":"longenough"}`), &dest))
	require.Equal(t, "fan@reddragons.test", dest.Email)
}

func TestDecodeJSONBodyFieldMessages(t *testing.T) {
	var dest signup
	err := DecodeJSONBody(postJSON(`{"email":"nope","password":"short"}`), &dest)
	got := details(t, err)
	require.Equal(t, "must be a valid email", got["email"])
	require.Equal(t, "must be at least 8 characters", got["password"])
}

func TestDecodeJSONBodyRequiredWithout(t *testing.T) {
	var dest addItem
	got := details(t, DecodeJSONBody(postJSON(`{"quantity":0}`), &dest))
	require.Equal(t, "is required when id is not set", got["product_id"])
	require.Equal(t, "is required when product_id is not set", got["id"])
}

func TestDecodeJSONBodyRejectsMalformedInput(t *testing.T) {
	cases := map[string]string{
		"empty":    ``,
		"unknown":  `{"product_id":"p","colour":"red"}`,
		"trailing": `{"product_id":"p"}{"product_id":"q"}`,
		"syntax":   `{"product_id":`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			var dest addItem
			err := DecodeJSONBody(postJSON(body), &dest)
			require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "got %v", err)
		})
	}
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/orders?limit=25&bad=x&big=500", nil)

	v, err := ParseQueryInt(req, "limit", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 25, v)

	v, err = ParseQueryInt(req, "missing", 20, 1, 100)
	require.NoError(t, err)
	require.Equal(t, 20, v)

	_, err = ParseQueryInt(req, "bad", 20, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = ParseQueryInt(req, "big", 20, 1, 100)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestPathParam(t *testing.T) {
	withParam := func(value string) *http.Request {
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("itemID", value)
		req := httptest.NewRequest(http.MethodDelete, "/", nil)
		return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	}

	v, err := PathParam(withParam(" 71-4012 "), "itemID")
	require.NoError(t, err)
	require.Equal(t, "71-4012", v)

	_, err = PathParam(withParam("  "), "itemID")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	_, err = PathParam(withParam(strings.Repeat("x", maxPathParamLen+1)), "itemID")
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestBearerToken(t *testing.T) {
	require.Equal(t, "abc", BearerToken("Bearer abc"))
	require.Equal(t, "abc", BearerToken("bearer   abc "))
	require.Equal(t, "abc", BearerToken("abc"))
	require.Equal(t, "", BearerToken(""))
}
