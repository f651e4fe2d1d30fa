package connector

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newCRMServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/customers", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "secret", r.Header.Get("X-Api-Key"))
		if r.URL.Query().Get("name") == "ACME Corp" {
			_, _ = w.Write([]byte(`[{"name":"ACME Corp","city":"Berlin","tier":1}]`))
			return
		}
		_, _ = w.Write([]byte(`[{"name":"ACME Corp"},{"name":"Globex"}]`))
	})
	mux.HandleFunc("/orders", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"total":2,"data":[{"id":1},{"id":2}]}`))
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`all systems nominal`))
	})
	mux.HandleFunc("/profile", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"name":"ACME Corp","owner":"Wile"}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func newCRM(t *testing.T, url string) *RESTConnector {
	t.Helper()
	c, err := NewREST("crm_api", RESTConfig{
		BaseURL: url,
		Headers: map[string]string{"X-Api-Key": "secret"},
		Endpoints: map[string]Entry{
			"customers": {Params: []string{"name", "city"}},
		},
	})
	require.NoError(t, err)
	return c
}

func TestRESTConnector_Execute(t *testing.T) {
	server := newCRMServer(t)
	defer server.Close()
	c := newCRM(t, server.URL)

	rows, err := c.Execute(context.Background(), "GET /customers?name=ACME Corp")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Berlin", rows[0]["city"])

	rows, err = c.Execute(context.Background(), "/customers")
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRESTConnector_ResponseShapes(t *testing.T) {
	server := newCRMServer(t)
	defer server.Close()
	c := newCRM(t, server.URL)

	rows, err := c.Execute(context.Background(), "GET /orders")
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	rows, err = c.Execute(context.Background(), "GET /profile")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Wile", rows[0]["owner"])

	rows, err = c.Execute(context.Background(), "GET /status")
	require.NoError(t, err)
	assert.Equal(t, []Row{{"response": "all systems nominal"}}, rows)
}

func TestRESTConnector_RejectsNonGET(t *testing.T) {
	c := newCRM(t, "http://127.0.0.1:1")

	_, err := c.Execute(context.Background(), "DELETE /customers/1")
	assert.True(t, errors.Is(err, ErrNotReadOnly))
}

func TestRESTConnector_HTTPError(t *testing.T) {
	server := newCRMServer(t)
	defer server.Close()
	c := newCRM(t, server.URL)

	_, err := c.Execute(context.Background(), "GET /broken")
	var execErr *ExecutionError
	require.True(t, errors.As(err, &execErr))
	assert.Contains(t, err.Error(), "404")
}

func TestRESTConnector_Schema(t *testing.T) {
	c := newCRM(t, "http://localhost")
	assert.Equal(t, "GET /customers?name&city", c.Schema().Text(KindParameterized))
}

func TestNewREST_InvalidConfig(t *testing.T) {
	_, err := NewREST("x", RESTConfig{})
	assert.True(t, IsConfigurationError(err))

	_, err = NewREST("x", RESTConfig{BaseURL: "not a url"})
	assert.True(t, IsConfigurationError(err))
}
