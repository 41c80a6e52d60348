package inventory_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-stockroom/inventory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token string
}

func (s staticTokens) BearerToken(context.Context) (string, bool) {
	return s.token, s.token != ""
}

type captureLogger struct {
	mu    sync.Mutex
	warns []string
}

func (l *captureLogger) Debug(string, ...any) {}
func (l *captureLogger) Info(string, ...any)  {}
func (l *captureLogger) Error(string, ...any) {}

func (l *captureLogger) Warn(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warns = append(l.warns, fmt.Sprintf(format, args...))
}

type observation struct {
	method string
	status int
}

type recorder struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recorder) ObserveRequest(method, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{method: method, status: status})
}

func newServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return srv
}

func TestListAcceptsKnownShapes(t *testing.T) {
	cases := map[string]string{
		"upper wrapper": `{"Items":[{"itemId":"1","name":"Bolt","price":1.5,"quantity":3}]}`,
		"lower wrapper": `{"items":[{"itemId":"1","name":"Bolt","price":1.5,"quantity":3}]}`,
		"bare array":    `[{"itemId":"1","name":"Bolt","price":1.5,"quantity":3}]`,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				_, _ = io.WriteString(w, body)
			})

			client := inventory.NewClient(srv.URL, nil)
			items, err := client.List(context.Background())
			require.NoError(t, err)
			require.Len(t, items, 1)
			assert.Equal(t, "1", items[0].ItemID)
			assert.Equal(t, "Bolt", items[0].Name)
			assert.Equal(t, 3, items[0].Quantity)
		})
	}
}

func TestListUnknownShapeDegradesToEmpty(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"data":[{"itemId":"1"}]}`)
	})

	logger := &captureLogger{}
	client := inventory.NewClient(srv.URL, nil, inventory.WithLogger(logger))

	items, err := client.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, items)
	assert.Empty(t, items)
	require.Len(t, logger.warns, 1)
	assert.Contains(t, logger.warns[0], "not in an expected format")
}

func TestListNonJSONBodyIsAnError(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `<html>oops</html>`)
	})

	client := inventory.NewClient(srv.URL, nil)
	_, err := client.List(context.Background())
	assert.Error(t, err)
}

func TestAuthorizationHeaderOnlyWithToken(t *testing.T) {
	var headers []http.Header
	var mu sync.Mutex
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		headers = append(headers, r.Header.Clone())
		mu.Unlock()
		_, _ = io.WriteString(w, `[]`)
	})

	_, err := inventory.NewClient(srv.URL, staticTokens{token: "id-token"}).List(context.Background())
	require.NoError(t, err)

	_, err = inventory.NewClient(srv.URL, staticTokens{}).List(context.Background())
	require.NoError(t, err)

	require.Len(t, headers, 2)
	assert.Equal(t, "Bearer id-token", headers[0].Get("Authorization"))
	assert.Empty(t, headers[1].Get("Authorization"))

	for _, h := range headers {
		assert.Empty(t, h.Get("Content-Type"))
		assert.Equal(t, "application/json", h.Get("Accept"))
		assert.NotEmpty(t, h.Get("X-Request-ID"))
	}
}

func TestRequestFailedUsesBodyMessage(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"message":"Forbidden"}`)
	})

	_, err := inventory.NewClient(srv.URL, nil).List(context.Background())
	require.Error(t, err)

	var reqErr *inventory.RequestFailedError
	require.True(t, errors.As(err, &reqErr))
	assert.Equal(t, http.StatusForbidden, reqErr.Status)
	assert.Equal(t, "Forbidden", reqErr.Message)
	assert.Equal(t, http.MethodGet, reqErr.Method)
}

func TestRequestFailedFallbackMessage(t *testing.T) {
	cases := map[string]string{
		"empty message": `{"message":""}`,
		"no json":       `Internal Server Error`,
		"empty body":    ``,
	}

	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = io.WriteString(w, body)
			})

			_, err := inventory.NewClient(srv.URL, nil).Get(context.Background(), "1")
			var reqErr *inventory.RequestFailedError
			require.True(t, errors.As(err, &reqErr))
			assert.Equal(t, "API error: 500", reqErr.Message)
			assert.Equal(t, "API error: 500", err.Error())
		})
	}
}

func TestContentTypeOnlyWithBody(t *testing.T) {
	contentTypes := map[string]string{}
	var mu sync.Mutex
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		contentTypes[r.Method] = r.Header.Get("Content-Type")
		mu.Unlock()
		switch r.Method {
		case http.MethodDelete:
			_, _ = io.WriteString(w, `{"message":"Item deleted"}`)
		default:
			_, _ = io.WriteString(w, `{"itemId":"1","name":"Bolt","price":1,"quantity":1}`)
		}
	})

	ctx := context.Background()
	client := inventory.NewClient(srv.URL, nil)
	name := "Bolt"

	_, err := client.Get(ctx, "1")
	require.NoError(t, err)
	_, err = client.Delete(ctx, "1")
	require.NoError(t, err)
	_, err = client.Create(ctx, inventory.ItemInput{Name: "Bolt", Price: 1, Quantity: 1})
	require.NoError(t, err)
	_, err = client.Update(ctx, inventory.ItemPatch{ItemID: "1", Name: &name})
	require.NoError(t, err)

	assert.Empty(t, contentTypes[http.MethodGet])
	assert.Empty(t, contentTypes[http.MethodDelete])
	assert.Equal(t, "application/json", contentTypes[http.MethodPost])
	assert.Equal(t, "application/json", contentTypes[http.MethodPut])
}

func TestGetAndDeleteUseItemIDQuery(t *testing.T) {
	var seen []string
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		seen = append(seen, r.Method+" "+r.URL.Path+" "+r.URL.Query().Get("itemId"))
		switch r.Method {
		case http.MethodGet:
			_, _ = io.WriteString(w, `{"itemId":"a/b","name":"Nut","price":0.1,"quantity":0,"createdAt":"2024-01-01T00:00:00Z"}`)
		case http.MethodDelete:
			_, _ = io.WriteString(w, `{"message":"Item deleted"}`)
		}
	})

	client := inventory.NewClient(srv.URL+"/", nil)

	item, err := client.Get(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "Nut", item.Name)
	assert.Equal(t, "2024-01-01T00:00:00Z", item.CreatedAt)

	result, err := client.Delete(context.Background(), "a/b")
	require.NoError(t, err)
	assert.Equal(t, "Item deleted", result.Message)

	assert.Equal(t, []string{"GET /items a/b", "DELETE /items a/b"}, seen)
}

func TestCreateSendsInputWithoutServerFields(t *testing.T) {
	var payload map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"itemId":"new","name":"Washer","price":2,"quantity":5}`)
	})

	item, err := inventory.NewClient(srv.URL, nil).Create(context.Background(), inventory.ItemInput{
		Name:     "Washer",
		Price:    2,
		Quantity: 5,
	})
	require.NoError(t, err)
	assert.Equal(t, "new", item.ItemID)

	assert.Equal(t, "Washer", payload["name"])
	assert.NotContains(t, payload, "itemId")
	assert.NotContains(t, payload, "createdAt")
	assert.NotContains(t, payload, "category")
}

func TestUpdateSendsOnlySetFields(t *testing.T) {
	var payload map[string]any
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Empty(t, r.URL.RawQuery)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		_, _ = io.WriteString(w, `{"itemId":"1","name":"Bolt","price":1,"quantity":7}`)
	})

	qty := 7
	item, err := inventory.NewClient(srv.URL, nil).Update(context.Background(), inventory.ItemPatch{
		ItemID:   "1",
		Quantity: &qty,
	})
	require.NoError(t, err)
	assert.Equal(t, 7, item.Quantity)

	assert.Equal(t, map[string]any{"itemId": "1", "quantity": float64(7)}, payload)
}

func TestValidationHappensBeforeIO(t *testing.T) {
	calls := 0
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
	})
	client := inventory.NewClient(srv.URL, nil)
	ctx := context.Background()

	_, err := client.Create(ctx, inventory.ItemInput{Price: 1})
	assert.Error(t, err)

	_, err = client.Create(ctx, inventory.ItemInput{Name: "x", Quantity: -1})
	assert.Error(t, err)

	negative := -2.0
	_, err = client.Update(ctx, inventory.ItemPatch{ItemID: "1", Price: &negative})
	assert.Error(t, err)

	_, err = client.Update(ctx, inventory.ItemPatch{})
	assert.Error(t, err)

	_, err = client.Get(ctx, "")
	assert.Error(t, err)

	_, err = client.Delete(ctx, "")
	assert.Error(t, err)

	assert.Zero(t, calls)
}

func TestEmptySuccessBody(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	client := inventory.NewClient(srv.URL, nil)

	result, err := client.Delete(context.Background(), "1")
	require.NoError(t, err)
	assert.Equal(t, &inventory.DeleteResult{}, result)

	items, err := client.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestRecorderObservesRequests(t *testing.T) {
	srv := newServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodDelete {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `[]`)
	})

	rec := &recorder{}
	client := inventory.NewClient(srv.URL, nil, inventory.WithRecorder(rec))

	_, err := client.List(context.Background())
	require.NoError(t, err)
	_, err = client.Delete(context.Background(), "missing")
	require.Error(t, err)

	assert.Equal(t, []observation{
		{method: http.MethodGet, status: http.StatusOK},
		{method: http.MethodDelete, status: http.StatusNotFound},
	}, rec.obs)
}

func TestTransportErrorIsReturned(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	rec := &recorder{}
	_, err := inventory.NewClient(url, nil, inventory.WithRecorder(rec)).List(context.Background())
	require.Error(t, err)

	var reqErr *inventory.RequestFailedError
	assert.False(t, errors.As(err, &reqErr))
	require.Len(t, rec.obs, 1)
	assert.Zero(t, rec.obs[0].status)
}
