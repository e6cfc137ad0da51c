package gateway

import (
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/stockyard/pkg/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// captureServer records the last request it received
func captureServer(t *testing.T, status int, body string) (*countingServer, func() (*http.Request, []byte)) {
	t.Helper()

	var (
		mu       sync.Mutex
		lastReq  *http.Request
		lastBody []byte
	)
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		mu.Lock()
		lastReq, lastBody = r.Clone(context.Background()), b
		mu.Unlock()
		jsonHandler(status, body)(w, r)
	})
	return srv, func() (*http.Request, []byte) {
		mu.Lock()
		defer mu.Unlock()
		return lastReq, lastBody
	}
}

func TestRequest_DefaultHeaders(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{}`)
	tokens := NewMemoryTokenStore()
	tokens.Set(TokenKey, `"jwt-abc"`)
	client, _ := newTestClient(t, srv, func(c *Config) {
		c.Origin = "https://admin.example.com"
	}, WithTokenStore(tokens))

	_, err := client.Get(context.Background(), "/roles", nil)
	require.NoError(t, err)

	req, _ := last()
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
	assert.Equal(t, "XMLHttpRequest", req.Header.Get("X-Requested-With"))
	assert.Equal(t, "Bearer jwt-abc", req.Header.Get("Authorization"))
	assert.Equal(t, "https://admin.example.com", req.Header.Get("Origin"))
	assert.Equal(t, "GET", req.Header.Get("Access-Control-Request-Method"))
	assert.NotEmpty(t, req.Header.Get("Access-Control-Request-Headers"))
	assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
}

func TestRequest_NoOriginHeadersWithoutOrigin(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv, nil)

	_, err := client.Get(context.Background(), "/roles", nil)
	require.NoError(t, err)

	req, _ := last()
	assert.Empty(t, req.Header.Get("Origin"))
	assert.Empty(t, req.Header.Get("Access-Control-Request-Method"))
	assert.Empty(t, req.Header.Get("Authorization"), "no token means no auth header")
}

func TestRequest_RequestIDFromContext(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv, nil)

	ctx := observability.WithRequestID(context.Background(), "req-123")
	_, err := client.Post(ctx, "/x", nil, nil)
	require.NoError(t, err)

	req, _ := last()
	assert.Equal(t, "req-123", req.Header.Get("X-Request-ID"))
}

func TestRequest_ExtraHeadersOverrideDefaults(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv, nil)

	_, err := client.Get(context.Background(), "/x", &Options{Headers: http.Header{
		"Accept":   {"text/csv"},
		"X-Tenant": {"north"},
	}})
	require.NoError(t, err)

	req, _ := last()
	assert.Equal(t, "text/csv", req.Header.Get("Accept"))
	assert.Equal(t, "north", req.Header.Get("X-Tenant"))
}

func TestRequest_TokenSourceOverride(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{}`)
	client, _ := newTestClient(t, srv, nil,
		WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "static", TokenType: "Bearer"})))

	_, err := client.Get(context.Background(), "/x", nil)
	require.NoError(t, err)

	req, _ := last()
	assert.Equal(t, "Bearer static", req.Header.Get("Authorization"))
}

func TestPost_JSONBody(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{"status":"ok"}`)
	client, _ := newTestClient(t, srv, nil)

	_, err := client.Post(context.Background(), "/purchases", map[string]any{"head": 12, "breed": "angus"}, nil)
	require.NoError(t, err)

	req, body := last()
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"head":12,"breed":"angus"}`, string(body))
}

func TestPost_MultipartBody(t *testing.T) {
	type upload struct {
		contentType string
		field       string
		fileBody    string
		err         error
	}
	received := make(chan upload, 1)
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		got := upload{contentType: r.Header.Get("Content-Type")}
		if got.err = r.ParseMultipartForm(1 << 20); got.err == nil {
			got.field = r.FormValue("note")
			var f multipart.File
			if f, _, got.err = r.FormFile("invoice"); got.err == nil {
				b, _ := io.ReadAll(f)
				got.fileBody = string(b)
			}
		}
		received <- got
		jsonHandler(http.StatusOK, `{"status":"ok"}`)(w, r)
	})
	client, _ := newTestClient(t, srv, nil)

	form := NewFormData().
		Append("note", "hides batch 7").
		AppendFile("invoice", "invoice.txt", strings.NewReader("total: 1200"))

	_, err := client.Post(context.Background(), "/uploads", form, nil)
	require.NoError(t, err)

	got := <-received
	require.NoError(t, got.err)
	assert.True(t, strings.HasPrefix(got.contentType, "multipart/form-data; boundary="), got.contentType)
	assert.Equal(t, "hides batch 7", got.field)
	assert.Equal(t, "total: 1200", got.fileBody)
}

func TestPutAndDelete(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{"status":"ok"}`)
	client, _ := newTestClient(t, srv, nil)
	ctx := context.Background()

	_, err := client.Put(ctx, "/employees/3", map[string]string{"name": "Ana"}, nil)
	require.NoError(t, err)
	req, body := last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/employees/3", req.URL.Path)
	assert.JSONEq(t, `{"name":"Ana"}`, string(body))

	_, err = client.Delete(ctx, "/employees/3", nil)
	require.NoError(t, err)
	req, body = last()
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Empty(t, body)
}

func TestRequest_UnauthorizedClearsTokens(t *testing.T) {
	srv := newCountingServer(t, jsonHandler(http.StatusUnauthorized, `{"message":"jwt expired"}`))
	tokens := NewMemoryTokenStore()
	for _, k := range AllTokenKeys {
		tokens.Set(k, "value")
	}
	tokens.Set("theme", "dark")
	client, _ := newTestClient(t, srv, nil, WithTokenStore(tokens))

	_, err := client.Post(context.Background(), "/anything", nil, nil)

	var gerr *Error
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, KindAuth, gerr.Kind)
	assert.Equal(t, MsgSessionExpired, gerr.Message)
	assert.True(t, gerr.NeedsLogin())
	assert.Contains(t, err.Error(), "401")

	for _, k := range AllTokenKeys {
		_, ok := tokens.Get(k)
		assert.False(t, ok, "key %s should be cleared", k)
	}
	_, ok := tokens.Get("theme")
	assert.True(t, ok, "unrelated keys survive")
}

func TestRequest_DecodeError(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>oops</html>"))
	})
	client, _ := newTestClient(t, srv, nil)

	_, err := client.Get(context.Background(), "/x", nil)
	assert.True(t, IsKind(err, KindDecode))
}

func TestRequest_EmptyBody(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	client, _ := newTestClient(t, srv, nil)

	raw, err := client.Delete(context.Background(), "/x", nil)
	require.NoError(t, err)
	assert.Equal(t, "null", string(raw))
}

func TestRequest_NetworkError(t *testing.T) {
	srv := newCountingServer(t, jsonHandler(http.StatusOK, `{}`))
	client, _ := newTestClient(t, srv, nil)
	srv.Close()

	_, err := client.Get(context.Background(), "/x", nil)
	assert.True(t, IsKind(err, KindNetwork))
	assert.Contains(t, err.Error(), "network error")
}

func TestRequest_Timeout(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	})
	client, _ := newTestClient(t, srv, func(c *Config) { c.Timeout = 50 * time.Millisecond })

	_, err := client.Post(context.Background(), "/slow", nil, nil)
	assert.True(t, IsKind(err, KindNetwork))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, "request timed out", err.Error())
}

func TestRequest_RedirectPolicy(t *testing.T) {
	srv := newCountingServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/old" {
			http.Redirect(w, r, "/api/new", http.StatusFound)
			return
		}
		jsonHandler(http.StatusOK, `{"moved":true}`)(w, r)
	})
	client, _ := newTestClient(t, srv, nil)
	ctx := context.Background()

	t.Run("follow by default", func(t *testing.T) {
		raw, err := client.Get(ctx, "/old", NoCache())
		require.NoError(t, err)
		assert.JSONEq(t, `{"moved":true}`, string(raw))
	})

	t.Run("error", func(t *testing.T) {
		opts := NoCache()
		opts.Redirect = "error"
		_, err := client.Get(ctx, "/old", opts)
		assert.True(t, IsKind(err, KindNetwork))
		assert.ErrorIs(t, err, ErrRedirectNotAllowed)
	})

	t.Run("manual", func(t *testing.T) {
		_, err := client.Post(ctx, "/old", nil, &Options{Redirect: "manual"})
		var gerr *Error
		require.ErrorAs(t, err, &gerr)
		assert.Equal(t, http.StatusFound, gerr.Status)
	})
}

func TestResolveURL(t *testing.T) {
	client, err := New(Config{BaseURL: "https://api.example.com/api"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		endpoint string
		params   url.Values
		want     string
	}{
		{"leading slash", "/roles", nil, "https://api.example.com/api/roles"},
		{"no slash", "roles", nil, "https://api.example.com/api/roles"},
		{"absolute passes through", "http://other.example.com/x?y=1", nil, "http://other.example.com/x?y=1"},
		{"params merged and sorted", "/sales?b=2", url.Values{"a": {"1"}}, "https://api.example.com/api/sales?a=1&b=2"},
		{"params override", "/sales?page=1", url.Values{"page": {"3"}}, "https://api.example.com/api/sales?page=3"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := client.ResolveURL(tt.endpoint, tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveURL_RelativeWithoutBase(t *testing.T) {
	client, err := New(Config{})
	require.NoError(t, err)

	_, err = client.Get(context.Background(), "/roles", nil)
	assert.True(t, IsKind(err, KindClient))
}

func TestGetJSON(t *testing.T) {
	srv := newCountingServer(t, jsonHandler(http.StatusOK, `[{"id":1,"name":"Admin"}]`))
	client, _ := newTestClient(t, srv, nil)

	type role struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	}
	roles, err := GetJSON[[]role](context.Background(), client, "/roles", nil)
	require.NoError(t, err)
	assert.Equal(t, []role{{ID: 1, Name: "Admin"}}, roles)

	_, err = GetJSON[map[string]int](context.Background(), client, "/roles", nil)
	assert.True(t, IsKind(err, KindDecode))
}

func TestPostJSON(t *testing.T) {
	srv, last := captureServer(t, http.StatusOK, `{"status":"ok","data":{"updated":2}}`)
	client, _ := newTestClient(t, srv, nil)

	env, err := PostJSON[Envelope[map[string]int]](context.Background(), client, "/bulk", map[string]int{"n": 2}, nil)
	require.NoError(t, err)
	assert.Equal(t, StatusOK, env.Status)
	assert.Equal(t, 2, env.Data["updated"])

	_, body := last()
	var sent map[string]int
	require.NoError(t, json.Unmarshal(body, &sent))
	assert.Equal(t, 2, sent["n"])
}
