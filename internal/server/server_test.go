package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisrobison/ouija/internal/config"
	"github.com/chrisrobison/ouija/internal/inference"
	"github.com/chrisrobison/ouija/internal/spirit"
	"github.com/chrisrobison/ouija/internal/store"
)

type scriptedClient struct {
	mu       sync.Mutex
	reply    string
	err      error
	asked    []string
	summoned int
}

func (c *scriptedClient) Chat(_ context.Context, req *inference.Request) (*inference.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if req.Purpose == "generate" {
		c.summoned++
		names := []string{"Ida Bell", "Tomas Veld", "John Smith", "John Doe"}
		name := names[(c.summoned-1)%len(names)]
		return &inference.Response{Content: `{"name":"` + name + `","birth_year":1850,"death_year":1900,"occupation":"miller","birthplace":"Ghent"}`}, nil
	}
	if c.err != nil {
		return nil, c.err
	}
	c.asked = append(c.asked, req.Messages[len(req.Messages)-1].Content)
	return &inference.Response{Content: c.reply}, nil
}

func (c *scriptedClient) Health() error { return nil }

func testServer(t *testing.T) (*Server, *scriptedClient, *spirit.Service) {
	t.Helper()
	cfg := config.Default()
	cfg.Server.Port = 18800
	client := &scriptedClient{reply: "I was a miller."}
	svc := spirit.NewService(spirit.NewStore(store.NewMemoryBackend()), client, spirit.OptionsFromConfig(cfg))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, NewDispatcher(svc, logger), client, logger), client, svc
}

func do(t *testing.T, srv *Server, method, target string, form url.Values) *http.Response {
	t.Helper()
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w.Result()
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

func TestNew(t *testing.T) {
	srv, _, _ := testServer(t)
	require.NotNil(t, srv)
	assert.Equal(t, "0.0.0.0:18800", srv.httpServer.Addr)
}

func TestHealthHandler(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := do(t, srv, http.MethodGet, "/health", nil)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var hr HealthResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&hr))
	assert.Equal(t, "healthy", hr.Status)
	assert.True(t, hr.Services["inference"].Healthy)
}

func TestAskDefaultAction(t *testing.T) {
	srv, client, _ := testServer(t)

	resp := do(t, srv, http.MethodGet, "/?q=Who+are+you%3F", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
	assert.Equal(t, "I was a miller.", readBody(t, resp))
	assert.Equal(t, []string{"Who are you?"}, client.asked)
}

func TestAskViaFormAndAlias(t *testing.T) {
	srv, client, _ := testServer(t)

	resp := do(t, srv, http.MethodPost, "/ouija.php", url.Values{"action": {"ask"}, "q": {"Where were you born?"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "I was a miller.", readBody(t, resp))
	assert.Equal(t, []string{"Where were you born?"}, client.asked)
}

func TestAskEmptyQuestionGreets(t *testing.T) {
	srv, client, _ := testServer(t)
	resp := do(t, srv, http.MethodGet, "/?action=ask", nil)
	readBody(t, resp)
	assert.Equal(t, []string{"Hello."}, client.asked)
}

func TestAskUpstreamFailure(t *testing.T) {
	srv, client, _ := testServer(t)
	client.err = &inference.UpstreamError{Provider: "fake", StatusCode: 503, Err: errors.New("secret internal detail")}

	resp := do(t, srv, http.MethodGet, "/?q=hello", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	body := readBody(t, resp)
	assert.Equal(t, "Error", body)
	assert.NotContains(t, body, "secret")
}

func TestPreflight(t *testing.T) {
	srv, client, _ := testServer(t)
	resp := do(t, srv, http.MethodOptions, "/?action=reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
	assert.Zero(t, client.summoned, "preflight must not dispatch")
}

func TestConfiguredOrigin(t *testing.T) {
	cfg := config.Default()
	cfg.Server.AllowOrigin = "https://board.example"
	client := &scriptedClient{reply: "Yes."}
	svc := spirit.NewService(spirit.NewStore(store.NewMemoryBackend()), client, spirit.OptionsFromConfig(cfg))
	srv := New(cfg, NewDispatcher(svc, slog.Default()), client, slog.Default())

	resp := do(t, srv, http.MethodGet, "/?action=list", nil)
	readBody(t, resp)
	assert.Equal(t, "https://board.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestUnknownActionIsEmpty(t *testing.T) {
	srv, client, _ := testServer(t)
	resp := do(t, srv, http.MethodGet, "/?action=levitate", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, readBody(t, resp))
	assert.Zero(t, client.summoned)
}

func TestUnknownPath(t *testing.T) {
	srv, _, _ := testServer(t)
	resp := do(t, srv, http.MethodGet, "/wp-admin", nil)
	readBody(t, resp)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestResetAndList(t *testing.T) {
	srv, _, _ := testServer(t)

	resp := do(t, srv, http.MethodGet, "/?action=reset", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "A new spirit has come through: Ida Bell (1850-1900), miller from Ghent.", readBody(t, resp))

	do(t, srv, http.MethodGet, "/?action=reset", nil).Body.Close()

	resp = do(t, srv, http.MethodGet, "/?action=list", nil)
	body := readBody(t, resp)
	assert.Contains(t, body, "  1. Ida Bell")
	assert.Contains(t, body, "* 2. Tomas Veld")
}

func TestSwitchAndSearch(t *testing.T) {
	srv, _, svc := testServer(t)
	for i := 0; i < 4; i++ {
		_, err := svc.Reset(context.Background())
		require.NoError(t, err)
	}

	resp := do(t, srv, http.MethodGet, "/?action=switch", nil)
	assert.Equal(t, "Please provide a name.", readBody(t, resp))

	resp = do(t, srv, http.MethodGet, "/?action=switch&name=john", nil)
	body := readBody(t, resp)
	assert.Contains(t, body, `Several spirits answer to "john"`)
	id, _, err := svc.Store().CurrentID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "john_doe_1850", id, "ambiguous switch leaves the pointer alone")

	resp = do(t, srv, http.MethodGet, "/?action=switch&name=ida+bell", nil)
	assert.Equal(t, "Now speaking with Ida Bell.", readBody(t, resp))
	id, _, err = svc.Store().CurrentID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ida_bell_1850", id)

	resp = do(t, srv, http.MethodGet, "/?action=search&name=veld", nil)
	assert.Equal(t, "Found Tomas Veld (1850-1900), miller from Ghent.", readBody(t, resp))

	resp = do(t, srv, http.MethodGet, "/?action=search&name=nobody", nil)
	assert.Equal(t, `No spirit named "nobody".`, readBody(t, resp))
}

func TestProfileAndHistory(t *testing.T) {
	srv, _, _ := testServer(t)
	for _, q := range []string{"one", "two"} {
		do(t, srv, http.MethodGet, "/?q="+q, nil).Body.Close()
	}

	resp := do(t, srv, http.MethodGet, "/?action=profile", nil)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var profile spirit.Profile
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &profile))
	assert.Equal(t, "Ida Bell", profile.Name)

	resp = do(t, srv, http.MethodGet, "/?action=history&n=10", nil)
	var turns []spirit.Turn
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &turns))
	assert.Len(t, turns, 4)

	resp = do(t, srv, http.MethodGet, "/?action=history&n=1", nil)
	require.NoError(t, json.Unmarshal([]byte(readBody(t, resp)), &turns))
	assert.Equal(t, []spirit.Turn{{Role: "assistant", Content: "I was a miller."}}, turns)
}

func TestParseHistoryN(t *testing.T) {
	tests := []struct {
		raw  string
		want int
	}{
		{"", 20},
		{"5", 5},
		{" 7 ", 7},
		{"0", 1},
		{"-3", 1},
		{"lots", 20},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseHistoryN(tt.raw), "n=%q", tt.raw)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := testServer(t)
	do(t, srv, http.MethodGet, "/?action=list", nil).Body.Close()

	resp := do(t, srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), "ouija_requests_total")
}

func TestShutdown(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.httpServer.Addr = "127.0.0.1:18801"
	go srv.Start()
	time.Sleep(100 * time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
