package upstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClient_Do_SuccessEnvelope(t *testing.T) {
	t.Parallel()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"result":{"id":42}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "secret-token", nil)
	env, err := c.Do(context.Background(), Request{
		Method:      "getMe",
		Body:        []byte(`{}`),
		ContentType: "application/json",
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !env.OK {
		t.Errorf("env.OK = false, want true")
	}
	if want := "/botsecret-token/getMe"; gotPath != want {
		t.Errorf("path = %q, want %q", gotPath, want)
	}
}

func TestClient_Do_FailureEnvelopeDecodedNotError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"ok":false,"error_code":429,"description":"Too Many Requests","parameters":{"retry_after_seconds":2}}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	env, err := c.Do(context.Background(), Request{Method: "sendMessage", Body: []byte(`{}`), ContentType: "application/json"})
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}
	if env.OK {
		t.Fatal("expected failure envelope")
	}
	if env.ErrorCode == nil || *env.ErrorCode != 429 {
		t.Errorf("ErrorCode = %v, want 429", env.ErrorCode)
	}
	if env.Parameters == nil || env.Parameters.RetryAfterSeconds == nil || *env.Parameters.RetryAfterSeconds != 2 {
		t.Errorf("Parameters = %+v, want retry_after_seconds=2", env.Parameters)
	}
}

func TestClient_Do_TransportErrorOnUnreachableHost(t *testing.T) {
	t.Parallel()
	c := New("http://127.0.0.1:1", "tok", nil)
	_, err := c.Do(context.Background(), Request{Method: "getMe", Body: []byte(`{}`), ContentType: "application/json"})
	if err == nil {
		t.Fatal("expected transport error connecting to closed port")
	}
}

func TestClient_Do_MalformedBodyIsError(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	_, err := c.Do(context.Background(), Request{Method: "getMe", Body: []byte(`{}`), ContentType: "application/json"})
	if err == nil {
		t.Fatal("expected decode error for malformed body")
	}
}

func TestClient_Do_SendsContentType(t *testing.T) {
	t.Parallel()
	var gotCT string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCT = r.Header.Get("Content-Type")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	_, err := c.Do(context.Background(), Request{
		Method:      "sendPhoto",
		Body:        []byte("multipart-body"),
		ContentType: "multipart/form-data; boundary=xyz",
	})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	if !strings.HasPrefix(gotCT, "multipart/form-data") {
		t.Errorf("Content-Type = %q, want multipart prefix", gotCT)
	}
}

func TestClient_Do_ContextCancellation(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-block
	}))
	defer srv.Close()
	defer close(block)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := New(srv.URL, "tok", nil)
	_, err := c.Do(ctx, Request{Method: "getMe", Body: []byte(`{}`), ContentType: "application/json"})
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}

func TestNew_PrependsHTTPSForBareHost(t *testing.T) {
	t.Parallel()
	c := New("api.telegram.org", "secret-token", nil)
	if c.host != "https://api.telegram.org" {
		t.Errorf("host = %q, want %q", c.host, "https://api.telegram.org")
	}
}

func TestNew_PreservesExistingScheme(t *testing.T) {
	t.Parallel()
	c := New("http://127.0.0.1:8080/", "secret-token", nil)
	if c.host != "http://127.0.0.1:8080" {
		t.Errorf("host = %q, want %q", c.host, "http://127.0.0.1:8080")
	}
}

func TestClient_Do_RoundTripsArbitraryJSONResult(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"result":[1,2,3]}`))
	}))
	defer srv.Close()

	c := New(srv.URL, "tok", nil)
	env, err := c.Do(context.Background(), Request{Method: "getUpdates", Body: []byte(`{}`), ContentType: "application/json"})
	if err != nil {
		t.Fatalf("Do: %v", err)
	}
	var nums []int
	if err := json.Unmarshal(env.Result, &nums); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if len(nums) != 3 {
		t.Errorf("nums = %v, want 3 elements", nums)
	}
}
