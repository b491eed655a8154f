package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type testRequest struct {
	Name string `json:"name"`
}

type testResponse struct {
	Status string `json:"status"`
	Value  int    `json:"value"`
}

func TestPostSuccess(t *testing.T) {
	var gotBody testRequest
	var gotContentType, gotRequestID string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-Id")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(testResponse{Status: "ok", Value: 42})
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	var result testResponse
	err := client.Post(context.Background(), "/test", testRequest{Name: "test"}, &result)

	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Status != "ok" || result.Value != 42 {
		t.Errorf("expected {ok 42}, got {%s %d}", result.Status, result.Value)
	}

	if gotBody.Name != "test" {
		t.Errorf("expected body name 'test', got %q", gotBody.Name)
	}

	if gotContentType != "application/json" {
		t.Errorf("expected json content type, got %q", gotContentType)
	}

	if gotRequestID == "" {
		t.Error("expected X-Request-Id header")
	}
}

func TestPostDecodesWithoutContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status":"plain","value":7}`)
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	var result testResponse
	if err := client.Post(context.Background(), "/test", nil, &result); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if result.Status != "plain" || result.Value != 7 {
		t.Errorf("expected {plain 7}, got {%s %d}", result.Status, result.Value)
	}
}

func TestGetWithOptions(t *testing.T) {
	var gotAuth, gotQuery, gotCustom, gotPath string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("leverage")
		gotCustom = r.Header.Get("App-Name")
		io.WriteString(w, `{"status":"ok","value":1}`)
	}))
	defer server.Close()

	client := New(Config{
		BaseUrl: server.URL,
		Headers: map[string]string{"App-Name": "VIBE"},
	})

	var result testResponse
	err := client.Get(
		context.Background(),
		"/get_locked_params/BTCUSDT",
		&result,
		WithBearer("token-123"),
		WithQuery("leverage", "5"),
	)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if gotPath != "/get_locked_params/BTCUSDT" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer token-123" {
		t.Errorf("expected bearer header, got %q", gotAuth)
	}
	if gotQuery != "5" {
		t.Errorf("expected leverage=5, got %q", gotQuery)
	}
	if gotCustom != "VIBE" {
		t.Errorf("expected App-Name header, got %q", gotCustom)
	}
}

func TestGetEmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	var result testResponse
	if err := client.Get(context.Background(), "/empty", &result); err != nil {
		t.Fatalf("expected no error for empty body, got %v", err)
	}
}

func TestPostClientErrorWithJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{
			"code": "INVALID_REQUEST",
			"msg":  "Request validation failed",
			"data": map[string]string{"field": "name"},
		})
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	var result testResponse
	err := client.Post(context.Background(), "/test", testRequest{Name: ""}, &result)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	clientErr, ok := err.(*ClientError)
	if !ok {
		t.Fatalf("expected ClientError, got %T", err)
	}

	if clientErr.StatusCode != http.StatusBadRequest {
		t.Errorf("expected status 400, got %d", clientErr.StatusCode)
	}

	if clientErr.Code != "INVALID_REQUEST" {
		t.Errorf("expected code INVALID_REQUEST, got %s", clientErr.Code)
	}

	if clientErr.Msg != "Request validation failed" {
		t.Errorf("expected msg 'Request validation failed', got %s", clientErr.Msg)
	}

	if clientErr.Data == nil {
		t.Error("expected data to be populated")
	}

	if StatusCode(err) != http.StatusBadRequest {
		t.Errorf("StatusCode(err) = %d", StatusCode(err))
	}
}

func TestPostClientErrorWithDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"detail":"quote not found"}`)
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	err := client.Post(context.Background(), "/instant_close", testRequest{}, nil)

	clientErr, ok := err.(*ClientError)
	if !ok {
		t.Fatalf("expected ClientError, got %T", err)
	}

	if clientErr.Msg != "quote not found" {
		t.Errorf("expected detail message, got %q", clientErr.Msg)
	}
}

func TestPostClientErrorWithoutJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte("Unauthorized"))
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	err := client.Post(context.Background(), "/test", testRequest{Name: "test"}, nil)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	clientErr, ok := err.(*ClientError)
	if !ok {
		t.Fatalf("expected ClientError, got %T", err)
	}

	if clientErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("expected status 401, got %d", clientErr.StatusCode)
	}

	if clientErr.Msg != "Unauthorized" {
		t.Errorf("expected msg 'Unauthorized', got %s", clientErr.Msg)
	}
}

func TestPostServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Internal Server Error"))
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	err := client.Post(context.Background(), "/test", testRequest{Name: "test"}, nil)

	if err == nil {
		t.Fatal("expected error, got nil")
	}

	serverErr, ok := err.(*ServerError)
	if !ok {
		t.Fatalf("expected ServerError, got %T", err)
	}

	if serverErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("expected status 500, got %d", serverErr.StatusCode)
	}

	if serverErr.Text != "Internal Server Error" {
		t.Errorf("expected text 'Internal Server Error', got %s", serverErr.Text)
	}
}

func TestGetDecodeError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "<html>not json</html>")
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL})
	var result testResponse
	err := client.Get(context.Background(), "/test", &result)

	var decodeErr *DecodeError
	if !errors.As(err, &decodeErr) {
		t.Fatalf("expected DecodeError, got %T (%v)", err, err)
	}

	if decodeErr.Body != "<html>not json</html>" {
		t.Errorf("unexpected body %q", decodeErr.Body)
	}
}

func TestPostWithTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		io.WriteString(w, `{"status":"late","value":0}`)
	}))
	defer server.Close()

	client := New(Config{BaseUrl: server.URL, Timeout: 20 * time.Millisecond})
	var result testResponse
	err := client.Post(context.Background(), "/test", testRequest{Name: "test"}, &result)

	if err == nil {
		t.Fatal("expected timeout error, got nil")
	}

	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}
