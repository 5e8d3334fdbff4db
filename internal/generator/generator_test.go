package generator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/danielpatrickdp/aura-plan/internal/horizon"
	"github.com/danielpatrickdp/aura-plan/internal/insight"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

// #region prompt-tests
func TestBuildPromptMentionsTasksAndFocus(t *testing.T) {
	p := BuildPrompt(horizon.Lifetime, []string{"plant a tree", "write a book"})
	if !strings.Contains(p, "plant a tree, write a book") {
		t.Errorf("prompt should list tasks: %s", p)
	}
	if !strings.Contains(p, horizon.Lifetime.Focus()) {
		t.Errorf("prompt should carry the horizon focus: %s", p)
	}
	for _, field := range []string{"prompt:", "suggestion:", "vision:"} {
		if !strings.Contains(p, field) {
			t.Errorf("prompt should request %s", field)
		}
	}
}

func TestBuildPromptNoTasks(t *testing.T) {
	if !strings.Contains(BuildPrompt(horizon.Day, nil), "no tasks yet") {
		t.Error("empty task list should be described")
	}
}
// #endregion prompt-tests

// #region gemini-tests
func geminiBody(t *testing.T, in insight.Insight) string {
	t.Helper()
	text, _ := json.Marshal(in)
	body, _ := json.Marshal(map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content": map[string]interface{}{
					"parts": []interface{}{map[string]string{"text": string(text)}},
				},
			},
		},
	})
	return string(body)
}

func TestGemini_Success(t *testing.T) {
	want := insight.Insight{Vision: "v", Suggestion: "s", Prompt: "p"}
	var gotPath, gotKey string
	var gotReq map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		raw, _ := io.ReadAll(r.Body)
		json.Unmarshal(raw, &gotReq)
		io.WriteString(w, geminiBody(t, want))
	}))
	defer srv.Close()

	g := NewGemini(GeminiConfig{APIKey: "k", Endpoint: srv.URL + "/", Model: "m"})
	got, err := g.Generate(context.Background(), horizon.Week, []string{"run"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
	if gotPath != "/v1beta/models/m:generateContent" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotKey != "k" {
		t.Errorf("api key header not sent")
	}
	cfg, _ := gotReq["generationConfig"].(map[string]interface{})
	if cfg["responseMimeType"] != "application/json" {
		t.Errorf("expected JSON response mime type, got %v", cfg["responseMimeType"])
	}
}

func TestGemini_NoCredentials(t *testing.T) {
	_, err := NewGemini(GeminiConfig{}).Generate(context.Background(), horizon.Day, []string{"a"})
	if !errors.Is(err, ErrNoCredentials) {
		t.Fatalf("expected ErrNoCredentials, got %v", err)
	}
}

func TestGemini_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		io.WriteString(w, `{"error":{"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	_, err := NewGemini(GeminiConfig{APIKey: "bad", Endpoint: srv.URL}).Generate(context.Background(), horizon.Day, []string{"a"})
	if err == nil || !strings.Contains(err.Error(), "API key not valid") {
		t.Fatalf("expected upstream message in error, got %v", err)
	}
}

func TestGemini_MalformedCandidate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, geminiBody(t, insight.Insight{Vision: "only vision"}))
	}))
	defer srv.Close()

	_, err := NewGemini(GeminiConfig{APIKey: "k", Endpoint: srv.URL}).Generate(context.Background(), horizon.Day, []string{"a"})
	if !errors.Is(err, insight.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestGemini_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, err := NewGemini(GeminiConfig{APIKey: "k", Endpoint: srv.URL}).Generate(ctx, horizon.Day, []string{"a"}); err == nil {
		t.Fatal("expected error when context expires")
	}
}

func TestParseGeminiResponse(t *testing.T) {
	cases := map[string]string{
		"not json":     `<html>`,
		"no candidate": `{"candidates":[]}`,
		"blocked":      `{"promptFeedback":{"blockReason":"SAFETY"}}`,
		"bad text":     `{"candidates":[{"content":{"parts":[{"text":"not-json"}]}}]}`,
	}
	for name, body := range cases {
		if _, err := parseGeminiResponse([]byte(body)); !errors.Is(err, insight.ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}
// #endregion gemini-tests

// #region grpc-tests
func dialBufconn(t *testing.T, g Generator) *GRPC {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterServer(srv, g)
	go srv.Serve(lis)
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial bufconn: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewGRPCWithConn(conn)
}

func TestGRPC_RoundTrip(t *testing.T) {
	var gotBucket horizon.Bucket
	var gotTasks []string
	client := dialBufconn(t, Func(func(_ context.Context, b horizon.Bucket, tasks []string) (insight.Insight, error) {
		gotBucket, gotTasks = b, tasks
		return insight.Insight{Vision: "v", Suggestion: "s", Prompt: "p"}, nil
	}))

	got, err := client.Generate(context.Background(), horizon.FiveYears, []string{"move abroad", "learn piano"})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if got.Vision != "v" || got.Suggestion != "s" || got.Prompt != "p" {
		t.Errorf("unexpected insight %+v", got)
	}
	if gotBucket != horizon.FiveYears {
		t.Errorf("server saw bucket %q", gotBucket)
	}
	if len(gotTasks) != 2 || gotTasks[0] != "move abroad" {
		t.Errorf("server saw tasks %v", gotTasks)
	}
	if err := client.Close(); err != nil {
		t.Errorf("Close on borrowed conn: %v", err)
	}
}

func TestGRPC_ErrorCodes(t *testing.T) {
	cases := []struct {
		err  error
		code codes.Code
	}{
		{ErrNoCredentials, codes.Unauthenticated},
		{insight.ErrMalformed, codes.DataLoss},
		{errors.New("upstream down"), codes.Unavailable},
	}
	for _, tc := range cases {
		client := dialBufconn(t, Func(func(context.Context, horizon.Bucket, []string) (insight.Insight, error) {
			return insight.Insight{}, tc.err
		}))
		_, err := client.Generate(context.Background(), horizon.Day, []string{"a"})
		if got := status.Code(errors.Unwrap(err)); got != tc.code {
			t.Errorf("%v: expected code %s, got %s (%v)", tc.err, tc.code, got, err)
		}
	}
}

func TestGRPC_IncompleteResponseRejected(t *testing.T) {
	client := dialBufconn(t, Func(func(context.Context, horizon.Bucket, []string) (insight.Insight, error) {
		return insight.Insight{Vision: "v"}, nil
	}))
	_, err := client.Generate(context.Background(), horizon.Day, []string{"a"})
	if !errors.Is(err, insight.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}
}

func TestNewGRPC(t *testing.T) {
	c, err := NewGRPC("localhost:0")
	if err != nil {
		t.Fatalf("unexpected error creating client: %v", err)
	}
	defer c.Close()
}
// #endregion grpc-tests
