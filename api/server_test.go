package api

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"

	"github.com/askdoc/askdoc/internal/log"
	"github.com/askdoc/askdoc/internal/rag"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeAnswerer struct {
	result      rag.Result
	err         error
	gotQuestion string
	gotConvID   uuid.UUID
}

func (f *fakeAnswerer) Answer(_ context.Context, question string, conversationID uuid.UUID) (rag.Result, error) {
	f.gotQuestion = question
	f.gotConvID = conversationID
	if f.err != nil {
		return rag.Result{}, f.err
	}
	return f.result, nil
}

type fakeEvaluator struct {
	report rag.Report
	err    error
}

func (f *fakeEvaluator) Evaluate(context.Context) (rag.Report, error) {
	if f.err != nil {
		return rag.Report{}, f.err
	}
	return f.report, nil
}

func newTestServer(t *testing.T, engine Answerer, evaluator EvalRunner) http.Handler {
	t.Helper()

	if engine == nil {
		engine = &fakeAnswerer{}
	}
	if evaluator == nil {
		evaluator = &fakeEvaluator{}
	}
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    engine,
		Evaluator: evaluator,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	return srv.Handler()
}

func TestServer_RootAndProbes(t *testing.T) {
	handler := newTestServer(t, nil, nil)

	t.Run("GET / returns liveness message", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var body map[string]string
		if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
			t.Fatalf("unmarshal body: %v", err)
		}
		if body["message"] == "" {
			t.Error("message is empty")
		}
	})

	t.Run("GET /health returns 200", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		if w.Code != http.StatusOK {
			t.Errorf("status = %d, want 200", w.Code)
		}
		if w.Body.String() != "ok" {
			t.Errorf("body = %q, want ok", w.Body.String())
		}
	})

	t.Run("GET /ready returns 503 when pool is nil", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))

		if w.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want 503", w.Code)
		}
	})

	t.Run("GET /unknown returns 404", func(t *testing.T) {
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/unknown", nil))

		if w.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", w.Code)
		}
	})
}

func TestQueryEndpoint(t *testing.T) {
	convID := uuid.New()

	t.Run("answers and echoes conversation id", func(t *testing.T) {
		engine := &fakeAnswerer{result: rag.Result{
			Answer:         "The client is created with create_client.",
			Sources:        []string{"Client_Initialization_and_Setup.pdf", "Unknown"},
			ConversationID: convID,
		}}
		handler := newTestServer(t, engine, nil)

		body := `{"question": "How do I initialize the client?"}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
		}
		var resp QueryResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal response: %v", err)
		}
		if resp.Answer != engine.result.Answer {
			t.Errorf("answer = %q", resp.Answer)
		}
		if len(resp.Sources) != 2 || resp.Sources[1] != "Unknown" {
			t.Errorf("sources = %v", resp.Sources)
		}
		if resp.ConversationID != convID.String() {
			t.Errorf("conversation_id = %q, want %q", resp.ConversationID, convID)
		}
		// Omitted conversation_id reaches the engine as uuid.Nil.
		if engine.gotConvID != uuid.Nil {
			t.Errorf("engine received conversation id %v, want Nil", engine.gotConvID)
		}
	})

	t.Run("passes supplied conversation id through", func(t *testing.T) {
		engine := &fakeAnswerer{result: rag.Result{ConversationID: convID, Answer: "a"}}
		handler := newTestServer(t, engine, nil)

		body := `{"question": "And what about auth?", "conversation_id": "` + convID.String() + `"}`
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(body)))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		if engine.gotConvID != convID {
			t.Errorf("engine received conversation id %v, want %v", engine.gotConvID, convID)
		}
		if engine.gotQuestion != "And what about auth?" {
			t.Errorf("engine received question %q", engine.gotQuestion)
		}
	})

	t.Run("rejects bad requests", func(t *testing.T) {
		handler := newTestServer(t, &fakeAnswerer{}, nil)

		tests := []struct {
			name string
			body string
		}{
			{"malformed json", `{"question": `},
			{"empty question", `{"question": ""}`},
			{"whitespace question", `{"question": "   "}`},
			{"bad conversation id", `{"question": "q", "conversation_id": "not-a-uuid"}`},
			{"oversized question", `{"question": "` + strings.Repeat("x", MaxQuestionLength+1) + `"}`},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				w := httptest.NewRecorder()
				handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(tt.body)))

				if w.Code != http.StatusBadRequest {
					t.Errorf("status = %d, want 400", w.Code)
				}
			})
		}
	})

	t.Run("maps empty question error to 400", func(t *testing.T) {
		handler := newTestServer(t, &fakeAnswerer{err: rag.ErrEmptyQuestion}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question": "q"}`)))

		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("maps pipeline failures to 502", func(t *testing.T) {
		handler := newTestServer(t, &fakeAnswerer{err: errors.New("model unavailable")}, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{"question": "q"}`)))

		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
		var resp ErrorResponse
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshal error response: %v", err)
		}
		if resp.Error != "pipeline_error" {
			t.Errorf("error = %q, want pipeline_error", resp.Error)
		}
	})

	t.Run("GET /query is not routed", func(t *testing.T) {
		handler := newTestServer(t, nil, nil)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/query", nil))

		if w.Code != http.StatusMethodNotAllowed {
			t.Errorf("status = %d, want 405", w.Code)
		}
	})
}

func TestEvalEndpoint(t *testing.T) {
	t.Run("returns report", func(t *testing.T) {
		evaluator := &fakeEvaluator{report: rag.Report{
			Summary: rag.Summary{TotalQueries: 10, KValue: 3, OverallAveragePrecisionAtK: 0.4},
		}}
		handler := newTestServer(t, nil, evaluator)

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/eval", nil))

		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", w.Code)
		}
		var report rag.Report
		if err := json.Unmarshal(w.Body.Bytes(), &report); err != nil {
			t.Fatalf("unmarshal report: %v", err)
		}
		if report.Summary.TotalQueries != 10 || report.Summary.KValue != 3 {
			t.Errorf("summary = %+v", report.Summary)
		}
	})

	t.Run("maps evaluation failures to 502", func(t *testing.T) {
		handler := newTestServer(t, nil, &fakeEvaluator{err: errors.New("store down")})

		w := httptest.NewRecorder()
		handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/eval", nil))

		if w.Code != http.StatusBadGateway {
			t.Errorf("status = %d, want 502", w.Code)
		}
	})
}

func TestRateLimiting(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &fakeAnswerer{},
		Evaluator: &fakeEvaluator{},
		RateBurst: 2,
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}
	handler := srv.Handler()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		codes = append(codes, w.Code)
	}

	if codes[0] != http.StatusOK || codes[1] != http.StatusOK {
		t.Errorf("first requests = %v, want 200s", codes[:2])
	}
	if codes[2] != http.StatusTooManyRequests {
		t.Errorf("third request = %d, want 429", codes[2])
	}

	// A different IP has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.RemoteAddr = "203.0.113.8:1234"
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("other IP = %d, want 200", w.Code)
	}
}

func TestNewServerValidation(t *testing.T) {
	if _, err := NewServer(ServerConfig{Evaluator: &fakeEvaluator{}}); err == nil {
		t.Error("NewServer() accepted missing engine")
	}
	if _, err := NewServer(ServerConfig{Engine: &fakeAnswerer{}}); err == nil {
		t.Error("NewServer() accepted missing evaluator")
	}
}

func TestServer_Run_GracefulShutdown(t *testing.T) {
	srv, err := NewServer(ServerConfig{
		Logger:    log.NewNop(),
		Engine:    &fakeAnswerer{},
		Evaluator: &fakeEvaluator{},
	})
	if err != nil {
		t.Fatalf("NewServer() = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := listener.Addr().String()
	_ = listener.Close()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Run(ctx, addr)
	}()

	// Poll for server readiness instead of a fixed sleep.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 50*time.Millisecond)
		if err == nil {
			_ = conn.Close()
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Run() = %v, want nil on graceful shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down in time")
	}
}
