package genai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/platefulhq/plateful-backend/pkg/config"
	"github.com/platefulhq/plateful-backend/pkg/enums"
	pkgerrors "github.com/platefulhq/plateful-backend/pkg/errors"
)

type roundTripFunc func(req *http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func testConfig() config.GenerationConfig {
	return config.GenerationConfig{
		BaseURL:     "http://gen.test/v1",
		APIKey:      "test-key",
		Model:       "test-model",
		MaxTokens:   256,
		MaxAttempts: 3,
		RetryBase:   time.Millisecond,
		Timeout:     time.Second,
	}
}

func TestClientGenerateRequest(t *testing.T) {
	const expectedURL = "http://gen.test/v1/chat/completions"
	respBody := `{"choices":[{"message":{"content":"Sure, one pepperoni pizza coming up."}}],"usage":{"prompt_tokens":40,"completion_tokens":12}}`

	var capturedURL string
	var capturedAuth string
	var capturedPayload map[string]any

	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		capturedURL = req.URL.String()
		capturedAuth = req.Header.Get("Authorization")

		bodyBytes, err := io.ReadAll(req.Body)
		if err != nil {
			t.Fatalf("read request body: %v", err)
		}
		if err := json.Unmarshal(bodyBytes, &capturedPayload); err != nil {
			t.Fatalf("unmarshal request body: %v", err)
		}

		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Generate(context.Background(), Request{
		System: "You take food orders.",
		Messages: []ChatMessage{
			{Role: enums.MessageRoleUser, Content: "I want a pepperoni pizza"},
		},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}

	if capturedURL != expectedURL {
		t.Fatalf("unexpected URL %q", capturedURL)
	}
	if capturedAuth != "Bearer test-key" {
		t.Fatalf("unexpected auth header %q", capturedAuth)
	}
	if capturedPayload["model"] != "test-model" {
		t.Fatalf("unexpected model %v", capturedPayload["model"])
	}
	messages, ok := capturedPayload["messages"].([]any)
	if !ok || len(messages) != 2 {
		t.Fatalf("expected system + user message, got %v", capturedPayload["messages"])
	}
	if resp.Text != "Sure, one pepperoni pizza coming up." {
		t.Fatalf("unexpected text %q", resp.Text)
	}
	if resp.TokensUsed != 52 {
		t.Fatalf("unexpected token count %d", resp.TokensUsed)
	}
}

func TestClientGenerateRetriesThenSucceeds(t *testing.T) {
	respBody := `{"choices":[{"message":{"content":"ok"}}],"usage":{"prompt_tokens":1,"completion_tokens":1}}`

	attempts := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return &http.Response{
				StatusCode: http.StatusServiceUnavailable,
				Body:       io.NopCloser(strings.NewReader("upstream overloaded")),
				Header:     http.Header{},
			}, nil
		}
		return &http.Response{
			StatusCode: http.StatusOK,
			Body:       io.NopCloser(strings.NewReader(respBody)),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.Generate(context.Background(), Request{
		Messages: []ChatMessage{{Role: enums.MessageRoleUser, Content: "hi"}},
	})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	if resp.Text != "ok" {
		t.Fatalf("unexpected text %q", resp.Text)
	}
}

func TestClientGenerateExhaustsAttempts(t *testing.T) {
	attempts := 0
	rt := roundTripFunc(func(req *http.Request) (*http.Response, error) {
		attempts++
		return &http.Response{
			StatusCode: http.StatusInternalServerError,
			Body:       io.NopCloser(strings.NewReader("boom")),
			Header:     http.Header{},
		}, nil
	})

	client, err := NewClient(testConfig(), WithHTTPClient(&http.Client{Transport: rt}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Generate(context.Background(), Request{
		Messages: []ChatMessage{{Role: enums.MessageRoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if !pkgerrors.Is(err, pkgerrors.CodeUpstreamGeneration) {
		t.Fatalf("expected upstream generation code, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestClientGenerateRejectsEmptyHistory(t *testing.T) {
	client, err := NewClient(testConfig())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Generate(context.Background(), Request{})
	if !pkgerrors.Is(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
