package model

import (
	"context"
	"fmt"
	"sync"

	"github.com/freefrancisco/modelfusion/core"
)

// MockResponse is the raw response produced by the mock models.
type MockResponse struct {
	Text   string
	Choice *Choice
	Usage  *core.TokenUsage
}

// MockTextModel is a lightweight in-memory TextModel (and StreamingTextModel)
// useful for tests & examples. It can be scripted to fail a number of
// attempts before succeeding and to fail mid-stream, and it counts provider
// invocations so call-deduplication can be asserted.
type MockTextModel struct {
	mu sync.Mutex

	info     Info
	settings Settings

	// Response is returned for any prompt without a canned entry.
	Response  string
	responses map[string]string

	// Fragments overrides how streamed output is chunked. When empty the
	// full text is streamed as a single fragment.
	Fragments []string

	// FailAttempts makes the first n Generate/GenerateStream attempts fail
	// with FailErr (default: transient server error).
	FailAttempts int
	FailErr      error

	// StreamFailAfter injects StreamErr after that many fragments (0 = never).
	StreamFailAfter int
	StreamErr       error

	Usage *core.TokenUsage

	calls int
}

// NewMockTextModel constructs a mock returning response for every prompt.
func NewMockTextModel(response string) *MockTextModel {
	return &MockTextModel{
		info:      Info{Name: "mock-text", Provider: "mock"},
		Response:  response,
		responses: map[string]string{},
		Usage:     &core.TokenUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
	}
}

// AddResponse registers a deterministic canned completion for a prompt.
func (m *MockTextModel) AddResponse(prompt, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[prompt] = response
}

// Calls returns how many provider attempts have been made.
func (m *MockTextModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Info implements TextModel.
func (m *MockTextModel) Info() Info { return m.info }

// Settings implements TextModel.
func (m *MockTextModel) Settings() Settings { return m.settings }

func (m *MockTextModel) attempt() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.calls <= m.FailAttempts {
		if m.FailErr != nil {
			return m.FailErr
		}
		return &core.ProviderError{Provider: "mock", Class: core.ErrClassServer, Status: 500, Message: "scripted failure"}
	}
	return nil
}

func (m *MockTextModel) textFor(prompt string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.responses[prompt]; ok {
		return r
	}
	if m.Response != "" {
		return m.Response
	}
	return fmt.Sprintf("Mock response to: %s", prompt)
}

// Generate implements TextModel.
func (m *MockTextModel) Generate(ctx context.Context, prompt string, _ Settings) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.attempt(); err != nil {
		return nil, err
	}
	return &MockResponse{Text: m.textFor(prompt), Usage: m.Usage}, nil
}

// ExtractText implements TextModel.
func (m *MockTextModel) ExtractText(raw any) (string, error) {
	resp, ok := raw.(*MockResponse)
	if !ok {
		return "", fmt.Errorf("unexpected raw response type %T", raw)
	}
	return resp.Text, nil
}

// ExtractUsage implements TextModel.
func (m *MockTextModel) ExtractUsage(raw any) (*core.TokenUsage, bool) {
	resp, ok := raw.(*MockResponse)
	if !ok || resp.Usage == nil {
		return nil, false
	}
	return resp.Usage, true
}

// GenerateStream implements StreamingTextModel.
func (m *MockTextModel) GenerateStream(ctx context.Context, prompt string, _ Settings) (*TextStream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.attempt(); err != nil {
		return nil, err
	}

	fragments := m.Fragments
	if len(fragments) == 0 {
		fragments = []string{m.textFor(prompt)}
	}

	stream := NewTextStream(ctx)
	go func() {
		for i, f := range fragments {
			if m.StreamFailAfter > 0 && i == m.StreamFailAfter {
				stream.Fail(m.streamErr())
				return
			}
			if !stream.Push(f) {
				return
			}
		}
		if m.StreamFailAfter > 0 && m.StreamFailAfter >= len(fragments) {
			stream.Fail(m.streamErr())
			return
		}
		stream.Finish(m.Usage)
	}()
	return stream, nil
}

func (m *MockTextModel) streamErr() error {
	if m.StreamErr != nil {
		return m.StreamErr
	}
	return &core.ProviderError{Provider: "mock", Class: core.ErrClassNetwork, Message: "connection reset mid-stream"}
}

// MockJSONModel is an in-memory JSONModel scripted with the choice it should
// report. It records the schemas and mode of the last call for assertions.
type MockJSONModel struct {
	mu sync.Mutex

	info     Info
	settings Settings

	// Choice is the parsed outcome every successful call reports.
	Choice *Choice

	FailAttempts int
	FailErr      error
	Usage        *core.TokenUsage

	calls      int
	lastDefs   []SchemaDef
	lastForced bool
}

// NewMockJSONModel constructs a mock reporting the given choice.
func NewMockJSONModel(choice *Choice) *MockJSONModel {
	return &MockJSONModel{
		info:   Info{Name: "mock-json", Provider: "mock"},
		Choice: choice,
		Usage:  &core.TokenUsage{PromptTokens: 15, CompletionTokens: 5, TotalTokens: 20},
	}
}

// Calls returns how many provider attempts have been made.
func (m *MockJSONModel) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// LastSchemas returns the candidate set and mode of the most recent call.
func (m *MockJSONModel) LastSchemas() ([]SchemaDef, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastDefs, m.lastForced
}

// Info implements JSONModel.
func (m *MockJSONModel) Info() Info { return m.info }

// Settings implements JSONModel.
func (m *MockJSONModel) Settings() Settings { return m.settings }

// GenerateJSON implements JSONModel.
func (m *MockJSONModel) GenerateJSON(ctx context.Context, _ string, schemas []SchemaDef, forced bool, _ Settings) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.calls++
	m.lastDefs = schemas
	m.lastForced = forced
	failing := m.calls <= m.FailAttempts
	m.mu.Unlock()

	if failing {
		if m.FailErr != nil {
			return nil, m.FailErr
		}
		return nil, &core.ProviderError{Provider: "mock", Class: core.ErrClassServer, Status: 500, Message: "scripted failure"}
	}

	return &MockResponse{Choice: m.Choice, Usage: m.Usage}, nil
}

// ExtractChoice implements JSONModel.
func (m *MockJSONModel) ExtractChoice(raw any) (*Choice, error) {
	resp, ok := raw.(*MockResponse)
	if !ok {
		return nil, fmt.Errorf("unexpected raw response type %T", raw)
	}
	if resp.Choice == nil {
		return nil, fmt.Errorf("mock response carries no choice")
	}
	return resp.Choice, nil
}

// ExtractUsage implements JSONModel.
func (m *MockJSONModel) ExtractUsage(raw any) (*core.TokenUsage, bool) {
	resp, ok := raw.(*MockResponse)
	if !ok || resp.Usage == nil {
		return nil, false
	}
	return resp.Usage, true
}
