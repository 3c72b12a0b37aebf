// File: internal/mocks/mocks.go
package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/browser"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Chat provides a mock function for LLM calls.
func (m *MockLLMClient) Chat(ctx context.Context, req schemas.ChatRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Browser Mocks --

// MockDriver mocks browser.Driver.
type MockDriver struct {
	mock.Mock
}

func (m *MockDriver) Launch(ctx context.Context) (browser.Browser, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Browser), args.Error(1)
}

func (m *MockDriver) Close() error {
	return m.Called().Error(0)
}

// MockBrowser mocks browser.Browser.
type MockBrowser struct {
	mock.Mock
}

func (m *MockBrowser) NewPage(ctx context.Context) (browser.Page, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(browser.Page), args.Error(1)
}

func (m *MockBrowser) Close() error {
	return m.Called().Error(0)
}

// MockPage mocks browser.Page.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Goto(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) Click(ctx context.Context, selector string) error {
	return m.Called(ctx, selector).Error(0)
}

func (m *MockPage) Fill(ctx context.Context, selector, text string) error {
	return m.Called(ctx, selector, text).Error(0)
}

func (m *MockPage) TextContent(ctx context.Context, selector string) (string, error) {
	args := m.Called(ctx, selector)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Screenshot(ctx context.Context, path string) error {
	return m.Called(ctx, path).Error(0)
}

func (m *MockPage) Close() error {
	return m.Called().Error(0)
}

// -- Session Controller Mock --

// MockController mocks the controller the host loop drives.
type MockController struct {
	mock.Mock
}

func (m *MockController) Initialize(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockController) Ready() bool {
	return m.Called().Bool(0)
}

func (m *MockController) ProcessCommand(ctx context.Context, text string) schemas.CommandResult {
	return m.Called(ctx, text).Get(0).(schemas.CommandResult)
}

func (m *MockController) Cleanup(ctx context.Context) {
	m.Called(ctx)
}
