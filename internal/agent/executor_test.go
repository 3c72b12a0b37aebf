// internal/agent/executor_test.go
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/agentxen/api/schemas"
	"github.com/xkilldash9x/agentxen/internal/browser"
	"github.com/xkilldash9x/agentxen/internal/mocks"
)

// pageOnce returns a provider that hands out page and counts how often it was asked.
func pageOnce(page browser.Page, calls *int) PageProvider {
	return func(ctx context.Context) (browser.Page, error) {
		*calls++
		return page, nil
	}
}

func TestExecutor_PartialFailureKeepsOrder(t *testing.T) {
	page := new(mocks.MockPage)
	exec := NewExecutor(zaptest.NewLogger(t))

	page.On("Goto", mock.Anything, "https://example.com").Return(nil).Once()
	page.On("Click", mock.Anything, "#missing").
		Return(fmt.Errorf("click timed out: %w", browser.ErrElementNotFound)).Once()
	page.On("TextContent", mock.Anything, "h1").Return("Example Domain", nil).Once()

	calls := 0
	results := exec.Execute(context.Background(), []RawAction{
		{"type": "navigate", "url": "https://example.com"},
		{"type": "click", "selector": "#missing"},
		{"type": "extract", "selector": "h1"},
	}, pageOnce(page, &calls))

	require.Len(t, results, 3)
	assert.Equal(t, schemas.ActionResult{Action: "navigate", Status: schemas.StatusSuccess, URL: "https://example.com"}, results[0])

	assert.Equal(t, "click", results[1].Action)
	assert.Equal(t, schemas.StatusError, results[1].Status)
	assert.Equal(t, schemas.ErrCodeElementNotFound, results[1].ErrorCode)
	assert.Contains(t, results[1].Error, "element not found")

	assert.Equal(t, schemas.ActionResult{Action: "extract", Status: schemas.StatusSuccess, Selector: "h1", Content: "Example Domain"}, results[2])
	page.AssertExpectations(t)
}

func TestExecutor_ExtractTruncatesToLimit(t *testing.T) {
	page := new(mocks.MockPage)
	exec := NewExecutor(zaptest.NewLogger(t))

	long := strings.Repeat("é", ExtractLimit+250)
	page.On("TextContent", mock.Anything, DefaultExtractSelector).Return(long, nil).Once()

	calls := 0
	results := exec.Execute(context.Background(), []RawAction{{"type": "extract"}}, pageOnce(page, &calls))
	require.Len(t, results, 1)
	assert.Equal(t, ExtractLimit, utf8.RuneCountInString(results[0].Content))
	assert.True(t, utf8.ValidString(results[0].Content))
	assert.Equal(t, DefaultExtractSelector, results[0].Selector)
}

func TestExecutor_TypeAndScreenshot(t *testing.T) {
	page := new(mocks.MockPage)
	exec := NewExecutor(zaptest.NewLogger(t))

	page.On("Fill", mock.Anything, "#q", "golang").Return(nil).Once()
	page.On("Screenshot", mock.Anything, DefaultScreenshotPath).Return(nil).Once()

	calls := 0
	results := exec.Execute(context.Background(), []RawAction{
		{"type": "type", "selector": "#q", "text": "golang"},
		{"type": "screenshot"},
	}, pageOnce(page, &calls))

	require.Len(t, results, 2)
	assert.Equal(t, schemas.ActionResult{Action: "type", Status: schemas.StatusSuccess, Selector: "#q"}, results[0])
	assert.Equal(t, schemas.ActionResult{Action: "screenshot", Status: schemas.StatusSuccess, Path: DefaultScreenshotPath}, results[1])
	page.AssertExpectations(t)
}

func TestExecutor_InvalidActionsNeverTouchThePage(t *testing.T) {
	exec := NewExecutor(zaptest.NewLogger(t))
	calls := 0
	results := exec.Execute(context.Background(), []RawAction{
		{"type": "scroll"},
		{"type": "navigate"},
		nil,
	}, pageOnce(new(mocks.MockPage), &calls))

	require.Len(t, results, 3)
	assert.Equal(t, schemas.ErrCodeUnknownAction, results[0].ErrorCode)
	assert.Equal(t, "scroll", results[0].Action)
	assert.Equal(t, schemas.ErrCodeInvalidParameters, results[1].ErrorCode)
	assert.Equal(t, "navigate", results[1].Action)
	assert.Equal(t, "unknown", results[2].Action)
	assert.Zero(t, calls, "the page is only opened for a valid action")
}

func TestExecutor_PageProviderFailure(t *testing.T) {
	exec := NewExecutor(zaptest.NewLogger(t))
	failing := func(ctx context.Context) (browser.Page, error) {
		return nil, fmt.Errorf("new tab: %w", browser.ErrClosed)
	}

	results := exec.Execute(context.Background(), []RawAction{
		{"type": "navigate", "url": "https://example.com"},
		{"type": "click", "selector": "a"},
	}, failing)

	require.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, schemas.StatusError, r.Status)
		assert.Equal(t, schemas.ErrCodeExecutionFailure, r.ErrorCode)
		assert.Contains(t, r.Error, "failed to open page")
	}
}

func TestExecutor_RecoversFromHandlerPanic(t *testing.T) {
	page := new(mocks.MockPage)
	exec := NewExecutor(zaptest.NewLogger(t))
	page.On("Click", mock.Anything, "a").Run(func(args mock.Arguments) {
		panic("driver exploded")
	}).Return(nil).Once()
	page.On("Goto", mock.Anything, "https://example.com").Return(nil).Once()

	calls := 0
	results := exec.Execute(context.Background(), []RawAction{
		{"type": "click", "selector": "a"},
		{"type": "navigate", "url": "https://example.com"},
	}, pageOnce(page, &calls))

	require.Len(t, results, 2)
	assert.Equal(t, schemas.StatusError, results[0].Status)
	assert.Contains(t, results[0].Error, "driver exploded")
	assert.Equal(t, schemas.StatusSuccess, results[1].Status)
}

func TestExecutor_EmptyPlan(t *testing.T) {
	exec := NewExecutor(zaptest.NewLogger(t))
	calls := 0
	results := exec.Execute(context.Background(), nil, pageOnce(nil, &calls))
	assert.NotNil(t, results)
	assert.Empty(t, results)
	assert.Zero(t, calls)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code schemas.ErrorCode
	}{
		{"action error keeps its code", invalidParams("bad"), schemas.ErrCodeInvalidParameters},
		{"wrapped element sentinel", fmt.Errorf("click: %w", browser.ErrElementNotFound), schemas.ErrCodeElementNotFound},
		{"element sentinel beats deadline", fmt.Errorf("x: %w: %w", browser.ErrElementNotFound, context.DeadlineExceeded), schemas.ErrCodeElementNotFound},
		{"deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), schemas.ErrCodeTimeoutError},
		{"navigation sentinel", fmt.Errorf("goto: %w", browser.ErrNavigation), schemas.ErrCodeNavigationError},
		{"net error text", errors.New("page load error net::ERR_NAME_NOT_RESOLVED"), schemas.ErrCodeNavigationError},
		{"timeout text", errors.New("waiting for selector: timeout"), schemas.ErrCodeTimeoutError},
		{"no element text", errors.New("no element found for selector"), schemas.ErrCodeElementNotFound},
		{"anything else", errors.New("boom"), schemas.ErrCodeExecutionFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, ClassifyError(tt.err))
		})
	}
}
