package browser

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/chromedp/chromedp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestContextHolderSetCancelsPrevious(t *testing.T) {
	h := &ContextHolder{logger: zap.NewNop().Sugar()}

	first, cancelFirst := context.WithCancel(context.Background())
	h.Set(first, cancelFirst)
	assert.Equal(t, first, h.Get())

	second, cancelSecond := context.WithCancel(context.Background())
	h.Set(second, cancelSecond)
	assert.ErrorIs(t, first.Err(), context.Canceled)
	assert.NoError(t, second.Err())

	h.Cancel()
	assert.ErrorIs(t, second.Err(), context.Canceled)
	h.Cancel()
}

func TestNewContextHolderIsLazy(t *testing.T) {
	h := NewContextHolder(zap.NewNop().Sugar())
	defer h.Cancel()

	c := chromedp.FromContext(h.Get())
	require.NotNil(t, c)
	assert.Nil(t, c.Browser, "no browser until the first Run")
}

func TestSpeechRecognizerWithoutBrowser(t *testing.T) {
	h := &ContextHolder{logger: zap.NewNop().Sugar()}
	h.Set(context.Background(), func() {})
	rec := NewSpeechRecognizer(h, "", zap.NewNop().Sugar())

	assert.False(t, rec.Available(context.Background()))
	_, err := rec.Recognize(context.Background())
	assert.ErrorIs(t, err, chromedp.ErrInvalidContext)
}

func TestRecognizeScriptQuotesLanguage(t *testing.T) {
	script := fmt.Sprintf(recognizeScript, "en-US")
	assert.True(t, strings.Contains(script, `recognition.lang = "en-US";`))
	assert.Contains(t, script, "recognition.interimResults = false;")
}
