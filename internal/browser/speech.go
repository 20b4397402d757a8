package browser

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"
)

const defaultRecognizeTimeout = 30 * time.Second

// availableScript reports whether the page exposes the Web Speech API.
const availableScript = `'webkitSpeechRecognition' in window || 'SpeechRecognition' in window`

// recognizeScript runs one single-shot recognition and resolves with the
// first transcript. Errors reject the promise with the recognizer's error
// code.
const recognizeScript = `
	new Promise((resolve, reject) => {
		const Recognition = window.SpeechRecognition || window.webkitSpeechRecognition;
		if (!Recognition) {
			reject(new Error('not-supported'));
			return;
		}
		const recognition = new Recognition();
		recognition.lang = %q;
		recognition.interimResults = false;
		let done = false;
		recognition.onresult = (event) => {
			done = true;
			resolve(event.results[0][0].transcript);
		};
		recognition.onerror = (event) => {
			done = true;
			reject(new Error(event.error));
		};
		recognition.onend = () => {
			if (!done) reject(new Error('no-speech'));
		};
		recognition.start();
	})
`

// SpeechRecognizer runs the browser's speech recognition through ChromeDP.
type SpeechRecognizer struct {
	holder  *ContextHolder
	pageURL string
	lang    string
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// NewSpeechRecognizer evaluates on pageURL, or on a blank page when
// pageURL is empty.
func NewSpeechRecognizer(holder *ContextHolder, pageURL string, logger *zap.SugaredLogger) *SpeechRecognizer {
	if pageURL == "" {
		pageURL = "about:blank"
	}
	return &SpeechRecognizer{
		holder:  holder,
		pageURL: pageURL,
		lang:    "en-US",
		timeout: defaultRecognizeTimeout,
		logger:  logger,
	}
}

// Available reports whether the browser exposes speech recognition.
// Any failure to reach the browser counts as unavailable.
func (s *SpeechRecognizer) Available(ctx context.Context) bool {
	var ok bool
	err := s.run(ctx,
		chromedp.Navigate(s.pageURL),
		chromedp.Evaluate(availableScript, &ok),
	)
	if err != nil {
		s.logger.Warnw("Speech recognition probe failed", "error", err)
		return false
	}
	return ok
}

// Recognize runs one recognition session and returns its transcript.
func (s *SpeechRecognizer) Recognize(ctx context.Context) (string, error) {
	var transcript string
	err := s.run(ctx,
		chromedp.Evaluate(fmt.Sprintf(recognizeScript, s.lang), &transcript, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
			return p.WithAwaitPromise(true)
		}),
	)
	if err != nil {
		return "", fmt.Errorf("speech recognition: %w", err)
	}
	return strings.TrimSpace(transcript), nil
}

// run executes actions on the shared browser context, bounded by the
// recognizer timeout and cancelled together with ctx.
func (s *SpeechRecognizer) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.holder.Get(), s.timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}
