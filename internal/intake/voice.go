package intake

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"
)

const (
	voiceErrorAlert       = "An error occurred during voice recognition. Please try again."
	voiceUnsupportedAlert = "Voice input is not supported in this browser."
)

// ErrVoiceUnavailable is returned by Start when no recognizer is present.
var ErrVoiceUnavailable = errors.New("speech recognition unavailable")

// Recognizer is a host speech recognition capability.
type Recognizer interface {
	// Available reports whether the host exposes speech recognition.
	Available(ctx context.Context) bool
	// Recognize runs one single-shot session and returns the transcript.
	Recognize(ctx context.Context) (string, error)
}

// VoiceControl is the microphone button next to the chat input.
type VoiceControl struct {
	rec     Recognizer
	chat    *Conversation
	alerter Alerter
	logger  *zap.SugaredLogger

	mu        sync.Mutex
	probed    bool
	visible   bool
	recording bool
}

func NewVoiceControl(rec Recognizer, chat *Conversation, opts Options) *VoiceControl {
	opts = opts.withDefaults()
	return &VoiceControl{rec: rec, chat: chat, alerter: opts.Alerter, logger: opts.Logger}
}

// Visible reports whether the control is shown. The host is probed once;
// without a recognizer the control is hidden rather than disabled.
func (v *VoiceControl) Visible(ctx context.Context) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.probed {
		v.visible = v.rec != nil && v.rec.Available(ctx)
		v.probed = true
		if !v.visible {
			v.logger.Warn("SpeechRecognition is not supported on this host")
		}
	}
	return v.visible
}

// Start runs one recognition session. The transcript replaces the chat
// input and is left selected.
func (v *VoiceControl) Start(ctx context.Context) error {
	if !v.Visible(ctx) {
		v.alerter.Alert(voiceUnsupportedAlert)
		return ErrVoiceUnavailable
	}

	v.mu.Lock()
	if v.recording {
		v.mu.Unlock()
		return nil
	}
	v.recording = true
	v.mu.Unlock()
	v.logger.Debug("Voice recognition started")

	defer func() {
		v.mu.Lock()
		v.recording = false
		v.mu.Unlock()
		v.logger.Debug("Voice recognition ended")
	}()

	transcript, err := v.rec.Recognize(ctx)
	if err != nil {
		v.logger.Errorw("Voice recognition error", "error", err)
		v.alerter.Alert(voiceErrorAlert)
		return err
	}

	transcript = strings.TrimSpace(transcript)
	v.logger.Debugw("Voice input", "transcript", transcript)
	if v.chat != nil {
		v.chat.setSelectedInput(transcript)
	}
	return nil
}

// Recording reports whether a session is in progress.
func (v *VoiceControl) Recording() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.recording
}
