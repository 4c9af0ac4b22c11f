package gateway

import (
	"github.com/MrWong99/vesper/internal/intent"
	"github.com/MrWong99/vesper/internal/notify"
)

// Event types sent to devices as JSON text frames.
const (
	TypeNotification  = "notification"
	TypeNavigate      = "navigate"
	TypeLevel         = "level"
	TypeInterim       = "interim"
	TypeState         = "state"
	TypeSpeechStart   = "speech_start"
	TypeSpeechEnd     = "speech_end"
	TypeCommandResult = "command_result"
	TypeVoice         = "voice"
	TypeError         = "error"
)

// Control message types received from devices.
const (
	TypeHello   = "hello"
	TypeCommand = "command"
)

type notificationEvent struct {
	Type string `json:"type"`
	notify.Notification
}

type navigateEvent struct {
	Type  string `json:"type"`
	Route string `json:"route"`
}

type levelEvent struct {
	Type  string  `json:"type"`
	Level float64 `json:"level"`
}

// interimEvent carries live dictation text. An empty Text clears the display.
type interimEvent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type stateEvent struct {
	Type  string `json:"type"`
	State string `json:"state"`
}

// speechStartEvent precedes the binary PCM frames of one utterance.
type speechStartEvent struct {
	Type       string `json:"type"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}

type speechEndEvent struct {
	Type      string `json:"type"`
	Cancelled bool   `json:"cancelled,omitempty"`
}

type commandResultEvent struct {
	Type     string        `json:"type"`
	Intent   intent.Intent `json:"intent"`
	Response string        `json:"response"`
}

type voiceEvent struct {
	Type    string `json:"type"`
	Enabled bool   `json:"enabled"`
}

type errorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// control is any text frame a device sends.
//
//	{"type":"hello","sample_rate":48000,"channels":1}
//	{"type":"voice","enabled":true}
//	{"type":"command","text":"add buy milk to my tasks"}
type control struct {
	Type       string `json:"type"`
	Enabled    bool   `json:"enabled"`
	Text       string `json:"text"`
	SampleRate int    `json:"sample_rate"`
	Channels   int    `json:"channels"`
}
