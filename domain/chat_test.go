package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestIsGroupChat(t *testing.T) {
	req := require.New(t)

	req.True(IsGroupChat("group_abc"))
	req.False(IsGroupChat("chat-1"))
	req.False(IsGroupChat(""))
}

func TestClockLabel(t *testing.T) {
	req := require.New(t)

	req.Empty(ClockLabel(0))

	at := time.Date(2026, 3, 14, 15, 4, 0, 0, time.Local)
	req.Equal("15:04", ClockLabel(at.UnixMilli()))
}

func TestMessage_IsVoice(t *testing.T) {
	req := require.New(t)

	req.False(Message{Content: "hello"}.IsVoice())
	req.True(Message{VoiceURL: "mem://voiceMessages/c/m.m4a"}.IsVoice())
}
