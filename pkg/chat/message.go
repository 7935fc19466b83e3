// Package chat holds a conversation about one call report: text and voice
// prompts sent to the backend and the bot's replies.
package chat

import "time"

// Reply texts shown when the backend cannot answer.
const (
	TextRequestFailed   = "Sorry, I couldn't process that request."
	TextNetworkError    = "Network error. Please try again later."
	TextVoiceProcessed  = "Voice message processed"
	TextVoiceFailed     = "Failed to process voice message"
	TextVoiceNetwork    = "Network error occurred"
	TextAudioNotHandled = "Sorry, I couldn't process that audio message."
)

// Message is one entry of a conversation. The concrete types are
// UserText, UserAudioPending, UserAudio, BotText and BotError.
type Message interface {
	Time() time.Time
	isMessage()
}

// UserText is a typed prompt.
type UserText struct {
	Text string
	At   time.Time
}

// UserAudioPending is a voice prompt awaiting its transcript.
type UserAudioPending struct {
	FileName string
	At       time.Time
}

// UserAudio is a voice prompt after the backend replied. Transcript holds
// the recognized text or a failure notice.
type UserAudio struct {
	Transcript string
	At         time.Time
}

// BotText is a reply from the backend.
type BotText struct {
	Text string
	At   time.Time
}

// BotError is shown when the backend could not be reached.
type BotError struct {
	Text string
	At   time.Time
}

func (m UserText) Time() time.Time         { return m.At }
func (m UserAudioPending) Time() time.Time { return m.At }
func (m UserAudio) Time() time.Time        { return m.At }
func (m BotText) Time() time.Time          { return m.At }
func (m BotError) Time() time.Time         { return m.At }

func (UserText) isMessage()         {}
func (UserAudioPending) isMessage() {}
func (UserAudio) isMessage()        {}
func (BotText) isMessage()          {}
func (BotError) isMessage()         {}
