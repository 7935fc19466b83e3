package chat

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	viqerrors "github.com/voiceiq/viq-cli/pkg/errors"
	"github.com/voiceiq/viq-cli/pkg/logging"
)

// StatusSuccess is the backend status of an answered prompt.
const StatusSuccess = "success"

// Reply is the /chat response.
type Reply struct {
	Status  string `json:"status"`
	Content string `json:"content"`
}

// VoiceReply is the /voice_chat response.
type VoiceReply struct {
	Status     string `json:"status"`
	UserPrompt string `json:"user_prompt"`
	Content    string `json:"content"`
}

// Backend answers prompts about a report.
type Backend interface {
	Chat(ctx context.Context, reportID, prompt string) (*Reply, error)
	VoiceChat(ctx context.Context, reportID, fileName string, audio io.Reader) (*VoiceReply, error)
}

// Conversation is the message history for one report.
type Conversation struct {
	ReportID string

	backend Backend
	logger  logging.Logger
	now     func() time.Time

	mu       sync.Mutex
	messages []Message
}

// NewConversation starts an empty conversation about reportID.
func NewConversation(reportID string, backend Backend, logger logging.Logger) *Conversation {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Conversation{
		ReportID: reportID,
		backend:  backend,
		logger:   logger.With(logging.F("component", "chat"), logging.F("report_id", reportID)),
		now:      time.Now,
	}
}

func (c *Conversation) append(m Message) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, m)
	return len(c.messages) - 1
}

func (c *Conversation) replace(i int, m Message) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages[i] = m
}

// Messages returns a copy of the history.
func (c *Conversation) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Send posts a text prompt and appends the reply. Blank prompts are
// ignored and return nil. The returned message is the bot's entry.
func (c *Conversation) Send(ctx context.Context, prompt string) (Message, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return nil, nil
	}
	c.append(UserText{Text: prompt, At: c.now()})

	reply, err := c.backend.Chat(ctx, c.ReportID, prompt)
	if err != nil {
		c.logger.Warn("Chat request failed", logging.Err(err))
		if viqerrors.IsTransport(err) {
			m := BotError{Text: TextNetworkError, At: c.now()}
			c.append(m)
			return m, err
		}
		m := BotText{Text: TextRequestFailed, At: c.now()}
		c.append(m)
		return m, err
	}

	text := reply.Content
	if reply.Status != StatusSuccess {
		text = TextRequestFailed
	}
	m := BotText{Text: text, At: c.now()}
	c.append(m)
	return m, nil
}

// SendVoice posts a recorded prompt. The pending entry is replaced by the
// transcript once the backend replies, followed by the bot's answer.
func (c *Conversation) SendVoice(ctx context.Context, fileName string, audio io.Reader) (Message, error) {
	pending := c.append(UserAudioPending{FileName: fileName, At: c.now()})

	reply, err := c.backend.VoiceChat(ctx, c.ReportID, fileName, audio)
	switch {
	case err != nil:
		c.logger.Warn("Voice chat request failed", logging.Err(err))
		notice := TextVoiceFailed
		if viqerrors.IsTransport(err) {
			notice = TextVoiceNetwork
		}
		c.replace(pending, UserAudio{Transcript: notice, At: c.now()})
		m := BotText{Text: TextAudioNotHandled, At: c.now()}
		c.append(m)
		return m, err

	case reply.Status != StatusSuccess:
		c.replace(pending, UserAudio{Transcript: TextVoiceFailed, At: c.now()})
		m := BotText{Text: TextAudioNotHandled, At: c.now()}
		c.append(m)
		return m, fmt.Errorf("voice chat returned status %q", reply.Status)
	}

	transcript := strings.TrimSpace(reply.UserPrompt)
	if transcript == "" {
		transcript = TextVoiceProcessed
	}
	c.replace(pending, UserAudio{Transcript: transcript, At: c.now()})
	m := BotText{Text: reply.Content, At: c.now()}
	c.append(m)
	return m, nil
}

// TimeLayout is the clock format shown next to each message.
const TimeLayout = "15:04"

// Render writes the history as plain text, one block per message.
func (c *Conversation) Render(w io.Writer) error {
	for _, m := range c.Messages() {
		if _, err := io.WriteString(w, Format(m)+"\n"); err != nil {
			return err
		}
	}
	return nil
}

// Format renders one message as "[HH:MM] speaker: text".
func Format(m Message) string {
	var who, text string
	switch v := m.(type) {
	case UserText:
		who, text = "you", v.Text
	case UserAudioPending:
		who, text = "you", fmt.Sprintf("[audio %s] transcribing...", v.FileName)
	case UserAudio:
		who, text = "you", "[audio] "+v.Transcript
	case BotText:
		who, text = "bot", v.Text
	case BotError:
		who, text = "bot", "! "+v.Text
	default:
		panic(fmt.Sprintf("chat: unknown message type %T", m))
	}
	return fmt.Sprintf("[%s] %s: %s", m.Time().Format(TimeLayout), who, text)
}
