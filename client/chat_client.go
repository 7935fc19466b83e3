package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"github.com/voiceiq/viq-cli/pkg/chat"
)

type chatRequest struct {
	UserPrompt string `json:"user_prompt"`
	UUID       string `json:"uuid"`
}

// Chat asks a question about a report.
func (c *Client) Chat(ctx context.Context, reportID, prompt string) (*chat.Reply, error) {
	body, err := json.Marshal(chatRequest{UserPrompt: prompt, UUID: reportID})
	if err != nil {
		return nil, fmt.Errorf("encoding chat request: %w", err)
	}

	var reply chat.Reply
	err = c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/chat",
		endpoint:    EndpointChat,
		body:        bytes.NewReader(body),
		contentType: "application/json",
	}, &reply)
	if err != nil {
		return nil, fmt.Errorf("chat: %w", err)
	}
	return &reply, nil
}

// VoiceChat sends a recorded question about a report.
func (c *Client) VoiceChat(ctx context.Context, reportID, fileName string, audio io.Reader) (*chat.VoiceReply, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, fmt.Errorf("building voice chat form: %w", err)
	}
	if _, err := io.Copy(part, audio); err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if err := mw.WriteField("uuid", reportID); err != nil {
		return nil, fmt.Errorf("building voice chat form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("building voice chat form: %w", err)
	}

	var reply chat.VoiceReply
	err = c.do(ctx, call{
		method:      http.MethodPost,
		path:        "/voice_chat",
		endpoint:    EndpointVoiceChat,
		body:        &buf,
		contentType: mw.FormDataContentType(),
	}, &reply)
	if err != nil {
		return nil, fmt.Errorf("voice chat: %w", err)
	}
	return &reply, nil
}
