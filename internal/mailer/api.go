package mailer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// apiSender talks to a Mailtrap-compatible transactional send endpoint.
type apiSender struct {
	baseURL string
	token   string
	client  *http.Client
}

type apiRequest struct {
	From     Address   `json:"from"`
	To       []Address `json:"to"`
	Subject  string    `json:"subject"`
	Text     string    `json:"text,omitempty"`
	HTML     string    `json:"html,omitempty"`
	Category string    `json:"category,omitempty"`
}

type apiResponse struct {
	Success bool     `json:"success"`
	Errors  []string `json:"errors"`
}

func NewAPISender(baseURL, token string, client *http.Client) Sender {
	if client == nil {
		client = http.DefaultClient
	}
	return &apiSender{baseURL: strings.TrimRight(baseURL, "/"), token: token, client: client}
}

func (s *apiSender) Send(ctx context.Context, msg *Message) error {
	payload, err := json.Marshal(apiRequest{
		From:     msg.From,
		To:       []Address{{Email: msg.To}},
		Subject:  msg.Subject,
		Text:     msg.Text,
		HTML:     msg.HTML,
		Category: msg.Category,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/api/send", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+s.token)
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode/100 != 2 {
		var parsed apiResponse
		if json.Unmarshal(body, &parsed) == nil && len(parsed.Errors) > 0 {
			return fmt.Errorf("send mail: status %d: %s", resp.StatusCode, strings.Join(parsed.Errors, "; "))
		}
		return fmt.Errorf("send mail: status %d", resp.StatusCode)
	}
	return nil
}
