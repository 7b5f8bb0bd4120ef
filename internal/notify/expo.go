package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const DefaultExpoURL = "https://exp.host/--/api/v2/push/send"

type expoRequest struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data"`
}

type expoResponse struct {
	Data struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	} `json:"data"`
}

// ExpoSender posts to the Expo push service.
type ExpoSender struct {
	url    string
	client *http.Client
}

func NewExpoSender(url string, client *http.Client) *ExpoSender {
	if url == "" {
		url = DefaultExpoURL
	}
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &ExpoSender{url: url, client: client}
}

func (s *ExpoSender) Send(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(expoRequest{
		To:    n.Token,
		Title: n.Title,
		Body:  n.Body,
		Data:  map[string]string{"chatId": n.ChatID},
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("expo push: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var parsed expoResponse
	if err := json.Unmarshal(body, &parsed); err == nil && parsed.Data.Status == "error" {
		return fmt.Errorf("expo push: %s", parsed.Data.Message)
	}
	return nil
}

// IsExpoToken reports whether token was issued by Expo rather than FCM.
func IsExpoToken(token string) bool {
	return strings.HasPrefix(token, "ExponentPushToken[") || strings.HasPrefix(token, "ExpoPushToken[")
}
