// client.go — HTTP-клиент к chat-completions API (Mistral-совместимый).
// Bearer-аутентификация, JSON запрос/ответ, без retry.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Роли сообщений chat-completions API.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message — одно сообщение диалога.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequest — тело запроса chat-completions.
type chatRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
}

// chatResponse — тело ответа chat-completions.
type chatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// Client — клиент chat-completions API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент chat-completions API.
// baseURL — базовый URL API (например, https://api.mistral.ai).
// apiKey — Bearer ключ. model — идентификатор модели.
// httpClient может быть nil.
func New(baseURL, apiKey, model string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}

	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: httpClient,
		logger:     logger.With(slog.String("component", "assistant_client")),
	}
}

// Complete отправляет историю диалога и возвращает ответ модели.
func (c *Client) Complete(ctx context.Context, messages []Message) (Message, error) {
	reqBody, err := json.Marshal(chatRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return Message{}, fmt.Errorf("сериализация запроса: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/v1/chat/completions", bytes.NewReader(reqBody))
	if err != nil {
		return Message{}, fmt.Errorf("создание запроса: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Message{}, fmt.Errorf("запрос chat-completions: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return Message{}, fmt.Errorf("chat-completions API вернул статус %d: %s",
			resp.StatusCode, string(body))
	}

	var chatResp chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return Message{}, fmt.Errorf("разбор ответа: %w", err)
	}

	if len(chatResp.Choices) == 0 {
		return Message{}, errors.New("ответ chat-completions не содержит choices")
	}

	c.logger.Debug("Получен ответ модели",
		slog.Int("history_len", len(messages)),
	)

	return chatResp.Choices[0].Message, nil
}
