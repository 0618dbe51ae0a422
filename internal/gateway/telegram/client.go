package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"taxibot/internal/gateway"
)

// DefaultAPIBaseURL is the public Bot API endpoint.
const DefaultAPIBaseURL = "https://api.telegram.org"

// Client implements gateway.Messenger against the Telegram Bot API.
type Client struct {
	token   string
	baseURL string
	http    *http.Client
}

// NewClient creates a Bot API client. baseURL may be empty to use the public
// endpoint; tests point it at a local stub.
func NewClient(token, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultAPIBaseURL
	}
	return &Client{
		token:   token,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

var _ gateway.Messenger = (*Client)(nil)

// inlineKeyboard is the reply_markup shape for inline action buttons.
type inlineKeyboard struct {
	InlineKeyboard [][]inlineButton `json:"inline_keyboard"`
}

type inlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

// replyKeyboard is the reply_markup shape for the contact-request button.
type replyKeyboard struct {
	Keyboard        [][]replyButton `json:"keyboard"`
	ResizeKeyboard  bool            `json:"resize_keyboard"`
	OneTimeKeyboard bool            `json:"one_time_keyboard"`
}

type replyButton struct {
	Text           string `json:"text"`
	RequestContact bool   `json:"request_contact,omitempty"`
}

// SendText delivers a message with optional inline buttons. Buttons are laid
// out in rows of two, matching the direction and seat keyboards.
func (c *Client) SendText(ctx context.Context, chatID int64, body string, buttons ...gateway.Button) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       body,
		"parse_mode": "HTML",
	}
	if len(buttons) > 0 {
		var rows [][]inlineButton
		for i := 0; i < len(buttons); i += 2 {
			row := []inlineButton{{Text: buttons[i].Label, CallbackData: buttons[i].Data}}
			if i+1 < len(buttons) {
				row = append(row, inlineButton{Text: buttons[i+1].Label, CallbackData: buttons[i+1].Data})
			}
			rows = append(rows, row)
		}
		payload["reply_markup"] = inlineKeyboard{InlineKeyboard: rows}
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

// SendContactRequest prompts the user with a one-time share-contact keyboard.
func (c *Client) SendContactRequest(ctx context.Context, chatID int64, body string) (int64, error) {
	payload := map[string]any{
		"chat_id":    chatID,
		"text":       body,
		"parse_mode": "HTML",
		"reply_markup": replyKeyboard{
			Keyboard:        [][]replyButton{{{Text: "📞 Raqamni yuborish", RequestContact: true}}},
			ResizeKeyboard:  true,
			OneTimeKeyboard: true,
		},
	}

	var result struct {
		MessageID int64 `json:"message_id"`
	}
	if err := c.call(ctx, "sendMessage", payload, &result); err != nil {
		return 0, err
	}
	return result.MessageID, nil
}

// DeleteMessage removes a previously sent message.
func (c *Client) DeleteMessage(ctx context.Context, chatID int64, messageID int64) error {
	payload := map[string]any{
		"chat_id":    chatID,
		"message_id": messageID,
	}
	return c.call(ctx, "deleteMessage", payload, nil)
}

// AnswerAction acknowledges a callback query.
func (c *Client) AnswerAction(ctx context.Context, actionID string, text string) error {
	payload := map[string]any{
		"callback_query_id": actionID,
	}
	if text != "" {
		payload["text"] = text
	}
	return c.call(ctx, "answerCallbackQuery", payload, nil)
}

// SetWebhook registers the webhook URL with Telegram. The secret, when set,
// is echoed back by Telegram in a header on every update.
func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	payload := map[string]any{
		"url":                  url,
		"drop_pending_updates": true,
	}
	if secret != "" {
		payload["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", payload, nil)
}

// apiResponse is the Bot API envelope.
type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	defer resp.Body.Close()

	var envelope apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if !envelope.OK {
		return fmt.Errorf("telegram %s: %s", method, envelope.Description)
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}
