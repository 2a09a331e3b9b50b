package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Client is a thin Bot API client covering the three calls the dispatcher
// needs: sendMessage, getUpdates and answerCallbackQuery.
type Client struct {
	token  string
	base   string
	client *http.Client
}

// NewClient builds a client for the given bot token. base overrides the API
// host, mainly for tests; pass "" for the real endpoint.
func NewClient(token, base string) *Client {
	if base == "" {
		base = defaultAPIBase
	}
	return &Client{token: token, base: base, client: &http.Client{Timeout: 35 * time.Second}}
}

// InlineButton is one button of an inline keyboard row.
type InlineButton struct {
	Text         string `json:"text"`
	CallbackData string `json:"callback_data"`
}

type inlineKeyboard struct {
	Rows [][]InlineButton `json:"inline_keyboard"`
}

type sendMessageRequest struct {
	ChatID      string          `json:"chat_id"`
	Text        string          `json:"text"`
	ParseMode   string          `json:"parse_mode,omitempty"`
	ReplyMarkup *inlineKeyboard `json:"reply_markup,omitempty"`
}

// Chat, User, Message, CallbackQuery and Update mirror the Bot API shapes we
// consume; everything else is ignored during decoding.
type Chat struct {
	ID int64 `json:"id"`
}

type User struct {
	ID int64 `json:"id"`
}

type Message struct {
	MessageID int64  `json:"message_id"`
	Chat      Chat   `json:"chat"`
	Text      string `json:"text"`
}

type CallbackQuery struct {
	ID      string   `json:"id"`
	From    User     `json:"from"`
	Message *Message `json:"message"`
	Data    string   `json:"data"`
}

type Update struct {
	UpdateID      int64          `json:"update_id"`
	Message       *Message       `json:"message"`
	CallbackQuery *CallbackQuery `json:"callback_query"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (c *Client) call(ctx context.Context, method string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s request: %w", method, err)
	}
	url := fmt.Sprintf("%s/bot%s/%s", c.base, c.token, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", method, err)
	}
	defer resp.Body.Close()
	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !ar.OK {
		return fmt.Errorf("telegram %s error: %s", method, ar.Description)
	}
	if out != nil {
		return json.Unmarshal(ar.Result, out)
	}
	return nil
}

// SendMessage delivers a Markdown message, optionally with one inline
// keyboard row of buttons.
func (c *Client) SendMessage(ctx context.Context, chatID, text string, buttons ...InlineButton) error {
	req := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "Markdown"}
	if len(buttons) > 0 {
		req.ReplyMarkup = &inlineKeyboard{Rows: [][]InlineButton{buttons}}
	}
	return c.call(ctx, "sendMessage", req, nil)
}

// GetUpdates long-polls for updates after the given offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]Update, error) {
	req := map[string]any{"offset": offset, "timeout": timeoutSec}
	var updates []Update
	if err := c.call(ctx, "getUpdates", req, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

// AnswerCallback acknowledges a button press with a short toast.
func (c *Client) AnswerCallback(ctx context.Context, callbackID, text string) error {
	req := map[string]any{"callback_query_id": callbackID, "text": text}
	return c.call(ctx, "answerCallbackQuery", req, nil)
}
