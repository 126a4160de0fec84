// Package slack posts finished meal plans to a Slack incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"mealprep"
)

// Slack rejects section text longer than this.
const maxSectionText = 3000

type Client struct {
	webhookURL string
	channel    string
	httpClient mealprep.HTTPClient
}

func NewClient(webhookURL, channel string, httpClient mealprep.HTTPClient) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		channel:    channel,
		httpClient: httpClient,
	}
}

type Message struct {
	Channel string  `json:"channel,omitempty"`
	Text    string  `json:"text"`
	Blocks  []Block `json:"blocks,omitempty"`
}

type Block struct {
	Type string     `json:"type"`
	Text *BlockText `json:"text,omitempty"`
}

type BlockText struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// PostMealPlan sends the shopping list of rec to the configured channel.
func (c *Client) PostMealPlan(ctx context.Context, rec mealprep.MealPlanRecord) error {
	slog.Info("SLACK: Posting meal plan", "channel", c.channel, "query", rec.Query)
	return c.Post(ctx, MealPlanMessage(c.channel, rec))
}

// MealPlanMessage renders rec as a header and a mrkdwn section. Text is the
// notification fallback.
func MealPlanMessage(channel string, rec mealprep.MealPlanRecord) Message {
	body := rec.Result
	if len(body) > maxSectionText {
		body = mealprep.Preview(body, maxSectionText)
	}
	return Message{
		Channel: channel,
		Text:    fmt.Sprintf("Meal plan ready: %s", rec.Query),
		Blocks: []Block{
			{Type: "header", Text: &BlockText{Type: "plain_text", Text: "Meal plan: " + rec.Query}},
			{Type: "section", Text: &BlockText{Type: "mrkdwn", Text: body}},
		},
	}
}

// Post sends msg to the webhook.
func (c *Client) Post(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}
