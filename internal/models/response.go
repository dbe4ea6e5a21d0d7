package models

import "strings"

// Attachment colors
const (
	ColorNeutral  = "#439FE0"
	ColorPositive = "good"
	ColorNegative = "danger"
)

// Attachment a rich block of a reply
type Attachment struct {
	Fallback string   `json:"fallback,omitempty"`
	Color    string   `json:"color,omitempty"`
	Text     string   `json:"text"`
	MrkdwnIn []string `json:"mrkdwn_in,omitempty"`
	ImageURL string   `json:"image_url,omitempty"`
}

// Response one reply. Either Text, Attachments or both; Image carries a rendered PNG.
type Response struct {
	Text        string       `json:"text,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Image       []byte       `json:"-"`
}

// TextResponse wraps a plain string
func TextResponse(text string) Response {
	return Response{Text: text}
}

// PlainText flattens the response for transports without rich formatting
func (r Response) PlainText() string {
	parts := make([]string, 0, len(r.Attachments)+1)
	if r.Text != "" {
		parts = append(parts, r.Text)
	}
	for _, a := range r.Attachments {
		text := a.Text
		if text == "" {
			text = a.Fallback
		}
		if text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n")
}
