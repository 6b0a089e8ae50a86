package genai

import "context"

// Static is a Generator that echoes a canned template. It keeps local
// development working without upstream credentials.
type Static struct {
	Prefix string
}

func (s Static) Generate(_ context.Context, req Request) (*Response, error) {
	last := ""
	for i := len(req.Messages) - 1; i >= 0; i-- {
		if req.Messages[i].Content != "" {
			last = req.Messages[i].Content
			break
		}
	}
	text := s.Prefix
	if text == "" {
		text = "Thanks for your message."
	}
	if last != "" {
		text = text + " " + last
	}
	return &Response{Text: text}, nil
}
