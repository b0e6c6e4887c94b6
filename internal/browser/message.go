package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MessageKind is the outcome a message box reports.
type MessageKind string

const (
	MessageGood MessageKind = "good"
	MessageBad  MessageKind = "bad"
)

// MessageSelector matches the message box of the console.
const MessageSelector = "output.msg-good, output.msg-bad"

// Message is the result box shown after a form submission.
type Message struct {
	Kind  MessageKind `json:"kind"`
	Title string      `json:"title"`
	Lines []string    `json:"lines,omitempty"`
}

func (m Message) String() string {
	if len(m.Lines) == 0 {
		return fmt.Sprintf("%s: %s", m.Kind, m.Title)
	}
	return fmt.Sprintf("%s: %s [%s]", m.Kind, m.Title, strings.Join(m.Lines, "; "))
}

// ParseMessage extracts a Message from the HTML of a message box.
// The first box in the fragment wins.
func ParseMessage(html string) (Message, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return Message{}, fmt.Errorf("parse message html: %w", err)
	}

	box := doc.Find(MessageSelector).First()
	if box.Length() == 0 {
		return Message{}, fmt.Errorf("no message box in %q", truncate(html, 120))
	}

	msg := Message{Kind: MessageGood}
	if box.HasClass("msg-bad") {
		msg.Kind = MessageBad
	}
	msg.Title = collapse(box.ChildrenFiltered("span").First().Text())

	box.Find("ul li").Each(func(_ int, li *goquery.Selection) {
		if line := collapse(li.Text()); line != "" {
			msg.Lines = append(msg.Lines, line)
		}
	})
	return msg, nil
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
