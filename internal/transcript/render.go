// Package transcript flattens a ticket channel's history into a text artifact
// and optionally archives it to object storage.
package transcript

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"github.com/spec-kit/ticket-bot/internal/domain"
	"github.com/spec-kit/ticket-bot/internal/platform"
)

const timeLayout = "2006-01-02 15:04:05 MST"

// Transcript is a rendered channel history.
type Transcript struct {
	FileName string
	Messages int
	Data     []byte
}

// FileName is the attachment name used for a ticket transcript.
func FileName(ticket *domain.Ticket) string {
	return fmt.Sprintf("transcript-%s-%04d.txt", ticket.Kind, ticket.Number)
}

// Render walks history oldest first and writes one line per message, followed
// by one indented line per attachment URL. A history error aborts rendering.
func Render(ticket *domain.Ticket, history iter.Seq2[platform.Message, error]) (*Transcript, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Transcript of %s (channel %s)\n", ticket.Label(), ticket.ChannelID)
	fmt.Fprintf(&buf, "Owner: %s\n", ticket.OwnerID)
	fmt.Fprintf(&buf, "Opened: %s\n", ticket.CreatedAt.UTC().Format(timeLayout))
	if ticket.ClaimedBy != nil {
		fmt.Fprintf(&buf, "Claimed by: %s\n", *ticket.ClaimedBy)
	}
	if ticket.Priority != nil {
		fmt.Fprintf(&buf, "Priority: %s\n", *ticket.Priority)
	}
	if ticket.ClosedBy != nil {
		fmt.Fprintf(&buf, "Closed by: %s\n", *ticket.ClosedBy)
	}
	if ticket.CloseReason != nil {
		fmt.Fprintf(&buf, "Reason: %s\n", *ticket.CloseReason)
	}
	buf.WriteString(strings.Repeat("-", 40))
	buf.WriteByte('\n')

	count := 0
	for msg, err := range history {
		if err != nil {
			return nil, fmt.Errorf("read history: %w", err)
		}
		writeMessage(&buf, msg)
		count++
	}

	return &Transcript{FileName: FileName(ticket), Messages: count, Data: buf.Bytes()}, nil
}

func writeMessage(buf *bytes.Buffer, msg platform.Message) {
	author := msg.AuthorName
	if author == "" {
		author = msg.AuthorID
	}
	if msg.AuthorBot {
		author += " [bot]"
	}
	fmt.Fprintf(buf, "[%s] %s: %s\n", msg.CreatedAt.UTC().Format(timeLayout), author, flatten(msg.Content))
	for _, url := range msg.Attachments {
		fmt.Fprintf(buf, "    attachment: %s\n", url)
	}
}

// flatten indents continuation lines so each message starts a new line.
func flatten(s string) string {
	return strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n    ")
}

