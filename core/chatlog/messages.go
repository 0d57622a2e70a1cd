package chatlog

import "time"

type (
	// Key groups the entries of one conversation, e.g. a participant name.
	Key string

	// Entry is one appended chat line. Entries are never changed once stored.
	Entry struct {
		ID     string    `json:"id,omitempty"`
		Sender string    `json:"sender"`
		Text   string    `json:"text"`
		At     time.Time `json:"at,omitzero"`
	}

	// ChatMessage appends Entry to the log at Key. It is sent one-way.
	ChatMessage struct {
		Key   Key   `json:"key"`
		Entry Entry `json:"entry"`
	}

	// GetChatLog asks for the full log at Key.
	GetChatLog struct {
		Key Key `json:"key"`
	}

	// ChatLog is the reply to GetChatLog: every entry at Key in append order,
	// as of the time the request was handled.
	ChatLog struct {
		Key     Key     `json:"key"`
		Entries []Entry `json:"entries"`
	}
)

func (ChatMessage) MsgType() string { return "chatlog.append" }
func (GetChatLog) MsgType() string  { return "chatlog.get" }

func (l *ChatLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.Entries)
}

// Texts returns the text of every entry, in order.
func (l *ChatLog) Texts() []string {
	out := make([]string, 0, l.Len())
	if l == nil {
		return out
	}
	for _, e := range l.Entries {
		out = append(out, e.Text)
	}
	return out
}
