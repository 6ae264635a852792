package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// TopicNotifications is the single well-known bus topic.
const TopicNotifications = "notifications"

// Envelope is the wire contract between workers and the listener:
// {"chat_id": <int|str>, "text": <str>}. The schema is stable across
// versions; Channel is an optional routing hint that is omitted entirely
// for telegram messages so existing envelopes stay byte-identical.
type Envelope struct {
	ChatID  any    `json:"chat_id"`
	Text    string `json:"text"`
	Channel string `json:"channel,omitempty"`
}

func (e Envelope) Marshal() ([]byte, error) {
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(e); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func ParseEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&env); err != nil {
		return Envelope{}, err
	}
	return env, nil
}

// Recipient renders the chat id as the string form the channel expects.
func (e Envelope) Recipient() string {
	switch v := e.ChatID.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case int64:
		return strconv.FormatInt(v, 10)
	case int:
		return strconv.Itoa(v)
	case float64:
		return strconv.FormatInt(int64(v), 10)
	default:
		return fmt.Sprintf("%v", v)
	}
}
