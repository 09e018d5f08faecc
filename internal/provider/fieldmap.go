package provider

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/notifyhub/hermes-dispatch/internal/config"
	"github.com/notifyhub/hermes-dispatch/internal/domain"
)

// messageFields is the closed set of message attributes a column can feed.
var messageFields = map[string]func(m *Message, v string){
	"to":       func(m *Message, v string) { m.To = v },
	"from":     func(m *Message, v string) { m.From = v },
	"fromName": func(m *Message, v string) { m.FromName = v },
	"replyTo":  func(m *Message, v string) { m.ReplyTo = v },
	"cc":       func(m *Message, v string) { m.Cc = splitAddresses(v) },
	"bcc":      func(m *Message, v string) { m.Bcc = splitAddresses(v) },
	"subject":  func(m *Message, v string) { m.Subject = v },
	"body":     func(m *Message, v string) { m.Body = v },
	"htmlBody": func(m *Message, v string) { m.Body = v; m.IsHTML = true },
	"charset":  func(m *Message, v string) { m.Charset = v },
	"isHTML": func(m *Message, v string) {
		if b, err := strconv.ParseBool(v); err == nil {
			m.IsHTML = b
		}
	},
}

// DefaultColumns maps the installed table's payload columns to message
// attributes.
var DefaultColumns = map[string]string{
	"to":        "to",
	"from":      "from",
	"from_name": "fromName",
	"reply_to":  "replyTo",
	"cc":        "cc",
	"bcc":       "bcc",
	"charset":   "charset",
	"subject":   "subject",
	"body":      "body",
	"is_html":   "isHTML",
}

type binding struct {
	column string
	set    func(m *Message, v string)
}

// FieldMap turns a job's payload into a Message. The column list is fixed
// when the map is built.
type FieldMap struct {
	bindings []binding
}

// NewFieldMap builds a map from column -> message attribute pairs.
func NewFieldMap(columns map[string]string) (*FieldMap, error) {
	if len(columns) == 0 {
		return nil, fmt.Errorf("field map: no columns")
	}
	m := &FieldMap{bindings: make([]binding, 0, len(columns))}
	for column, field := range columns {
		if err := config.SanitizeColumn(column); err != nil {
			return nil, fmt.Errorf("field map: %w", err)
		}
		set, ok := messageFields[field]
		if !ok {
			return nil, fmt.Errorf("field map: unknown message attribute %q for column %q", field, column)
		}
		m.bindings = append(m.bindings, binding{column: column, set: set})
	}
	sort.Slice(m.bindings, func(i, j int) bool {
		return m.bindings[i].column < m.bindings[j].column
	})
	return m, nil
}

// MustDefaultFieldMap returns the map for the installed schema.
func MustDefaultFieldMap() *FieldMap {
	m, err := NewFieldMap(DefaultColumns)
	if err != nil {
		panic(err)
	}
	return m
}

// Columns returns the payload columns in a stable order.
func (m *FieldMap) Columns() []string {
	cols := make([]string, len(m.bindings))
	for i, b := range m.bindings {
		cols[i] = b.column
	}
	return cols
}

// Message assembles the transport message for job. Missing payload values
// leave the attribute at its zero value.
func (m *FieldMap) Message(job *domain.Job) Message {
	msg := Message{JobID: job.ID}
	for _, b := range m.bindings {
		if v, ok := job.Payload[b.column]; ok {
			b.set(&msg, v)
		}
	}
	return msg
}

func splitAddresses(v string) []string {
	var out []string
	for _, addr := range strings.Split(v, ",") {
		if addr = strings.TrimSpace(addr); addr != "" {
			out = append(out, addr)
		}
	}
	return out
}
