package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"
)

// defaultTimestampFormat is RFC3339 with millisecond precision.
const defaultTimestampFormat = "2006-01-02T15:04:05.000Z07:00"

// TextFormatter renders entries as a single human-readable line:
//
//	2024-01-02T15:04:05.000Z INFO [server] server started port=8080
type TextFormatter struct {
	// DisableTimestamp omits the leading timestamp.
	DisableTimestamp bool
	// TimestampFormat overrides the default RFC3339 millisecond format.
	TimestampFormat string
}

// Format implements Formatter.
func (f *TextFormatter) Format(entry *Entry) ([]byte, error) {
	var buf bytes.Buffer

	if !f.DisableTimestamp {
		format := f.TimestampFormat
		if format == "" {
			format = defaultTimestampFormat
		}
		buf.WriteString(entry.Timestamp.Format(format))
		buf.WriteByte(' ')
	}

	buf.WriteString(entry.Level.String())

	if c, ok := entry.Fields[ComponentKey]; ok {
		fmt.Fprintf(&buf, " [%v]", c)
	}

	buf.WriteByte(' ')
	buf.WriteString(entry.Message)

	// Remaining fields in sorted order for stable output.
	keys := make([]string, 0, len(entry.Fields))
	for k := range entry.Fields {
		if k == ComponentKey {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&buf, " %s=%v", k, entry.Fields[k])
	}

	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// JSONFormatter renders entries as one JSON object per line. Entry fields are
// flattened into the top-level object alongside ts, level and msg.
type JSONFormatter struct {
	// TimestampFormat overrides the default RFC3339 millisecond format.
	TimestampFormat string
	// Pretty indents output; intended for interactive debugging only.
	Pretty bool
}

// Format implements Formatter.
func (f *JSONFormatter) Format(entry *Entry) ([]byte, error) {
	format := f.TimestampFormat
	if format == "" {
		format = defaultTimestampFormat
	}

	data := make(map[string]interface{}, len(entry.Fields)+4)
	for k, v := range entry.Fields {
		data[k] = normalizeValue(v)
	}
	data["ts"] = entry.Timestamp.Format(format)
	data["level"] = entry.Level.String()
	data["msg"] = entry.Message
	if entry.Caller != "" {
		data["caller"] = entry.Caller
	}

	var (
		b   []byte
		err error
	)
	if f.Pretty {
		b, err = json.MarshalIndent(data, "", "  ")
	} else {
		b, err = json.Marshal(data)
	}
	if err != nil {
		return nil, fmt.Errorf("format entry: %w", err)
	}
	return append(b, '\n'), nil
}

// normalizeValue converts values json.Marshal cannot represent.
func normalizeValue(v interface{}) interface{} {
	switch t := v.(type) {
	case error:
		return t.Error()
	case time.Duration:
		return t.String()
	case fmt.Stringer:
		return t.String()
	default:
		return v
	}
}
