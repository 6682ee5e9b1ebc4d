package scores

import (
	"bytes"
	"encoding/json"
	"fmt"
)

type documentJSON struct {
	SystemSummaries json.RawMessage `json:"system_summaries"`
	MeanScores      Scores          `json:"mean_scores,omitempty"`
}

// UnmarshalJSON decodes {"system_summaries": {...}, "mean_scores": {...}}
// keeping the system order of the input.
func (d *DocumentRecord) UnmarshalJSON(data []byte) error {
	var raw documentJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := NewDocumentRecord()
	out.MeanScores = raw.MeanScores
	if len(raw.SystemSummaries) > 0 {
		err := decodeOrderedObject(raw.SystemSummaries, func(system string, value json.RawMessage) error {
			var rec SummaryRecord
			if err := json.Unmarshal(value, &rec); err != nil {
				return fmt.Errorf("system %q: %w", system, err)
			}
			out.Add(system, &rec)
			return nil
		})
		if err != nil {
			return err
		}
	}
	*d = *out
	return nil
}

// MarshalJSON writes system summaries in iteration order
func (d *DocumentRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"system_summaries":{`)
	for i, system := range d.systems {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, system, d.summaries[system]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	if d.MeanScores != nil {
		buf.WriteByte(',')
		if err := writeMember(&buf, "mean_scores", d.MeanScores); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes an object of document id to document record,
// keeping document order.
func (s *ScoreStore) UnmarshalJSON(data []byte) error {
	out := NewScoreStore()
	err := decodeOrderedObject(data, func(id string, value json.RawMessage) error {
		doc := NewDocumentRecord()
		if err := json.Unmarshal(value, doc); err != nil {
			return fmt.Errorf("document %q: %w", id, err)
		}
		out.Add(id, doc)
		return nil
	})
	if err != nil {
		return err
	}
	*s = *out
	return nil
}

// MarshalJSON writes documents in iteration order
func (s *ScoreStore) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range s.ids {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeMember(&buf, id, s.docs[id]); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeMember(buf *bytes.Buffer, key string, value interface{}) error {
	k, err := json.Marshal(key)
	if err != nil {
		return err
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	buf.Write(k)
	buf.WriteByte(':')
	buf.Write(v)
	return nil
}

// decodeOrderedObject walks a JSON object member by member in source order
func decodeOrderedObject(data []byte, fn func(key string, value json.RawMessage) error) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expected JSON object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		var value json.RawMessage
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		if err := fn(key, value); err != nil {
			return err
		}
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	return nil
}
