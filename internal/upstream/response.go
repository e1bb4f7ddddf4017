package upstream

import (
	"encoding/json"
	"fmt"

	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// Response is the JSON body of select and fcselect.
type Response struct {
	ResponseHeader json.RawMessage
	Response       ResultSet
	// RSInput is the training blob, present when returnRSInput was requested.
	RSInput *string
	// Extra holds the top-level keys not modelled above, such as facet_counts
	// and highlighting. They are written back unchanged.
	Extra map[string]json.RawMessage
}

// ResultSet holds the matched documents.
type ResultSet struct {
	NumFound int64
	Start    int64
	Docs     []scorer.Document
	// Extra holds keys such as maxScore and numFoundExact.
	Extra map[string]json.RawMessage
}

func (r *Response) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	if v, ok := take(raw, "responseHeader"); ok {
		r.ResponseHeader = v
	}
	if v, ok := take(raw, "response"); ok {
		if err := json.Unmarshal(v, &r.Response); err != nil {
			return fmt.Errorf("response: %w", err)
		}
	}
	if v, ok := take(raw, "RSInput"); ok {
		if err := json.Unmarshal(v, &r.RSInput); err != nil {
			return fmt.Errorf("RSInput: %w", err)
		}
	}
	r.Extra = nonEmpty(raw)
	return nil
}

func (r Response) MarshalJSON() ([]byte, error) {
	out := withExtra(r.Extra, 3)
	if len(r.ResponseHeader) > 0 {
		out["responseHeader"] = r.ResponseHeader
	}
	out["response"] = r.Response
	if r.RSInput != nil {
		out["RSInput"] = *r.RSInput
	}
	return json.Marshal(out)
}

func (s *ResultSet) UnmarshalJSON(data []byte) error {
	raw, err := splitObject(data)
	if err != nil {
		return err
	}
	fields := []struct {
		key string
		dst any
	}{
		{"numFound", &s.NumFound},
		{"start", &s.Start},
		{"docs", &s.Docs},
	}
	for _, f := range fields {
		if v, ok := take(raw, f.key); ok {
			if err := json.Unmarshal(v, f.dst); err != nil {
				return fmt.Errorf("%s: %w", f.key, err)
			}
		}
	}
	s.Extra = nonEmpty(raw)
	return nil
}

func (s ResultSet) MarshalJSON() ([]byte, error) {
	out := withExtra(s.Extra, 3)
	out["numFound"] = s.NumFound
	out["start"] = s.Start
	docs := s.Docs
	if docs == nil {
		docs = []scorer.Document{}
	}
	out["docs"] = docs
	return json.Marshal(out)
}

func splitObject(data []byte) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// take removes key from raw and returns its value. A JSON null counts as
// absent.
func take(raw map[string]json.RawMessage, key string) (json.RawMessage, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	delete(raw, key)
	if string(v) == "null" {
		return nil, false
	}
	return v, true
}

func withExtra(extra map[string]json.RawMessage, known int) map[string]any {
	out := make(map[string]any, len(extra)+known)
	for k, v := range extra {
		out[k] = v
	}
	return out
}

func nonEmpty(raw map[string]json.RawMessage) map[string]json.RawMessage {
	if len(raw) == 0 {
		return nil
	}
	return raw
}
