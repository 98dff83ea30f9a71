package domain

import "encoding/json"

// JobMessage is the wire entity carried from the producer through the queue
// to the consumer. It is immutable once enqueued. Fields the consumer does
// not know by name round-trip through Metadata, an open extension bag that
// is forwarded but never validated.
type JobMessage struct {
	JobID        uint                   `json:"jobId"`
	DataSourceID uint                   `json:"dataSourceId"`
	FileName     string                 `json:"fileName"`
	BlobPath     string                 `json:"blobPath"`
	FileType     string                 `json:"fileType"`
	Metadata     map[string]interface{} `json:"-"`
}

// knownMessageFields are the top-level keys decoded into struct fields.
// Everything else lands in Metadata.
var knownMessageFields = map[string]struct{}{
	"jobId":        {},
	"dataSourceId": {},
	"fileName":     {},
	"blobPath":     {},
	"fileType":     {},
}

// UnmarshalJSON decodes a message leniently: known fields fill the struct,
// unknown fields are preserved in Metadata.
func (m *JobMessage) UnmarshalJSON(data []byte) error {
	type alias JobMessage
	var known alias
	if err := json.Unmarshal(data, &known); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*m = JobMessage(known)
	for key, value := range raw {
		if _, ok := knownMessageFields[key]; ok {
			continue
		}
		var v interface{}
		if err := json.Unmarshal(value, &v); err != nil {
			continue
		}
		if m.Metadata == nil {
			m.Metadata = make(map[string]interface{})
		}
		m.Metadata[key] = v
	}
	return nil
}

// MarshalJSON flattens Metadata back into the top-level object so the wire
// shape survives a decode/encode round trip. Known fields win on collision.
func (m JobMessage) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(m.Metadata)+5)
	for key, value := range m.Metadata {
		out[key] = value
	}
	out["jobId"] = m.JobID
	out["dataSourceId"] = m.DataSourceID
	out["fileName"] = m.FileName
	out["blobPath"] = m.BlobPath
	out["fileType"] = m.FileType
	return json.Marshal(out)
}

// ColumnMapping projects one source column onto a target name in the
// SQL strategy's SELECT.
type ColumnMapping struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// ColumnMappings extracts the optional columnMapping metadata entry.
// The value may arrive as a decoded JSON array or as a JSON string;
// anything malformed degrades to nil so the caller falls back to SELECT *.
func (m *JobMessage) ColumnMappings() []ColumnMapping {
	raw, ok := m.Metadata["columnMapping"]
	if !ok {
		return nil
	}

	var data []byte
	switch v := raw.(type) {
	case string:
		data = []byte(v)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		data = b
	}

	var mappings []ColumnMapping
	if err := json.Unmarshal(data, &mappings); err != nil {
		return nil
	}
	return mappings
}
