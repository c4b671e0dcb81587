package book

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/compozy/bookstore/engine/core"
)

// MetadataColumn is the column name carrying the JSON document.
const MetadataColumn = "metadata"

// EncodeMetadata returns the JSON form of m, or nil when m is absent so the
// column is written as SQL NULL. Nil tags are written as an empty list.
func EncodeMetadata(m *Metadata) ([]byte, error) {
	if m == nil {
		return nil, nil
	}
	doc := *m
	if doc.Tags == nil {
		doc.Tags = []string{}
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encoding metadata: %w", err)
	}
	return data, nil
}

// metadataDocument mirrors Metadata with pointers so absent keys and JSON
// nulls can be told apart from zero values.
type metadataDocument struct {
	AvgReview *float32   `json:"avg_review"`
	Tags      *[]*string `json:"tags"`
}

// DecodeMetadata parses a stored metadata value. NULL, empty and JSON null
// decode to nil. Anything that does not match the Metadata shape is a
// *core.DecodeError, including a missing or null key.
func DecodeMetadata(src []byte) (*Metadata, error) {
	trimmed := bytes.TrimSpace(src)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.DisallowUnknownFields()
	var doc metadataDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, core.NewDecodeError(MetadataColumn, err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return nil, core.NewDecodeError(MetadataColumn, errors.New("trailing data after metadata document"))
	}
	return doc.toMetadata()
}

func (d *metadataDocument) toMetadata() (*Metadata, error) {
	if d.AvgReview == nil {
		return nil, core.NewDecodeError(MetadataColumn, errors.New("avg_review is missing or null"))
	}
	if d.Tags == nil {
		return nil, core.NewDecodeError(MetadataColumn, errors.New("tags is missing or null"))
	}
	tags := make([]string, 0, len(*d.Tags))
	for i, tag := range *d.Tags {
		if tag == nil {
			return nil, core.NewDecodeError(MetadataColumn, fmt.Errorf("tags[%d] is null", i))
		}
		tags = append(tags, *tag)
	}
	return &Metadata{AvgReview: *d.AvgReview, Tags: tags}, nil
}
