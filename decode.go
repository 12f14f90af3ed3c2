package mpart

import (
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"

	"gopkg.in/yaml.v3"
)

// Decoder decodes a part body from a wire format. Decode and DecodeStrict
// delegate to whichever registered decoder matches the part's declared
// content type.
type Decoder interface {
	ContentType() string
	Decode(r io.Reader, v any) error
}

// jsonDecoder is the default decoder.
type jsonDecoder struct{}

func (jsonDecoder) ContentType() string { return "application/json" }

func (jsonDecoder) Decode(r io.Reader, v any) error {
	err := json.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type xmlDecoder struct{}

func (xmlDecoder) ContentType() string { return "application/xml" }

func (xmlDecoder) Decode(r io.Reader, v any) error {
	err := xml.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

type yamlDecoder struct{}

func (yamlDecoder) ContentType() string { return "application/yaml" }

func (yamlDecoder) Decode(r io.Reader, v any) error {
	err := yaml.NewDecoder(r).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// Registry holds the decoders available to Decode and DecodeStrict.
// Index 0 is always JSON (the default for lax matching).
type Registry struct {
	decoders []Decoder
}

// NewRegistry builds a registry with JSON first, XML and YAML next, then
// any user-registered decoders.
func NewRegistry(userDecoders ...Decoder) *Registry {
	reg := &Registry{decoders: make([]Decoder, 0, 3+len(userDecoders))}
	reg.decoders = append(reg.decoders, jsonDecoder{}, xmlDecoder{}, yamlDecoder{})
	reg.decoders = append(reg.decoders, userDecoders...)
	return reg
}

// decoderFor returns the decoder matching the given media type. With strict
// off, a missing or unrecognized media type falls back to JSON; with strict
// on it is a miss.
func (reg *Registry) decoderFor(mediaType string, strict bool) (Decoder, bool) {
	if mediaType == "" {
		if strict {
			return nil, false
		}
		return reg.decoders[0], true
	}

	for _, dec := range reg.decoders {
		if dec.ContentType() == mediaType {
			return dec, true
		}
	}

	if strict {
		return nil, false
	}
	return reg.decoders[0], true
}
