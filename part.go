package mpart

import (
	"io"
	"mime"
	"mime/multipart"
	"net/textproto"
)

// Part is one section of a multipart body: its MIME headers plus a lazy,
// single-consumption byte stream. The framing (boundary detection, header
// parsing) is the framer's job — typically mime/multipart.Reader — and a
// Part arrives here already isolated.
//
// A Part is owned by the caller for the duration of one Receive invocation,
// and its Body must be consumed at most once; re-reading is undefined.
type Part struct {
	Header textproto.MIMEHeader
	Body   io.Reader
}

// NewPart builds a part from headers and a body stream.
func NewPart(header textproto.MIMEHeader, body io.Reader) *Part {
	return &Part{Header: header, Body: body}
}

// FromMultipart adapts a mime/multipart part. The returned Part shares the
// underlying stream, so it inherits single-consumption semantics.
func FromMultipart(p *multipart.Part) *Part {
	return &Part{Header: p.Header, Body: p}
}

// WithBody returns a copy of the part with its body substituted. Headers
// are shared, not copied. This is how Preprocess layers transforms such as
// size limiting under an existing receiver.
func (p *Part) WithBody(body io.Reader) *Part {
	return &Part{Header: p.Header, Body: body}
}

// ContentType returns the raw Content-Type header value.
func (p *Part) ContentType() string {
	return p.Header.Get("Content-Type")
}

// MediaType returns the parsed media type of the part, without parameters.
// Returns "" when the header is absent or unparsable.
func (p *Part) MediaType() string {
	ct := p.ContentType()
	if ct == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return mediaType
}

// Charset returns the charset parameter of the Content-Type header, or ""
// when unspecified.
func (p *Part) Charset() string {
	ct := p.ContentType()
	if ct == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(ct)
	if err != nil {
		return ""
	}
	return params["charset"]
}

// FormName returns the form field name from the Content-Disposition header,
// or "" when the part is not a form-data part.
func (p *Part) FormName() string {
	disposition, params := p.disposition()
	if disposition != "form-data" {
		return ""
	}
	return params["name"]
}

// FileName returns the filename parameter of the Content-Disposition
// header, or "" for non-file parts.
func (p *Part) FileName() string {
	_, params := p.disposition()
	return params["filename"]
}

func (p *Part) disposition() (string, map[string]string) {
	cd := p.Header.Get("Content-Disposition")
	if cd == "" {
		return "", nil
	}
	disposition, params, err := mime.ParseMediaType(cd)
	if err != nil {
		return "", nil
	}
	return disposition, params
}
