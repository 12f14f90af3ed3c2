package mpart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/textproto"
)

// Form is a fully received multipart form: text field values in memory,
// file parts behind adaptive buffers. The caller owns the form and must
// call Release to free any spill files.
type Form struct {
	Values map[string][]string
	Files  []*FormFile

	scopes []func() error
}

// FormFile is one received file part.
type FormFile struct {
	Field    string
	Filename string
	Header   textproto.MIMEHeader
	Content  Buffer
}

// Open returns a fresh reader over the file content.
func (f *FormFile) Open() (io.ReadCloser, error) { return f.Content.Open() }

// Size returns the file content length in bytes.
func (f *FormFile) Size() int64 { return f.Content.Size() }

// Release frees every resource the form holds. Idempotent; file buffers
// opened before Release keep their own handles.
func (f *Form) Release() error {
	var errs []error
	for i := len(f.scopes) - 1; i >= 0; i-- {
		if err := f.scopes[i](); err != nil {
			errs = append(errs, err)
		}
	}
	f.scopes = nil
	return errors.Join(errs...)
}

// File returns the first file uploaded under the given field name, or nil.
func (f *Form) File(field string) *FormFile {
	for _, file := range f.Files {
		if file.Field == field {
			return file
		}
	}
	return nil
}

// Value returns the first value for the given field name, or "".
func (f *Form) Value(field string) string {
	if vs := f.Values[field]; len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// FormOption configures ReadForm.
type FormOption func(*formConfig)

type formConfig struct {
	maxValueSize int64
	maxFileSize  int64
	maxParts     int
	maxMemory    int
	chunkSize    int
	storage      Storage
	logger       *slog.Logger
	fileReceiver Receiver[Buffer]
}

// WithMaxValueSize caps each text field value, in bytes. Default 1 MB.
func WithMaxValueSize(n int64) FormOption {
	return func(c *formConfig) { c.maxValueSize = n }
}

// WithMaxFileSize caps each file part, in bytes. Default 32 MB.
func WithMaxFileSize(n int64) FormOption {
	return func(c *formConfig) { c.maxFileSize = n }
}

// WithMaxParts caps the number of parts in the form. Default 1000.
func WithMaxParts(n int) FormOption {
	return func(c *formConfig) { c.maxParts = n }
}

// WithMemoryLimit sets the adaptive-buffer spill threshold for file parts.
func WithMemoryLimit(n int) FormOption {
	return func(c *formConfig) { c.maxMemory = n }
}

// WithStorage sets the temp-file storage for spilled file parts.
func WithStorage(s Storage) FormOption {
	return func(c *formConfig) { c.storage = s }
}

// WithLogger enables per-part structured logging.
func WithLogger(l *slog.Logger) FormOption {
	return func(c *formConfig) { c.logger = l }
}

// WithFileReceiver replaces the default adaptive-buffer receiver for file
// parts. The per-file size limit still applies on top.
func WithFileReceiver(r Receiver[Buffer]) FormOption {
	return func(c *formConfig) { c.fileReceiver = r }
}

// ReadForm drains a multipart reader, applying a receiver to each part:
// text fields through BodyText, file parts through ToMixedBuffer, each
// under its size limit. The first decode failure aborts the walk — already
// received parts are released, and the failure is returned as an error
// (errors.As recovers the *DecodeError).
//
// On success the caller owns the returned form and must call Release.
func ReadForm(ctx context.Context, mr *multipart.Reader, opts ...FormOption) (*Form, error) {
	cfg := formConfig{
		maxValueSize: 1 << 20,
		maxFileSize:  32 << 20,
		maxParts:     1000,
		maxMemory:    DefaultMaxMemory,
		chunkSize:    DefaultChunkSize,
		storage:      DirStorage{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	fileReceiver := cfg.fileReceiver
	if fileReceiver == nil {
		fileReceiver = ToMixedBuffer(cfg.maxMemory, cfg.chunkSize, cfg.storage)
	}
	fileReceiver = WithSizeLimit(fileReceiver, cfg.maxFileSize)

	valueReceiver := WithSizeLimit(BodyText(), cfg.maxValueSize)

	if cfg.logger != nil {
		fileReceiver = LogReceives(fileReceiver, cfg.logger)
		valueReceiver = LogReceives(valueReceiver, cfg.logger)
	}

	form := &Form{Values: make(map[string][]string)}

	for parts := 0; ; parts++ {
		raw, err := mr.NextPart()
		if err == io.EOF {
			return form, nil
		}
		if err != nil {
			_ = form.Release()
			return nil, fmt.Errorf("next part: %w", err)
		}

		if parts >= cfg.maxParts {
			_ = form.Release()
			return nil, &DecodeError{
				Kind:    KindSizeExceeded,
				Message: fmt.Sprintf("form exceeds %d parts", cfg.maxParts),
			}
		}

		part := FromMultipart(raw)
		field := part.FormName()

		if part.FileName() == "" {
			scope, rerr := valueReceiver.Receive(ctx, part)
			if rerr != nil {
				_ = form.Release()
				return nil, rerr
			}
			if fail := scope.Err(); fail != nil {
				_ = scope.Release()
				_ = form.Release()
				return nil, fail
			}
			form.Values[field] = append(form.Values[field], scope.Value())
			form.scopes = append(form.scopes, scope.Release)
			continue
		}

		scope, rerr := fileReceiver.Receive(ctx, part)
		if rerr != nil {
			_ = form.Release()
			return nil, rerr
		}
		if fail := scope.Err(); fail != nil {
			_ = scope.Release()
			_ = form.Release()
			return nil, fail
		}
		if d, ok := any(scope.Value()).(deferredFailure); ok {
			// The buffer carries a drain-time failure; the part is already
			// fully consumed, so fail fast here instead.
			fail := d.deferredErr()
			_ = scope.Release()
			_ = form.Release()
			return nil, fail
		}
		form.Files = append(form.Files, &FormFile{
			Field:    field,
			Filename: part.FileName(),
			Header:   part.Header,
			Content:  scope.Value(),
		})
		form.scopes = append(form.scopes, scope.Release)
	}
}
