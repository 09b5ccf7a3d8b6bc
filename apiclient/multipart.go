package apiclient

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
)

// Form is a multipart/form-data body for Upload.
type Form struct {
	fields []formField
	files  []formFile
}

type formField struct {
	name  string
	value string
}

type formFile struct {
	field    string
	filename string
	r        io.Reader
}

// NewForm returns an empty multipart form.
func NewForm() *Form {
	return &Form{}
}

// AddField appends a plain form field.
func (f *Form) AddField(name, value string) *Form {
	f.fields = append(f.fields, formField{name: name, value: value})
	return f
}

// AddFile appends a file part read from r when the form is encoded.
func (f *Form) AddFile(field, filename string, r io.Reader) *Form {
	f.files = append(f.files, formFile{field: field, filename: filename, r: r})
	return f
}

func (f *Form) encode() (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for _, field := range f.fields {
		if err := writer.WriteField(field.name, field.value); err != nil {
			return nil, "", err
		}
	}
	for _, file := range f.files {
		if file.r == nil {
			return nil, "", fmt.Errorf("file %q has no reader", file.filename)
		}
		part, err := writer.CreateFormFile(file.field, file.filename)
		if err != nil {
			return nil, "", err
		}
		if _, err := io.Copy(part, file.r); err != nil {
			return nil, "", fmt.Errorf("read %s: %w", file.filename, err)
		}
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return body, writer.FormDataContentType(), nil
}
