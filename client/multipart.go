package client

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/textproto"
	"slices"
	"strings"
)

// Part is one field of a multipart/form-data body. Contents may be a
// []byte, a string or an io.Reader. Readers are read in full when the part
// is attached to a request.
type Part struct {
	Name        string
	Contents    any
	Filename    string
	ContentType string
}

// Field returns a plain form field.
func Field(name, value string) Part {
	return Part{Name: name, Contents: value}
}

// File returns a file field read from r.
func File(name, filename string, r io.Reader) Part {
	return Part{Name: name, Contents: r, Filename: filename}
}

// bufferParts replaces reader contents with their bytes so every send, and
// every clone, uploads the same data.
func bufferParts(parts []Part) ([]Part, error) {
	out := slices.Clone(parts)
	for i, p := range out {
		r, ok := p.Contents.(io.Reader)
		if !ok {
			continue
		}
		b, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("multipart part %s: reading contents: %w", p.Name, err)
		}
		out[i].Contents = b
	}
	return out, nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

// encodeMultipart buffers parts into a body so every attempt can resend it.
func encodeMultipart(parts []Part) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for i, p := range parts {
		if p.Name == "" {
			return nil, "", fmt.Errorf("multipart part[%d]: name must not be empty", i)
		}

		h := make(textproto.MIMEHeader)
		disposition := fmt.Sprintf(`form-data; name="%s"`, quoteEscaper.Replace(p.Name))
		if p.Filename != "" {
			disposition += fmt.Sprintf(`; filename="%s"`, quoteEscaper.Replace(p.Filename))
		}
		h.Set("Content-Disposition", disposition)

		switch {
		case p.ContentType != "":
			h.Set("Content-Type", p.ContentType)
		case p.Filename != "":
			h.Set("Content-Type", "application/octet-stream")
		}

		pw, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("multipart part %s: %w", p.Name, err)
		}

		if err := writeContents(pw, p.Contents); err != nil {
			return nil, "", fmt.Errorf("multipart part %s: %w", p.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("closing multipart writer: %w", err)
	}

	return buf.Bytes(), w.FormDataContentType(), nil
}

func writeContents(w io.Writer, contents any) error {
	var err error
	switch c := contents.(type) {
	case nil:
	case []byte:
		_, err = w.Write(c)
	case string:
		_, err = io.WriteString(w, c)
	case io.Reader:
		_, err = io.Copy(w, c)
	default:
		return errors.New("contents must be []byte, string or io.Reader")
	}
	return err
}
