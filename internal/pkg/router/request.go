package router

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/julienschmidt/httprouter"
	"github.com/shandysiswandi/gomailer/internal/pkg/goerror"
)

// Request is the inbound request handed to a Handler.
type Request struct {
	*http.Request

	// maxBody caps DecodeBody; zero means no cap.
	maxBody int64
}

// GetParam returns the named path parameter.
func (r *Request) GetParam(key string) string {
	return strings.TrimSpace(httprouter.ParamsFromContext(r.Context()).ByName(key))
}

// DecodeBody strictly decodes a single JSON document into dst. Unknown
// fields and trailing data are rejected.
func (r *Request) DecodeBody(dst any) error {
	if r == nil || r.Body == nil || r.Body == http.NoBody {
		return goerror.NewInvalidFormat()
	}

	body := io.Reader(r.Body)
	if r.maxBody > 0 {
		body = http.MaxBytesReader(nil, r.Body, r.maxBody)
	}

	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return decodeError(err)
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return goerror.NewInvalidFormat("Request body must hold a single JSON object")
	}

	return nil
}

func decodeError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return goerror.NewInvalidInput(nil, "body", "body exceeds the size limit")
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return goerror.NewInvalidInput(nil, typeErr.Field, "has the wrong type")
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return goerror.NewInvalidInput(nil, strings.Trim(field, `"`), "is not a known field")
	}

	return goerror.NewInvalidFormat()
}

// FormSingleFile parses a multipart body of at most maxBytes and returns the
// file uploaded under the form field name together with its header.
func (r *Request) FormSingleFile(name string, maxBytes int64) (multipart.File, *multipart.FileHeader, error) {
	if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		return nil, nil, goerror.NewInvalidFormat("Invalid request content-type")
	}

	if maxBytes > 0 {
		r.Body = http.MaxBytesReader(nil, r.Body, maxBytes)
	}

	file, header, err := r.FormFile(name)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, nil, goerror.NewInvalidInput(nil, name, "file exceeds the size limit")
		}
		return nil, nil, goerror.NewInvalidFormat()
	}

	return file, header, nil
}
