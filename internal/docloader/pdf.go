package docloader

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts the plain text of a PDF payload. The underlying
// reader panics on some malformed files, so extraction is fenced with
// a recover that degrades to an error.
func loadPDF(data []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", err
	}
	return buf.String(), nil
}
