package knowledge

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
)

// ExtractText pulls plain text out of a document artifact. PDF payloads go
// through the PDF reader; anything else is treated as UTF-8 text.
func ExtractText(data []byte, mime string) (string, error) {
	if strings.HasPrefix(mime, "application/pdf") {
		return extractPDFText(data)
	}

	if !utf8.Valid(data) {
		return "", fmt.Errorf("document is not valid UTF-8 text: %w", ErrEmptyContent)
	}

	return string(data), nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open PDF: %w", err)
	}

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract PDF text: %w", err)
	}

	text, err := io.ReadAll(plain)
	if err != nil {
		return "", fmt.Errorf("failed to read PDF text: %w", err)
	}

	return string(text), nil
}
