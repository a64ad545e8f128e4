package converter

import (
	"bytes"
	"io"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// ToUTF8 decodes body using the charset from a BOM, the Content-Type
// header or a <meta> tag. Valid UTF-8 without a declared charset is
// returned unchanged.
func ToUTF8(body []byte, contentType string) ([]byte, error) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if enc == nil || name == "utf-8" {
		return body, nil
	}
	if !certain && name == "windows-1252" && utf8.Valid(body) {
		return body, nil
	}
	return io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
}
