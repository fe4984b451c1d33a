package export

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Parser deserializes a bundle file back into structured data.
type Parser interface {
	Parse(data []byte) (*Bundle, error)
}

// Parse detects the format of data and parses it. Markdown bundles are
// recognised by their version sentinel; everything else is read as JSON.
func Parse(data []byte) (*Bundle, error) {
	if strings.Contains(string(data), versionSentinel) {
		return (&MarkdownParser{}).Parse(data)
	}
	return (&JSONParser{}).Parse(data)
}

// JSONParser parses a JSON-encoded Bundle.
type JSONParser struct{}

func (p *JSONParser) Parse(data []byte) (*Bundle, error) {
	var b Bundle
	if err := json.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("failed to parse JSON bundle: %w", err)
	}
	return &b, nil
}

// MarkdownParser parses a Markdown-rendered Bundle by extracting the
// embedded base64 JSON payload from the sentinel comments.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*Bundle, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("not a valid partline bundle: missing version sentinel")
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid partline bundle: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid partline bundle: malformed data payload")
	}
	encoded := content[start : start+end]

	jsonBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not a valid partline bundle: corrupted base64 payload: %w", err)
	}

	var b Bundle
	if err := json.Unmarshal(jsonBytes, &b); err != nil {
		return nil, fmt.Errorf("not a valid partline bundle: failed to parse embedded JSON: %w", err)
	}
	return &b, nil
}
