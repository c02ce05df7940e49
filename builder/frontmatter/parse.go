package frontmatter

import (
	"bytes"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const fence = "---"

// Parse splits source into its frontmatter map and body. Files without a
// leading fence return an empty map and the full source as body.
func Parse(source []byte) (map[string]interface{}, []byte, error) {
	text := string(source)
	if !strings.HasPrefix(text, fence) {
		return map[string]interface{}{}, source, nil
	}

	rest := text[len(fence):]
	// The fence must be its own line.
	if !strings.HasPrefix(rest, "\n") && !strings.HasPrefix(rest, "\r\n") {
		return map[string]interface{}{}, source, nil
	}
	rest = strings.TrimPrefix(rest, "\r\n")
	rest = strings.TrimPrefix(rest, "\n")

	end := strings.Index(rest, "\n"+fence)
	if end < 0 {
		return nil, nil, fmt.Errorf("unterminated frontmatter fence")
	}

	header := rest[:end+1]
	body := rest[end+1+len(fence):]
	body = strings.TrimPrefix(body, "\r\n")
	body = strings.TrimPrefix(body, "\n")

	meta := make(map[string]interface{})
	if strings.TrimSpace(header) != "" {
		if err := yaml.Unmarshal([]byte(header), &meta); err != nil {
			return nil, nil, fmt.Errorf("invalid frontmatter: %w", err)
		}
	}
	return NormalizeMap(meta), []byte(body), nil
}

// Serialize re-emits a metadata map and body as a fenced document.
// Parse(Serialize(m, body)) yields a map equal to m.
func Serialize(meta map[string]interface{}, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fence)
	buf.WriteByte('\n')
	if len(meta) > 0 {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(meta); err != nil {
			return nil, fmt.Errorf("failed to serialize frontmatter: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
	}
	buf.WriteString(fence)
	buf.WriteByte('\n')
	buf.Write(body)
	return buf.Bytes(), nil
}
