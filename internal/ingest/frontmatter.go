package ingest

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

const frontMatterDelimiter = "---"

// extractFrontMatter splits a leading YAML front-matter block off the given
// content. All values are flattened to strings (lists become comma-joined)
// so downstream metadata stays storage-compatible. A malformed block is not
// an error: the whole content is treated as body text.
func extractFrontMatter(content string) (map[string]string, string) {
	if !strings.HasPrefix(content, frontMatterDelimiter) {
		return nil, content
	}

	parts := strings.SplitN(content, frontMatterDelimiter, 3)
	if len(parts) < 3 {
		return nil, content
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal([]byte(parts[1]), &raw); err != nil || raw == nil {
		return nil, content
	}

	meta := make(map[string]string, len(raw))
	for key, value := range raw {
		if value == nil {
			continue
		}
		meta[key] = flattenValue(value)
	}

	return meta, parts[2]
}

func flattenValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case []interface{}:
		items := make([]string, 0, len(v))
		for _, item := range v {
			items = append(items, flattenValue(item))
		}
		return strings.Join(items, ",")
	default:
		return fmt.Sprint(v)
	}
}
