// Package frontmatter splits and parses YAML frontmatter from content files.
//
// Parsing is tolerant: a document whose frontmatter block cannot be parsed is
// never dropped; Recover extracts as much of the body as possible so discovery
// can synthesize minimal metadata for the page instead of aborting.
package frontmatter

import (
	"bytes"
	"errors"

	"gopkg.in/yaml.v3"
)

// delimiter is the frontmatter fence used by content files.
const delimiter = "---"

// ErrMissingClosingDelimiter indicates the document started with a YAML
// frontmatter delimiter but did not contain a closing delimiter.
var ErrMissingClosingDelimiter = errors.New("yaml frontmatter start delimiter found but closing delimiter is missing")

// Split separates YAML frontmatter (`---` delimited) from the content body.
//
// If the document does not start with a frontmatter delimiter, had is false
// and body is the full input.
func Split(content []byte) (fm []byte, body []byte, had bool, err error) {
	nl := detectNewline(content)

	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		return nil, content, false, nil
	}

	fmStart := len(open)

	// Empty frontmatter block: opening fence immediately followed by closing.
	if bytes.HasPrefix(content[fmStart:], open) {
		return []byte{}, content[fmStart+len(open):], true, nil
	}

	closeSeq := []byte(nl + delimiter + nl)
	idx := bytes.Index(content[fmStart:], closeSeq)
	if idx < 0 {
		return nil, nil, false, ErrMissingClosingDelimiter
	}

	fmEnd := fmStart + idx + len(nl)
	bodyStart := fmStart + idx + len(closeSeq)
	return content[fmStart:fmEnd], content[bodyStart:], true, nil
}

// Parse splits the document and unmarshals its frontmatter into a map.
// Documents without frontmatter yield an empty (non-nil) map.
func Parse(content []byte) (map[string]any, []byte, error) {
	fm, body, had, err := Split(content)
	if err != nil {
		return nil, nil, err
	}
	if !had {
		return map[string]any{}, body, nil
	}
	fields, err := ParseYAML(fm)
	if err != nil {
		return nil, body, err
	}
	return fields, body, nil
}

// ParseYAML parses raw YAML frontmatter (without --- delimiters) into a map.
func ParseYAML(fm []byte) (map[string]any, error) {
	if len(fm) == 0 {
		return map[string]any{}, nil
	}

	var fields map[string]any
	if err := yaml.Unmarshal(fm, &fields); err != nil {
		return nil, err
	}
	if fields == nil {
		fields = map[string]any{}
	}
	return fields, nil
}

// Recover extracts the body of a document whose frontmatter block is broken.
//
// It skips past the closing delimiter if one exists; when the closing
// delimiter is missing entirely, the whole document after the opening fence
// is treated as body. Recover never fails.
func Recover(content []byte) []byte {
	nl := detectNewline(content)

	open := []byte(delimiter + nl)
	if !bytes.HasPrefix(content, open) {
		return content
	}

	rest := content[len(open):]
	closeSeq := []byte(nl + delimiter + nl)
	if idx := bytes.Index(rest, closeSeq); idx >= 0 {
		return rest[idx+len(closeSeq):]
	}
	// Closing fence on the very first line after a broken block.
	if bytes.HasPrefix(rest, open) {
		return rest[len(open):]
	}
	return rest
}

func detectNewline(content []byte) string {
	for i := 0; i+1 < len(content); i++ {
		if content[i] == '\r' && content[i+1] == '\n' {
			return "\r\n"
		}
		if content[i] == '\n' {
			return "\n"
		}
	}
	return "\n"
}
