package command

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"
)

// Prefix marks a chat message as a command candidate. Callers strip it
// before calling Parse.
const Prefix = "/"

type parseFunc func(rest string) (Command, error)

var keywords = map[string]parseFunc{
	"update about":   parseUpdateAbout,
	"update project": parseUpdateProject,
	"add project":    parseAddProject,
	"delete project": parseDeleteProject,
}

// Parse turns the text after the prefix into a Command. The two-word keyword
// is matched case-insensitively; the payload keeps its case. Text without a
// known keyword yields ErrNotACommand.
func Parse(text string) (Command, error) {
	first, rest := splitWord(text)
	second, rest := splitWord(rest)
	if first == "" || second == "" {
		return nil, ErrNotACommand
	}
	fn, ok := keywords[strings.ToLower(first)+" "+strings.ToLower(second)]
	if !ok {
		return nil, ErrNotACommand
	}
	cmd, err := fn(strings.TrimSpace(rest))
	if err != nil {
		return nil, err
	}
	if err := cmd.Validate(); err != nil {
		return nil, err
	}
	return cmd, nil
}

// splitWord returns the first whitespace-delimited word of s and the text
// following it, with the separator removed.
func splitWord(s string) (string, string) {
	s = strings.TrimLeftFunc(s, unicode.IsSpace)
	i := strings.IndexFunc(s, unicode.IsSpace)
	if i < 0 {
		return s, ""
	}
	return s[:i], strings.TrimLeftFunc(s[i:], unicode.IsSpace)
}

func parseUpdateAbout(rest string) (Command, error) {
	return UpdateContent{Section: SectionAbout, Content: rest}, nil
}

func parseAddProject(rest string) (Command, error) {
	var c AddProject
	if err := decodeObject(rest, &c); err != nil {
		return nil, err
	}
	if c.Technologies == nil {
		c.Technologies = []string{}
	}
	return c, nil
}

func parseUpdateProject(rest string) (Command, error) {
	var c UpdateProject
	if err := decodeObject(rest, &c); err != nil {
		return nil, err
	}
	return c, nil
}

func parseDeleteProject(rest string) (Command, error) {
	return DeleteProject{ID: rest}, nil
}

// decodeObject accepts exactly one JSON object. Fields the command does not
// know about are ignored.
func decodeObject(raw string, dst any) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return invalid("json object is required")
	}
	if raw[0] != '{' {
		return invalid("payload must be a json object")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return invalid("trailing data after json object")
	}
	return nil
}
