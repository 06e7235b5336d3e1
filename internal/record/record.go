// Package record reads and writes the "key: value" text records used for hardware
// configuration and camera state files.
//
// A record starts with a free-form header line ending in a colon. Each following line
// holds one "key: value" pair. Keys are lower case words joined by underscores. Blank
// lines, lines starting with '#' and lines whose key contains spaces are skipped.
package record

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Field is one key and its value, written in order.
type Field struct {
	Key   string
	Value interface{}
}

// Parse collects the key/value pairs of a record. A repeated key is an error.
func Parse(r io.Reader) (map[string]interface{}, error) {
	values := map[string]interface{}{}
	scanner := bufio.NewScanner(r)
	lineNum := 0
	first := true
	for scanner.Scan() {
		lineNum++
		line := scanner.Text()
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		key, value, found := strings.Cut(trimmed, ":")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		header := first && value == ""
		first = false
		if !found || header || key == "" || strings.ContainsAny(key, " \t") {
			continue
		}
		if _, dup := values[key]; dup {
			return nil, errors.Errorf("line %d: key %q repeated", lineNum, key)
		}
		values[key] = value
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "reading record")
	}
	return values, nil
}

// Decode parses a record into `out`, a pointer to a struct with mapstructure tags. Every
// tagged field must be present unless it has an entry in `defaults`, and unknown keys are
// rejected, so a short or foreign record is always an error. Hooks
// convert text into domain types before the weakly typed conversions apply.
func Decode(r io.Reader, out interface{}, defaults map[string]interface{}, hooks ...mapstructure.DecodeHookFunc) error {
	values, err := Parse(r)
	if err != nil {
		return err
	}
	for key, value := range defaults {
		if _, ok := values[key]; !ok {
			values[key] = value
		}
	}

	decoderConfig := &mapstructure.DecoderConfig{
		WeaklyTypedInput: true,
		ErrorUnset:       true,
		ErrorUnused:      true,
		Result:           out,
	}
	if len(hooks) > 0 {
		decoderConfig.DecodeHook = mapstructure.ComposeDecodeHookFunc(hooks...)
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return err
	}
	return errors.Wrap(decoder.Decode(values), "decoding record")
}

// Write writes a header line then one indented, aligned line per field. Floats use the
// shortest representation that reads back exactly; booleans are written as 0 or 1.
func Write(w io.Writer, header string, fields []Field) error {
	width := 0
	for _, field := range fields {
		width = max(width, len(field.Key)+1)
	}
	if _, err := fmt.Fprintf(w, "%s:\n", header); err != nil {
		return err
	}
	for _, field := range fields {
		if _, err := fmt.Fprintf(w, "  %-*s %s\n", width, field.Key+":", formatValue(field.Value)); err != nil {
			return err
		}
	}
	return nil
}

func formatValue(value interface{}) string {
	switch v := value.(type) {
	case bool:
		if v {
			return "1"
		}
		return "0"
	case float32:
		return fmt.Sprintf("%g", v)
	case float64:
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
