package bridge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// legacySeparator splits the positional fields of the delimited format.
const legacySeparator = "*"

// DecodeError reports a bridge post that could not be turned into a Message.
// Callers log and drop the post; the session stays usable.
type DecodeError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bridge: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("bridge: %s", e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

func decodeError(raw []byte, reason string, err error) *DecodeError {
	const maxRaw = 256
	s := string(raw)
	if len(s) > maxRaw {
		s = s[:maxRaw] + "..."
	}
	return &DecodeError{Raw: s, Reason: reason, Err: err}
}

// Decode turns one raw bridge post into a Message. Posts whose first
// non-space byte is '{' are read as JSON objects keyed by "action", anything
// else as the legacy '*'-delimited format.
func Decode(raw []byte) (Message, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return Message{}, decodeError(raw, "empty message", nil)
	}
	if trimmed[0] == '{' {
		return decodeJSON(trimmed)
	}
	return decodeLegacy(trimmed)
}

type jsonEnvelope struct {
	Action string `json:"action"`

	Message string `json:"message"`
	Text    string `json:"text"`

	Key         string          `json:"key"`
	Label       string          `json:"label"`
	Multiple    bool            `json:"multiple"`
	Required    bool            `json:"required"`
	FilePattern string          `json:"filePattern"`
	Conditional json.RawMessage `json:"conditional"`
	Validate    *struct {
		Required bool `json:"required"`
	} `json:"validate"`

	GridKey        string `json:"gridKey"`
	GridComponents string `json:"gridComponents"`

	Submission json.RawMessage `json:"submission"`
	Data       json.RawMessage `json:"data"`
}

func decodeJSON(raw []byte) (Message, error) {
	var env jsonEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Message{}, decodeError(raw, "invalid json message", err)
	}

	switch strings.TrimSpace(env.Action) {
	case "debug":
		return Message{Kind: KindDebug, Text: firstNonEmpty(env.Message, env.Text)}, nil
	case "error":
		return Message{Kind: KindError, Text: firstNonEmpty(env.Message, env.Text)}, nil
	case "component":
		if env.Key == "" {
			return Message{}, decodeError(raw, "component message without key", nil)
		}
		condition, err := conditionString(env.Conditional)
		if err != nil {
			return Message{}, decodeError(raw, "invalid component condition", err)
		}
		required := env.Required
		if env.Validate != nil && env.Validate.Required {
			required = true
		}
		return Message{Kind: KindComponent, Field: &FieldInfo{
			Key:         env.Key,
			Label:       env.Label,
			Multiple:    env.Multiple,
			Required:    required,
			FilePattern: env.FilePattern,
			Condition:   condition,
		}}, nil
	case "datagrid":
		if env.GridKey == "" || env.GridComponents == "" {
			return Message{}, decodeError(raw, "datagrid message without gridKey or gridComponents", nil)
		}
		return Message{Kind: KindDatagrid, Grid: &GridInfo{
			GridKey:        env.GridKey,
			GridComponents: env.GridComponents,
			Label:          env.Label,
			Required:       env.Required,
			Multiple:       env.Multiple,
			FilePattern:    env.FilePattern,
		}}, nil
	case "submit", "isDraft":
		payload := env.Submission
		if len(payload) == 0 {
			payload = env.Data
		}
		sub, err := ParseSubmission(payload)
		if err != nil {
			return Message{}, decodeError(raw, "invalid submission document", err)
		}
		kind := KindSubmit
		if env.Action == "isDraft" {
			kind = KindDraft
		}
		return Message{Kind: kind, Submission: sub}, nil
	case "change":
		data := map[string]any{}
		if len(env.Data) > 0 && !bytes.Equal(env.Data, []byte("null")) {
			if err := json.Unmarshal(env.Data, &data); err != nil {
				return Message{}, decodeError(raw, "invalid change data", err)
			}
		}
		return Message{Kind: KindChange, Data: data}, nil
	case "":
		return Message{}, decodeError(raw, "json message without action", nil)
	default:
		return Message{}, decodeError(raw, fmt.Sprintf("unknown action %q", env.Action), nil)
	}
}

func decodeLegacy(raw []byte) (Message, error) {
	s := string(raw)
	tag, rest, _ := strings.Cut(s, legacySeparator)

	switch tag {
	case "debug":
		return Message{Kind: KindDebug, Text: rest}, nil
	case "error":
		return Message{Kind: KindError, Text: rest}, nil
	case "component":
		// key*label*multiple*required*filePattern*condition
		parts := strings.SplitN(rest, legacySeparator, 6)
		if len(parts) < 2 || parts[0] == "" {
			return Message{}, decodeError(raw, "component message needs at least key and label", nil)
		}
		parts = pad(parts, 6)
		multiple, err := parseFlag(parts[2])
		if err != nil {
			return Message{}, decodeError(raw, "invalid component multiple flag", err)
		}
		required, err := parseFlag(parts[3])
		if err != nil {
			return Message{}, decodeError(raw, "invalid component required flag", err)
		}
		return Message{Kind: KindComponent, Field: &FieldInfo{
			Key:         parts[0],
			Label:       parts[1],
			Multiple:    multiple,
			Required:    required,
			FilePattern: parts[4],
			Condition:   strings.TrimSpace(parts[5]),
		}}, nil
	case "datagrid":
		// gridKey*gridComponents*label*required*multiple*filePattern
		parts := strings.SplitN(rest, legacySeparator, 6)
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return Message{}, decodeError(raw, "datagrid message needs gridKey and gridComponents", nil)
		}
		parts = pad(parts, 6)
		required, err := parseFlag(parts[3])
		if err != nil {
			return Message{}, decodeError(raw, "invalid datagrid required flag", err)
		}
		multiple, err := parseFlag(parts[4])
		if err != nil {
			return Message{}, decodeError(raw, "invalid datagrid multiple flag", err)
		}
		return Message{Kind: KindDatagrid, Grid: &GridInfo{
			GridKey:        parts[0],
			GridComponents: parts[1],
			Label:          parts[2],
			Required:       required,
			Multiple:       multiple,
			FilePattern:    parts[5],
		}}, nil
	case "submit", "isDraft":
		sub, err := ParseSubmission([]byte(rest))
		if err != nil {
			return Message{}, decodeError(raw, "invalid submission document", err)
		}
		kind := KindSubmit
		if tag == "isDraft" {
			kind = KindDraft
		}
		return Message{Kind: kind, Submission: sub}, nil
	default:
		return Message{}, decodeError(raw, fmt.Sprintf("unknown tag %q", tag), nil)
	}
}

// conditionString serializes the conditional payload of a JSON component
// message. A missing, null or blank rule yields an empty string.
func conditionString(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return strings.TrimSpace(s), nil
	}
	if raw[0] != '{' {
		return "", errors.New("conditional must be an object or a string")
	}

	var probe struct {
		When json.RawMessage `json:"when"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return "", err
	}
	when := bytes.TrimSpace(probe.When)
	if len(when) == 0 || bytes.Equal(when, []byte("null")) || bytes.Equal(when, []byte(`""`)) {
		return "", nil
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return "", err
	}
	return compact.String(), nil
}

// wrapperKeys are the metadata keys the renderer places next to "data" when
// it posts a whole submission object instead of the bare field values.
var wrapperKeys = map[string]struct{}{
	"data":        {},
	"state":       {},
	"metadata":    {},
	"_id":         {},
	"_vid":        {},
	"owner":       {},
	"form":        {},
	"project":     {},
	"created":     {},
	"modified":    {},
	"externalIds": {},
	"access":      {},
	"roles":       {},
}

// ParseSubmission reads a submission document. It accepts the renderer's
// {data, state, metadata} wrapper as well as a bare object of field values.
// An empty or null payload yields an empty submission.
func ParseSubmission(raw []byte) (*Submission, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return &Submission{Data: map[string]any{}, Raw: json.RawMessage("{}")}, nil
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		doc = map[string]any{}
	}

	data := doc
	if inner, ok := doc["data"].(map[string]any); ok && onlyWrapperKeys(doc) {
		data = inner
	}

	return &Submission{Data: data, Raw: json.RawMessage(append([]byte(nil), raw...))}, nil
}

func onlyWrapperKeys(doc map[string]any) bool {
	for key := range doc {
		if _, ok := wrapperKeys[key]; !ok {
			return false
		}
	}
	return true
}

// FilesAt returns the attachments stored under key. The value may be an
// array of file objects or a single file object; anything else yields nil.
func FilesAt(data map[string]any, key string) []FileRef {
	if data == nil {
		return nil
	}
	switch value := data[key].(type) {
	case []any:
		files := make([]FileRef, 0, len(value))
		for _, item := range value {
			if obj, ok := item.(map[string]any); ok {
				if ref, ok := fileRefFrom(obj); ok {
					files = append(files, ref)
				}
			}
		}
		return files
	case map[string]any:
		if ref, ok := fileRefFrom(value); ok {
			return []FileRef{ref}
		}
	}
	return nil
}

func fileRefFrom(obj map[string]any) (FileRef, bool) {
	ref := FileRef{
		Name:     firstNonEmpty(stringValue(obj["originalName"]), stringValue(obj["name"])),
		URL:      stringValue(obj["url"]),
		MimeType: stringValue(obj["type"]),
		Storage:  stringValue(obj["storage"]),
	}
	if size, ok := obj["size"].(float64); ok {
		ref.Size = int64(size)
	}
	if ref.URL == "" && ref.Name == "" {
		return FileRef{}, false
	}
	return ref, true
}

func parseFlag(s string) (bool, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "undefined" || s == "null" {
		return false, nil
	}
	return strconv.ParseBool(s)
}

func pad(parts []string, n int) []string {
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

func stringValue(v any) string {
	s, _ := v.(string)
	return s
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// Encode writes msg in the JSON shape Decode accepts. It is used to replay
// discovery messages derived from a schema without a renderer.
func Encode(msg Message) ([]byte, error) {
	out := map[string]any{"action": msg.Kind.String()}

	switch msg.Kind {
	case KindDebug, KindError:
		out["message"] = msg.Text
	case KindComponent:
		if msg.Field == nil {
			return nil, fmt.Errorf("bridge: component message without field")
		}
		out["key"] = msg.Field.Key
		out["label"] = msg.Field.Label
		out["multiple"] = msg.Field.Multiple
		out["required"] = msg.Field.Required
		out["filePattern"] = msg.Field.FilePattern
		if msg.Field.Condition != "" {
			out["conditional"] = msg.Field.Condition
		}
	case KindDatagrid:
		if msg.Grid == nil {
			return nil, fmt.Errorf("bridge: datagrid message without grid")
		}
		out["gridKey"] = msg.Grid.GridKey
		out["gridComponents"] = msg.Grid.GridComponents
		out["label"] = msg.Grid.Label
		out["required"] = msg.Grid.Required
		out["multiple"] = msg.Grid.Multiple
		out["filePattern"] = msg.Grid.FilePattern
	case KindSubmit, KindDraft:
		if msg.Submission == nil {
			out["submission"] = map[string]any{}
			break
		}
		if len(msg.Submission.Raw) > 0 {
			out["submission"] = msg.Submission.Raw
		} else {
			out["submission"] = msg.Submission.Data
		}
	case KindChange:
		out["data"] = msg.Data
	default:
		return nil, fmt.Errorf("bridge: cannot encode message of kind %d", msg.Kind)
	}

	return json.Marshal(out)
}
