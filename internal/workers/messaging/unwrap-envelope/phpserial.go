// internal/workers/messaging/unwrap-envelope/phpserial.go
package unwrapenvelope

import (
	"encoding/base64"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	envelopeClass     = `Symfony\Component\Messenger\Envelope`
	busNameStampClass = `Symfony\Component\Messenger\Stamp\BusNameStamp`
	agentMessageClass = `App\Message\AgentMessage`
	defaultBusName    = "messenger.bus.default"
	minEntrySize      = 4
)

var (
	errNotEnvelope  = errors.New("payload is not a messenger envelope")
	errNoMessage    = errors.New("envelope carries no message object")
	errTrailingData = errors.New("trailing data after serialized value")
)

// phpObject is a decoded serialized object. Property names are stored
// without their private or protected visibility prefix.
type phpObject struct {
	Class string
	Props map[string]interface{}
}

type phpEntry struct {
	Key   interface{}
	Value interface{}
}

// phpArray keeps insertion order, as PHP arrays do.
type phpArray []phpEntry

// Parse decodes a messenger transport body into an Envelope without
// involving the model. Bodies may be addslashes-escaped, base64 encoded
// or plain serialized text.
func Parse(body string) (*Envelope, error) {
	var lastErr error
	for _, candidate := range bodyCandidates(body) {
		value, err := unserialize(candidate)
		if err != nil {
			lastErr = err
			continue
		}
		env, err := envelopeFromValue(value)
		if err != nil {
			return nil, err
		}
		env.Source = SourceParser
		return env, nil
	}
	return nil, lastErr
}

func bodyCandidates(body string) []string {
	body = strings.TrimSpace(body)
	if !strings.HasSuffix(body, "}") {
		if decoded, err := base64.StdEncoding.DecodeString(body); err == nil {
			return []string{string(decoded)}
		}
	}
	unescaped := stripSlashes(body)
	if unescaped == body {
		return []string{body}
	}
	return []string{unescaped, body}
}

// stripSlashes reverses PHP addslashes: \0 becomes NUL, any other escaped
// byte is kept as is.
func stripSlashes(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(s) {
			break
		}
		i++
		if s[i] == '0' {
			b.WriteByte(0)
		} else {
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

func addSlashes(s string) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/8)
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case 0:
			b.WriteString(`\0`)
		case '\'', '"', '\\':
			b.WriteByte('\\')
			b.WriteByte(c)
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func envelopeFromValue(value interface{}) (*Envelope, error) {
	obj, ok := value.(*phpObject)
	if !ok {
		return nil, errNotEnvelope
	}

	msg := obj
	if obj.Class == envelopeClass {
		inner, ok := obj.Props["message"].(*phpObject)
		if !ok {
			return nil, errNoMessage
		}
		msg = inner
	}

	env := &Envelope{Type: TypeUnknown}
	switch content := msg.Props["content"].(type) {
	case string:
		env.Content = content
		env.HasContent = true
	case nil:
	default:
		env.Content = fmt.Sprint(content)
		env.HasContent = true
	}

	if t, ok := msg.Props["type"].(int64); ok {
		env.Type = MessageType(t)
	}
	if !env.HasContent && env.Type == TypeUnknown && obj.Class != envelopeClass {
		return nil, errNotEnvelope
	}
	return env, nil
}

// ==========================
// Decoder
// ==========================

type decoder struct {
	data string
	pos  int
}

func unserialize(data string) (interface{}, error) {
	d := &decoder{data: data}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, fmt.Errorf("%w at offset %d", errTrailingData, d.pos)
	}
	return v, nil
}

func (d *decoder) errorf(format string, args ...interface{}) error {
	return fmt.Errorf("unserialize at offset %d: %s", d.pos, fmt.Sprintf(format, args...))
}

func (d *decoder) expect(c byte) error {
	if d.pos >= len(d.data) || d.data[d.pos] != c {
		return d.errorf("expected %q", c)
	}
	d.pos++
	return nil
}

// until reads up to (not including) the terminator and consumes it.
func (d *decoder) until(term byte) (string, error) {
	idx := strings.IndexByte(d.data[d.pos:], term)
	if idx < 0 {
		return "", d.errorf("missing %q", term)
	}
	s := d.data[d.pos : d.pos+idx]
	d.pos += idx + 1
	return s, nil
}

func (d *decoder) length(term byte) (int, error) {
	s, err := d.until(term)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, d.errorf("invalid length %q", s)
	}
	return n, nil
}

func (d *decoder) remaining() int {
	return len(d.data) - d.pos
}

// checkCount rejects element counts the rest of the input cannot hold.
// The shortest entry ("i:0;N;") is longer than minEntrySize bytes.
func (d *decoder) checkCount(n int) error {
	if n > d.remaining()/minEntrySize {
		return d.errorf("element count %d exceeds input", n)
	}
	return nil
}

func (d *decoder) quoted(n int) (string, error) {
	if err := d.expect('"'); err != nil {
		return "", err
	}
	if n > d.remaining() {
		return "", d.errorf("string length %d exceeds input", n)
	}
	s := d.data[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect('"'); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) value() (interface{}, error) {
	if d.pos+1 >= len(d.data) {
		return nil, d.errorf("unexpected end of input")
	}
	tag := d.data[d.pos]
	if tag == 'N' {
		d.pos++
		return nil, d.expect(';')
	}
	d.pos++
	if err := d.expect(':'); err != nil {
		return nil, err
	}

	switch tag {
	case 'b':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		return s == "1", nil
	case 'i':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, d.errorf("invalid integer %q", s)
		}
		return n, nil
	case 'd':
		s, err := d.until(';')
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, d.errorf("invalid float %q", s)
		}
		return f, nil
	case 's':
		n, err := d.length(':')
		if err != nil {
			return nil, err
		}
		s, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		return s, d.expect(';')
	case 'a':
		n, err := d.length(':')
		if err != nil {
			return nil, err
		}
		return d.array(n)
	case 'O':
		n, err := d.length(':')
		if err != nil {
			return nil, err
		}
		class, err := d.quoted(n)
		if err != nil {
			return nil, err
		}
		if err := d.expect(':'); err != nil {
			return nil, err
		}
		count, err := d.length(':')
		if err != nil {
			return nil, err
		}
		return d.object(class, count)
	case 'r', 'R':
		// Back-references are not resolved.
		if _, err := d.until(';'); err != nil {
			return nil, err
		}
		return nil, nil
	default:
		return nil, d.errorf("unsupported type %q", tag)
	}
}

func (d *decoder) array(n int) (phpArray, error) {
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	if err := d.checkCount(n); err != nil {
		return nil, err
	}
	arr := make(phpArray, 0, n)
	for i := 0; i < n; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		switch key.(type) {
		case int64, string:
		default:
			return nil, d.errorf("invalid array key")
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		arr = append(arr, phpEntry{Key: key, Value: val})
	}
	return arr, d.expect('}')
}

func (d *decoder) object(class string, n int) (*phpObject, error) {
	if err := d.expect('{'); err != nil {
		return nil, err
	}
	if err := d.checkCount(n); err != nil {
		return nil, err
	}
	obj := &phpObject{Class: class, Props: make(map[string]interface{}, n)}
	for i := 0; i < n; i++ {
		key, err := d.value()
		if err != nil {
			return nil, err
		}
		name, ok := key.(string)
		if !ok {
			return nil, d.errorf("invalid property name")
		}
		val, err := d.value()
		if err != nil {
			return nil, err
		}
		obj.Props[propertyName(name)] = val
	}
	return obj, d.expect('}')
}

// propertyName drops the "\0Class\0" or "\0*\0" visibility prefix.
func propertyName(raw string) string {
	if len(raw) == 0 || raw[0] != 0 {
		return raw
	}
	if idx := strings.IndexByte(raw[1:], 0); idx >= 0 {
		return raw[idx+2:]
	}
	return raw
}

// ==========================
// Encoder
// ==========================

type encoder struct {
	b strings.Builder
}

func (e *encoder) str(s string) {
	fmt.Fprintf(&e.b, "s:%d:\"%s\";", len(s), s)
}

func (e *encoder) int(n int64) {
	fmt.Fprintf(&e.b, "i:%d;", n)
}

func (e *encoder) private(class, name string) {
	e.str("\x00" + class + "\x00" + name)
}

func (e *encoder) objectHeader(class string, props int) {
	fmt.Fprintf(&e.b, "O:%d:\"%s\":%d:{", len(class), class, props)
}

func (e *encoder) value(v interface{}) {
	switch val := v.(type) {
	case nil:
		e.b.WriteString("N;")
	case bool:
		if val {
			e.b.WriteString("b:1;")
		} else {
			e.b.WriteString("b:0;")
		}
	case int:
		e.int(int64(val))
	case int64:
		e.int(val)
	case string:
		e.str(val)
	case phpArray:
		fmt.Fprintf(&e.b, "a:%d:{", len(val))
		for _, entry := range val {
			e.value(entry.Key)
			e.value(entry.Value)
		}
		e.b.WriteString("}")
	case *phpObject:
		names := make([]string, 0, len(val.Props))
		for name := range val.Props {
			names = append(names, name)
		}
		sort.Strings(names)
		e.objectHeader(val.Class, len(names))
		for _, name := range names {
			e.private(val.Class, name)
			e.value(val.Props[name])
		}
		e.b.WriteString("}")
	default:
		e.str(fmt.Sprint(val))
	}
}

// Encode renders env the way the messenger PHP serializer does for an
// AgentMessage sent on the default bus, including addslashes escaping.
func Encode(env Envelope) string {
	msgType := env.Type
	if msgType == TypeUnknown {
		msgType = TypeToLLM
	}

	e := &encoder{}
	e.objectHeader(envelopeClass, 2)

	e.private(envelopeClass, "stamps")
	e.value(phpArray{{
		Key: busNameStampClass,
		Value: phpArray{{
			Key: int64(0),
			Value: &phpObject{
				Class: busNameStampClass,
				Props: map[string]interface{}{"busName": defaultBusName},
			},
		}},
	}})

	e.private(envelopeClass, "message")
	e.objectHeader(agentMessageClass, 2)
	e.private(agentMessageClass, "content")
	e.str(env.Content)
	e.private(agentMessageClass, "type")
	e.int(int64(msgType))
	e.b.WriteString("}}")

	return addSlashes(e.b.String())
}
