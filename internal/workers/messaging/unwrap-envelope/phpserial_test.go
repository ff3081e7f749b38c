package unwrapenvelope

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleBody is a messenger transport body as the PHP serializer emits it.
const sampleBody = `O:36:\"Symfony\\Component\\Messenger\\Envelope\":2:{s:44:\"\0Symfony\\Component\\Messenger\\Envelope\0stamps\";a:1:{s:46:\"Symfony\\Component\\Messenger\\Stamp\\BusNameStamp\";a:1:{i:0;O:46:\"Symfony\\Component\\Messenger\\Stamp\\BusNameStamp\":1:{s:55:\"\0Symfony\\Component\\Messenger\\Stamp\\BusNameStamp\0busName\";s:21:\"messenger.bus.default\";}}}s:45:\"\0Symfony\\Component\\Messenger\\Envelope\0message\";O:24:\"App\\Message\\AgentMessage\":2:{s:33:\"\0App\\Message\\AgentMessage\0content\";s:17:\"where is brussels\";s:30:\"\0App\\Message\\AgentMessage\0type\";i:0;}}`

// ==========================
// Parse Tests
// ==========================

func TestParse_EscapedBody(t *testing.T) {
	env, err := Parse(sampleBody)
	require.NoError(t, err)

	assert.Equal(t, "where is brussels", env.Content)
	assert.Equal(t, TypeToLLM, env.Type)
	assert.True(t, env.HasContent)
	assert.True(t, env.IsTarget())
	assert.Equal(t, SourceParser, env.Source)
}

func TestParse_UnescapedBody(t *testing.T) {
	env, err := Parse(stripSlashes(sampleBody))
	require.NoError(t, err)
	assert.Equal(t, "where is brussels", env.Content)
}

func TestParse_Base64Body(t *testing.T) {
	body := base64.StdEncoding.EncodeToString([]byte(stripSlashes(sampleBody)))
	env, err := Parse(body)
	require.NoError(t, err)
	assert.Equal(t, "where is brussels", env.Content)
}

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name        string
		body        string
		wantErr     bool
		wantContent string
		wantHas     bool
		wantType    MessageType
	}{
		{
			name:        "bare agent message",
			body:        `O:24:"App\Message\AgentMessage":2:{s:7:"content";s:5:"Paris";s:4:"type";i:1;}`,
			wantContent: "Paris",
			wantHas:     true,
			wantType:    TypeToGoogle,
		},
		{
			name:        "message without type",
			body:        `O:24:"App\Message\AgentMessage":1:{s:33:"` + "\x00" + `App\Message\AgentMessage` + "\x00" + `content";s:5:"Ghent";}`,
			wantContent: "Ghent",
			wantHas:     true,
			wantType:    TypeUnknown,
		},
		{
			name:     "message without content",
			body:     `O:24:"App\Message\AgentMessage":1:{s:4:"type";i:0;}`,
			wantHas:  false,
			wantType: TypeToLLM,
		},
		{
			name:    "plain text",
			body:    "where is brussels",
			wantErr: true,
		},
		{
			name:    "json",
			body:    `{"content":"where is brussels","type":0}`,
			wantErr: true,
		},
		{
			name:    "truncated string",
			body:    `O:24:"App\Message\AgentMessage":1:{s:7:"content";s:50:"short";}`,
			wantErr: true,
		},
		{
			name:    "serialized scalar",
			body:    `s:5:"hello";`,
			wantErr: true,
		},
		{
			name:    "unrelated object",
			body:    `O:8:"stdClass":1:{s:3:"foo";i:1;}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := Parse(tt.body)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantContent, env.Content)
			assert.Equal(t, tt.wantHas, env.HasContent)
			assert.Equal(t, tt.wantType, env.Type)
		})
	}
}

func TestUnserialize_Scalars(t *testing.T) {
	tests := []struct {
		in   string
		want interface{}
	}{
		{in: "N;", want: nil},
		{in: "b:1;", want: true},
		{in: "b:0;", want: false},
		{in: "i:-42;", want: int64(-42)},
		{in: "d:1.5;", want: 1.5},
		{in: `s:3:"a;b";`, want: "a;b"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := unserialize(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := unserialize("i:1;i:2;")
	assert.ErrorIs(t, err, errTrailingData)
}

func TestUnserialize_Array(t *testing.T) {
	got, err := unserialize(`a:2:{i:0;s:1:"x";s:1:"k";b:1;}`)
	require.NoError(t, err)
	assert.Equal(t, phpArray{
		{Key: int64(0), Value: "x"},
		{Key: "k", Value: true},
	}, got)
}

func TestUnserialize_RejectsOversizedLengths(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{name: "string length near max int", in: `s:9223372036854775807:"x";`},
		{name: "string length past input", in: `s:10:"x";`},
		{name: "string length overflows int", in: `s:99999999999999999999:"x";`},
		{name: "huge array count", in: `a:100000000000:{}`},
		{name: "array count past input", in: `a:3:{i:0;N;}`},
		{name: "huge object count", in: `O:8:"stdClass":100000000000:{}`},
		{name: "huge class name length", in: `O:9223372036854775807:"x":0:{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotPanics(t, func() {
				_, err := unserialize(tt.in)
				assert.Error(t, err)

				_, err = Parse(tt.in)
				assert.Error(t, err)
			})
		})
	}
}

func TestPropertyName(t *testing.T) {
	assert.Equal(t, "content", propertyName("\x00App\\Message\\AgentMessage\x00content"))
	assert.Equal(t, "stamps", propertyName("\x00*\x00stamps"))
	assert.Equal(t, "public", propertyName("public"))
}

// ==========================
// Encode Tests
// ==========================

func TestEncode_MatchesSerializerOutput(t *testing.T) {
	got := Encode(Envelope{Content: "where is brussels", Type: TypeToLLM})
	assert.Equal(t, sampleBody, got)
}

func TestEncode_RoundTrip(t *testing.T) {
	tests := []Envelope{
		{Content: "where is brussels", Type: TypeToLLM},
		{Content: `say "hi" to O'Brien \o/`, Type: TypeToStorage},
		{Content: "", Type: TypeToGoogle},
		{Content: "Liège, Belgique", Type: TypeToLLM},
	}
	for _, in := range tests {
		t.Run(in.Content, func(t *testing.T) {
			env, err := Parse(Encode(in))
			require.NoError(t, err)
			assert.Equal(t, in.Content, env.Content)
			assert.Equal(t, in.Type, env.Type)
		})
	}
}

func TestEnvelope_String(t *testing.T) {
	env := &Envelope{Content: "where is brussels", Type: TypeToLLM}
	assert.Equal(t, "AgentMessage { content: where is brussels, type: TO_LLM }", env.String())

	env.Type = MessageType(7)
	assert.Equal(t, "AgentMessage { content: where is brussels, type: unknown }", env.String())
}
