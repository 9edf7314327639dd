package value

import (
	"context"
	"sync"

	"github.com/goccy/go-json"

	"github.com/ha1tch/nudb/pkg/errors"
	"github.com/ha1tch/nudb/pkg/span"
)

// CustomValue is a value type defined outside this package. The host calls
// ToBaseValue to materialize it and FollowPathString when a cell path
// indexes into it by name.
type CustomValue interface {
	// CloneValue returns a copy of the custom value as a Value with span s.
	CloneValue(s span.Span) Value
	TypeName() string
	ToBaseValue(ctx context.Context, s span.Span) (Value, error)
	FollowPathString(ctx context.Context, selfSpan span.Span, column string, pathSpan span.Span) (Value, error)
}

// CustomCodec converts a custom value to and from its serialized payload.
type CustomCodec struct {
	Marshal   func(CustomValue) ([]byte, error)
	Unmarshal func(ctx context.Context, payload []byte, s span.Span) (Value, error)
}

var (
	codecMu sync.RWMutex
	codecs  = make(map[string]CustomCodec)
)

// RegisterCustom registers the codec used for custom values of typeName.
func RegisterCustom(typeName string, c CustomCodec) {
	codecMu.Lock()
	defer codecMu.Unlock()
	codecs[typeName] = c
}

func lookupCodec(typeName string) (CustomCodec, bool) {
	codecMu.RLock()
	defer codecMu.RUnlock()
	c, ok := codecs[typeName]
	return c, ok
}

type envelope struct {
	Type  string          `json:"type"`
	Value json.RawMessage `json:"value"`
}

// MarshalCustom serializes c into a `{"type": ..., "value": ...}` envelope.
func MarshalCustom(c CustomValue) ([]byte, error) {
	codec, ok := lookupCodec(c.TypeName())
	if !ok {
		return nil, noCodec(c.TypeName())
	}
	payload, err := codec.Marshal(c)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: c.TypeName(), Value: payload})
}

// UnmarshalCustom reverses MarshalCustom using the registered codec.
func UnmarshalCustom(ctx context.Context, data []byte, s span.Span) (Value, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Value{}, errors.Wrap(err, errors.ErrCodeDeserialize, "decode custom value envelope").
			WithSpan(s).Err()
	}
	codec, ok := lookupCodec(env.Type)
	if !ok {
		return Value{}, noCodec(env.Type)
	}
	return codec.Unmarshal(ctx, env.Value, s)
}

func noCodec(typeName string) error {
	return errors.Newf(errors.ErrCodeUnsupported, "no codec registered for custom type %q", typeName).
		WithField("type", typeName).
		Err()
}
