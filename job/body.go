package job

import (
	"context"
	"encoding/json"
	"fmt"
)

// PayloadParam is the parameter key Typed bodies decode their input from.
const PayloadParam = "payload"

// Body is the business logic of a job. It returns an outcome, or an error
// when it faults. A body should return promptly once ex.Context() is done.
type Body func(ex *Execution) (Outcome, error)

// BodyFunc adapts a plain function to a Body. A nil error is a success with
// no data; a non-nil error is a fault.
func BodyFunc(fn func(ctx context.Context) error) Body {
	return func(ex *Execution) (Outcome, error) {
		if err := fn(ex.Context()); err != nil {
			return Outcome{}, err
		}
		return Success(nil), nil
	}
}

// Typed adapts a typed handler to a Body. The PayloadParam parameter is
// decoded into T: raw JSON ([]byte, json.RawMessage or string) is
// unmarshalled directly, any other value is round-tripped through JSON. The
// handler's result becomes the outcome data.
func Typed[T any](name string, fn func(ctx context.Context, payload T) (any, error)) Body {
	return func(ex *Execution) (Outcome, error) {
		var t T
		if raw, ok := ex.Params[PayloadParam]; ok && raw != nil {
			if err := decodePayload(raw, &t); err != nil {
				return Failure(fmt.Sprintf("decode payload for job %q", name), err), nil
			}
		}
		data, err := fn(ex.Context(), t)
		if err != nil {
			return Outcome{}, err
		}
		return Success(data), nil
	}
}

func decodePayload(raw any, dst any) error {
	var b []byte
	switch v := raw.(type) {
	case []byte:
		b = v
	case json.RawMessage:
		b = v
	case string:
		b = []byte(v)
	default:
		var err error
		if b, err = json.Marshal(v); err != nil {
			return err
		}
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, dst)
}
