package kafka

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
)

// JSONHandler adapts a typed handler to the raw message Handler. Unknown
// fields are ignored so the wire contract stays forward-compatible.
// A payload that does not decode can never succeed on redelivery, so it is
// logged and dropped instead of wedging the partition.
func JSONHandler[M any](log *zap.Logger, handle func(context.Context, []byte, *M) error) Handler {
	return func(ctx context.Context, key, value []byte) error {
		msg := new(M)
		if err := json.Unmarshal(value, msg); err != nil {
			if log != nil {
				log.Warn("malformed message; dropping",
					zap.ByteString("key", key),
					zap.Int("value_len", len(value)),
					zap.Error(err),
				)
			}
			return nil
		}
		return handle(ctx, key, msg)
	}
}
