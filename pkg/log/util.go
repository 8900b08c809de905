package log

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// toFields turns a loose key/value list into zap fields.
// Accepted shapes, in order of precedence:
//   - a zap.Field is passed through;
//   - a bare error becomes zap.Error;
//   - a string key followed by a value becomes a typed field;
//   - a trailing unpaired value is kept under "arg#<index>";
//   - a non-string key is kept with its value under "badkey#<index>".
func toFields(args ...any) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2+1)
	for i := 0; i < len(args); {
		switch v := args[i].(type) {
		case zap.Field:
			fields = append(fields, v)
			i++
			continue
		case error:
			fields = append(fields, zap.Error(v))
			i++
			continue
		}

		if i == len(args)-1 {
			fields = append(fields, zap.Any(fmt.Sprintf("arg#%d", i), args[i]))
			break
		}

		key, val := args[i], args[i+1]
		keyStr, ok := key.(string)
		if !ok {
			fields = append(fields, zap.Any(fmt.Sprintf("badkey#%d", i), []any{key, val}))
		} else {
			fields = append(fields, typedField(keyStr, val))
		}
		i += 2
	}

	return fields
}

func typedField(key string, val any) zap.Field {
	switch v := val.(type) {
	case string:
		return zap.String(key, v)
	case bool:
		return zap.Bool(key, v)
	case int:
		return zap.Int(key, v)
	case int64:
		return zap.Int64(key, v)
	case uint64:
		return zap.Uint64(key, v)
	case float64:
		return zap.Float64(key, v)
	case time.Duration:
		return zap.Duration(key, v)
	case time.Time:
		return zap.Time(key, v)
	case error:
		return zap.NamedError(key, v)
	case fmt.Stringer:
		if v == nil {
			return zap.Any(key, nil)
		}
		return zap.Stringer(key, v)
	case []byte:
		// Image payloads can be large; only the size is useful in logs.
		return zap.Int(key+"_len", len(v))
	default:
		return zap.Any(key, v)
	}
}
