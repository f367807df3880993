package socketio

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/edumarques81/serenata/internal/domain/playback"
	"github.com/edumarques81/serenata/internal/domain/playlist"
)

// Page events carry a single JSON object payload, decoded by the socket
// library into map[string]interface{} with float64 numbers. Values are
// decoded weakly, so "0.5" and 0.5 both read as a number and a numeric
// track id reads as a string.

func argValue(args []any, key string) (any, bool) {
	if len(args) == 0 {
		return nil, false
	}
	m, ok := args[0].(map[string]interface{})
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok && v != nil
}

// decodeArg reads key from the payload into a T.
func decodeArg[T any](args []any, key string) (T, error) {
	var out T
	v, ok := argValue(args, key)
	if !ok {
		return out, fmt.Errorf("%w: missing %q", errBadArgument, key)
	}
	if err := mapstructure.WeakDecode(v, &out); err != nil {
		return out, fmt.Errorf("%w: %q: %v", errBadArgument, key, err)
	}
	return out, nil
}

func argFloat(args []any, key string) (float64, error) {
	return decodeArg[float64](args, key)
}

func argString(args []any, key string) (string, error) {
	return decodeArg[string](args, key)
}

// argBool is strict: a toggle sent as "yes" or 2 is a page bug.
func argBool(args []any, key string) (bool, error) {
	v, ok := argValue(args, key)
	if !ok {
		return false, fmt.Errorf("%w: missing %q", errBadArgument, key)
	}
	var out bool
	if err := mapstructure.Decode(v, &out); err != nil {
		return false, fmt.Errorf("%w: %q: %v", errBadArgument, key, err)
	}
	return out, nil
}

// argID accepts a track id sent as a string or a number.
func argID(args []any, key string) (playlist.ID, error) {
	id, err := decodeArg[string](args, key)
	return playlist.ID(id), err
}

// argWidgetState reads "state" as a player state code or name.
func argWidgetState(args []any) (playback.WidgetState, error) {
	raw, err := decodeArg[string](args, "state")
	if err != nil {
		return 0, err
	}
	st, err := playback.ParseWidgetState(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadArgument, err)
	}
	return st, nil
}
