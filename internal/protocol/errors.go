package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrProtoVersion    = "E_PROTO_VERSION"

	// Sessions.
	ErrAuthFailed    = "E_AUTH_FAILED"
	ErrNameTaken     = "E_NAME_TAKEN"
	ErrWorldNotFound = "E_WORLD_NOT_FOUND"

	ErrInternal = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrProtoVersion:    {},
	ErrAuthFailed:      {},
	ErrNameTaken:       {},
	ErrWorldNotFound:   {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
