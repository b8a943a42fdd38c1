package envelope

import "fmt"

// Error is the typed decode/validate error surfaced by this package. The
// Reason constants mirror the original_source implementation's error codes
// so that logs and the wire Error{InvalidPayload} translation stay stable
// across the Go and Rust bindings of the same protocol.
type Error struct {
	Code   Code
	Kind   string
	Reason string
	Bytes  int // populated only for CodeBodyTooLarge
	Value  string
}

// Code classifies the failure independent of the free-text reason.
type Code int

const (
	CodeMissingVersion Code = iota
	CodeUnsupportedVersion
	CodeUnknownKind
	CodeBodyTooLarge
	CodeBodyJSONMalformed
	CodeSchemaViolation
)

func (e *Error) Error() string {
	switch e.Code {
	case CodeMissingVersion:
		return "envelope: missing version"
	case CodeUnsupportedVersion:
		return fmt.Sprintf("envelope: unsupported version %q", e.Value)
	case CodeUnknownKind:
		return fmt.Sprintf("envelope: unknown kind %q", e.Value)
	case CodeBodyTooLarge:
		return fmt.Sprintf("envelope: body too large (%d bytes)", e.Bytes)
	case CodeBodyJSONMalformed:
		return "envelope: body is not valid JSON"
	case CodeSchemaViolation:
		return fmt.Sprintf("envelope: schema violation in %s: %s", e.Kind, e.Reason)
	default:
		return "envelope: invalid message"
	}
}

func errMissingVersion() error {
	return &Error{Code: CodeMissingVersion}
}

func errUnsupportedVersion(received any) error {
	return &Error{Code: CodeUnsupportedVersion, Value: fmt.Sprint(received)}
}

func errUnknownKind(value string) error {
	return &Error{Code: CodeUnknownKind, Value: value}
}

func errBodyTooLarge(n int) error {
	return &Error{Code: CodeBodyTooLarge, Bytes: n}
}

func errBodyJSONMalformed() error {
	return &Error{Code: CodeBodyJSONMalformed}
}

func errSchema(kind, reason string) error {
	return &Error{Code: CodeSchemaViolation, Kind: kind, Reason: reason}
}

// Reason codes used in errSchema, mirroring original_source/syncer/src/messages/error.rs.
const (
	reasonBodyNotObject    = "body_not_object"
	reasonVersionNotU32    = "version_not_u32"
	reasonMissingKind      = "missing_kind"
	reasonKindNotString    = "kind_not_string"
	reasonMissingBody      = "missing_body"
	reasonMissingHead      = "missing_head"
	reasonInvalidPose      = "invalid_pose"
	reasonMissingSender    = "missing_sender"
	reasonMessageLength    = "message_length"
	reasonInvalidChat      = "invalid_chat"
	reasonUnsupportedKind  = "unsupported_kind"
	reasonKindMismatch     = "kind_mismatch"
	reasonMissingType      = "missing_type"
	reasonMissingRoomID    = "missing_room_id"
	reasonMissingAuthToken = "missing_auth_token"
	reasonMissingIcePolicy = "missing_ice_policy"
	reasonMissingSDP       = "missing_sdp"
	reasonInvalidOffer     = "invalid_offer"
	reasonInvalidAnswer    = "invalid_answer"
	reasonInvalidIce       = "invalid_ice"
	reasonMissingCandidate = "missing_candidate"
	reasonInvalidCandidate = "invalid_candidate"
	reasonUnknownField     = "unknown_field"
)
