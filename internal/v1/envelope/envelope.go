package envelope

import (
	"bytes"
	"encoding/json"
)

// MaxBytes is the hard ceiling on an encoded envelope, enforced before any
// JSON parsing is attempted.
const MaxBytes = 64 * 1024

// Envelope is the wire wrapper common to every message kind.
type Envelope struct {
	Version int             `json:"v"`
	Kind    Kind            `json:"kind"`
	Body    json.RawMessage `json:"body"`
}

// Decode parses and validates the envelope wrapper. It does not validate the
// body against its kind-specific schema; call the matching DecodeXxx
// function (or Envelope.Unwrap) for that.
//
// Validation order matches the wire contract exactly, since callers surface
// the first failure to clients as a distinct error:
//  1. size ceiling
//  2. JSON well-formedness
//  3. top-level object
//  4. version present and == 1
//  5. kind present, string, known
//  6. body present and an object
func Decode(data []byte) (*Envelope, error) {
	if len(data) > MaxBytes {
		return nil, errBodyTooLarge(len(data))
	}

	var probe json.RawMessage
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&probe); err != nil {
		return nil, errBodyJSONMalformed()
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(probe, &raw); err != nil || raw == nil {
		return nil, errSchema("envelope", reasonBodyNotObject)
	}

	versionRaw, ok := raw["v"]
	if !ok {
		return nil, errMissingVersion()
	}
	var version json.Number
	if err := json.Unmarshal(versionRaw, &version); err != nil {
		return nil, errSchema("envelope", reasonVersionNotU32)
	}
	versionInt, err := version.Int64()
	if err != nil || versionInt < 0 {
		return nil, errSchema("envelope", reasonVersionNotU32)
	}
	if versionInt != 1 {
		return nil, errUnsupportedVersion(versionInt)
	}

	kindRaw, ok := raw["kind"]
	if !ok {
		return nil, errSchema("envelope", reasonMissingKind)
	}
	var kindStr string
	if err := json.Unmarshal(kindRaw, &kindStr); err != nil {
		return nil, errSchema("envelope", reasonKindNotString)
	}
	kind := Kind(kindStr)
	if !kind.valid() {
		return nil, errUnknownKind(kindStr)
	}

	bodyRaw, ok := raw["body"]
	if !ok {
		return nil, errSchema(string(kind), reasonMissingBody)
	}
	var bodyObj map[string]json.RawMessage
	if err := json.Unmarshal(bodyRaw, &bodyObj); err != nil || bodyObj == nil {
		return nil, errSchema(string(kind), reasonBodyNotObject)
	}

	return &Envelope{Version: 1, Kind: kind, Body: bodyRaw}, nil
}

// decodeBody decodes raw into v, rejecting fields v does not declare when
// disallowUnknown is set.
func decodeBody(raw json.RawMessage, disallowUnknown bool, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	if disallowUnknown {
		dec.DisallowUnknownFields()
	}
	return dec.Decode(v)
}

func wrap(kind Kind, body any) (*Envelope, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, errSchema(string(kind), "serialize_failed")
	}
	return &Envelope{Version: 1, Kind: kind, Body: raw}, nil
}

// Encode serializes the envelope to its wire bytes.
func Encode(e *Envelope) ([]byte, error) {
	return json.Marshal(e)
}
