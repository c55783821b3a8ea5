// Copyright 2026 The Roadlog Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"io"
	"reflect"

	"github.com/fxamacker/cbor/v2"
)

// encMode is the CBOR encoder configured with Core Deterministic
// Encoding (RFC 8949 §4.2): sorted map keys, smallest integer
// encoding, no indefinite-length items. Same logical data always
// produces identical bytes.
var encMode cbor.EncMode

// decMode is the CBOR decoder configured to accept standard CBOR.
// Unknown fields are silently ignored, which is what lets the backend
// decode envelopes produced by newer device firmware than it was
// built against.
var decMode cbor.DecMode

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		// Roadlog never uses non-string map keys in any-typed data.
		// When the decoder's target is interface{}/any it must pick a
		// concrete Go map type; the CBOR default is
		// map[interface{}]interface{}, which is incompatible with
		// encoding/json and most Go code expecting map[string]any.
		// Struct field decoding is unaffected.
		DefaultMapType: reflect.TypeOf(map[string]any(nil)),
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// Marshal encodes v to CBOR using Core Deterministic Encoding.
func Marshal(v any) ([]byte, error) {
	return encMode.Marshal(v)
}

// Unmarshal decodes CBOR data into v.
func Unmarshal(data []byte, v any) error {
	return decMode.Unmarshal(data, v)
}

// Encoder is a CBOR stream encoder. Type alias so consumers import
// only lib/codec, not fxamacker/cbor directly.
type Encoder = cbor.Encoder

// RawMessage is a raw encoded CBOR value. Event envelopes carry their
// payload as a RawMessage so that kind dispatch happens before (and
// instead of, for uninteresting kinds) payload decoding.
type RawMessage = cbor.RawMessage

// NewEncoder returns a CBOR encoder that writes to w using Roadlog's
// standard Core Deterministic Encoding configuration. One Encoder can
// emit any number of values; the event framing layer holds one per
// output stream instead of allocating per frame.
func NewEncoder(w io.Writer) *Encoder {
	return encMode.NewEncoder(w)
}

// Diagnose returns the CBOR diagnostic notation (RFC 8949 §8) for the
// entire contents of data. Unlog dumps use it to render payloads of
// kinds this build does not model.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}
