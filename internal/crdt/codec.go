package crdt

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/roach88/marginalia/internal/model"
)

// encMode uses Core Deterministic Encoding (RFC 8949 §4.2): the same
// update always encodes to the same bytes, so its hash is stable across
// replicas.
var encMode cbor.EncMode

// decMode ignores unknown fields so older replicas can read newer updates.
var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("crdt: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("crdt: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeUpdate serializes an update for the wire or the update log.
func EncodeUpdate(u Update) ([]byte, error) {
	data, err := encMode.Marshal(u)
	if err != nil {
		return nil, fmt.Errorf("encode update %s: %w", u.ID, err)
	}
	return data, nil
}

// DecodeUpdate parses bytes produced by EncodeUpdate and validates the
// result.
func DecodeUpdate(data []byte) (Update, error) {
	var u Update
	if err := decMode.Unmarshal(data, &u); err != nil {
		return Update{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if err := u.validate(); err != nil {
		return Update{}, err
	}
	return u, nil
}

// HashUpdate returns the content hash of an update's encoding.
func HashUpdate(u Update) (string, error) {
	data, err := EncodeUpdate(u)
	if err != nil {
		return "", err
	}
	return model.UpdateHash(data), nil
}

// Diagnose renders encoded bytes in CBOR diagnostic notation.
func Diagnose(data []byte) (string, error) {
	return cbor.Diagnose(data)
}

// ApplyEncoded decodes and merges an update received as bytes.
func (d *Doc) ApplyEncoded(data []byte) (bool, error) {
	u, err := DecodeUpdate(data)
	if err != nil {
		return false, err
	}
	return d.ApplyUpdate(u)
}
