package votes

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

var (
	requestEnc cbor.EncMode
	requestDec cbor.DecMode
)

func init() {
	var err error
	requestEnc, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("votes: CBOR encoder initialization failed: " + err.Error())
	}
	requestDec, err = cbor.DecOptions{
		DupMapKey:        cbor.DupMapKeyEnforcedAPF,
		MaxNestedLevels:  4,
		MaxMapPairs:      16,
		MaxArrayElements: 16,
	}.DecMode()
	if err != nil {
		panic("votes: CBOR decoder initialization failed: " + err.Error())
	}
}

// DecodeRequest parses a CBOR vote submission.
func DecodeRequest(body []byte) (Request, error) {
	var req Request
	if len(body) == 0 {
		return req, fmt.Errorf("%w: empty body", ErrMalformedPayload)
	}
	if err := requestDec.Unmarshal(body, &req); err != nil {
		return Request{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return req, nil
}

// EncodeRequest is the client-side counterpart of DecodeRequest.
func EncodeRequest(req Request) ([]byte, error) {
	return requestEnc.Marshal(req)
}
