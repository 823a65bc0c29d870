package votes

import "errors"

// ErrMalformedPayload reports a vote submission that fails structural
// validation. It is never retried server side.
var ErrMalformedPayload = errors.New("malformed vote payload")
