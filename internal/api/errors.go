package api

import (
	"errors"
	"fmt"
)

var ErrInvalidRequest = errors.New("invalid_request")

// requestError is a 400 naming the offending request field. code is set for
// failures a client may want to branch on.
type requestError struct {
	param string
	code  string
	msg   string
}

func (e requestError) Error() string {
	return e.msg
}

func (e requestError) Unwrap() error {
	return ErrInvalidRequest
}

func newInvalidRequest(param, msg string) error {
	return requestError{param: param, msg: msg}
}

func newBadInputID(id int) error {
	return requestError{param: "input_ids", code: "token_out_of_range", msg: fmt.Sprintf("input token %d out of range", id)}
}

func newDuplicateRequestID(id string, inFlight bool) error {
	state := "already used"
	if inFlight {
		state = "still generating"
	}
	return requestError{param: "request_id", code: "duplicate_request_id", msg: fmt.Sprintf("request_id %q %s", id, state)}
}
