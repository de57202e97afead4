package bitmap

import (
	"github.com/pkg/errors"
)

// ErrDICOMUnavailable is returned for DICOM uploads when DICOM decoding was
// disabled at startup.
var ErrDICOMUnavailable = errors.New("DICOM support not enabled")

// DecodeError reports a payload that could not be turned into a Bitmap.
type DecodeError struct {
	msg string
	err error
}

func (e *DecodeError) Error() string {
	if e.msg == "" {
		return e.err.Error()
	}
	if e.err == nil {
		return e.msg
	}
	return e.msg + ": " + e.err.Error()
}

func (e *DecodeError) Unwrap() error {
	return e.err
}

func decodeError(err error) error {
	return &DecodeError{err: err}
}

func invalidDICOM(err error) error {
	return &DecodeError{msg: "Invalid DICOM file", err: err}
}
