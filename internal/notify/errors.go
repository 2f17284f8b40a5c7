package notify

import (
	"errors"
	"net/url"
)

// unwrapURLError drops the *url.Error wrapper, whose message includes the
// request URL.
func unwrapURLError(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return urlErr.Err
	}
	return err
}
