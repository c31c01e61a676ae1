package chef

import (
	"github.com/cockroachdb/errors"

	"github.com/ylchen07/chefkit/pkg/session"
)

var (
	// ErrInvalidAuthentication is returned by New when the search probe is refused
	ErrInvalidAuthentication = errors.New("invalid authentication")
	// ErrInvalidSearchIndex is returned before searching an index the server did not advertise
	ErrInvalidSearchIndex = errors.New("invalid search index")
	// ErrInvalidObject is returned when an entity cannot be read or written
	ErrInvalidObject = errors.New("invalid object")
	// ErrSearchFailed marks a search page the server refused
	ErrSearchFailed = errors.New("search failed")
	// ErrCreateFailed is returned when the server refuses a create
	ErrCreateFailed = errors.New("create failed")
	// ErrDeleteFailed marks a delete that returned false
	ErrDeleteFailed = errors.New("delete failed")
	// ErrNotFound is returned by lookups that matched nothing
	ErrNotFound = errors.New("not found")
)

// responseError describes a non-2xx answer, marked with kind so callers can
// use errors.Is, and carrying the server text as detail.
func responseError(kind error, op string, resp *session.Response) error {
	err := errors.Newf("%s: server returned %d: %s", op, resp.StatusCode, resp.Text())
	err = errors.WithDetail(err, resp.Text())
	return errors.Mark(err, kind)
}

// transportError marks a failed call with kind
func transportError(kind error, op string, err error) error {
	return errors.Mark(errors.Wrap(err, op), kind)
}
