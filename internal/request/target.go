package request

import (
	"errors"
	"net/url"
)

// Target is the request target split into its decoded path and raw query.
type Target struct {
	Path     string
	Query    string
	HasQuery bool
}

var ErrMalformedTarget = errors.New("malformed request target")

// ParseTarget accepts origin-form, absolute-form and relative targets. A
// relative path is returned as is; containment is the resolver's job.
func ParseTarget(target string) (*Target, error) {
	u, err := url.ParseRequestURI(target)
	if err != nil {
		u, err = url.Parse(target)
		if err != nil || u.Scheme != "" || u.Host != "" {
			return nil, ErrMalformedTarget
		}
	}
	if u.Opaque != "" {
		return nil, ErrMalformedTarget
	}

	path := u.Path
	if path == "" {
		path = "/"
	}
	return &Target{
		Path:     path,
		Query:    u.RawQuery,
		HasQuery: u.RawQuery != "" || u.ForceQuery,
	}, nil
}
