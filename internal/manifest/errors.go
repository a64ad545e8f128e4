package manifest

import "errors"

var (
	ErrNotFound      = errors.New("manifest not found")
	ErrUnknownFormat = errors.New("manifest must end in .yaml, .yml or .json")
	ErrSyntax        = errors.New("manifest is not well-formed")
	ErrEmpty         = errors.New("manifest lists no repositories")
	ErrMissingURL    = errors.New("repository has no url")
	ErrDuplicate     = errors.New("repository listed twice")
)
