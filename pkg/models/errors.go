package models

import "errors"

// ErrAssetNotFound is returned by every lookup or write that names an unknown asset id.
var ErrAssetNotFound = errors.New("asset not found")
