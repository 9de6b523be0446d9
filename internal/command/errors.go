package command

import "errors"

var errNotAbsolute = errors.New("url is not absolute")
