package server

import "errors"

var (
	ErrBind   = errors.New("bind variable server listener")
	ErrClosed = errors.New("variable server is not running")
)
