package http

import (
	"errors"

	ferryerr "github.com/deployferry/ferry/pkg/errors"
)

func MakeAPINotFound(path string) *ferryerr.Error {
	return &ferryerr.Error{
		Type: ferryerr.Missing,
		Help: `The API endpoint requested is not supported by this server.

This indicates that your client (probably ferryctl) is either out of
date, or faulty. If you have problems, please file an issue at

    https://github.com/deployferry/ferry/issues

mentioning what you were attempting to do, and include this path:

    ` + path + `
`,
		Err: errors.New("API endpoint not found"),
	}
}
