package rest

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

type ClientError struct {
	StatusCode int64
	Code       string
	Msg        string
	Headers    http.Header
	Data       any
}

func (e *ClientError) Error() string {
	return fmt.Sprintf("client error (status %d): %s", e.StatusCode, e.Msg)
}

type ServerError struct {
	StatusCode int64
	Text       string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error (status %d): %s", e.StatusCode, e.Text)
}

// DecodeError is returned when a successful response body is not the
// expected JSON.
type DecodeError struct {
	StatusCode int64
	Body       string
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode error (status %d): %v: %s", e.StatusCode, e.Err, e.Body)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// StatusCode returns the HTTP status carried by a ClientError or
// ServerError, or 0 for any other error.
func StatusCode(err error) int64 {
	switch e := err.(type) {
	case *ClientError:
		return e.StatusCode
	case *ServerError:
		return e.StatusCode
	default:
		return 0
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Msg     string `json:"msg"`
	Detail  any    `json:"detail"`
	Message string `json:"message"`
	Data    any    `json:"data"`
}

func (r errorResponse) message() string {
	switch {
	case r.Msg != "":
		return r.Msg
	case r.Message != "":
		return r.Message
	case r.Detail != nil:
		if s, ok := r.Detail.(string); ok {
			return s
		}
		b, _ := json.Marshal(r.Detail)
		return string(b)
	}
	return ""
}

func handleException(resp *resty.Response) error {
	statusCode := int64(resp.StatusCode())

	if statusCode < 400 {
		return nil
	}

	if statusCode >= 400 && statusCode < 500 {
		var errResp errorResponse
		err := json.Unmarshal(resp.Body(), &errResp)

		if err != nil || (errResp.Code == "" && errResp.message() == "") {
			return &ClientError{
				StatusCode: statusCode,
				Code:       "",
				Msg:        string(resp.Body()),
				Headers:    resp.Header(),
				Data:       nil,
			}
		}

		return &ClientError{
			StatusCode: statusCode,
			Code:       errResp.Code,
			Msg:        errResp.message(),
			Headers:    resp.Header(),
			Data:       errResp.Data,
		}
	}

	return &ServerError{
		StatusCode: statusCode,
		Text:       string(resp.Body()),
	}
}
