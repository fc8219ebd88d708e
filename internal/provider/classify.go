package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"callsync/internal/errs"
)

// Classify 将 SDK / 网络错误映射为 errs.Kind；已分类的错误原样返回
// Classify maps SDK and transport errors onto an errs.Kind; already classified errors pass through
func Classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var classified *errs.Error
	if errors.As(err, &classified) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return errs.Wrap(kindForStatus(apiErr.HTTPStatusCode, apiErrorCode(apiErr)), op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return errs.Wrap(kindForStatus(reqErr.HTTPStatusCode, string(reqErr.Body)), op, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return errs.Wrap(errs.KindTransientService, op, err)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return errs.Wrap(errs.KindMalformedResponse, op, err)
	}

	var netErr net.Error
	var urlErr *url.Error
	if errors.As(err, &netErr) || errors.As(err, &urlErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return errs.Wrap(errs.KindNetwork, op, err)
	}
	return errs.Wrap(errs.KindTransientService, op, err)
}

// ClassifyStatus classifies a bare HTTP status from a non-SDK collaborator.
func ClassifyStatus(op string, status int, body string) error {
	msg := strings.TrimSpace(body)
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return &errs.Error{
		Kind: kindForStatus(status, body),
		Op:   op,
		Msg:  fmt.Sprintf("HTTP %d", status),
		Err:  errors.New(msg),
	}
}

func kindForStatus(status int, detail string) errs.Kind {
	quota := strings.Contains(strings.ToLower(detail), "insufficient_quota") ||
		strings.Contains(strings.ToLower(detail), "quota")
	switch {
	case status == http.StatusPaymentRequired:
		return errs.KindQuotaExhausted
	case status == http.StatusTooManyRequests && quota:
		return errs.KindQuotaExhausted
	case status == http.StatusTooManyRequests:
		return errs.KindRateLimited
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return errs.KindPreconditionFailed
	case status == http.StatusRequestEntityTooLarge:
		return errs.KindPreconditionFailed
	case status == http.StatusRequestTimeout || status >= 500:
		return errs.KindTransientService
	case status >= 400:
		return errs.KindMalformedResponse
	case status == 0:
		return errs.KindNetwork
	default:
		return errs.KindTransientService
	}
}

func apiErrorCode(e *openai.APIError) string {
	code := ""
	switch c := e.Code.(type) {
	case string:
		code = c
	case nil:
	default:
		code = fmt.Sprint(c)
	}
	return code + " " + e.Type + " " + e.Message
}
