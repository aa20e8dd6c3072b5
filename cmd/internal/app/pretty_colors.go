package app

import (
	"log/slog"
	"regexp"
	"strconv"
)

const (
	ansiReset   = "\x1b[0m"
	ansiBright  = "\x1b[1m"
	ansiDim     = "\x1b[2m"
	ansiRed     = "\x1b[31m"
	ansiGreen   = "\x1b[32m"
	ansiYellow  = "\x1b[33m"
	ansiBlue    = "\x1b[34m"
	ansiMagenta = "\x1b[35m"
	ansiCyan    = "\x1b[36m"
)

var ansiPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string {
	return ansiPattern.ReplaceAllString(s, "")
}

func paint(code, s string, color bool) string {
	if !color || code == "" {
		return s
	}
	return code + s + ansiReset
}

func colorizeHTTPMethod(method string, color bool) string {
	var code string
	switch method {
	case "GET", "HEAD":
		code = ansiBlue
	case "POST":
		code = ansiGreen
	case "PUT", "PATCH":
		code = ansiYellow
	case "DELETE":
		code = ansiRed
	default:
		code = ansiMagenta
	}
	return paint(code, method, color)
}

func colorizeStatusCode(status int, color bool) string {
	return paint(statusColor(status), strconv.Itoa(status), color)
}

func colorizeStatusClass(class string, color bool) string {
	var code string
	switch class {
	case "2xx":
		code = ansiGreen
	case "3xx":
		code = ansiCyan
	case "4xx":
		code = ansiYellow
	case "5xx":
		code = ansiRed
	}
	return paint(code, class, color)
}

func statusColor(status int) string {
	switch {
	case status >= 500:
		return ansiRed
	case status >= 400:
		return ansiYellow
	case status >= 300:
		return ansiCyan
	default:
		return ansiGreen
	}
}

// Requests over a second are red, over 250ms yellow.
func colorizeDurationMS(ms int64, color bool) string {
	s := strconv.FormatInt(ms, 10) + "ms"
	switch {
	case ms >= 1000:
		return paint(ansiRed, s, color)
	case ms >= 250:
		return paint(ansiYellow, s, color)
	default:
		return paint(ansiDim, s, color)
	}
}

func colorizeResult(result string, color bool) string {
	var code string
	switch result {
	case "success":
		code = ansiGreen
	case "redirect":
		code = ansiCyan
	case "client_error":
		code = ansiYellow
	case "server_error":
		code = ansiRed
	}
	return paint(code, result, color)
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		u := v.Uint64()
		if u > 1<<63-1 {
			return 0, false
		}
		return int64(u), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	case slog.KindString:
		n, err := strconv.ParseInt(v.String(), 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}
