package xjson

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/goccy/go-json"
)

// ErrDecode 请求体不是合法 JSON 或类型不匹配。
var ErrDecode = errors.New("xjson: decode")

// Encode 以两空格缩进写出 v，不转义 HTML 字符。
func Encode(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

// Write 写出 JSON 响应。contentType 为空时用 application/json。
func Write(w http.ResponseWriter, status int, contentType string, v any) error {
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	return Encode(w, v)
}

// Decode 读取一个 JSON 值到 v，其后只允许空白。
func Decode(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: unexpected data after JSON value", ErrDecode)
	}
	return nil
}

// Pretty 用于日志与命令行输出，失败时返回 "<marshal error: ...>"。
func Pretty(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	return string(data)
}
