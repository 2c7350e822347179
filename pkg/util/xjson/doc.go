// Package xjson 基于 goccy/go-json 提供 HTTP 与命令行共用的 JSON 读写。
//
// 输出统一两空格缩进、不转义 HTML；Decode 拒绝一个值之后的多余数据。
package xjson
