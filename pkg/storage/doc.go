// Package storage 汇集存储相关的子包。
//
//   - xmongo: MongoDB 客户端封装，集合预置、分页、慢查询检测
package storage
