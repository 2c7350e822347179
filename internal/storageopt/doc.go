// Package storageopt 存放存储客户端包装器共用的选项、分页、计数与慢查询检测。
package storageopt
