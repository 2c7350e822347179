package xmongo

import (
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/omeyang/docdemo/internal/storageopt"
)

var (
	ErrNilClient = errors.New("xmongo: nil client")

	// ErrNilContext 所有接受 ctx 的公开方法在入口检查。Close 例外，nil 视为 Background。
	ErrNilContext = errors.New("xmongo: context must not be nil")

	ErrClosed = errors.New("xmongo: client closed")

	// ErrNotFound 单文档查询没有命中。
	ErrNotFound = errors.New("xmongo: document not found")

	ErrEmptyName = errors.New("xmongo: empty collection name")
	ErrNilOutput = errors.New("xmongo: nil output target")
	ErrEmptyDocs = errors.New("xmongo: empty documents")
)

// 分页错误包装了 storageopt 的同名错误，errors.Is 对两者都成立。
var (
	ErrInvalidPage     = fmt.Errorf("xmongo: %w", storageopt.ErrInvalidPage)
	ErrInvalidPageSize = fmt.Errorf("xmongo: %w", storageopt.ErrInvalidPageSize)
	ErrPageOverflow    = fmt.Errorf("xmongo: %w", storageopt.ErrPageOverflow)
)

// codeNamespaceExists 集合已存在时 create 命令返回的错误码。
const codeNamespaceExists = 48

func isNamespaceExists(err error) bool {
	var se mongo.ServerError
	return errors.As(err, &se) && se.HasErrorCode(codeNamespaceExists)
}

func convertPaginationError(err error) error {
	switch {
	case errors.Is(err, storageopt.ErrInvalidPage):
		return ErrInvalidPage
	case errors.Is(err, storageopt.ErrInvalidPageSize):
		return ErrInvalidPageSize
	case errors.Is(err, storageopt.ErrPageOverflow):
		return ErrPageOverflow
	default:
		return err
	}
}
