package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	// ErrInvalidArgument 请求参数不合法，API 层映射为 400。
	ErrInvalidArgument = errors.New("catalog: invalid argument")

	// ErrNoteNotFound 删除的笔记不存在。
	ErrNoteNotFound = errors.New("catalog: no such note exists")

	// ErrInvalidID 笔记 ID 不是合法的 ObjectID 十六进制串。
	ErrInvalidID = fmt.Errorf("%w: malformed id", ErrInvalidArgument)
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// validateStruct 把 validator 的错误折叠成一条 ErrInvalidArgument。
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	fields := make([]string, 0, len(ve))
	for _, fe := range ve {
		fields = append(fields, fe.Namespace()+" failed '"+fe.Tag()+"'")
	}
	return fmt.Errorf("%w: %s", ErrInvalidArgument, strings.Join(fields, "; "))
}

// requireArgs 检查必填的字符串参数，参数按 名称, 值 成对传入。
func requireArgs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if strings.TrimSpace(pairs[i+1]) == "" {
			return fmt.Errorf("%w: %s is required", ErrInvalidArgument, pairs[i])
		}
	}
	return nil
}

var errNilGuard = errors.New("catalog: nil collection guard")
