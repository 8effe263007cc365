package errs

import "net/http"

// 业务错误码与 HTTP 状态一一对应，网关不再做二次映射。
const (
	ValidationError     = 400 // 参数不合法
	AuthError           = 401 // 凭证缺失/无效
	ForbiddenError      = 403 // 身份不匹配（非本人操作）
	NotFoundError       = 404 // 记录或身份不存在
	ConflictError       = 409 // 不变量冲突（重复申请、已是好友等）
	ServerInternalError = 500
	StorageError        = 503 // 存储不可用/超时，调用方可重试
)

var (
	ErrValidation = NewCodeError(ValidationError, "invalid argument")
	ErrAuth       = NewCodeError(AuthError, "auth failed")
	ErrForbidden  = NewCodeError(ForbiddenError, "operation not allowed")
	ErrNotFound   = NewCodeError(NotFoundError, "record not found")
	ErrConflict   = NewCodeError(ConflictError, "state conflict")
	ErrInternal   = NewCodeError(ServerInternalError, "server internal error")
	ErrStorage    = NewCodeError(StorageError, "storage unavailable")
)

// HTTPStatus 返回错误对应的 HTTP 状态码
func HTTPStatus(err error) int {
	if err == nil {
		return http.StatusOK
	}
	code := CodeOf(err)
	switch code {
	case ValidationError, AuthError, ForbiddenError, NotFoundError, ConflictError, StorageError:
		return code
	default:
		return http.StatusInternalServerError
	}
}
