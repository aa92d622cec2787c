package response

// 旧版接口业务码：1 表示成功，其余为失败
const (
	LegacyCodeSuccess = 1
	LegacyCodeFailure = -1
)

// v2 接口业务码：0 表示成功
const (
	CodeSuccess      = 0
	CodeFailure      = -1
	CodeBadRequest   = 400
	CodeUnauthorized = 401
	CodeNotFound     = 404
	CodeRateLimited  = 429
	CodeServerError  = 500
)
