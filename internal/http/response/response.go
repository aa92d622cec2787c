// Package response 统一网关两代商户接口的响应写出。
// 旧版接口为平铺 JSON，code=1 表示成功；v2 接口 code=0 表示成功。
package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// LegacySuccess 旧版成功响应，fields 平铺进响应体
func LegacySuccess(c *gin.Context, fields gin.H) {
	body := gin.H{
		"code": LegacyCodeSuccess,
		"msg":  "succ",
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// LegacyError 旧版失败响应
func LegacyError(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, gin.H{
		"code": LegacyCodeFailure,
		"msg":  msg,
	})
}

// Success v2 成功响应
func Success(c *gin.Context, fields gin.H) {
	body := gin.H{
		"code": CodeSuccess,
		"msg":  "success",
	}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(http.StatusOK, body)
}

// Error v2 失败响应
func Error(c *gin.Context, code int, msg string) {
	c.JSON(http.StatusOK, gin.H{
		"code":       code,
		"msg":        msg,
		"request_id": requestID(c),
	})
}

// Ack 回调应答，按插件要求原样输出纯文本
func Ack(c *gin.Context, body string) {
	c.String(http.StatusOK, body)
}

func requestID(c *gin.Context) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Get("request_id"); ok {
		if id, ok := value.(string); ok {
			return id
		}
	}
	return ""
}
