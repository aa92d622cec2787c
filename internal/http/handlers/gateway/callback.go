package gateway

import (
	"net/http"

	"github.com/epay-next/internal/http/response"
	"github.com/epay-next/internal/logger"

	"github.com/gin-gonic/gin"
)

// Notify 上游异步回调入口，应答体完全由插件约定决定
// ANY /pay/notify/:trade_no
func (h *Handler) Notify(c *gin.Context) {
	tradeNo := c.Param("trade_no")
	outcome, err := h.trades.HandleNotify(c.Request.Context(), tradeNo, c.Request)
	if err != nil {
		logger.Warnw("upstream_notify_rejected",
			"trade_no", tradeNo,
			"client_ip", c.ClientIP(),
			"error", err,
		)
	}
	response.Ack(c, outcome.Ack)
}

// Return 上游同步跳转入口，验签落账后跳回商户
// ANY /pay/return/:trade_no
func (h *Handler) Return(c *gin.Context) {
	tradeNo := c.Param("trade_no")
	outcome, err := h.trades.HandleReturn(c.Request.Context(), tradeNo, c.Request)
	if err != nil {
		logger.Warnw("upstream_return_rejected",
			"trade_no", tradeNo,
			"client_ip", c.ClientIP(),
			"error", err,
		)
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}
	c.Redirect(http.StatusFound, outcome.RedirectURL)
}
