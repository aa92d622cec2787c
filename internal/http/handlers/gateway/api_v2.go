package gateway

import (
	"time"

	"github.com/epay-next/internal/http/response"
	"github.com/epay-next/internal/models"

	"github.com/gin-gonic/gin"
)

// CreateV2 v2 下单：带 timestamp 的请求默认 RSA 验签
// POST /api/pay/create
func (h *Handler) CreateV2(c *gin.Context) {
	params := collectParams(c)
	merchant, signType, err := h.authenticate(params)
	if err != nil {
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}
	money, err := models.NewMoneyFromString(params["money"])
	if err != nil {
		response.Error(c, response.CodeBadRequest, "金额格式错误")
		return
	}

	order, err := h.trades.CreateOrReuseOrder(merchant, createOrderInput(c, params, money, signType))
	if err != nil {
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}
	result, err := h.trades.Dispatch(c.Request.Context(), merchant, order)
	if err != nil {
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}

	_, payType := submitFields(result)
	response.Success(c, gin.H{
		"trade_no":  order.TradeNo,
		"pay_type":  payType,
		"pay_info":  result.Content,
		"timestamp": time.Now().Unix(),
	})
}
