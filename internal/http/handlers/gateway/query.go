package gateway

import (
	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/http/response"
	"github.com/epay-next/internal/models"

	"github.com/gin-gonic/gin"
)

// Query 订单查询，两代签名均可
// GET /api/pay/query
func (h *Handler) Query(c *gin.Context) {
	params := collectParams(c)
	merchant, _, err := h.authenticate(params)
	if err != nil {
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}

	order, err := h.trades.GetOrder(merchant, params["trade_no"], params["out_trade_no"])
	if err != nil {
		response.Error(c, response.CodeNotFound, legacyMessage(err))
		return
	}
	response.Success(c, gin.H{"data": orderView(order)})
}

func orderView(order *models.Order) gin.H {
	view := gin.H{
		"trade_no":     order.TradeNo,
		"out_trade_no": order.OutTradeNo,
		"type":         order.PayType,
		"name":         order.Name,
		"money":        order.Money.String(),
		"status":       order.Status,
	}
	if order.Status == constants.OrderStatusPaid {
		view["api_trade_no"] = order.ApiTradeNo
		view["buyer"] = order.Buyer
		if order.PaidAt != nil {
			view["paid_at"] = order.PaidAt.Unix()
		}
	}
	return view
}
