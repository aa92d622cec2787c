package gateway

import (
	"strings"

	"github.com/epay-next/internal/constants"
	"github.com/epay-next/internal/http/response"
	"github.com/epay-next/internal/models"
	"github.com/epay-next/internal/service"

	"github.com/gin-gonic/gin"
)

// Cashier 收银台订单信息
// GET /pay/cashier?token=
func (h *Handler) Cashier(c *gin.Context) {
	order, err := h.orderFromToken(c)
	if err != nil {
		response.Error(c, response.CodeUnauthorized, legacyMessage(err))
		return
	}
	view := orderView(order)
	view["real_money"] = order.RealMoney.String()
	if order.ExpiresAt != nil {
		view["expires_at"] = order.ExpiresAt.Unix()
	}
	response.Success(c, gin.H{"data": view})
}

// CashierDispatch 收银台发起支付：买家选定支付方式后锁通道并向上游下单
// POST /pay/cashier/dispatch
func (h *Handler) CashierDispatch(c *gin.Context) {
	order, err := h.orderFromToken(c)
	if err != nil {
		response.Error(c, response.CodeUnauthorized, legacyMessage(err))
		return
	}
	if order.Status != constants.OrderStatusPending {
		response.Error(c, response.CodeFailure, "订单状态不允许此操作")
		return
	}
	merchant, err := h.merchants.GetActiveByID(order.MerchantID)
	if err != nil {
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}

	// 买家在收银台改选支付方式时走原单复用，重算费率
	if payType := strings.TrimSpace(c.PostForm("type")); payType != "" && payType != order.PayType {
		order, err = h.trades.CreateOrReuseOrder(merchant, service.CreateOrderInput{
			OutTradeNo: order.OutTradeNo,
			PayType:    payType,
			Name:       order.Name,
			Money:      order.Money,
			NotifyURL:  order.NotifyURL,
			ReturnURL:  order.ReturnURL,
			Param:      order.Param,
			ClientIP:   c.ClientIP(),
			SignType:   order.SignType,
			CertInfo:   order.CertInfo,
		})
		if err != nil {
			response.Error(c, response.CodeFailure, legacyMessage(err))
			return
		}
	}

	result, err := h.trades.Dispatch(c.Request.Context(), merchant, order)
	if err != nil {
		response.Error(c, response.CodeFailure, legacyMessage(err))
		return
	}
	_, payType := submitFields(result)
	response.Success(c, gin.H{
		"trade_no": order.TradeNo,
		"pay_type": payType,
		"pay_info": result.Content,
	})
}

func (h *Handler) orderFromToken(c *gin.Context) (*models.Order, error) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		token = strings.TrimSpace(c.PostForm("token"))
	}
	tradeNo, err := h.cashier.ParseToken(token)
	if err != nil {
		return nil, err
	}
	return h.trades.GetOrder(nil, tradeNo, "")
}
