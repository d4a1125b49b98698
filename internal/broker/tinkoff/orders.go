package tinkoff

import (
	"context"
	"fmt"

	"github.com/russianinvestments/invest-api-go-sdk/investgo"
	pb "github.com/russianinvestments/invest-api-go-sdk/proto"

	"github.com/camuig/quorum-trader/internal/broker"
)

func (c *Client) SubmitOrder(ctx context.Context, symbol string, side broker.Side, quantity int64) (*broker.OrderResult, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("order quantity must be positive, got %d", quantity)
	}

	uid, err := c.resolveUID(symbol)
	if err != nil {
		return nil, err
	}

	direction := pb.OrderDirection_ORDER_DIRECTION_BUY
	if side == broker.SideSell {
		direction = pb.OrderDirection_ORDER_DIRECTION_SELL
	}

	orderID := investgo.CreateUid()

	var resp *investgo.PostOrderResponse

	if c.cfg.IsSandbox() {
		sandbox := c.client.NewSandboxServiceClient()
		resp, err = sandbox.PostSandboxOrder(&investgo.PostOrderRequest{
			InstrumentId: uid,
			Quantity:     quantity,
			Direction:    direction,
			AccountId:    c.AccountID(),
			OrderType:    pb.OrderType_ORDER_TYPE_MARKET,
			OrderId:      orderID,
		})
	} else {
		orders := c.client.NewOrdersServiceClient()
		req := &investgo.PostOrderRequestShort{
			InstrumentId: uid,
			Quantity:     quantity,
			AccountId:    c.AccountID(),
			OrderType:    pb.OrderType_ORDER_TYPE_MARKET,
			OrderId:      orderID,
		}
		if side == broker.SideSell {
			resp, err = orders.Sell(req)
		} else {
			resp, err = orders.Buy(req)
		}
	}

	if err != nil {
		return nil, fmt.Errorf("%s order for %s: %w", side, symbol, err)
	}

	result := &broker.OrderResult{
		OrderID:   resp.GetOrderId(),
		Accepted:  resp.GetLotsExecuted() > 0,
		FilledQty: resp.GetLotsExecuted(),
	}
	if ep := resp.GetExecutedOrderPrice(); ep != nil {
		result.FillPrice = ep.ToFloat()
	}

	return result, nil
}
