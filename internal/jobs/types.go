package jobs

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"

	"github.com/briangreenhill/tradedesk/internal/domain"
)

const TaskOrderPlaced = "journal:order_placed"

// QueueJournal is the asynq queue journal tasks are enqueued on.
const QueueJournal = "journal"

type OrderPlacedPayload struct {
	StockCode string    `json:"stock_code"`
	OrderType string    `json:"order_type"`
	OrderDvsn string    `json:"order_dvsn"`
	Quantity  int64     `json:"quantity"`
	Price     float64   `json:"price"`
	OrderNo   string    `json:"order_no"`
	OrgNo     string    `json:"org_no"`
	OrderTime string    `json:"order_time"`
	Message   string    `json:"message"`
	PlacedAt  time.Time `json:"placed_at"`
}

// NewOrderPlaced builds the payload for an accepted order.
func NewOrderPlaced(o domain.Order, res *domain.OrderResult, at time.Time) OrderPlacedPayload {
	p := OrderPlacedPayload{
		StockCode: o.StockCode,
		OrderType: o.OrderType,
		OrderDvsn: o.OrderDvsn,
		Quantity:  o.Quantity,
		Price:     o.Price,
		PlacedAt:  at.UTC(),
	}
	if res != nil {
		p.OrderNo = res.OrderNo
		p.OrgNo = res.OrgNo
		p.OrderTime = res.OrderTime
		p.Message = res.Message
	}
	return p
}

func NewOrderPlacedTask(p OrderPlacedPayload) (*asynq.Task, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskOrderPlaced, b, asynq.Queue(QueueJournal), asynq.MaxRetry(5)), nil
}
