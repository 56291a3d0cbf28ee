package models

import "encoding/json"

type TaskType string

const (
	TaskNotifyShop     TaskType = "notify_shop"
	TaskNotifyBuyer    TaskType = "notify_buyer"
	TaskSendReceipt    TaskType = "send_receipt"
	TaskNotifyAdmins   TaskType = "notify_admins"
	TaskCreditPoints   TaskType = "credit_points"
	TaskMarkHasOrdered TaskType = "mark_has_ordered"
	TaskVendorPayout   TaskType = "vendor_payout"
)

// WorkerTask is an ephemeral side-effect instruction carried inside a
// queue job. It is never persisted beyond the queue's retention window.
type WorkerTask struct {
	Type    TaskType        `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// NewWorkerTask marshals payload into a task. Payload types below are
// the only shapes that ever cross the queue.
func NewWorkerTask(taskType TaskType, payload any) (WorkerTask, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return WorkerTask{}, err
	}
	return WorkerTask{Type: taskType, Payload: raw}, nil
}

type ShopTaskPayload struct {
	ShopID    uint    `json:"shop_id"`
	OrderID   string  `json:"order_id"`
	ItemCount int     `json:"item_count"`
	Revenue   float64 `json:"revenue"`
}

type BuyerTaskPayload struct {
	UserID  string `json:"user_id"`
	OrderID string `json:"order_id"`
	Email   string `json:"email"`
}

type ReceiptTaskPayload struct {
	UserID    string  `json:"user_id"`
	OrderID   string  `json:"order_id"`
	Reference string  `json:"reference"`
	Email     string  `json:"email"`
	FullName  string  `json:"full_name"`
	Total     float64 `json:"total"`
	Currency  string  `json:"currency"`
}

type AdminTaskPayload struct {
	OrderID   string  `json:"order_id"`
	Reference string  `json:"reference"`
	Total     float64 `json:"total"`
}

type PointsTaskPayload struct {
	UserID string `json:"user_id"`
	Points int    `json:"points"`
}
