package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// Notifier dispatches push and in-app notifications.
type Notifier interface {
	NotifyShop(ctx context.Context, payload models.ShopTaskPayload) error
	NotifyBuyer(ctx context.Context, payload models.BuyerTaskPayload) error
	NotifyAdmins(ctx context.Context, payload models.AdminTaskPayload) error
	NotifyPayout(ctx context.Context, payload models.ShopTaskPayload) error
}

// Mailer sends the buyer's receipt email with the generated PDF.
type Mailer interface {
	SendReceipt(ctx context.Context, payload models.ReceiptTaskPayload) error
}

// BuyerUpdater applies buyer-side bookkeeping (points, first-order flag).
type BuyerUpdater interface {
	CreditPoints(ctx context.Context, userID string, points int) error
	MarkHasOrdered(ctx context.Context, userID string) error
}

// Handlers wires every task type to its collaborator.
func Handlers(notifier Notifier, mailer Mailer, buyers BuyerUpdater) map[models.TaskType]Handler {
	return map[models.TaskType]Handler{
		models.TaskNotifyShop: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.ShopTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode shop payload: %w", err)
			}
			return notifier.NotifyShop(ctx, payload)
		},
		models.TaskNotifyBuyer: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.BuyerTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode buyer payload: %w", err)
			}
			return notifier.NotifyBuyer(ctx, payload)
		},
		models.TaskSendReceipt: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.ReceiptTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode receipt payload: %w", err)
			}
			return mailer.SendReceipt(ctx, payload)
		},
		models.TaskNotifyAdmins: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.AdminTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode admin payload: %w", err)
			}
			return notifier.NotifyAdmins(ctx, payload)
		},
		models.TaskCreditPoints: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.PointsTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode points payload: %w", err)
			}
			return buyers.CreditPoints(ctx, payload.UserID, payload.Points)
		},
		models.TaskMarkHasOrdered: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.BuyerTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode buyer payload: %w", err)
			}
			return buyers.MarkHasOrdered(ctx, payload.UserID)
		},
		models.TaskVendorPayout: func(ctx context.Context, raw json.RawMessage) error {
			var payload models.ShopTaskPayload
			if err := json.Unmarshal(raw, &payload); err != nil {
				return fmt.Errorf("decode payout payload: %w", err)
			}
			return notifier.NotifyPayout(ctx, payload)
		},
	}
}
