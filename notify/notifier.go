// Package notify dispatches order notifications: push events published
// to Kafka for the mobile/web push pipeline, and in-app broadcasts over
// the websocket hub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// Event is the wire shape published to the notification topic.
type Event struct {
	Kind      string          `json:"kind"`
	Audience  string          `json:"audience"` // "shop:<id>", "user:<id>", "admins"
	Body      json.RawMessage `json:"body"`
	CreatedAt time.Time       `json:"created_at"`
}

type Notifier struct {
	producer sarama.SyncProducer
	hub      *Hub
	topic    string
	log      *zap.Logger
}

func NewProducer(broker string) (sarama.SyncProducer, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 5

	producer, err := sarama.NewSyncProducer([]string{broker}, config)
	if err != nil {
		return nil, fmt.Errorf("create kafka producer: %w", err)
	}
	return producer, nil
}

func New(producer sarama.SyncProducer, hub *Hub, topic string, log *zap.Logger) *Notifier {
	return &Notifier{producer: producer, hub: hub, topic: topic, log: log}
}

func (n *Notifier) publish(kind, audience string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", kind, err)
	}
	event := Event{Kind: kind, Audience: audience, Body: raw, CreatedAt: time.Now().UTC()}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event envelope: %w", err)
	}

	partition, offset, err := n.producer.SendMessage(&sarama.ProducerMessage{
		Topic: n.topic,
		Key:   sarama.StringEncoder(audience),
		Value: sarama.ByteEncoder(value),
	})
	if err != nil {
		return fmt.Errorf("publish %s event: %w", kind, err)
	}

	n.hub.Broadcast(audience, value)

	n.log.Info("notification published",
		zap.String("kind", kind),
		zap.String("audience", audience),
		zap.Int32("partition", partition),
		zap.Int64("offset", offset))
	return nil
}

func (n *Notifier) NotifyShop(_ context.Context, payload models.ShopTaskPayload) error {
	return n.publish("order_received", fmt.Sprintf("shop:%d", payload.ShopID), payload)
}

func (n *Notifier) NotifyBuyer(_ context.Context, payload models.BuyerTaskPayload) error {
	return n.publish("order_confirmed", "user:"+payload.UserID, payload)
}

func (n *Notifier) NotifyAdmins(_ context.Context, payload models.AdminTaskPayload) error {
	return n.publish("order_created", "admins", payload)
}

func (n *Notifier) NotifyPayout(_ context.Context, payload models.ShopTaskPayload) error {
	return n.publish("payout_pending", fmt.Sprintf("shop:%d", payload.ShopID), payload)
}
