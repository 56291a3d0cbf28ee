// Package mailer sends the buyer's receipt email with a generated PDF
// attachment. Sends are at-least-once: a redelivered task simply mails
// the same receipt again.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"github.com/go-pdf/fpdf"
	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/ZeapZeaper/Zeaper-api-sub000/models"
)

// Sender is the SMTP dial-and-send seam, satisfied by gomail.Dialer.
type Sender interface {
	DialAndSend(m ...*gomail.Message) error
}

type Mailer struct {
	sender Sender
	from   string
	log    *zap.Logger
}

func New(host string, port int, user, password, from string, log *zap.Logger) *Mailer {
	return &Mailer{
		sender: gomail.NewDialer(host, port, user, password),
		from:   from,
		log:    log,
	}
}

// NewWithSender exists for tests and alternative transports.
func NewWithSender(sender Sender, from string, log *zap.Logger) *Mailer {
	return &Mailer{sender: sender, from: from, log: log}
}

func (m *Mailer) SendReceipt(_ context.Context, payload models.ReceiptTaskPayload) error {
	if payload.Email == "" {
		return fmt.Errorf("receipt for order %s has no recipient email", payload.OrderID)
	}

	pdf, err := ReceiptPDF(payload)
	if err != nil {
		return fmt.Errorf("generate receipt pdf: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", payload.Email)
	msg.SetHeader("Subject", fmt.Sprintf("Your Zeaper order %s", payload.OrderID))
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hi %s,\n\nThank you for your order %s. Your payment (%s) of %s %.2f was received.\n\nYour receipt is attached.\n",
		payload.FullName, payload.OrderID, payload.Reference, payload.Currency, payload.Total))
	msg.Attach(fmt.Sprintf("receipt-%s.pdf", payload.OrderID), gomail.SetCopyFunc(func(w io.Writer) error {
		_, err := w.Write(pdf)
		return err
	}))

	if err := m.sender.DialAndSend(msg); err != nil {
		return fmt.Errorf("send receipt to %s: %w", payload.Email, err)
	}
	m.log.Info("receipt sent",
		zap.String("order_id", payload.OrderID),
		zap.String("email", payload.Email))
	return nil
}

// ReceiptPDF renders the one-page order receipt.
func ReceiptPDF(payload models.ReceiptTaskPayload) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.Cell(0, 12, "Zeaper - Order Receipt")
	pdf.Ln(16)

	pdf.SetFont("Helvetica", "", 11)
	line := func(label, value string) {
		pdf.SetFont("Helvetica", "B", 11)
		pdf.Cell(45, 8, label)
		pdf.SetFont("Helvetica", "", 11)
		pdf.Cell(0, 8, value)
		pdf.Ln(8)
	}
	line("Order", payload.OrderID)
	line("Reference", payload.Reference)
	line("Customer", payload.FullName)
	line("Total", fmt.Sprintf("%s %.2f", payload.Currency, payload.Total))
	line("Date", time.Now().UTC().Format("2 Jan 2006 15:04 MST"))

	pdf.Ln(8)
	pdf.SetFont("Helvetica", "I", 9)
	pdf.Cell(0, 6, "Thank you for shopping with Zeaper.")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
