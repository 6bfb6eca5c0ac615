package delivery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/lexserve/api/internal/platform/config"
	"github.com/lexserve/api/internal/services"

	"github.com/lexserve/api/internal/domain"
)

// Mailer sends order completion notifications over SMTP.
type Mailer struct {
	client  *mail.Client
	from    string
	support string
}

// NewMailer builds an SMTP backed dispatcher from the mail configuration.
func NewMailer(cfg config.MailConfig) (*Mailer, error) {
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, errors.New("delivery: mail host is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("delivery: mail from address is required")
	}

	opts := []mail.Option{mail.WithPort(cfg.Port)}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("delivery: smtp client: %w", err)
	}

	return &Mailer{
		client:  client,
		from:    cfg.From,
		support: cfg.SupportAddress,
	}, nil
}

// Dispatch emails the customer about the completed order. Orders whose
// delivery method carries no outbound notification are skipped.
func (m *Mailer) Dispatch(ctx context.Context, order domain.ServiceOrder) error {
	if order.DeliveryMethod == domain.DeliveryMethodNone {
		return nil
	}

	msg := mail.NewMsg()
	if err := msg.From(m.from); err != nil {
		return fmt.Errorf("delivery: from address: %w", err)
	}
	if err := msg.To(order.UserEmail); err != nil {
		return fmt.Errorf("delivery: recipient address: %w", err)
	}
	msg.Subject(subjectFor(order))
	msg.SetBodyString(mail.TypeTextPlain, m.bodyFor(order))

	if err := m.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("delivery: send mail: %w", err)
	}
	return nil
}

var _ services.DeliveryDispatcher = (*Mailer)(nil)

func subjectFor(order domain.ServiceOrder) string {
	switch order.ServiceType {
	case domain.ServiceTypeNotary:
		return fmt.Sprintf("Your notarised document is ready (order %s)", order.ID)
	case domain.ServiceTypeDocumentReview:
		return fmt.Sprintf("Your document review is complete (order %s)", order.ID)
	default:
		return fmt.Sprintf("Your order %s is complete", order.ID)
	}
}

func (m *Mailer) bodyFor(order domain.ServiceOrder) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello,\n\n")
	fmt.Fprintf(&b, "Your order %s (%s) has been completed.\n", order.ID, order.ServiceName)
	fmt.Fprintf(&b, "Amount paid: %s\n", FormatAmount(order.FinalAmount, order.Currency))
	if order.DocumentURL != "" {
		fmt.Fprintf(&b, "\nYour document is available from your orders page.\n")
	}
	if m.support != "" {
		fmt.Fprintf(&b, "\nQuestions? Write to %s.\n", m.support)
	}
	return b.String()
}

// FormatAmount renders a minor unit amount in its currency for human
// readers. The decimal is built from integer arithmetic so large amounts
// never lose paise to floating point rounding.
func FormatAmount(minorUnits int64, cur domain.Currency) string {
	minor := minorUnits
	negative := minor < 0
	if negative {
		minor = -minor
	}
	amount := fmt.Sprintf("%d.%02d", minor/100, minor%100)
	if negative {
		amount = "-" + amount
	}

	unit, err := currency.ParseISO(string(cur))
	if err != nil {
		return amount + " " + string(cur)
	}
	printer := message.NewPrinter(language.English)
	return printer.Sprint(currency.Symbol(unit)) + amount
}
