package report

import (
	"fmt"
	"net/smtp"
	"strings"

	"nomadscout/lib/scrapers/nomadlist"

	"github.com/jordan-wright/email"
)

type Config struct {
	// host:port of the smtp relay; "" disables reporting
	SmtpAddr string   `json:"smtp_addr"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	From     string   `json:"from"`
	To       []string `json:"to"`
}

func (c Config) Enabled() bool {
	return c.SmtpAddr != "" && len(c.To) > 0
}

// SendSummary mails the end-of-run accounting to whoever is on the list.
func SendSummary(cfg Config, summary nomadlist.Summary) error {
	if !cfg.Enabled() {
		return nil
	}

	host := cfg.SmtpAddr
	if i := strings.IndexByte(host, ':'); i >= 0 {
		host = host[:i]
	}

	e := email.NewEmail()
	e.From = cfg.From
	e.To = cfg.To
	e.Subject = fmt.Sprintf("nomadscout crawl: %d/%d cities stored", summary.Succeeded, summary.Total)
	e.Text = []byte(fmt.Sprintf(
		"Crawl finished.\n\nAttempted: %d\nSucceeded: %d\nFailed: %d\n",
		summary.Total, summary.Succeeded, summary.Failed,
	))

	var auth smtp.Auth
	if cfg.Username != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return e.Send(cfg.SmtpAddr, auth)
}
