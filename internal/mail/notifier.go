package mail

import (
	"bytes"
	"context"
	"html/template"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	gomail "github.com/wneessen/go-mail"

	"presswatch/app/internal/config"
	"presswatch/app/internal/press"
)

// Notifier delivers digests of discovered articles to the configured recipient.
type Notifier interface {
	Send(ctx context.Context, articles []press.Article, subject string) error
}

// SMTPNotifier emails digests over SMTP. Missing credentials turn Send into
// a logged no-op so the pipeline keeps running without email delivery.
type SMTPNotifier struct {
	cfg    config.MailConfig
	brand  string
	logger *logrus.Logger
}

var _ Notifier = (*SMTPNotifier)(nil)

// NewNotifier constructs an SMTP-backed digest notifier.
func NewNotifier(cfg config.MailConfig, brand string, logger *logrus.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, brand: brand, logger: logger}
}

// Configured reports whether SMTP credentials are present.
func (n *SMTPNotifier) Configured() bool {
	return n.cfg.Username != "" && n.cfg.Password != ""
}

// Send renders the digest table and delivers it as one HTML message. An empty
// article list or missing credentials skip delivery without error.
func (n *SMTPNotifier) Send(ctx context.Context, articles []press.Article, subject string) error {
	if !n.Configured() {
		n.logInfo(logrus.Fields{"subject": subject}, "email credentials not configured; skipping digest")
		return nil
	}

	if len(articles) == 0 {
		n.logInfo(logrus.Fields{"subject": subject}, "no articles to send; skipping digest")
		return nil
	}

	body, err := renderDigest(n.brand, articles)
	if err != nil {
		return eris.Wrap(err, "rendering digest body")
	}

	msg := gomail.NewMsg()
	if err := msg.From(n.cfg.Username); err != nil {
		return eris.Wrap(err, "setting sender address")
	}
	if err := msg.To(n.cfg.To); err != nil {
		return eris.Wrap(err, "setting recipient address")
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, body)

	opts := []gomail.Option{
		gomail.WithPort(n.cfg.Port),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.cfg.Username),
		gomail.WithPassword(n.cfg.Password),
	}
	if n.cfg.Port == 465 {
		opts = append(opts, gomail.WithSSL())
	}

	client, err := gomail.NewClient(n.cfg.Host, opts...)
	if err != nil {
		return eris.Wrap(err, "building smtp client")
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return eris.Wrapf(err, "sending digest to %s", n.cfg.To)
	}

	n.logInfo(logrus.Fields{"recipient": n.cfg.To, "articles": len(articles)}, "digest email sent")
	return nil
}

func (n *SMTPNotifier) logInfo(fields logrus.Fields, message string) {
	if n.logger == nil {
		return
	}
	n.logger.WithFields(fields).Info(message)
}

var digestTemplate = template.Must(template.New("digest").Parse(`<html>
  <body>
    <p>Hi,<br><br>
       Here are the new {{.Brand}}-related articles.<br><br>
    </p>
    <table border="1" cellpadding="5" cellspacing="0">
      <tr>
        <th>Newspaper</th>
        <th>Language</th>
        <th>Title</th>
        <th>Publish Date</th>
        <th>URL</th>
      </tr>
{{- range .Articles}}
      <tr>
        <td>{{.Newspaper}}</td>
        <td>{{.Language}}</td>
        <td>{{.Title}}</td>
        <td>{{if .PublishDate}}{{.PublishDate}}{{else}}Unknown{{end}}</td>
        <td><a href="{{.URL}}">{{.URL}}</a></td>
      </tr>
{{- end}}
    </table>
    <br>
    <p>Press monitoring bot.</p>
  </body>
</html>`))

func renderDigest(brand string, articles []press.Article) (string, error) {
	var buf bytes.Buffer

	data := struct {
		Brand    string
		Articles []press.Article
	}{Brand: brand, Articles: articles}

	if err := digestTemplate.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, "executing digest template")
	}

	return buf.String(), nil
}
