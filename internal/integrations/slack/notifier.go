package slackbot

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// Notifier posts run summaries to a single channel.
type Notifier struct {
	api     *slack.Client
	channel string
	log     *zap.SugaredLogger
}

func NewNotifier(api *slack.Client, channel string, log *zap.SugaredLogger) *Notifier {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Notifier{api: api, channel: channel, log: log}
}

// New builds a notifier from configuration, or returns nil when Slack is
// not configured.
func New(cfg Config, log *zap.SugaredLogger) *Notifier {
	if !cfg.SlackConfigured() {
		return nil
	}
	api := slack.New(cfg.SlackBotToken, slack.OptionHTTPClient(externalHTTPClient))
	return NewNotifier(api, cfg.SlackChannel, log)
}

func (n *Notifier) Notify(ctx context.Context, text string) error {
	_, ts, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return errors.Wrapf(err, "posting to %s", n.channel)
	}
	n.log.Infow("slack summary posted", "channel", n.channel, "ts", ts)
	return nil
}
