// Package digest posts a daily usage summary to a Slack channel.
package digest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/avnova/sqyros/internal/models"
	"github.com/avnova/sqyros/internal/usage"
	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

// DefaultSchedule posts shortly after the UTC day closes.
const DefaultSchedule = "15 0 * * *"

// Poster is the subset of *slack.Client the digest needs.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// NewSlackClient builds a bot client. apiURL is only set in tests.
func NewSlackClient(botToken, apiURL string) *slack.Client {
	var opts []slack.Option
	if apiURL != "" {
		opts = append(opts, slack.OptionAPIURL(apiURL))
	}
	return slack.New(botToken, opts...)
}

// Notifier summarises the previous UTC day of usage_logs.
type Notifier struct {
	ledger  *usage.Ledger
	poster  Poster
	channel string
	now     func() time.Time
}

// NewNotifier builds a Notifier posting to channel.
func NewNotifier(ledger *usage.Ledger, poster Poster, channel string) *Notifier {
	return &Notifier{ledger: ledger, poster: poster, channel: strings.TrimSpace(channel), now: time.Now}
}

// SendOnce posts the digest for the UTC day before now.
func (n *Notifier) SendOnce(ctx context.Context) error {
	if n == nil || n.ledger == nil || n.poster == nil {
		return errors.New("digest: notifier not configured")
	}
	if n.channel == "" {
		return errors.New("digest: channel is required")
	}
	end := n.now().UTC().Truncate(24 * time.Hour)
	start := end.Add(-24 * time.Hour)

	totals, err := n.ledger.Totals(ctx, start, end)
	if err != nil {
		return err
	}
	blocks := Blocks(totals)
	if _, _, errPost := n.poster.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(Fallback(totals), false),
		slack.MsgOptionBlocks(blocks...),
	); errPost != nil {
		return fmt.Errorf("digest: post to slack: %w", errPost)
	}
	log.WithFields(log.Fields{
		"day":      start.Format(time.DateOnly),
		"requests": totals.Requests(),
		"users":    totals.Users,
	}).Info("usage digest posted")
	return nil
}

// Register adds the digest job to scheduler.
func (n *Notifier) Register(ctx context.Context, scheduler *cron.Cron, spec string) error {
	if n == nil || scheduler == nil {
		return nil
	}
	if spec == "" {
		spec = DefaultSchedule
	}
	if _, errAdd := scheduler.AddFunc(spec, func() {
		if errSend := n.SendOnce(ctx); errSend != nil {
			log.WithError(errSend).Warn("usage digest failed")
		}
	}); errAdd != nil {
		return errAdd
	}
	log.Infof("usage digest scheduled (spec=%s channel=%s)", spec, n.channel)
	return nil
}

// Fallback is the plain-text notification body.
func Fallback(t usage.PeriodTotals) string {
	return fmt.Sprintf("Sqyros usage for %s: %d requests from %d users, %s",
		t.Start.Format(time.DateOnly), t.Requests(), t.Users, formatCents(t.CostCents()))
}

// Blocks renders totals as Block Kit blocks.
func Blocks(t usage.PeriodTotals) []slack.Block {
	header := slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType,
		"Sqyros usage for "+t.Start.Format(time.DateOnly), false, false))

	summary := slack.NewSectionBlock(nil, []*slack.TextBlockObject{
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Requests*\n%d", t.Requests()), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*Users*\n%d", t.Users), false, false),
		slack.NewTextBlockObject(slack.MarkdownType, "*Cost*\n"+formatCents(t.CostCents()), false, false),
	}, nil)

	blocks := []slack.Block{header, summary}
	if len(t.Actions) == 0 {
		return append(blocks, slack.NewContextBlock("", slack.NewTextBlockObject(slack.PlainTextType, "No calls booked.", false, false)))
	}

	var lines strings.Builder
	for _, a := range t.Actions {
		fmt.Fprintf(&lines, "• %s on %s: %d calls, %d in / %d out tokens, %s\n",
			actionLabel(a.Action), a.ModelTier, a.Requests, a.InputTokens, a.OutputTokens, formatCents(a.CostCents))
	}
	blocks = append(blocks,
		slack.NewDividerBlock(),
		slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, strings.TrimRight(lines.String(), "\n"), false, false), nil, nil),
	)
	return blocks
}

func actionLabel(action models.ActionType) string {
	switch action {
	case models.ActionGuide:
		return "Guides"
	case models.ActionQuestion:
		return "Questions"
	case models.ActionRoute:
		return "Router"
	default:
		return string(action)
	}
}

func formatCents(cents int64) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}
