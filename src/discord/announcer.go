// Package discord posts ledger events to a Discord channel.
package discord

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"github.com/stake-plus/ai-gov/src/data"
	"github.com/stake-plus/ai-gov/src/gov"
	"github.com/stake-plus/ai-gov/src/ledger"
	"github.com/stake-plus/ai-gov/src/logging"
)

const (
	readCount    = 10
	readBlock    = 5 * time.Second
	retryBackoff = time.Second
)

// Sender is the part of *discordgo.Session the announcer uses.
type Sender interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Source yields stream events after lastID.
type Source interface {
	Read(ctx context.Context, lastID string, count int64, block time.Duration) ([]data.StreamEvent, error)
}

type Options struct {
	Sender      Sender
	Source      Source
	ChannelID   string
	FrontendURL string
	Logger      *zap.Logger
	// StartID is the stream id to read after. "$" means only new events.
	StartID string
}

// Announcer follows the event stream and announces new and executed
// proposals.
type Announcer struct {
	sender      Sender
	source      Source
	channelID   string
	frontendURL string
	log         *zap.Logger
	lastID      string
	block       time.Duration
}

func NewAnnouncer(opts Options) *Announcer {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.StartID == "" {
		opts.StartID = "$"
	}
	return &Announcer{
		sender:      opts.Sender,
		source:      opts.Source,
		channelID:   opts.ChannelID,
		frontendURL: strings.TrimRight(opts.FrontendURL, "/"),
		log:         opts.Logger.Named("discord"),
		lastID:      opts.StartID,
		block:       readBlock,
	}
}

// NewSession opens a bot session for token.
func NewSession(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = discordgo.IntentsGuilds
	if err := s.Open(); err != nil {
		return nil, fmt.Errorf("open discord session: %w", err)
	}
	return s, nil
}

// Run reads the stream until ctx is done.
func (a *Announcer) Run(ctx context.Context) error {
	a.log.Info("announcer started", zap.String("channel", a.channelID))
	for {
		if err := a.poll(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			a.log.Warn("read stream", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(retryBackoff):
			}
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (a *Announcer) poll(ctx context.Context) error {
	events, err := a.source.Read(ctx, a.lastID, readCount, a.block)
	if err != nil {
		return err
	}
	for _, ev := range events {
		a.lastID = ev.ID
		embed := a.embedFor(ev.Event)
		if embed == nil {
			continue
		}
		if _, err := a.sender.ChannelMessageSendEmbed(a.channelID, embed); err != nil {
			if logging.IsRateLimit(err) {
				a.log.Warn("discord rate limited", zap.String("event", ev.ID))
			} else {
				a.log.Error("send embed", zap.String("event", ev.ID), zap.Error(err))
			}
		}
	}
	return nil
}

func (a *Announcer) embedFor(e ledger.Event) *discordgo.MessageEmbed {
	var title string
	switch e.Type {
	case ledger.EventProposalCreated:
		title = fmt.Sprintf("New proposal #%d: %s", e.ProposalID, e.Title)
	case ledger.EventProposalExecuted:
		title = fmt.Sprintf("Proposal #%d executed: %s", e.ProposalID, e.Title)
	default:
		return nil
	}

	band := gov.BandFor(e.RiskScore)
	desc := fmt.Sprintf("Category: %s\nRisk: %d/10 (%s)", e.Category, e.RiskScore, band)
	if e.Summary != "" {
		desc = truncate(e.Summary, 3500) + "\n\n" + desc
	}
	embed := &discordgo.MessageEmbed{
		Title:       truncate(title, 256),
		Description: WrapURLsNoEmbed(desc),
		Color:       bandColor(band),
		Timestamp:   e.At.UTC().Format(time.RFC3339),
		Footer:      &discordgo.MessageEmbedFooter{Text: "AI Governance"},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "By", Value: shortAddress(e.Actor), Inline: true},
		},
	}
	if a.frontendURL != "" {
		embed.URL = fmt.Sprintf("%s/proposals/%d", a.frontendURL, e.ProposalID)
	}
	return embed
}

func bandColor(b gov.RiskBand) int {
	switch b {
	case gov.RiskLow:
		return 0x2ecc71
	case gov.RiskMedium:
		return 0xf1c40f
	default:
		return 0xe74c3c
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
