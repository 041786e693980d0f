package notifier

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
)

// DiscordSender sends direct messages. Member ids are Discord user ids.
type DiscordSender struct {
	session *discordgo.Session
}

func NewDiscordSender(session *discordgo.Session) *DiscordSender {
	return &DiscordSender{session: session}
}

func (s *DiscordSender) Name() string { return "discord" }

func (s *DiscordSender) Send(ctx context.Context, to Recipient, text string) error {
	if s.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if to.UserID == "" {
		return ErrNoAddress
	}
	ch, err := s.session.UserChannelCreate(to.UserID, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("open dm channel: %w", err)
	}
	if _, err := s.session.ChannelMessageSend(ch.ID, text, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("send dm: %w", err)
	}
	return nil
}

// DiscordChannel posts to the staff channel.
type DiscordChannel struct {
	session   *discordgo.Session
	channelID string
}

func NewDiscordChannel(session *discordgo.Session, channelID string) *DiscordChannel {
	return &DiscordChannel{
		session:   session,
		channelID: channelID,
	}
}

func (c *DiscordChannel) Post(ctx context.Context, text string) error {
	if c.session == nil {
		return fmt.Errorf("discord session is nil")
	}
	if c.channelID == "" {
		return fmt.Errorf("discord channel ID is empty")
	}
	_, err := c.session.ChannelMessageSend(c.channelID, text, discordgo.WithContext(ctx))
	return err
}
