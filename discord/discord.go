// Package discord wraps the Discord REST client used by the face.
package discord

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/codeGROOVE-dev/retry"

	"kilroy-face-discord/pkg/face"
)

// PageLimit is the Discord API maximum history page size.
const PageLimit = 100

// Client wraps a discordgo session. Only the REST surface is used; the
// gateway connection is never opened.
type Client struct {
	session *discordgo.Session
	logger  *slog.Logger
}

// New creates a client authenticated with the given bot token.
func New(token string, logger *slog.Logger) (*Client, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Client.Timeout = 30 * time.Second

	return &Client{
		session: session,
		logger:  logger,
	}, nil
}

// Channel binds the client to a single channel ID.
func (c *Client) Channel(id string) *Channel {
	return &Channel{client: c, id: id}
}

// MemberCount resolves the member count of the guild owning the channel.
func (c *Client) MemberCount(ctx context.Context, channelID string) (int, error) {
	var count int

	err := c.do(ctx, "fetch_member_count", func() error {
		ch, err := c.session.Channel(channelID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch channel: %w", err)
		}
		if ch.GuildID == "" {
			return retry.Unrecoverable(fmt.Errorf("channel %s is not a guild channel", channelID))
		}

		guild, err := c.session.GuildWithCounts(ch.GuildID, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch guild: %w", err)
		}

		count = guild.ApproximateMemberCount
		if count == 0 {
			count = guild.MemberCount
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	c.logger.Info("Guild member count resolved", "channel_id", channelID, "member_count", count)
	return count, nil
}

// do runs one REST call with the shared retry policy. Client errors other
// than rate limits are not retried; discordgo handles 429 waits itself.
func (c *Client) do(ctx context.Context, purpose string, call func() error) error {
	err := retry.Do(
		call,
		retry.Attempts(5),
		retry.Delay(time.Second),
		retry.MaxDelay(30*time.Second),
		retry.MaxJitter(5*time.Second),
		retry.Context(ctx),
		retry.OnRetry(func(n uint, err error) {
			c.logger.Info("Retrying Discord request after error", "purpose", purpose, "attempt", n, "error", err)
		}),
		retry.RetryIf(func(err error) bool {
			return !isClientError(err)
		}),
	)
	if err != nil {
		return fmt.Errorf("%s after retries: %w", purpose, err)
	}
	return nil
}

// isClientError reports whether err is a terminal 4xx REST error.
func isClientError(err error) bool {
	var restErr *discordgo.RESTError
	if !errors.As(err, &restErr) || restErr.Response == nil {
		return false
	}
	code := restErr.Response.StatusCode
	return code >= 400 && code < 500 && code != http.StatusTooManyRequests
}

// IsUnknownMessage reports whether err means the message does not exist.
func IsUnknownMessage(err error) bool {
	var restErr *discordgo.RESTError
	return errors.As(err, &restErr) &&
		restErr.Message != nil &&
		restErr.Message.Code == discordgo.ErrCodeUnknownMessage
}

// Channel is a client bound to one channel ID.
type Channel struct {
	client *Client
	id     string
}

// ID returns the bound channel ID.
func (ch *Channel) ID() string { return ch.id }

// HistoryPage fetches one page of channel history around the given
// snowflake cursors. An empty cursor omits that bound. Bot-authored posts
// are included; filtering them is the scraper's contract.
func (ch *Channel) HistoryPage(ctx context.Context, beforeID, afterID string) ([]*face.Post, error) {
	var page []*face.Post

	err := ch.client.do(ctx, "fetch_history_page", func() error {
		start := time.Now()
		messages, err := ch.client.session.ChannelMessages(
			ch.id, PageLimit, beforeID, afterID, "", discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("fetch messages: %w", err)
		}

		ch.client.logger.Info("History page fetched",
			"channel_id", ch.id,
			"before", beforeID,
			"after", afterID,
			"count", len(messages),
			"duration_ms", time.Since(start).Milliseconds())

		page = page[:0]
		for _, msg := range messages {
			page = append(page, convert(msg, ch.id))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return page, nil
}

// Fetch loads a single post by message ID.
func (ch *Channel) Fetch(ctx context.Context, messageID string) (*face.Post, error) {
	var post *face.Post

	err := ch.client.do(ctx, "fetch_message", func() error {
		msg, err := ch.client.session.ChannelMessage(ch.id, messageID, discordgo.WithContext(ctx))
		if err != nil {
			if IsUnknownMessage(err) {
				return retry.Unrecoverable(fmt.Errorf("fetch message: %w", err))
			}
			return fmt.Errorf("fetch message: %w", err)
		}
		post = convert(msg, ch.id)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return post, nil
}

// Post sends a document to the channel and returns the created message ID.
func (ch *Channel) Post(ctx context.Context, doc *face.Document) (string, error) {
	data := &discordgo.MessageSend{}
	if doc.Text != nil {
		data.Content = doc.Text.Content
	}
	if doc.Image != nil {
		raw, err := base64.URLEncoding.DecodeString(doc.Image.Raw)
		if err != nil {
			return "", fmt.Errorf("decode image payload: %w", err)
		}
		data.Files = append(data.Files, &discordgo.File{
			Name:   doc.Image.Filename,
			Reader: bytes.NewReader(raw),
		})
	}

	var id string
	err := ch.client.do(ctx, "send_message", func() error {
		msg, err := ch.client.session.ChannelMessageSendComplex(ch.id, data, discordgo.WithContext(ctx))
		if err != nil {
			return fmt.Errorf("send message: %w", err)
		}
		id = msg.ID
		return nil
	})
	if err != nil {
		return "", err
	}

	ch.client.logger.Info("Message posted", "channel_id", ch.id, "message_id", id)
	return id, nil
}

// convert maps a Discord message onto the face's post type.
func convert(msg *discordgo.Message, channelID string) *face.Post {
	post := &face.Post{
		ID:        msg.ID,
		ChannelID: channelID,
		Content:   msg.Content,
		Timestamp: msg.Timestamp,
	}

	if msg.Author != nil {
		post.AuthorID = msg.Author.ID
		post.Bot = msg.Author.Bot
	}
	// Webhook and system messages have no bot flag on the author but are
	// still machine-generated.
	if msg.WebhookID != "" {
		post.Bot = true
	}
	if msg.Type != discordgo.MessageTypeDefault && msg.Type != discordgo.MessageTypeReply {
		post.Bot = true
	}

	for _, r := range msg.Reactions {
		if r == nil || r.Emoji == nil {
			continue
		}
		post.Reactions = append(post.Reactions, face.Reaction{
			Emoji: r.Emoji.Name,
			Count: r.Count,
		})
	}

	for _, a := range msg.Attachments {
		if a == nil {
			continue
		}
		post.Images = append(post.Images, face.Image{
			URL:      a.URL,
			Filename: a.Filename,
		})
	}

	return post
}
