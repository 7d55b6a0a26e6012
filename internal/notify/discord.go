package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/juju/clock"
	"github.com/juju/retry"
	"golang.org/x/time/rate"
)

const userAgent = "DiscordBot (https://github.com/roach88/sheetwatch, 1.0)"

// DiscordConfig configures the Discord sink.
type DiscordConfig struct {
	// Token is the bot token, without the "Bot " prefix.
	Token string

	// Channels maps logical destinations to channel ids. DestDefault is
	// required; other destinations fall back to it.
	Channels map[Destination]string

	Footer string

	// RatePerSecond caps outgoing requests. Defaults to 1.
	RatePerSecond float64

	// Attempts and Delay bound the retries of one send. Defaults 4 and 1s.
	Attempts int
	Delay    time.Duration

	Clock      clock.Clock
	HTTPClient *http.Client
}

// Discord posts notifications to Discord channels through a REST-only
// discordgo session. No gateway connection is opened.
type Discord struct {
	cfg     DiscordConfig
	session *discordgo.Session
	limiter *rate.Limiter
}

// APIError is a non-2xx response from Discord.
type APIError struct {
	Status int
	Code   int // Discord JSON error code, 0 when absent
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("discord: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether the request may succeed when repeated.
func (e *APIError) Retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// NewDiscord validates cfg and returns a sink.
func NewDiscord(cfg DiscordConfig) (*Discord, error) {
	if cfg.Token == "" {
		return nil, errors.New("discord: token is required")
	}
	if cfg.Channels[DestDefault] == "" {
		return nil, errors.New("discord: default channel is required")
	}
	if cfg.RatePerSecond <= 0 {
		cfg.RatePerSecond = 1
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 4
	}
	if cfg.Delay <= 0 {
		cfg.Delay = time.Second
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.WallClock
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}

	session, err := discordgo.New("Bot " + strings.TrimPrefix(cfg.Token, "Bot "))
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	session.Client = cfg.HTTPClient
	session.UserAgent = userAgent
	// 429s are waited out by the session; everything else goes through
	// the retry policy below.
	session.ShouldRetryOnRateLimit = true
	session.MaxRestRetries = 0

	return &Discord{
		cfg:     cfg,
		session: session,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
	}, nil
}

// Channel resolves a destination to a channel id.
func (d *Discord) Channel(dest Destination) string {
	if id := d.cfg.Channels[dest]; id != "" {
		return id
	}
	return d.cfg.Channels[DestDefault]
}

// Send posts n, retrying server errors.
func (d *Discord) Send(ctx context.Context, n Notification) error {
	channel := d.Channel(n.Destination)
	msg := buildMessage(n, d.cfg.Footer)

	var lastErr error
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			if err := d.limiter.Wait(ctx); err != nil {
				lastErr = err
				return err
			}
			lastErr = d.post(ctx, channel, msg)
			return lastErr
		},
		IsFatalError: func(err error) bool {
			var apiErr *APIError
			if errors.As(err, &apiErr) {
				return !apiErr.Retryable()
			}
			// Transport errors are retried unless the context is done.
			return ctx.Err() != nil
		},
		NotifyFunc: func(err error, attempt int) {
			slog.Warn("discord send failed, retrying",
				"attempt", attempt, "kind", n.Kind, "channel", channel, "error", err)
		},
		Attempts:    d.cfg.Attempts,
		Delay:       d.cfg.Delay,
		BackoffFunc: retry.DoubleDelay,
		MaxDelay:    30 * time.Second,
		Clock:       d.cfg.Clock,
		Stop:        ctx.Done(),
	})
	if err != nil {
		// retry.Call wraps the attempt error; surface the original.
		if lastErr != nil {
			err = lastErr
		}
		return fmt.Errorf("send %s to channel %s: %w", n.Kind, channel, err)
	}
	slog.Debug("discord message sent", "kind", n.Kind, "channel", channel, "entity", n.EntityID)
	return nil
}

func (d *Discord) post(ctx context.Context, channel string, msg *discordgo.MessageSend) error {
	_, err := d.session.ChannelMessageSendComplex(channel, msg, discordgo.WithContext(ctx))
	if err == nil {
		return nil
	}
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		apiErr := &APIError{
			Status: restErr.Response.StatusCode,
			Body:   strings.TrimSpace(string(restErr.ResponseBody)),
		}
		if restErr.Message != nil {
			apiErr.Code = restErr.Message.Code
		}
		return apiErr
	}
	return err
}
