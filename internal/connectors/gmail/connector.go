package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"invoicemail/internal"
	"invoicemail/internal/config"
)

const (
	defaultMaxMessages = 100
	maxPageSize        = 500
)

type Connector struct {
	service *gmail.Service
	limiter *RateLimiter
	sleep   func(context.Context, time.Duration) error
}

func NewConnector(ctx context.Context, cfg config.Config) (*Connector, error) {
	tokenSource, err := TokenSource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, option.WithTokenSource(tokenSource))
	if err != nil {
		return nil, err
	}
	return newConnector(svc, cfg.GmailRateLimitRPS), nil
}

func newConnector(svc *gmail.Service, rps int) *Connector {
	return &Connector{service: svc, limiter: NewRateLimiter(rps), sleep: sleepContext}
}

// FetchInbox lists messages matching the label and search query, following
// page tokens until req.Max ids are collected, then downloads each one raw.
func (c *Connector) FetchInbox(ctx context.Context, req internal.FetchRequest) ([]internal.FetchedMailMessage, error) {
	ids, err := c.listMessageIDs(ctx, req)
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedMailMessage, 0, len(ids))
	for i, id := range ids {
		log.Info().Int("n", i+1).Int("of", len(ids)).Str("id", id).Msg("fetching gmail message")
		msg, ok, err := c.fetchMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

func (c *Connector) listMessageIDs(ctx context.Context, req internal.FetchRequest) ([]string, error) {
	max := req.Max
	if max <= 0 {
		max = defaultMaxMessages
	}

	list := c.service.Users.Messages.List("me")
	if req.Label != "" {
		list = list.LabelIds(req.Label)
	}
	if req.Query != "" {
		list = list.Q(req.Query)
	}

	ids := make([]string, 0, max)
	pageToken := ""
	for len(ids) < max {
		pageSize := max - len(ids)
		if pageSize > maxPageSize {
			pageSize = maxPageSize
		}
		list = list.MaxResults(int64(pageSize))
		if pageToken != "" {
			list = list.PageToken(pageToken)
		}

		var resp *gmail.ListMessagesResponse
		err := c.call(ctx, "messages.list", func() error {
			var err error
			resp, err = list.Context(ctx).Do()
			return err
		})
		if err != nil {
			return nil, fmt.Errorf("list gmail messages: %w", err)
		}

		for _, m := range resp.Messages {
			if m.Id == "" {
				continue
			}
			ids = append(ids, m.Id)
			if len(ids) >= max {
				break
			}
		}
		if resp.NextPageToken == "" {
			break
		}
		pageToken = resp.NextPageToken
	}
	return ids, nil
}

func (c *Connector) fetchMessage(ctx context.Context, id string) (internal.FetchedMailMessage, bool, error) {
	var rawResp, metaResp *gmail.Message
	err := c.call(ctx, "messages.get", func() error {
		var err error
		rawResp, err = c.service.Users.Messages.Get("me", id).Format("raw").Context(ctx).Do()
		return err
	})
	if err != nil {
		return internal.FetchedMailMessage{}, false, fmt.Errorf("get gmail message %s: %w", id, err)
	}
	if rawResp.Raw == "" {
		return internal.FetchedMailMessage{}, false, nil
	}

	err = c.call(ctx, "messages.get", func() error {
		var err error
		metaResp, err = c.service.Users.Messages.Get("me", id).Format("metadata").MetadataHeaders("Subject", "From", "Date", "Message-ID").Context(ctx).Do()
		return err
	})
	if err != nil {
		return internal.FetchedMailMessage{}, false, fmt.Errorf("get gmail metadata %s: %w", id, err)
	}

	rawBytes, err := decodeBase64URL(rawResp.Raw)
	if err != nil {
		return internal.FetchedMailMessage{}, false, err
	}

	headers := map[string]string{}
	if metaResp.Payload != nil {
		for _, h := range metaResp.Payload.Headers {
			headers[strings.ToLower(h.Name)] = h.Value
		}
	}

	received := time.Now().UTC().Format(time.RFC3339)
	if metaResp.InternalDate > 0 {
		received = time.UnixMilli(metaResp.InternalDate).UTC().Format(time.RFC3339)
	} else if dateHeader := headers["date"]; dateHeader != "" {
		if t, err := mailDate(dateHeader); err == nil {
			received = t.UTC().Format(time.RFC3339)
		}
	}

	messageID := headers["message-id"]
	if messageID == "" {
		messageID = id
	}

	return internal.FetchedMailMessage{
		Provider:   "gmail",
		MessageID:  messageID,
		Subject:    headers["subject"],
		From:       headers["from"],
		ReceivedAt: received,
		Raw:        rawBytes,
	}, true, nil
}

func decodeBase64URL(input string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	decoded, err = base64.URLEncoding.DecodeString(input)
	if err == nil {
		return decoded, nil
	}
	return nil, fmt.Errorf("decode gmail raw payload: %w", err)
}

func mailDate(value string) (time.Time, error) {
	layouts := []string{time.RFC1123Z, time.RFC1123, time.RFC822Z, time.RFC822, time.RFC850, time.ANSIC}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, nil
		}
	}
	return time.Time{}, fmt.Errorf("unsupported date format")
}
