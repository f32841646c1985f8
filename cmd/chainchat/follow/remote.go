package followcmder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/papercomputeco/chainchat/api"
	"github.com/papercomputeco/chainchat/pkg/cliui"
	"github.com/papercomputeco/chainchat/pkg/conversation"
	"github.com/papercomputeco/chainchat/pkg/sse"
)

// followRemote streams the conversation from a chainchat API server. It
// returns nil when the server ends the stream or ctx is cancelled.
func (c *followCommander) followRemote(ctx context.Context, w io.Writer, name string, id conversation.ID, sink conversation.Sink) error {
	from, resumed, err := c.start(ctx, id, nil)
	if err != nil {
		return err
	}

	query := url.Values{}
	if resumed {
		query.Set("from", from.String())
	} else {
		query.Set("rewind", strconv.FormatUint(uint64(c.limit), 10))
	}

	target := fmt.Sprintf("%s/conversations/%s/follow?%s",
		strings.TrimRight(c.apiTarget, "/"),
		url.PathEscape(name),
		query.Encode(),
	)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return fmt.Errorf("building follow request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return nil
		}
		return fmt.Errorf("connecting to %s: %w", c.apiTarget, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var body api.ErrorResponse
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error != "" {
			return fmt.Errorf("following %q: HTTP %d: %s", name, resp.StatusCode, body.Error)
		}
		return fmt.Errorf("following %q: HTTP %d", name, resp.StatusCode)
	}

	fmt.Fprintf(w, "%s %s %s\n",
		cliui.KeyStyle.Render("Following"),
		cliui.ValueStyle.Render(name),
		cliui.DimStyle.Render("via "+c.apiTarget),
	)

	reader := sse.NewReader(resp.Body)
	for {
		ev, err := reader.Next()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("reading follow stream: %w", err)
		}
		if ev == nil {
			return nil
		}

		switch ev.Type {
		case api.EventMessage, "":
			var msg conversation.Message
			if err := json.Unmarshal([]byte(ev.Data), &msg); err != nil {
				return fmt.Errorf("decoding streamed message: %w", err)
			}
			if err := sink.Deliver(ctx, msg); err != nil {
				return fmt.Errorf("delivering message at %d: %w", msg.Pointer, err)
			}

		case api.EventError:
			return fmt.Errorf("following %q: server reported: %s", name, ev.Data)

		case api.EventEnd:
			c.logger.Debug("follow stream ended by server", "conversation", name, "sent", ev.Data)
			return nil
		}
	}
}
