package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"go.uber.org/zap"

	"github.com/warp/lesson-reconciler/roster"
)

// DiscordNotifier posts the report as a bot message, mentioning the staff
// member. Mentions are restricted to that single user so the channel does
// not ping everyone.
type DiscordNotifier struct {
	APIURL     string
	Token      string
	HTTPClient *http.Client
	Log        *zap.Logger
}

func NewDiscordNotifier(apiURL, token string, log *zap.Logger) *DiscordNotifier {
	return &DiscordNotifier{
		APIURL:     apiURL,
		Token:      token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		Log:        log,
	}
}

type discordMessage struct {
	Content         string                 `json:"content"`
	AllowedMentions discordAllowedMentions `json:"allowed_mentions"`
}

type discordAllowedMentions struct {
	Users []string `json:"users"`
}

func (n *DiscordNotifier) Send(ctx context.Context, staff roster.StaffMember, report Report) error {
	msg := discordMessage{
		Content:         fmt.Sprintf("<@%s> %s", staff.DiscordID, report.Body()),
		AllowedMentions: discordAllowedMentions{Users: []string{staff.DiscordID}},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encode discord message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.APIURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bot "+n.Token)

	resp, err := n.HTTPClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "post report for %s", staff.Name)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return errors.Newf("post report for %s: unexpected status %d: %s",
			staff.Name, resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	n.Log.Info("debt report sent",
		zap.String("staff", staff.Name),
		zap.Int("debtors", len(report.Debtors)))
	return nil
}
