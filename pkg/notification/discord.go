package notification

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"go.uber.org/ratelimit"

	"github.com/dupelink/dupelink/pkg/config"
	"github.com/dupelink/dupelink/pkg/httputils"
)

const (
	maxEmbedsPerMessage = 10
	maxCharactersPerMsg = 6000

	// hardcoded limit of fields to avoid hammering the api
	maxTotalFields = 250
)

type DiscordMessage struct {
	Content interface{}    `json:"content"`
	Embeds  []DiscordEmbed `json:"embeds,omitempty"`
}

type DiscordEmbed struct {
	Title       string               `json:"title"`
	Description string               `json:"description"`
	Color       int                  `json:"color"`
	Fields      []DiscordEmbedsField `json:"fields,omitempty"`
	Footer      DiscordEmbedsFooter  `json:"footer,omitempty"`
	Timestamp   time.Time            `json:"timestamp"`
}

type DiscordEmbedsFooter struct {
	Text string `json:"text"`
}

type DiscordEmbedsField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type EmbedColors int

const (
	LIGHT_BLUE EmbedColors = 0x58b9ff
	RED        EmbedColors = 0xed4245
	GREEN      EmbedColors = 0x57f287
	GRAY       EmbedColors = 0x99aab5
)

type discordSender struct {
	log    *logrus.Entry
	config config.NotificationsConfig

	httpClient *http.Client
}

func (d *discordSender) Name() string {
	return "discord"
}

func NewDiscordSender(log *logrus.Entry, config config.NotificationsConfig) Sender {
	return &discordSender{
		log:    log.WithField("sender", "discord"),
		config: config,
		httpClient: httputils.NewRetryableHttpClient(30*time.Second, ratelimit.New(1, ratelimit.WithoutSlack), log).
			StandardClient(),
	}
}

func (d *discordSender) Send(ctx context.Context, title string, description string, runTime time.Duration, fields []Field, dryRun bool) error {
	if len(fields) == 0 && d.config.SkipEmptyRun {
		return nil
	}

	if dryRun {
		title = title + " (Dry Run)"
	}

	batches, err := batchEmbeds(d.buildEmbeds(title, description, runTime, fields, dryRun))
	if err != nil {
		return err
	}

	for i, batch := range batches {
		jsonData, err := json.Marshal(DiscordMessage{Embeds: batch})
		if err != nil {
			return errors.Wrap(err, "could not marshal json request for a message chunk")
		}

		if err := d.sendRequest(ctx, jsonData); err != nil {
			return errors.Wrapf(err, "failed to send message %d/%d to Discord", i+1, len(batches))
		}

		d.log.Debugf("Sent Discord message %d/%d (%d embeds, %d chars).", i+1, len(batches), len(batch), len(jsonData))
	}

	return nil
}

// buildEmbeds renders one embed per field followed by a summary, or only the
// summary when details are off or there are too many fields.
func (d *discordSender) buildEmbeds(title string, description string, runTime time.Duration, fields []Field, dryRun bool) []DiscordEmbed {
	var (
		embeds    []DiscordEmbed
		timestamp = time.Now()
		rt        = runTime.Truncate(time.Millisecond).String()
	)

	summaryColor := LIGHT_BLUE
	if dryRun {
		summaryColor = GRAY
	}

	if len(fields) == 0 || len(fields) > maxTotalFields || !d.config.Detailed {
		return []DiscordEmbed{{
			Title:       title,
			Description: description,
			Color:       int(summaryColor),
			Footer:      DiscordEmbedsFooter{Text: d.buildFooter(0, len(fields), rt)},
			Timestamp:   timestamp,
		}}
	}

	for i, field := range fields {
		color := GREEN
		if field.Failed {
			color = RED
		}

		embed := DiscordEmbed{
			Title:     title,
			Color:     int(color),
			Fields:    d.parseFieldValueToInlineFields(field.Value),
			Footer:    DiscordEmbedsFooter{Text: d.buildFooter(i+1, len(fields), rt)},
			Timestamp: timestamp,
		}
		if field.Name != "" {
			embed.Description = fmt.Sprintf("**%s**", field.Name)
		}

		embeds = append(embeds, embed)
	}

	return append(embeds, DiscordEmbed{
		Title:       fmt.Sprintf("%s - Summary", title),
		Description: description,
		Color:       int(summaryColor),
		Footer:      DiscordEmbedsFooter{Text: d.buildFooter(0, 0, rt)},
		Timestamp:   timestamp,
	})
}

// batchEmbeds splits embeds into messages within Discord's embed and size limits.
func batchEmbeds(embeds []DiscordEmbed) ([][]DiscordEmbed, error) {
	var (
		batches      [][]DiscordEmbed
		currentBatch []DiscordEmbed
		currentChars int
	)

	for _, e := range embeds {
		jsonData, err := json.Marshal(e)
		if err != nil {
			return nil, errors.Wrap(err, "failed to calculate embed size for batching")
		}

		if len(currentBatch) >= maxEmbedsPerMessage || (len(currentBatch) > 0 && currentChars+len(jsonData) > maxCharactersPerMsg) {
			batches = append(batches, currentBatch)
			currentBatch = nil
			currentChars = 0
		}

		currentBatch = append(currentBatch, e)
		currentChars += len(jsonData)
	}

	if len(currentBatch) > 0 {
		batches = append(batches, currentBatch)
	}

	return batches, nil
}

func (d *discordSender) CanSend() bool {
	return d.config.Service.Discord != ""
}

func (d *discordSender) sendRequest(ctx context.Context, jsonData []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.config.Service.Discord, bytes.NewReader(jsonData))
	if err != nil {
		return errors.Wrap(err, "could not create request")
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := d.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "client request error")
	}
	defer res.Body.Close()

	d.log.Tracef("Discord response status: %d", res.StatusCode)

	if res.StatusCode != http.StatusOK && res.StatusCode != http.StatusNoContent {
		body, readErr := io.ReadAll(bufio.NewReader(res.Body))
		if readErr != nil {
			return errors.Wrap(readErr, "could not read body")
		}

		return errors.Errorf("unexpected status: %v body: %v", res.StatusCode, string(body))
	}

	d.log.Debug("Notification successfully sent to discord")
	return nil
}

// BuildField constructs a Field based on the provided action and build options.
func (d *discordSender) BuildField(action Action, opt BuildOptions) Field {
	switch action {
	case ActionLink:
		return d.buildLinkField(opt)
	case ActionFailure:
		return d.buildFailureField(opt)
	}

	return Field{}
}

func (d *discordSender) buildLinkField(opt BuildOptions) Field {
	var inlineFields []DiscordEmbedsField

	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Mode",
		Value:  opt.Mode,
		Inline: true,
	})
	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Size",
		Value:  humanize.IBytes(uint64(opt.Size)),
		Inline: true,
	})
	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Source",
		Value:  opt.Source,
		Inline: false,
	})

	// Serialize to JSON to store in the field value
	jsonData, _ := json.Marshal(inlineFields)

	return Field{
		Name:  opt.Destination,
		Value: string(jsonData),
	}
}

func (d *discordSender) buildFailureField(opt BuildOptions) Field {
	var inlineFields []DiscordEmbedsField

	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Size",
		Value:  humanize.IBytes(uint64(opt.Size)),
		Inline: true,
	})
	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Source",
		Value:  opt.Source,
		Inline: false,
	})
	inlineFields = append(inlineFields, DiscordEmbedsField{
		Name:   "Reason",
		Value:  opt.Reason,
		Inline: false,
	})

	jsonData, _ := json.Marshal(inlineFields)

	return Field{
		Name:   opt.Destination,
		Value:  string(jsonData),
		Failed: true,
	}
}

func (d *discordSender) parseFieldValueToInlineFields(value string) []DiscordEmbedsField {
	var fields []DiscordEmbedsField

	if err := json.Unmarshal([]byte(value), &fields); err != nil {
		d.log.WithError(err).Error("Failed to parse field value as JSON")
		return []DiscordEmbedsField{}
	}

	return fields
}

func (d *discordSender) buildFooter(progress int, totalFields int, runTime string) string {
	if totalFields == 0 {
		return fmt.Sprintf("Started: %s ago", runTime)
	}

	return fmt.Sprintf("Progress: %d/%d | Started: %s ago", progress, totalFields, runTime)
}
