package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
)

type probeOptions struct {
	baseURL        string
	sessionID      string
	turns          int
	interTurnDelay time.Duration
	turnTimeout    time.Duration
	texts          []string
	verbose        bool
}

type probeFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Code      string          `json:"code,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Error     string          `json:"error,omitempty"`
	Response  json.RawMessage `json:"response,omitempty"`
}

type probeResult struct {
	latencies []time.Duration
	fallbacks int
	errors    int
}

var defaultProbeTexts = []string{
	"I need 5000 USB-C cables",
	"1,000-10,000 units",
	"Within a month",
	"Edit",
}

var probeOpts probeOptions

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Replay chat turns against a running server and report latency",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if err := probeOpts.normalize(); err != nil {
			return err
		}
		res, err := runProbe(cmd.Context(), probeOpts, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		printProbeSummary(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	f := probeCmd.Flags()
	f.StringVar(&probeOpts.baseURL, "base-url", "http://127.0.0.1:8080", "server base URL")
	f.StringVar(&probeOpts.sessionID, "session-id", "", "session id (random when empty)")
	f.IntVar(&probeOpts.turns, "turns", 4, "number of turns to replay")
	f.DurationVar(&probeOpts.interTurnDelay, "inter-turn", 150*time.Millisecond, "delay between turns")
	f.DurationVar(&probeOpts.turnTimeout, "turn-timeout", 45*time.Second, "timeout waiting for each reply")
	f.StringSliceVar(&probeOpts.texts, "text", nil, "user messages to cycle through (repeatable)")
	f.BoolVar(&probeOpts.verbose, "verbose", true, "print each reply")
}

func (o *probeOptions) normalize() error {
	o.baseURL = strings.TrimRight(strings.TrimSpace(o.baseURL), "/")
	if o.baseURL == "" {
		return fmt.Errorf("base-url is required")
	}
	if o.turns <= 0 {
		return fmt.Errorf("turns must be > 0")
	}
	if o.turnTimeout < time.Second {
		o.turnTimeout = time.Second
	}
	if o.interTurnDelay < 0 {
		o.interTurnDelay = 0
	}
	if strings.TrimSpace(o.sessionID) == "" {
		o.sessionID = "probe-" + uuid.NewString()
	}
	var texts []string
	for _, t := range o.texts {
		if t = strings.TrimSpace(t); t != "" {
			texts = append(texts, t)
		}
	}
	if len(texts) == 0 {
		texts = append([]string(nil), defaultProbeTexts...)
	}
	o.texts = texts
	return nil
}

func wsURLForSession(baseURL, sessionID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/v1/chat/ws"
	q := u.Query()
	q.Set("session_id", sessionID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func runProbe(ctx context.Context, opts probeOptions, out io.Writer) (probeResult, error) {
	wsURL, err := wsURLForSession(opts.baseURL, opts.sessionID)
	if err != nil {
		return probeResult{}, fmt.Errorf("build ws URL: %w", err)
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return probeResult{}, fmt.Errorf("open websocket: %w", err)
	}
	defer conn.Close()

	if opts.verbose {
		fmt.Fprintf(out, "probe: session=%s turns=%d\n", opts.sessionID, opts.turns)
	}

	var res probeResult
	for i := 0; i < opts.turns; i++ {
		text := opts.texts[i%len(opts.texts)]
		start := time.Now()
		if err := conn.WriteJSON(map[string]string{"type": "user_turn", "message": text}); err != nil {
			return res, fmt.Errorf("send turn %d: %w", i+1, err)
		}

		_ = conn.SetReadDeadline(time.Now().Add(opts.turnTimeout))
		var frame probeFrame
		if err := conn.ReadJSON(&frame); err != nil {
			return res, fmt.Errorf("await turn %d: %w", i+1, err)
		}
		elapsed := time.Since(start)

		switch frame.Type {
		case "assistant_turn":
			res.latencies = append(res.latencies, elapsed)
			if frame.Error != "" {
				res.fallbacks++
			}
		default:
			res.errors++
		}
		if opts.verbose {
			fmt.Fprintf(out, "turn %d: %s in %s %s\n", i+1, frame.Type, elapsed.Round(time.Millisecond), describeFrame(frame))
		}

		if opts.interTurnDelay > 0 && i < opts.turns-1 {
			select {
			case <-ctx.Done():
				return res, ctx.Err()
			case <-time.After(opts.interTurnDelay):
			}
		}
	}
	return res, nil
}

func describeFrame(f probeFrame) string {
	if f.Type != "assistant_turn" {
		return f.Code + ": " + f.Detail
	}
	var turn struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}
	_ = json.Unmarshal(f.Response, &turn)
	return fmt.Sprintf("[%s] %q", turn.Type, turn.Content)
}

func printProbeSummary(out io.Writer, res probeResult) {
	fmt.Fprintf(out, "replies=%d fallbacks=%d errors=%d\n", len(res.latencies), res.fallbacks, res.errors)
	if len(res.latencies) == 0 {
		return
	}
	fmt.Fprintf(out, "p50=%s p95=%s max=%s\n",
		percentile(res.latencies, 0.50).Round(time.Millisecond),
		percentile(res.latencies, 0.95).Round(time.Millisecond),
		percentile(res.latencies, 1).Round(time.Millisecond),
	)
}

// percentile uses nearest rank on a sorted copy.
func percentile(values []time.Duration, q float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := slices.Clone(values)
	slices.Sort(sorted)
	idx := int(q*float64(len(sorted))+0.5) - 1
	idx = max(0, min(idx, len(sorted)-1))
	return sorted[idx]
}
