package simplybook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/wolfman30/cpr-booking-platform/internal/observability/metrics"
	"github.com/wolfman30/cpr-booking-platform/pkg/logging"
)

const defaultTimeout = 15 * time.Second

// Config holds credentials and endpoints for the scheduler API.
type Config struct {
	CompanyLogin string
	APIKey       string
	LoginURL     string
	APIURL       string
	Timeout      time.Duration
	// ProbeRPS paces alternative-slot probing; <= 0 disables pacing.
	ProbeRPS float64
	// StaticEventIDs overrides the built-in name -> event id table.
	StaticEventIDs map[string]int
}

// Client is a JSON-RPC client for the SimplyBook user API.
type Client struct {
	loginURL     string
	apiURL       string
	companyLogin string
	apiKey       string
	httpClient   *http.Client
	staticIDs    map[string]int
	probeLimiter *rate.Limiter
	metrics      *metrics.IntakeMetrics
	logger       *logging.Logger
	nextID       atomic.Int64
}

// NewClient creates a scheduler client. metrics may be nil.
func NewClient(cfg Config, m *metrics.IntakeMetrics, logger *logging.Logger) *Client {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if strings.TrimSpace(cfg.LoginURL) == "" {
		cfg.LoginURL = defaultLoginURL
	}
	if strings.TrimSpace(cfg.APIURL) == "" {
		cfg.APIURL = defaultAPIURL
	}
	limit := rate.Inf
	if cfg.ProbeRPS > 0 {
		limit = rate.Limit(cfg.ProbeRPS)
	}
	static := make(map[string]int, len(StaticEventIDs)+len(cfg.StaticEventIDs))
	for name, id := range StaticEventIDs {
		static[normalizeName(name)] = id
	}
	for name, id := range cfg.StaticEventIDs {
		static[normalizeName(name)] = id
	}
	return &Client{
		loginURL:     cfg.LoginURL,
		apiURL:       cfg.APIURL,
		companyLogin: cfg.CompanyLogin,
		apiKey:       cfg.APIKey,
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		staticIDs:    static,
		probeLimiter: rate.NewLimiter(limit, 1),
		metrics:      m,
		logger:       logger,
	}
}

// GetToken logs in and returns a fresh API token. Tokens are not cached.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	if strings.TrimSpace(c.companyLogin) == "" || strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("simplybook: missing company login or api key")
	}
	raw, err := c.call(ctx, c.loginURL, "getToken", []any{c.companyLogin, c.apiKey}, "")
	if err != nil {
		return "", err
	}
	var token string
	if err := json.Unmarshal(raw, &token); err != nil {
		return "", fmt.Errorf("simplybook: decode token: %w", err)
	}
	if token == "" {
		return "", fmt.Errorf("simplybook: empty token")
	}
	return token, nil
}

// GetEventList returns the service catalog ordered by ascending id.
func (c *Client) GetEventList(ctx context.Context, token string) ([]Event, error) {
	raw, err := c.call(ctx, c.apiURL, "getEventList", []any{}, token)
	if err != nil {
		return nil, err
	}

	var entries []rawEvent
	var keyed map[string]rawEvent
	switch {
	case json.Unmarshal(raw, &keyed) == nil:
		for key, ev := range keyed {
			if ev.ID == 0 {
				if n, err := strconv.Atoi(key); err == nil {
					ev.ID = flexInt(n)
				}
			}
			entries = append(entries, ev)
		}
	case json.Unmarshal(raw, &entries) == nil:
	default:
		return nil, fmt.Errorf("simplybook: unexpected event list shape")
	}

	events := make([]Event, 0, len(entries))
	for _, ev := range entries {
		events = append(events, Event{
			ID:       int(ev.ID),
			Name:     ev.Name,
			Duration: int(ev.Duration),
			Price:    string(ev.Price),
		})
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].ID < events[j].ID })
	return events, nil
}

// GetStartTimeList returns the sorted HH:MM:SS start times open on date.
func (c *Client) GetStartTimeList(ctx context.Context, token string, eventID int, unitID *int, date string) ([]string, error) {
	raw, err := c.call(ctx, c.apiURL, "getStartTimeList", []any{eventID, unitParam(unitID), date}, token)
	if err != nil {
		return nil, err
	}

	var times []string
	var keyed map[string]json.RawMessage
	switch {
	case json.Unmarshal(raw, &keyed) == nil:
		for key := range keyed {
			times = append(times, key)
		}
	case json.Unmarshal(raw, &times) == nil:
	default:
		return nil, fmt.Errorf("simplybook: unexpected start time list shape")
	}
	sort.Strings(times)
	return times, nil
}

// GetWorkCalendar returns the provider's work calendar for one month keyed
// by YYYY-MM-DD.
func (c *Client) GetWorkCalendar(ctx context.Context, token string, year, month int, unitID *int) (map[string]WorkDay, error) {
	raw, err := c.call(ctx, c.apiURL, "getWorkCalendar", []any{year, month, unitParam(unitID)}, token)
	if err != nil {
		return nil, err
	}
	var days map[string]rawWorkDay
	if err := json.Unmarshal(raw, &days); err != nil {
		var empty []any
		if json.Unmarshal(raw, &empty) == nil {
			return map[string]WorkDay{}, nil
		}
		return nil, fmt.Errorf("simplybook: decode work calendar: %w", err)
	}
	out := make(map[string]WorkDay, len(days))
	for date, d := range days {
		out[date] = WorkDay{From: d.From, To: d.To, IsDayOff: d.IsDayOff != 0}
	}
	return out, nil
}

// Book submits a booking. A remote error object comes back inside the
// result with a nil Go error; only transport and decoding failures are
// returned as errors.
func (c *Client) Book(ctx context.Context, token string, req BookRequest) (*BookResult, error) {
	additional := req.Additional
	if additional == nil {
		additional = map[string]any{}
	}
	params := []any{req.EventID, unitParam(req.UnitID), req.Date, req.Time, req.Client, additional}

	raw, err := c.call(ctx, c.apiURL, "book", params, token)
	var remote *RemoteError
	if errors.As(err, &remote) {
		remote.Kind = classifyError(remote.Message)
		c.logger.Warn("simplybook booking rejected",
			"code", remote.Code,
			"message", remote.Message,
			"kind", remote.Kind.String(),
			"event_id", req.EventID,
			"date", req.Date,
			"time", req.Time,
		)
		c.diagnose(ctx, token, req, remote)
		return &BookResult{Error: remote}, nil
	}
	if err != nil {
		return nil, err
	}

	var payload struct {
		RequireConfirm bool            `json:"require_confirm"`
		Bookings       []rawBookedSlot `json:"bookings"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("simplybook: decode booking: %w", err)
	}
	result := &BookResult{RequireConfirm: payload.RequireConfirm, Raw: raw}
	for _, b := range payload.Bookings {
		result.Bookings = append(result.Bookings, BookedSlot{
			ID:            string(b.ID),
			EventID:       string(b.EventID),
			UnitID:        string(b.UnitID),
			StartDateTime: b.StartDateTime,
			EndDateTime:   b.EndDateTime,
			Code:          b.Code,
		})
	}
	return result, nil
}

// diagnose fetches supporting data for known rejections so operators can
// see why the slot was refused. Results are only logged.
func (c *Client) diagnose(ctx context.Context, token string, req BookRequest, remote *RemoteError) {
	switch remote.Kind {
	case ErrorKindUnitUnavailable:
		day, err := time.Parse("2006-01-02", req.Date)
		if err != nil {
			return
		}
		calendar, err := c.GetWorkCalendar(ctx, token, day.Year(), int(day.Month()), req.UnitID)
		if err != nil {
			c.logger.Warn("simplybook work calendar diagnostic failed", "error", err)
			return
		}
		entry, ok := calendar[req.Date]
		c.logger.Info("simplybook work calendar diagnostic",
			"date", req.Date,
			"listed", ok,
			"from", entry.From,
			"to", entry.To,
			"day_off", entry.IsDayOff,
		)
	case ErrorKindEventUnavailable:
		times, err := c.GetStartTimeList(ctx, token, req.EventID, req.UnitID, req.Date)
		if err != nil {
			c.logger.Warn("simplybook start time diagnostic failed", "error", err)
			return
		}
		c.logger.Info("simplybook start time diagnostic",
			"date", req.Date,
			"requested", req.Time,
			"open_slots", strings.Join(times, ","),
		)
	}
}

func (c *Client) call(ctx context.Context, endpoint, method string, params []any, token string) (json.RawMessage, error) {
	start := time.Now()
	raw, err := c.do(ctx, endpoint, method, params, token)
	status := "ok"
	var remote *RemoteError
	switch {
	case errors.As(err, &remote):
		status = "remote_error"
	case err != nil:
		status = "error"
	}
	c.metrics.ObserveRemoteCall(method, status, time.Since(start).Seconds())
	return raw, err
}

func (c *Client) do(ctx context.Context, endpoint, method string, params []any, token string) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	body, err := json.Marshal(rpcRequest{JSONRPC: "2.0", Method: method, Params: params, ID: c.nextID.Add(1)})
	if err != nil {
		return nil, fmt.Errorf("simplybook: marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("simplybook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("X-Company-Login", c.companyLogin)
		req.Header.Set("X-Token", token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("simplybook: %s: %w", method, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("simplybook: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := string(respBody)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		return nil, fmt.Errorf("simplybook: %s: status %d: %s", method, resp.StatusCode, msg)
	}

	var out rpcResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, fmt.Errorf("simplybook: unmarshal %s: %w", method, err)
	}
	if out.Error != nil {
		return nil, out.Error
	}
	return out.Result, nil
}

// ParseUnitID reads a provider id from a request value. Anything that is
// not a whole number yields nil.
func ParseUnitID(v any) *int {
	var n int
	switch t := v.(type) {
	case int:
		n = t
	case int64:
		n = int(t)
	case float64:
		if t != float64(int(t)) {
			return nil
		}
		n = int(t)
	case json.Number:
		i, err := t.Int64()
		if err != nil {
			return nil
		}
		n = int(i)
	case string:
		i, err := strconv.Atoi(strings.TrimSpace(t))
		if err != nil {
			return nil
		}
		n = i
	default:
		return nil
	}
	return &n
}

func unitParam(unitID *int) any {
	if unitID == nil {
		return nil
	}
	return *unitID
}
