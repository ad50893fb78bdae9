package court

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/dghubble/sling"

	"github.com/rmoreira/hearing-sync/internal/hearing"
	"github.com/rmoreira/hearing-sync/internal/logger"
	"github.com/rmoreira/hearing-sync/internal/retry"
	"github.com/rmoreira/hearing-sync/internal/token"
)

const (
	apiPath   = "pje-comum-api/api/pauta-usuarios-externos"
	probePath = "primeirograu/"

	UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	Timeout   = 30 * time.Second

	situationScheduled = "M" // "marcada"
	pageSize           = 1500
)

// System identifies one court portal.
type System struct {
	ID       string
	BaseURL  string // e.g. https://pje.trt2.jus.br
	LoginURL string
}

// DefaultSystems returns the two portals this installation tracks.
func DefaultSystems() []System {
	return []System{
		{
			ID:       "TRT2",
			BaseURL:  "https://pje.trt2.jus.br",
			LoginURL: "https://pje.trt2.jus.br/primeirograu/login.seam",
		},
		{
			ID:       "TRT15",
			BaseURL:  "https://pje.trt15.jus.br",
			LoginURL: "https://pje.trt15.jus.br/primeirograu/login.seam",
		},
	}
}

// ErrUnauthorized indicates the portal rejected the session. The cached
// token must be invalidated; the fetch is not retried.
var ErrUnauthorized = errors.New("court portal rejected the session")

// StatusError is a non-2xx API response other than an authentication
// rejection.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("court api returned status %d", e.Code)
}

// Retryable classifies fetch failures for the retry wrapper: rejected
// sessions and malformed payloads are permanent, everything else (timeouts,
// rate limits, 5xx) is transient.
func Retryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code == http.StatusTooManyRequests || statusErr.Code >= 500
	}
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return false
	}
	return true
}

// Client makes authenticated schedule queries against one portal.
type Client struct {
	system System
	http   *http.Client
	base   *sling.Sling
	policy retry.Policy
	log    *logger.Logger
}

// NewClient builds a client whose cookie jar is primed with the session
// token's cookies.
func NewClient(system System, tok token.Token) (*Client, error) {
	baseURL, err := url.Parse(system.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parsing base url for %s: %w", system.ID, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("creating cookie jar: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(tok.Cookies))
	for _, c := range tok.Cookies {
		cookies = append(cookies, &http.Cookie{
			Name:   c.Name,
			Value:  c.Value,
			Domain: c.Domain,
			Path:   c.Path,
		})
	}
	jar.SetCookies(baseURL, cookies)

	httpClient := &http.Client{Timeout: Timeout, Jar: jar}

	base := sling.New().
		Client(httpClient).
		Base(strings.TrimSuffix(system.BaseURL, "/") + "/").
		Set("User-Agent", UserAgent).
		Set("Accept", "application/json")

	return &Client{
		system: system,
		http:   httpClient,
		base:   base,
		policy: retry.DefaultPolicy(),
		log:    logger.Default(),
	}, nil
}

// WithRetryPolicy overrides the fetch retry policy.
func (c *Client) WithRetryPolicy(p retry.Policy) *Client {
	c.policy = p
	return c
}

// WithLogger overrides the client's logger.
func (c *Client) WithLogger(log *logger.Logger) *Client {
	c.log = log
	return c
}

// searchParams mirrors the schedule API's query string.
type searchParams struct {
	StartDate string `url:"dataInicio"`
	EndDate   string `url:"dataFim"`
	Situation string `url:"codigoSituacao"`
	Page      int    `url:"numeroPagina"`
	PageSize  int    `url:"tamanhoPagina"`
	Order     string `url:"ordenacao"`
}

// Search fetches scheduled hearings between two dates (inclusive, API query
// format yyyy-mm-dd) in a single page.
func (c *Client) Search(ctx context.Context, startDate, endDate string) ([]hearing.Record, error) {
	params := &searchParams{
		StartDate: startDate,
		EndDate:   endDate,
		Situation: situationScheduled,
		Page:      1,
		PageSize:  pageSize,
		Order:     "asc",
	}

	req, err := c.base.New().Get(apiPath).QueryStruct(params).Request()
	if err != nil {
		return nil, fmt.Errorf("building schedule request for %s: %w", c.system.ID, err)
	}
	req = req.WithContext(ctx)

	var payload scheduleResponse
	resp, err := c.base.New().Do(req, &payload, nil)
	if err != nil {
		return nil, fmt.Errorf("querying %s schedule: %w", c.system.ID, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: %s status %d", ErrUnauthorized, c.system.ID, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%s schedule: %w", c.system.ID, &StatusError{Code: resp.StatusCode})
	}

	records, dropped := payload.records(c.system.ID)
	if dropped > 0 {
		c.log.Warn("Dropped records missing required fields", logger.Fields{
			"system":  c.system.ID,
			"dropped": dropped,
		})
	}
	c.log.Debug("Schedule page fetched", logger.Fields{
		"system": c.system.ID,
		"from":   startDate,
		"to":     endDate,
		"count":  len(records),
	})
	return records, nil
}

// FetchWindow fetches the effective date window: today through the end of
// the current year, plus each of the next futureYears whole years. Every
// page fetch is retried under the client's policy.
func (c *Client) FetchWindow(ctx context.Context, now time.Time, futureYears int) ([]hearing.Record, error) {
	type dateRange struct{ start, end string }

	year := now.Year()
	ranges := []dateRange{{
		start: now.Format("2006-01-02"),
		end:   fmt.Sprintf("%d-12-31", year),
	}}
	for y := year + 1; y <= year+futureYears; y++ {
		ranges = append(ranges, dateRange{
			start: fmt.Sprintf("%d-01-01", y),
			end:   fmt.Sprintf("%d-12-31", y),
		})
	}

	sets := make([][]hearing.Record, 0, len(ranges))
	for _, r := range ranges {
		op := fmt.Sprintf("fetch %s hearings %s..%s", c.system.ID, r.start, r.end)
		records, err := retry.Do(ctx, op, c.policy, Retryable, func() ([]hearing.Record, error) {
			return c.Search(ctx, r.start, r.end)
		})
		if err != nil {
			return nil, err
		}
		sets = append(sets, records)
	}

	return hearing.Merge(sets...), nil
}

// ValidateSession probes the portal with the jar's cookies and reports
// whether the session is still accepted. Redirects are not followed: a
// bounce toward the login pages means the session is gone. On a 200 the body
// is inspected for a login form, since PJe serves the login page in place of
// the panel for anonymous users.
func (c *Client) ValidateSession(ctx context.Context) bool {
	probe := &http.Client{
		Timeout: 10 * time.Second,
		Jar:     c.http.Jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimSuffix(c.system.BaseURL, "/")+"/"+probePath, nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := probe.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 300 && resp.StatusCode < 400:
		loc := strings.ToLower(resp.Header.Get("Location"))
		return !strings.Contains(loc, "login") && !strings.Contains(loc, "sso")
	case resp.StatusCode != http.StatusOK:
		return false
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return false
	}
	if doc.Find(`form[action*="login"], input[name="username"], #formLogin`).Length() > 0 {
		return false
	}
	return true
}
