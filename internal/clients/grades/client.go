// Package grades is the HTTP client for the platform grading service. It
// implements gradebook.Engine.
package grades

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kotky/gradebook-edx-platform-extensions/internal/coursekey"
	gbdomain "github.com/kotky/gradebook-edx-platform-extensions/internal/domain/gradebook"
	"github.com/kotky/gradebook-edx-platform-extensions/internal/gradebook"
)

type Options struct {
	BaseURL string
	// ServiceSecret signs the HS256 service token sent on every request.
	ServiceSecret string
	Issuer        string
	Audience      string
	TokenTTL      time.Duration

	Timeout    time.Duration
	MaxRetries int

	HTTPClient *http.Client
}

type Client struct {
	baseURL    string
	secret     []byte
	issuer     string
	audience   string
	tokenTTL   time.Duration
	timeout    time.Duration
	maxRetries int
	httpClient *http.Client
	now        func() time.Time

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

var _ gradebook.Engine = (*Client)(nil)

// Grader weights above this cannot yield a percent in [0, 1].
const maxPolicyWeight = 1.000001

func New(opts Options) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("grades client: baseURL required")
	}
	secret := strings.TrimSpace(opts.ServiceSecret)
	if secret == "" {
		return nil, ErrMissingSecret
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ttl := opts.TokenTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	maxRetries := opts.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	issuer := strings.TrimSpace(opts.Issuer)
	if issuer == "" {
		issuer = "gradebook"
	}
	return &Client{
		baseURL:    baseURL,
		secret:     []byte(secret),
		issuer:     issuer,
		audience:   strings.TrimSpace(opts.Audience),
		tokenTTL:   ttl,
		timeout:    timeout,
		maxRetries: maxRetries,
		httpClient: hc,
		now:        time.Now,
	}, nil
}

func (c *Client) BaseURL() string { return c.baseURL }

func coursePath(key coursekey.CourseKey) string {
	return "/api/grades/v1/courses/" + url.PathEscape(key.String())
}

func (c *Client) Course(ctx context.Context, key coursekey.CourseKey) (*gradebook.Course, error) {
	var resp courseResponse
	if err := c.doJSON(ctx, http.MethodGet, coursePath(key), nil, &resp); err != nil {
		var herr *HTTPError
		if errors.As(err, &herr) && herr.StatusCode == http.StatusNotFound {
			return nil, fmt.Errorf("%w: %s", gradebook.ErrCourseNotFound, key)
		}
		return nil, err
	}
	if len(bytes.TrimSpace(resp.GradingPolicy)) == 0 {
		return nil, fmt.Errorf("course %s: empty grading policy", key)
	}
	// The policy is stored verbatim; decoding only rejects malformed ones.
	var policy gbdomain.GradingPolicy
	if err := json.Unmarshal(resp.GradingPolicy, &policy); err != nil {
		return nil, fmt.Errorf("course %s: grading policy: %w", key, err)
	}
	if w := policy.TotalWeight(); w > maxPolicyWeight {
		return nil, fmt.Errorf("course %s: grading policy weights total %.4f", key, w)
	}
	return &gradebook.Course{
		Key:           key,
		GradingPolicy: resp.GradingPolicy,
		Start:         resp.Start,
		End:           resp.End,
	}, nil
}

func (c *Client) ProgressSummary(ctx context.Context, userID int64, course *gradebook.Course) (json.RawMessage, error) {
	if course == nil {
		return nil, errors.New("progress summary: nil course")
	}
	var resp progressResponse
	path := coursePath(course.Key) + "/users/" + strconv.FormatInt(userID, 10) + "/progress"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.ProgressSummary, nil
}

func (c *Client) Grade(ctx context.Context, userID int64, course *gradebook.Course) (gradebook.GradeSummary, error) {
	if course == nil {
		return gradebook.GradeSummary{}, errors.New("grade: nil course")
	}
	var resp gradeResponse
	path := coursePath(course.Key) + "/users/" + strconv.FormatInt(userID, 10) + "/grade"
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return gradebook.GradeSummary{}, err
	}
	return gradebook.ParseGradeSummary(resp.GradeSummary)
}

func (c *Client) ProformaGrade(ctx context.Context, summary gradebook.GradeSummary, policy json.RawMessage) (float64, error) {
	var resp proformaResponse
	req := proformaRequest{GradeSummary: summary.Raw, GradingPolicy: policy}
	if err := c.doJSON(ctx, http.MethodPost, "/api/grades/v1/proforma", req, &resp); err != nil {
		return 0, err
	}
	if resp.ProformaGrade == nil {
		return 0, errors.New("proforma response missing proforma_grade")
	}
	return *resp.ProformaGrade, nil
}

// ---------------- HTTP helpers ----------------

// serviceToken returns a cached HS256 token, minting a new one shortly
// before the old one expires.
func (c *Client) serviceToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.token != "" && now.Add(30*time.Second).Before(c.tokenExpiry) {
		return c.token, nil
	}
	exp := now.Add(c.tokenTTL)
	claims := jwt.RegisteredClaims{
		Issuer:    c.issuer,
		Subject:   "service:" + c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	c.token = signed
	c.tokenExpiry = exp
	return signed, nil
}

func (c *Client) doJSON(ctx context.Context, method string, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}

	ctx2, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var lastErr error
	backoff := 250 * time.Millisecond
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx2.Err() != nil {
			return ctx2.Err()
		}
		token, err := c.serviceToken()
		if err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx2, method, c.baseURL+path, bytes.NewReader(buf.Bytes()))
		if err != nil {
			return err
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
		} else {
			raw, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
			_ = resp.Body.Close()
			if readErr != nil {
				return readErr
			}
			if resp.StatusCode < 200 || resp.StatusCode >= 300 {
				herr := parseHTTPError(resp.StatusCode, raw)
				if h, ok := herr.(*HTTPError); ok && !h.Temporary() {
					return herr
				}
				lastErr = herr
			} else {
				if out == nil {
					return nil
				}
				return json.Unmarshal(raw, out)
			}
		}

		if attempt < c.maxRetries {
			select {
			case <-ctx2.Done():
				return ctx2.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}

	if lastErr == nil {
		lastErr = errors.New("request failed")
	}
	return lastErr
}
