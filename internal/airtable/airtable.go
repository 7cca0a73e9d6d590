package airtable

import (
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	apiURL    = "https://api.airtable.com"
	apiPrefix = "/v0"
	userAgent = "spigell/applicant-pipeline"
	// Airtable never returns more than 100 records per page.
	pageSize = "100"

	defaultTimeout     = 10 * time.Second
	defaultRateRetries = 3
)

// Client talks to a single Airtable base.
type Client struct {
	token      string
	baseID     string
	logger     *zap.Logger
	HTTPClient *http.Client
	UserAgent  string
	APIURL     string
	// RateRetries is how many times a request rejected with 429 is repeated.
	RateRetries int
}

func New(logger *zap.Logger, token, baseID string) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		token:  strings.TrimSpace(token),
		baseID: strings.TrimSpace(baseID),
		APIURL: apiURL,
		HTTPClient: &http.Client{
			Timeout: defaultTimeout,
		},
		logger:      logger,
		UserAgent:   userAgent,
		RateRetries: defaultRateRetries,
	}
}

// BaseID returns the base the client is bound to.
func (c *Client) BaseID() string {
	return c.baseID
}
