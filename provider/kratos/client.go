package kratos

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	kratosclient "github.com/ory/kratos-client-go"
)

const (
	defaultSchemaID = "default"
	defaultPageSize = 250
)

// Config holds the Kratos endpoints.
type Config struct {
	PublicURL string
	AdminURL  string
	// SchemaID is the identity schema new identities use. Default: "default".
	SchemaID string
	// Timeout bounds every HTTP call. Default: 30s.
	Timeout time.Duration
	// PageSize is the number of identities fetched per admin list call.
	// Default: 250.
	PageSize int64
}

// Validate checks the required settings
func (c Config) Validate() error {
	if !isValidURL(c.PublicURL) {
		return fmt.Errorf("kratos: invalid public URL: %q", c.PublicURL)
	}
	if !isValidURL(c.AdminURL) {
		return fmt.Errorf("kratos: invalid admin URL: %q", c.AdminURL)
	}
	return nil
}

func (c Config) schemaID() string {
	if strings.TrimSpace(c.SchemaID) == "" {
		return defaultSchemaID
	}
	return c.SchemaID
}

func (c Config) pageSize() int64 {
	if c.PageSize <= 0 {
		return defaultPageSize
	}
	return c.PageSize
}

// nextPageToken returns the page_token of the rel="next" entry of the Link
// header, or "" on the last page.
func nextPageToken(resp *http.Response) string {
	if resp == nil {
		return ""
	}
	for _, header := range resp.Header.Values("Link") {
		for _, link := range strings.Split(header, ",") {
			parts := strings.Split(link, ";")
			if len(parts) < 2 {
				continue
			}
			next := false
			for _, param := range parts[1:] {
				param = strings.ReplaceAll(strings.TrimSpace(param), " ", "")
				if param == `rel="next"` || param == "rel=next" {
					next = true
				}
			}
			if !next {
				continue
			}
			target := strings.Trim(strings.TrimSpace(parts[0]), "<>")
			u, err := url.Parse(target)
			if err != nil {
				continue
			}
			return u.Query().Get("page_token")
		}
	}
	return ""
}

func newAPIClient(baseURL string, timeout time.Duration) *kratosclient.APIClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	cfg := kratosclient.NewConfiguration()
	cfg.Servers = []kratosclient.ServerConfiguration{
		{
			URL: strings.TrimSuffix(baseURL, "/"),
		},
	}
	cfg.HTTPClient = &http.Client{Timeout: timeout}
	if cfg.DefaultHeader == nil {
		cfg.DefaultHeader = make(map[string]string)
	}
	cfg.DefaultHeader["Accept"] = "application/json"

	return kratosclient.NewAPIClient(cfg)
}

func isValidURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
