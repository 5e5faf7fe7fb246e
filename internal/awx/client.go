package awx

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"k8s.io/client-go/transport"
	"k8s.io/klog/v2"
)

const userAgent = "scm-inventory"

// ErrNotFound is returned when a lookup by name matches nothing
var ErrNotFound = errors.New("not found")

// Credentials selects how requests are authenticated. Token wins over
// Username/Password; both empty means anonymous.
type Credentials struct {
	Token    string
	Username string
	Password string
}

// Client handles communication with AWX API
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new AWX client
func NewClient(baseURL string, creds Credentials, verifySSL bool) *Client {
	var rt http.RoundTripper = &http.Transport{
		Proxy:           http.ProxyFromEnvironment,
		TLSClientConfig: &tls.Config{InsecureSkipVerify: !verifySSL},
	}

	switch {
	case creds.Token != "":
		rt = transport.NewBearerAuthRoundTripper(creds.Token, rt)
	case creds.Username != "":
		rt = transport.NewBasicAuthRoundTripper(creds.Username, creds.Password, rt)
	}
	rt = transport.NewUserAgentRoundTripper(userAgent, rt)
	rt = transport.DebugWrappers(rt)

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Transport: rt,
			Timeout:   30 * time.Second,
		},
	}
}

// GetProjectID retrieves project ID by name
func (c *Client) GetProjectID(ctx context.Context, name string) (int, error) {
	project, err := c.findProject(ctx, name)
	if err != nil {
		return 0, err
	}
	if project.ID == 0 {
		return 0, fmt.Errorf("project '%s': %w", name, ErrNotFound)
	}
	return project.ID, nil
}

// GetProject retrieves a single project by ID
func (c *Client) GetProject(ctx context.Context, id int) (*Project, error) {
	var project Project
	if err := c.get(ctx, fmt.Sprintf("/api/v2/projects/%d/", id), &project); err != nil {
		return nil, err
	}
	return &project, nil
}

// findProject answers with the first match of a name lookup. The endpoint
// normally returns a list envelope; a bare project object is accepted too.
func (c *Client) findProject(ctx context.Context, name string) (*Project, error) {
	var raw json.RawMessage
	if err := c.get(ctx, "/api/v2/projects/?name="+url.QueryEscape(name), &raw); err != nil {
		return nil, err
	}

	var list ListResponse[Project]
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decoding project list: %w", err)
	}

	if list.Results == nil {
		var project Project
		if err := json.Unmarshal(raw, &project); err != nil {
			return nil, fmt.Errorf("decoding project: %w", err)
		}
		return &project, nil
	}

	if len(list.Results) == 0 {
		return nil, fmt.Errorf("project '%s': %w", name, ErrNotFound)
	}
	if list.Count > 1 {
		klog.V(1).Infof("%d projects are named '%s', using ID %d", list.Count, name, list.Results[0].ID)
	}
	return &list.Results[0], nil
}

// get performs a GET request against the API and decodes the JSON body into result.
func (c *Client) get(ctx context.Context, path string, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("GET %s: reading body: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: HTTP %d, body: %s", path, resp.StatusCode, bytes.TrimSpace(body))
	}

	klog.V(4).Infof("GET %s: HTTP %d, %d bytes", path, resp.StatusCode, len(body))

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("GET %s: decoding response: %w", path, err)
	}
	return nil
}
