package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/cloudykangaroo/orchestrate/internal/logging"
)

// CrowdVerifier verifies credentials against an Atlassian Crowd style
// directory service using an application account.
type CrowdVerifier struct {
	baseURL     string
	application string
	password    string
	httpClient  *http.Client
	log         *logging.Logger
}

// NewCrowdVerifier creates a verifier for the directory at baseURL,
// authenticating as the named application.
func NewCrowdVerifier(baseURL, application, password string, timeout time.Duration, log *logging.Logger) *CrowdVerifier {
	if log == nil {
		log = logging.NewDefault("auth")
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CrowdVerifier{
		baseURL:     baseURL,
		application: application,
		password:    password,
		httpClient:  &http.Client{Timeout: timeout},
		log:         log,
	}
}

type crowdUser struct {
	Name        string `json:"name"`
	DisplayName string `json:"display-name"`
	Email       string `json:"email"`
	Active      bool   `json:"active"`
	Link        struct {
		Href string `json:"href"`
	} `json:"link"`
}

type crowdGroups struct {
	Groups []struct {
		Name string `json:"name"`
	} `json:"groups"`
}

// Verify authenticates the username/password pair and retrieves nested group
// memberships. A directory reject resolves to ErrBadCredentials; transport
// failures are returned as-is.
func (v *CrowdVerifier) Verify(ctx context.Context, username, password string) (Identity, error) {
	user, err := v.authenticate(ctx, username, password)
	if err != nil {
		return Identity{}, err
	}

	groups, err := v.groupMemberships(ctx, username)
	if err != nil {
		return Identity{}, fmt.Errorf("fetch group memberships: %w", err)
	}

	id := user.Link.Href
	if id == "" {
		id = v.baseURL + "/rest/usermanagement/1/user?username=" + url.QueryEscape(user.Name)
	}

	return Identity{
		ID:          id,
		Username:    user.Name,
		DisplayName: user.DisplayName,
		Email:       user.Email,
		Groups:      groups,
	}, nil
}

func (v *CrowdVerifier) authenticate(ctx context.Context, username, password string) (crowdUser, error) {
	endpoint := v.baseURL + "/rest/usermanagement/1/authentication?username=" + url.QueryEscape(username)
	payload, err := json.Marshal(map[string]string{"value": password})
	if err != nil {
		return crowdUser{}, fmt.Errorf("marshal credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return crowdUser{}, fmt.Errorf("build authentication request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(v.application, v.password)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return crowdUser{}, fmt.Errorf("directory request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusBadRequest || resp.StatusCode == http.StatusForbidden:
		io.Copy(io.Discard, resp.Body)
		return crowdUser{}, ErrBadCredentials
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return crowdUser{}, fmt.Errorf("directory returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var user crowdUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return crowdUser{}, fmt.Errorf("decode directory response: %w", err)
	}
	if !user.Active {
		return crowdUser{}, ErrBadCredentials
	}
	return user, nil
}

func (v *CrowdVerifier) groupMemberships(ctx context.Context, username string) ([]string, error) {
	endpoint := v.baseURL + "/rest/usermanagement/1/user/group/nested?username=" + url.QueryEscape(username)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("build groups request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.SetBasicAuth(v.application, v.password)

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("groups request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return nil, fmt.Errorf("groups request returned status %d: %s", resp.StatusCode, bytes.TrimSpace(body))
	}

	var parsed crowdGroups
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode groups response: %w", err)
	}

	groups := make([]string, 0, len(parsed.Groups))
	for _, g := range parsed.Groups {
		groups = append(groups, g.Name)
	}
	return groups, nil
}
