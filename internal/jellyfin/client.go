// Package jellyfin is a minimal REST client for the server endpoints the
// migration needs: user administration, library management, and scheduled
// task polling. Everything else goes straight to the databases.
package jellyfin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// ErrUnauthorized indicates the API key was rejected by the server.
var ErrUnauthorized = errors.New("jellyfin: api key rejected")

// HTTPDoer abstracts http.Client.Do for testing.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// Client talks to one Jellyfin instance's HTTP API.
type Client struct {
	baseURL string
	apiKey  string
	client  HTTPDoer
}

// NewClient constructs a client for the given instance. A nil doer falls
// back to http.DefaultClient.
func NewClient(baseURL, apiKey string, client HTTPDoer) *Client {
	if client == nil {
		client = http.DefaultClient
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:  strings.TrimSpace(apiKey),
		client:  client,
	}
}

// User is the API-facing user record. Policy is kept opaque: callers
// that adjust it decode, edit, and send back the whole document so
// unrelated settings survive the round trip.
type User struct {
	ID     string          `json:"Id"`
	Name   string          `json:"Name"`
	Policy json.RawMessage `json:"Policy"`
}

// Users lists every user account on the server.
func (c *Client) Users(ctx context.Context) ([]User, error) {
	var users []User
	if err := c.doJSONRequest(ctx, http.MethodGet, "/Users", nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// CreateUser creates a user with the given name and password and returns
// the server's record for it.
func (c *Client) CreateUser(ctx context.Context, name, password string) (User, error) {
	body := map[string]string{"Name": name, "Password": password}
	var user User
	if err := c.doJSONRequest(ctx, http.MethodPost, "/Users/New", body, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateUserPolicy replaces the given user's policy document. policy is
// marshalled as-is; send the complete document, not a patch.
func (c *Client) UpdateUserPolicy(ctx context.Context, userID string, policy any) error {
	path := fmt.Sprintf("/Users/%s/Policy", url.PathEscape(userID))
	return c.doJSONRequest(ctx, http.MethodPost, path, policy, nil)
}

// VirtualFolder is one configured library.
type VirtualFolder struct {
	Name           string   `json:"Name"`
	CollectionType string   `json:"CollectionType"`
	Locations      []string `json:"Locations"`
	ItemID         string   `json:"ItemId"`
}

// VirtualFolders lists the server's configured libraries.
func (c *Client) VirtualFolders(ctx context.Context) ([]VirtualFolder, error) {
	var folders []VirtualFolder
	if err := c.doJSONRequest(ctx, http.MethodGet, "/Library/VirtualFolders", nil, &folders); err != nil {
		return nil, err
	}
	return folders, nil
}

// CreateVirtualFolder creates a library. The endpoint takes its arguments
// as query parameters, one repeated paths parameter per location, and
// kicks off a library scan immediately.
func (c *Client) CreateVirtualFolder(ctx context.Context, name, collectionType string, paths []string) error {
	values := url.Values{}
	values.Set("name", name)
	if collectionType != "" {
		values.Set("collectionType", collectionType)
	}
	for _, p := range paths {
		values.Add("paths", p)
	}
	values.Set("refreshLibrary", "true")
	return c.doJSONRequest(ctx, http.MethodPost, "/Library/VirtualFolders?"+values.Encode(), nil, nil)
}

// CollectionFolder is a library's item-tree entry, whose id is what user
// policies reference in EnabledFolders.
type CollectionFolder struct {
	ID   string `json:"Id"`
	Name string `json:"Name"`
}

// CollectionFolders lists every library as an item, for mapping library
// names to the ids policies use.
func (c *Client) CollectionFolders(ctx context.Context) ([]CollectionFolder, error) {
	var resp struct {
		Items []CollectionFolder `json:"Items"`
	}
	path := "/Items?Recursive=true&IncludeItemTypes=CollectionFolder"
	if err := c.doJSONRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// ScheduledTask is one server background task with its current run state.
type ScheduledTask struct {
	Name  string `json:"Name"`
	State string `json:"State"`
}

// ScheduledTasks lists the server's background tasks.
func (c *Client) ScheduledTasks(ctx context.Context) ([]ScheduledTask, error) {
	var tasks []ScheduledTask
	if err := c.doJSONRequest(ctx, http.MethodGet, "/ScheduledTasks", nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// LibraryScanRunning reports whether the media library scan task is
// currently running.
func (c *Client) LibraryScanRunning(ctx context.Context) (bool, error) {
	tasks, err := c.ScheduledTasks(ctx)
	if err != nil {
		return false, err
	}
	for _, task := range tasks {
		if task.Name == "Scan Media Library" && task.State == "Running" {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) doJSONRequest(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Emby-Token", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("jellyfin request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		errBody := strings.TrimSpace(string(bodyBytes))
		if resp.StatusCode == http.StatusUnauthorized {
			return ErrUnauthorized
		}
		return fmt.Errorf("jellyfin %s %s returned %d: %s", method, path, resp.StatusCode, errBody)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
