// Package clickup is the ClickUp REST client built on the pooled, rate-limited
// httpx layer. It covers workspace/space/list discovery (TTL-cached),
// paginated task fetching, and batched per-task time-entry fetching.
package clickup

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrNotFound is returned when a named space or entity cannot be resolved.
var ErrNotFound = errors.New("not found")

const (
	spacesCacheTTL = 10 * time.Minute
	listsCacheTTL  = 5 * time.Minute
	teamCacheTTL   = time.Hour
)

// HTTPClient is the transport dependency (satisfied by *httpx.Client).
type HTTPClient interface {
	Get(path string, params url.Values) ([]byte, error)
}

// Client resolves ClickUp structure and fetches tasks/time entries. One
// Client is shared process-wide; the cache and transport are safe for
// concurrent use.
type Client struct {
	http   HTTPClient
	cache  *ttlCache
	teamID string
}

// NewClient builds a Client. teamID may be empty, in which case the first
// workspace visible to the token is used and cached.
func NewClient(http HTTPClient, teamID string) *Client {
	return &Client{http: http, cache: newTTLCache(), teamID: teamID}
}

// ClearCache drops all cached structure data.
func (c *Client) ClearCache() {
	c.cache.clear()
}

// TeamID returns the configured or discovered workspace id.
func (c *Client) TeamID() (string, error) {
	if c.teamID != "" {
		return c.teamID, nil
	}
	if v, ok := c.cache.get("team"); ok {
		return v.(string), nil
	}
	body, err := c.http.Get("/team", nil)
	if err != nil {
		return "", fmt.Errorf("fetching teams: %w", err)
	}
	var resp teamsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("parsing teams: %w", err)
	}
	if len(resp.Teams) == 0 {
		return "", fmt.Errorf("no workspaces visible to this token: %w", ErrNotFound)
	}
	id := resp.Teams[0].ID
	c.cache.set("team", id, teamCacheTTL)
	return id, nil
}

// Spaces lists all spaces in the workspace, cached for 10 minutes.
func (c *Client) Spaces() ([]Space, error) {
	teamID, err := c.TeamID()
	if err != nil {
		return nil, err
	}
	key := "spaces:" + teamID
	if v, ok := c.cache.get(key); ok {
		return v.([]Space), nil
	}
	body, err := c.http.Get("/team/"+teamID+"/space", nil)
	if err != nil {
		return nil, fmt.Errorf("fetching spaces: %w", err)
	}
	var resp spacesResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing spaces: %w", err)
	}
	c.cache.set(key, resp.Spaces, spacesCacheTTL)
	return resp.Spaces, nil
}

// SpaceByName resolves a space by case-insensitive name.
func (c *Client) SpaceByName(name string) (Space, error) {
	spaces, err := c.Spaces()
	if err != nil {
		return Space{}, err
	}
	for _, s := range spaces {
		if strings.EqualFold(s.Name, name) {
			return s, nil
		}
	}
	return Space{}, fmt.Errorf("space %q: %w", name, ErrNotFound)
}

// memberRoles maps ClickUp's numeric role codes to names. Unknown codes
// become an empty role.
var memberRoles = map[int]string{1: "owner", 2: "admin", 3: "member", 4: "guest"}

// Members lists all workspace members with their roles.
func (c *Client) Members() ([]Member, error) {
	teamID, err := c.TeamID()
	if err != nil {
		return nil, err
	}
	body, err := c.http.Get("/team/"+teamID, nil)
	if err != nil {
		return nil, fmt.Errorf("fetching team members: %w", err)
	}
	var resp teamDetailResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parsing team members: %w", err)
	}
	members := make([]Member, 0, len(resp.Team.Members))
	for _, m := range resp.Team.Members {
		members = append(members, Member{
			UserID:   m.User.ID.String(),
			Username: m.User.Username,
			Email:    m.User.Email,
			Role:     memberRoles[m.User.Role],
		})
	}
	return members, nil
}

// SpaceLists discovers every list in a space, both folderless and inside
// folders. The second return value maps list id to folder name for lists that
// live in a folder. Cached for 5 minutes.
func (c *Client) SpaceLists(spaceID string) ([]string, map[string]string, error) {
	key := "space-lists:" + spaceID
	if v, ok := c.cache.get(key); ok {
		cached := v.(spaceListsEntry)
		return cached.ids, cached.folders, nil
	}

	var ids []string
	folders := make(map[string]string)

	body, err := c.http.Get("/space/"+spaceID+"/list", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching folderless lists: %w", err)
	}
	var lists listsResponse
	if err := json.Unmarshal(body, &lists); err != nil {
		return nil, nil, fmt.Errorf("parsing lists: %w", err)
	}
	for _, l := range lists.Lists {
		ids = append(ids, l.ID)
	}

	body, err = c.http.Get("/space/"+spaceID+"/folder", nil)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching folders: %w", err)
	}
	var fr foldersResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		return nil, nil, fmt.Errorf("parsing folders: %w", err)
	}
	for _, f := range fr.Folders {
		for _, l := range f.Lists {
			ids = append(ids, l.ID)
			folders[l.ID] = f.Name
		}
	}

	c.cache.set(key, spaceListsEntry{ids: ids, folders: folders}, listsCacheTTL)
	return ids, folders, nil
}

type spaceListsEntry struct {
	ids     []string
	folders map[string]string
}
