package follow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

const httpPageSize = 100

// HTTPGraph reads the follower graph from the social-graph service.
type HTTPGraph struct {
	client *resty.Client
}

func NewHTTPGraph(baseURL string, timeout time.Duration) *HTTPGraph {
	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("Accept", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &HTTPGraph{client: client}
}

// remoteID accepts user ids encoded as JSON numbers or strings.
type remoteID string

func (id *remoteID) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = remoteID(s)
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var n json.Number
	if err := dec.Decode(&n); err != nil {
		return fmt.Errorf("user id %s: %w", b, err)
	}
	*id = remoteID(n.String())
	return nil
}

type relation struct {
	UserID remoteID `json:"user_id"`
}

type relationPage struct {
	Followers  []relation `json:"followers"`
	Following  []relation `json:"following"`
	NextCursor string     `json:"next_cursor"`
	HasMore    bool       `json:"has_more"`
}

type followerCount struct {
	FollowerCount int64 `json:"followerCount"`
}

func (g *HTTPGraph) GetFollowers(ctx context.Context, userID string) ([]string, error) {
	ids, err := g.list(ctx, userID, "followers", func(p *relationPage) []relation { return p.Followers })
	if err != nil {
		return nil, fmt.Errorf("followers of %s: %w", userID, err)
	}
	return ids, nil
}

func (g *HTTPGraph) GetFollowing(ctx context.Context, userID string) ([]string, error) {
	ids, err := g.list(ctx, userID, "following", func(p *relationPage) []relation { return p.Following })
	if err != nil {
		return nil, fmt.Errorf("following of %s: %w", userID, err)
	}
	return ids, nil
}

func (g *HTTPGraph) GetFollowerCount(ctx context.Context, userID string) (int64, error) {
	var out followerCount
	resp, err := g.client.R().
		SetContext(ctx).
		SetPathParam("user_id", userID).
		SetResult(&out).
		Get("/api/followers/{user_id}/count")
	if err != nil {
		return 0, fmt.Errorf("follower count of %s: %w", userID, err)
	}
	if resp.IsError() {
		return 0, fmt.Errorf("follower count of %s: %w", userID, statusError(resp))
	}
	return out.FollowerCount, nil
}

// list walks every page of a followers or following listing.
func (g *HTTPGraph) list(ctx context.Context, userID, kind string, items func(*relationPage) []relation) ([]string, error) {
	ids := []string{}
	cursor := ""
	for {
		var page relationPage
		req := g.client.R().
			SetContext(ctx).
			SetPathParam("user_id", userID).
			SetQueryParam("limit", fmt.Sprint(httpPageSize)).
			SetResult(&page)
		if cursor != "" {
			req.SetQueryParam("cursor", cursor)
		}
		resp, err := req.Get("/api/{user_id}/" + kind)
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, statusError(resp)
		}

		for _, r := range items(&page) {
			ids = append(ids, string(r.UserID))
		}
		if !page.HasMore || page.NextCursor == "" || page.NextCursor == cursor {
			return ids, nil
		}
		cursor = page.NextCursor
	}
}

func statusError(resp *resty.Response) error {
	return fmt.Errorf("social graph returned %s: %s", resp.Status(), resp.String())
}
