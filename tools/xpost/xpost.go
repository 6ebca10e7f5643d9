// Package xpost implements the read_x_post tool: lookup of an X
// (Twitter) post by id or URL via the X API v2. Links to posts on X
// cannot be read by ordinary page-fetching tools, so this goes straight
// to the API and flattens the result into a text report for the model.
package xpost

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/bpafoshizle/discogs"
)

var baseURL = "https://api.x.com/2"

// Field selections for rich post retrieval.
var (
	tweetFields = []string{
		"attachments", "author_id", "conversation_id", "created_at",
		"entities", "geo", "id", "in_reply_to_user_id", "lang",
		"public_metrics", "possibly_sensitive", "referenced_tweets",
		"reply_settings", "source", "text",
	}
	expansions = []string{
		"author_id", "attachments.media_keys", "attachments.poll_ids",
		"geo.place_id", "in_reply_to_user_id", "referenced_tweets.id",
		"referenced_tweets.id.author_id", "entities.mentions.username",
	}
	mediaFields = []string{"alt_text", "duration_ms", "height", "media_key", "preview_image_url", "public_metrics", "type", "url", "width"}
	pollFields  = []string{"duration_minutes", "end_datetime", "id", "options", "voting_status"}
	userFields  = []string{"created_at", "description", "id", "location", "name", "public_metrics", "url", "username", "verified"}
	placeFields = []string{"contained_within", "country", "country_code", "full_name", "geo", "id", "name", "place_type"}
)

var (
	digitsOnly = regexp.MustCompile(`^\d+$`)
	statusPath = regexp.MustCompile(`status/(\d+)`)
)

// ExtractPostID accepts a bare numeric id or any URL whose path contains
// status/<digits> (x.com and twitter.com links alike). Returns "" when
// no id can be extracted.
func ExtractPostID(input string) string {
	if digitsOnly.MatchString(input) {
		return input
	}
	if m := statusPath.FindStringSubmatch(input); m != nil {
		return m[1]
	}
	return ""
}

// Tool reads X posts through the API v2 tweets endpoint.
type Tool struct {
	bearerToken string
	httpClient  *http.Client
}

// New creates the tool. bearerToken may be empty; execution then reports
// the missing credential to the model instead of failing the call.
func New(bearerToken string) *Tool {
	return &Tool{
		bearerToken: bearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (t *Tool) Definitions() []discogs.ToolDefinition {
	return []discogs.ToolDefinition{{
		Name:        "read_x_post",
		Description: "Reads the content of an X (Twitter) post given its URL or ID.",
		Parameters:  json.RawMessage(`{"type":"object","properties":{"url_or_id":{"type":"string","description":"The URL or ID of the X (Twitter) post to read."}},"required":["url_or_id"]}`),
	}}
}

func (t *Tool) Execute(ctx context.Context, _ string, args json.RawMessage) (discogs.ToolResult, error) {
	var params struct {
		URLOrID string `json:"url_or_id"`
	}
	if err := json.Unmarshal(args, &params); err != nil {
		return discogs.ToolResult{Error: "invalid args: " + err.Error()}, nil
	}

	postID := ExtractPostID(params.URLOrID)
	if postID == "" {
		return discogs.ToolResult{Error: "Error: Could not extract a valid post ID from the input."}, nil
	}
	if t.bearerToken == "" {
		return discogs.ToolResult{Error: "Error: X API bearer token not configured."}, nil
	}

	resp, err := t.lookup(ctx, postID)
	if err != nil {
		return discogs.ToolResult{Error: "Error reading X post: " + err.Error()}, nil
	}
	if len(resp.Data) == 0 {
		return discogs.ToolResult{Error: fmt.Sprintf("Error: No post found with ID %s.", postID)}, nil
	}
	return discogs.ToolResult{Content: formatPost(resp.Data[0], resp.Includes)}, nil
}

func (t *Tool) lookup(ctx context.Context, postID string) (*lookupResponse, error) {
	q := url.Values{}
	q.Set("ids", postID)
	q.Set("tweet.fields", strings.Join(tweetFields, ","))
	q.Set("expansions", strings.Join(expansions, ","))
	q.Set("media.fields", strings.Join(mediaFields, ","))
	q.Set("poll.fields", strings.Join(pollFields, ","))
	q.Set("user.fields", strings.Join(userFields, ","))
	q.Set("place.fields", strings.Join(placeFields, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/tweets?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+t.bearerToken)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &discogs.ErrHTTP{Status: resp.StatusCode, Body: string(body)}
	}

	var parsed lookupResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, err
	}
	return &parsed, nil
}

// formatPost flattens the post and its expansions into the report format
// the model consumes.
func formatPost(post tweet, inc includes) string {
	lines := []string{"=== X Post ===\n"}

	lines = append(lines, "Text: "+orNA(post.Text))
	lines = append(lines, "ID: "+orNA(post.ID))
	if post.CreatedAt != "" {
		lines = append(lines, "Created: "+post.CreatedAt)
	}

	if post.PublicMetrics != nil {
		m := post.PublicMetrics
		lines = append(lines, "\nEngagement Metrics:")
		lines = append(lines, fmt.Sprintf("  - Retweets: %d", m.RetweetCount))
		lines = append(lines, fmt.Sprintf("  - Replies: %d", m.ReplyCount))
		lines = append(lines, fmt.Sprintf("  - Likes: %d", m.LikeCount))
		lines = append(lines, fmt.Sprintf("  - Quotes: %d", m.QuoteCount))
		lines = append(lines, fmt.Sprintf("  - Bookmarks: %d", m.BookmarkCount))
		lines = append(lines, fmt.Sprintf("  - Impressions: %d", m.ImpressionCount))
	}

	if len(inc.Users) > 0 {
		u := inc.Users[0]
		lines = append(lines, fmt.Sprintf("\nAuthor: @%s (%s)", orNA(u.Username), orNA(u.Name)))
		if u.Description != "" {
			lines = append(lines, "Bio: "+u.Description)
		}
		if u.PublicMetrics != nil {
			lines = append(lines, fmt.Sprintf("Followers: %d | Following: %d", u.PublicMetrics.FollowersCount, u.PublicMetrics.FollowingCount))
		}
	}

	if len(inc.Media) > 0 {
		lines = append(lines, fmt.Sprintf("\nMedia: %d item(s)", len(inc.Media)))
		for i, m := range inc.Media {
			lines = append(lines, fmt.Sprintf("  %d. Type: %s", i+1, orUnknown(m.Type)))
			if m.URL != "" {
				lines = append(lines, "     URL: "+m.URL)
			}
			if m.AltText != "" {
				lines = append(lines, "     Alt: "+m.AltText)
			}
		}
	}

	if len(inc.Polls) > 0 {
		p := inc.Polls[0]
		lines = append(lines, "\nPoll: "+orUnknown(p.VotingStatus))
		for _, opt := range p.Options {
			lines = append(lines, fmt.Sprintf("  - %s: %d votes", orNA(opt.Label), opt.Votes))
		}
	}

	if len(inc.Places) > 0 {
		lines = append(lines, "\nLocation: "+orNA(inc.Places[0].FullName))
	}

	if post.Entities != nil {
		if len(post.Entities.URLs) > 0 {
			lines = append(lines, fmt.Sprintf("\nURLs: %d link(s)", len(post.Entities.URLs)))
			for _, u := range post.Entities.URLs {
				link := u.ExpandedURL
				if link == "" {
					link = u.URL
				}
				lines = append(lines, "  - "+orNA(link))
			}
		}
		if len(post.Entities.Mentions) > 0 {
			var mentions []string
			for _, m := range post.Entities.Mentions {
				mentions = append(mentions, "@"+m.Username)
			}
			lines = append(lines, "\nMentions: "+strings.Join(mentions, ", "))
		}
		if len(post.Entities.Hashtags) > 0 {
			var tags []string
			for _, h := range post.Entities.Hashtags {
				tags = append(tags, "#"+h.Tag)
			}
			lines = append(lines, "\nHashtags: "+strings.Join(tags, ", "))
		}
	}

	if len(post.ReferencedTweets) > 0 {
		lines = append(lines, "\nReferenced Tweets:")
		for _, ref := range post.ReferencedTweets {
			lines = append(lines, fmt.Sprintf("  - %s: %s", orUnknown(ref.Type), orNA(ref.ID)))
		}
	}

	if post.Lang != "" {
		lines = append(lines, "\nLanguage: "+post.Lang)
	}
	if post.Source != "" {
		lines = append(lines, "Source: "+post.Source)
	}
	if post.ConversationID != "" {
		lines = append(lines, "Conversation ID: "+post.ConversationID)
	}

	return strings.Join(lines, "\n")
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}

// ---- API v2 response types ----

type lookupResponse struct {
	Data     []tweet  `json:"data"`
	Includes includes `json:"includes"`
}

type tweet struct {
	ID             string `json:"id"`
	Text           string `json:"text"`
	CreatedAt      string `json:"created_at"`
	Lang           string `json:"lang"`
	Source         string `json:"source"`
	ConversationID string `json:"conversation_id"`
	PublicMetrics  *struct {
		RetweetCount    int `json:"retweet_count"`
		ReplyCount      int `json:"reply_count"`
		LikeCount       int `json:"like_count"`
		QuoteCount      int `json:"quote_count"`
		BookmarkCount   int `json:"bookmark_count"`
		ImpressionCount int `json:"impression_count"`
	} `json:"public_metrics"`
	Entities *struct {
		URLs []struct {
			URL         string `json:"url"`
			ExpandedURL string `json:"expanded_url"`
		} `json:"urls"`
		Mentions []struct {
			Username string `json:"username"`
		} `json:"mentions"`
		Hashtags []struct {
			Tag string `json:"tag"`
		} `json:"hashtags"`
	} `json:"entities"`
	ReferencedTweets []struct {
		Type string `json:"type"`
		ID   string `json:"id"`
	} `json:"referenced_tweets"`
}

type includes struct {
	Users []struct {
		Username      string `json:"username"`
		Name          string `json:"name"`
		Description   string `json:"description"`
		PublicMetrics *struct {
			FollowersCount int `json:"followers_count"`
			FollowingCount int `json:"following_count"`
		} `json:"public_metrics"`
	} `json:"users"`
	Media []struct {
		Type    string `json:"type"`
		URL     string `json:"url"`
		AltText string `json:"alt_text"`
	} `json:"media"`
	Polls []struct {
		VotingStatus string `json:"voting_status"`
		Options      []struct {
			Label string `json:"label"`
			Votes int    `json:"votes"`
		} `json:"options"`
	} `json:"polls"`
	Places []struct {
		FullName string `json:"full_name"`
	} `json:"places"`
}

var _ discogs.Tool = (*Tool)(nil)
