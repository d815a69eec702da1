package research

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/auralabs/aura/pkg/errors"
	"github.com/auralabs/aura/pkg/logging"
)

const defaultArxivBase = "https://export.arxiv.org/api/query"

// ArxivClient queries the arXiv export API.
type ArxivClient struct {
	base    string
	http    *http.Client
	limiter *rate.Limiter
	logger  *logging.Logger
}

// NewArxivClient creates a client. The limiter allows one request per
// three seconds, per arXiv's usage policy.
func NewArxivClient(logger *logging.Logger) *ArxivClient {
	return &ArxivClient{
		base:    defaultArxivBase,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Every(3*time.Second), 1),
		logger:  logger,
	}
}

// FetchByID returns metadata for one arXiv id. A version suffix
// ("2301.07041v2") is stripped.
func (c *ArxivClient) FetchByID(ctx context.Context, arxivID string) (*Paper, error) {
	arxivID = strings.TrimPrefix(arxivID, "arxiv:")
	if i := strings.LastIndex(arxivID, "v"); i > 0 && isDigits(arxivID[i+1:]) {
		arxivID = arxivID[:i]
	}

	feed, err := c.query(ctx, url.Values{"id_list": {arxivID}})
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 || strings.Contains(feed.Entries[0].Title, "Error") {
		return nil, errors.Newf(errors.ErrCodeNotFound, "arXiv paper not found: %s", arxivID)
	}
	return entryToPaper(&feed.Entries[0]), nil
}

// SearchFirst returns the best match for a free-text query.
func (c *ArxivClient) SearchFirst(ctx context.Context, query string) (*Paper, error) {
	feed, err := c.query(ctx, url.Values{
		"search_query": {"all:" + query},
		"max_results":  {"1"},
	})
	if err != nil {
		return nil, err
	}
	if len(feed.Entries) == 0 {
		return nil, errors.Newf(errors.ErrCodeNotFound, "no arXiv results for: %s", query)
	}
	return entryToPaper(&feed.Entries[0]), nil
}

func (c *ArxivClient) query(ctx context.Context, params url.Values) (*atomFeed, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeTimeout, "waiting for arXiv rate limit")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"?"+params.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "building arXiv request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAPIError, "arXiv request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.Newf(errors.ErrCodeAPIError, "arXiv returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAPIError, "reading arXiv response")
	}

	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeAPIError, "parsing arXiv response")
	}
	c.logger.Debug(logging.CategoryResearch, "arxiv_query", fmt.Sprintf("%d entries", len(feed.Entries)), nil)
	return &feed, nil
}

type atomFeed struct {
	Entries []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Authors   []struct {
		Name string `xml:"name"`
	} `xml:"author"`
}

func entryToPaper(e *atomEntry) *Paper {
	p := &Paper{
		Title:    strings.Join(strings.Fields(e.Title), " "),
		Abstract: strings.TrimSpace(e.Summary),
		URL:      e.ID,
	}
	for i, a := range e.Authors {
		if i >= 10 {
			break
		}
		p.Authors = append(p.Authors, a.Name)
	}
	if len(e.Published) >= 4 {
		if y, err := strconv.Atoi(e.Published[:4]); err == nil {
			p.Year = y
		}
	}
	if i := strings.Index(e.ID, "/abs/"); i >= 0 {
		id := e.ID[i+len("/abs/"):]
		if j := strings.LastIndex(id, "v"); j > 0 && isDigits(id[j+1:]) {
			id = id[:j]
		}
		p.ArxivID = id
	}
	return p
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
