package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://eutils.ncbi.nlm.nih.gov/entrez/eutils"
	defaultTool    = "clara-backend"
)

// ErrFullTextUnavailable means the article has no open-access full text
// in PMC. Callers treat it as "skip enrichment", not a failure.
var ErrFullTextUnavailable = errors.New("full text unavailable")

// Client talks to the NCBI E-utilities. NCBI asks for an email on every
// request; an API key lifts the rate limit.
type Client struct {
	baseURL    string
	email      string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a PubMed client.
func NewClient(email, apiKey string) *Client {
	if strings.TrimSpace(email) == "" {
		email = "user@example.com"
	}
	return &Client{
		baseURL: defaultBaseURL,
		email:   email,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Count returns how many papers PubMed holds for a query.
func (c *Client) Count(ctx context.Context, query string) (int, error) {
	body, err := c.get(ctx, "esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {"0"},
		"retmode": {"json"},
	})
	if err != nil {
		return 0, err
	}

	var parsed esearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, fmt.Errorf("esearch parse: %w", err)
	}
	count, err := strconv.Atoi(parsed.Result.Count)
	if err != nil {
		return 0, fmt.Errorf("esearch count %q: %w", parsed.Result.Count, err)
	}
	return count, nil
}

// Search resolves up to limit PMIDs for a query. An empty result is not
// an error.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]string, error) {
	if limit <= 0 {
		limit = 20
	}
	body, err := c.get(ctx, "esearch.fcgi", url.Values{
		"db":      {"pubmed"},
		"term":    {query},
		"retmax":  {strconv.Itoa(limit)},
		"retmode": {"json"},
	})
	if err != nil {
		return nil, err
	}

	var parsed esearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("esearch parse: %w", err)
	}
	return parsed.Result.IDList, nil
}

// Fetch retrieves full structured records for a PMID set in one batched
// call, preserving the given order where PubMed does.
func (c *Client) Fetch(ctx context.Context, ids []string) ([]Article, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	body, err := c.get(ctx, "efetch.fcgi", url.Values{
		"db":      {"pubmed"},
		"id":      {strings.Join(ids, ",")},
		"retmode": {"xml"},
	})
	if err != nil {
		return nil, err
	}

	var set articleSet
	if err := xml.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("efetch parse: %w", err)
	}

	articles := make([]Article, 0, len(set.Articles))
	for _, raw := range set.Articles {
		articles = append(articles, raw.toArticle())
	}
	return articles, nil
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	params.Set("email", c.email)
	params.Set("tool", defaultTool)
	if c.apiKey != "" {
		params.Set("api_key", c.apiKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pubmed %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pubmed %s: http status %d", endpoint, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

type esearchResponse struct {
	Result struct {
		Count  string   `json:"count"`
		IDList []string `json:"idlist"`
	} `json:"esearchresult"`
}

// XML shapes for the subset of the PubMed DTD this client reads.

type articleSet struct {
	XMLName  xml.Name     `xml:"PubmedArticleSet"`
	Articles []rawArticle `xml:"PubmedArticle"`
}

type rawArticle struct {
	PMID    string `xml:"MedlineCitation>PMID"`
	Article struct {
		Title    string `xml:"ArticleTitle"`
		Abstract struct {
			Sections []struct {
				Label string `xml:"Label,attr"`
				Text  string `xml:",chardata"`
			} `xml:"AbstractText"`
		} `xml:"Abstract"`
		Journal struct {
			Title   string `xml:"Title"`
			PubDate struct {
				Year  string `xml:"Year"`
				Month string `xml:"Month"`
				Day   string `xml:"Day"`
			} `xml:"JournalIssue>PubDate"`
		} `xml:"Journal"`
		Authors []struct {
			LastName string `xml:"LastName"`
			Initials string `xml:"Initials"`
		} `xml:"AuthorList>Author"`
		ELocationIDs []struct {
			Type  string `xml:"EIdType,attr"`
			Value string `xml:",chardata"`
		} `xml:"ELocationID"`
	} `xml:"MedlineCitation>Article"`
	ArticleIDs []struct {
		Type  string `xml:"IdType,attr"`
		Value string `xml:",chardata"`
	} `xml:"PubmedData>ArticleIdList>ArticleId"`
}

func (r rawArticle) toArticle() Article {
	a := Article{
		PMID:    strings.TrimSpace(r.PMID),
		Title:   strings.TrimSpace(r.Article.Title),
		Journal: strings.TrimSpace(r.Article.Journal.Title),
	}

	var sections []string
	for _, s := range r.Article.Abstract.Sections {
		text := strings.TrimSpace(s.Text)
		if text == "" {
			continue
		}
		if s.Label != "" {
			text = s.Label + ": " + text
		}
		sections = append(sections, text)
	}
	a.Abstract = strings.Join(sections, "\n")

	for _, author := range r.Article.Authors {
		name := strings.TrimSpace(author.LastName)
		if name == "" {
			continue
		}
		if author.Initials != "" {
			name += ", " + author.Initials
		}
		a.Authors = append(a.Authors, name)
	}

	pd := r.Article.Journal.PubDate
	parts := []string{}
	for _, p := range []string{pd.Year, pd.Month, pd.Day} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, strings.TrimSpace(p))
		}
	}
	a.PubDate = strings.Join(parts, "-")

	for _, eloc := range r.Article.ELocationIDs {
		if strings.EqualFold(eloc.Type, "doi") {
			a.DOI = strings.TrimSpace(eloc.Value)
			break
		}
	}
	if a.DOI == "" {
		for _, id := range r.ArticleIDs {
			if strings.EqualFold(id.Type, "doi") {
				a.DOI = strings.TrimSpace(id.Value)
				break
			}
		}
	}
	return a
}
