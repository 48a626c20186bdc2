package pubmed

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"clara-backend/internal/shared/telemetry"
)

var (
	xmlTagRe     = regexp.MustCompile(`<[^>]+>`)
	whitespaceRe = regexp.MustCompile(`\s+`)
)

// FullText attempts to fetch the open-access full text of an article
// from PubMed Central. It returns ErrFullTextUnavailable when the
// article has no PMC deposit or the deposit fails the PMID cross-check.
func (c *Client) FullText(ctx context.Context, pmid string) (string, error) {
	pmcID, err := c.linkToPMC(ctx, pmid)
	if err != nil {
		return "", err
	}

	body, err := c.get(ctx, "efetch.fcgi", url.Values{
		"db":      {"pmc"},
		"id":      {pmcID},
		"rettype": {"xml"},
	})
	if err != nil {
		return "", err
	}

	// The deposit must reference the PMID we asked about; mismatches and
	// unparsable XML are both skipped for safety.
	found, ok := pmidFromPMCXML(body)
	if !ok {
		telemetry.Warn("pubmed.pmc_crosscheck_failed", map[string]any{"pmid": pmid, "pmc_id": pmcID})
		return "", ErrFullTextUnavailable
	}
	if strings.TrimSpace(found) != strings.TrimSpace(pmid) {
		telemetry.Warn("pubmed.pmc_pmid_mismatch", map[string]any{
			"pmid":   pmid,
			"pmc_id": pmcID,
			"found":  found,
		})
		return "", ErrFullTextUnavailable
	}

	text := xmlTagRe.ReplaceAllString(string(body), " ")
	text = whitespaceRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text), nil
}

func (c *Client) linkToPMC(ctx context.Context, pmid string) (string, error) {
	body, err := c.get(ctx, "elink.fcgi", url.Values{
		"dbfrom":  {"pubmed"},
		"db":      {"pmc"},
		"id":      {pmid},
		"retmode": {"json"},
	})
	if err != nil {
		return "", err
	}

	var parsed elinkResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("elink parse: %w", err)
	}
	for _, linkset := range parsed.LinkSets {
		for _, db := range linkset.LinkSetDBs {
			for _, link := range db.Links {
				if link != "" {
					return link, nil
				}
			}
		}
	}
	return "", ErrFullTextUnavailable
}

type elinkResponse struct {
	LinkSets []struct {
		LinkSetDBs []struct {
			Links []string `json:"links"`
		} `json:"linksetdbs"`
	} `json:"linksets"`
}

// pmidFromPMCXML walks the PMC article XML looking for
// <article-id pub-id-type="pmid">.
func pmidFromPMCXML(body []byte) (string, bool) {
	decoder := xml.NewDecoder(strings.NewReader(string(body)))
	for {
		tok, err := decoder.Token()
		if err != nil {
			return "", false
		}
		start, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		if !strings.HasSuffix(start.Name.Local, "article-id") {
			continue
		}
		isPMID := false
		for _, attr := range start.Attr {
			if attr.Name.Local == "pub-id-type" && attr.Value == "pmid" {
				isPMID = true
				break
			}
		}
		if !isPMID {
			continue
		}
		var value string
		if err := decoder.DecodeElement(&value, &start); err != nil {
			return "", false
		}
		return strings.TrimSpace(value), true
	}
}
