package pubmed

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
)

const pmcFixture = `<?xml version="1.0"?>
<pmc-articleset>
  <article>
    <front>
      <article-meta>
        <article-id pub-id-type="pmid">31622345</article-id>
        <article-id pub-id-type="pmc">PMC7654321</article-id>
      </article-meta>
    </front>
    <body>
      <sec>
        <title>Methods</title>
        <p>We randomly assigned 4744 patients with heart failure.</p>
      </sec>
    </body>
  </article>
</pmc-articleset>`

func pmcHandler(t *testing.T, elinkBody, efetchBody string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		switch {
		case strings.HasSuffix(r.URL.Path, "elink.fcgi"):
			w.Write([]byte(elinkBody))
		case strings.HasSuffix(r.URL.Path, "efetch.fcgi"):
			w.Write([]byte(efetchBody))
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}
}

const elinkHit = `{"linksets": [{"linksetdbs": [{"links": ["7654321"]}]}]}`

func TestFullTextHappyPath(t *testing.T) {
	client := newTestPubMed(t, pmcHandler(t, elinkHit, pmcFixture))

	text, err := client.FullText(context.Background(), "31622345")
	if err != nil {
		t.Fatalf("FullText: %v", err)
	}
	if !strings.Contains(text, "We randomly assigned 4744 patients") {
		t.Fatalf("text = %q", text)
	}
	if strings.Contains(text, "<") {
		t.Fatal("tags must be stripped")
	}
}

func TestFullTextNoPMCDeposit(t *testing.T) {
	client := newTestPubMed(t, pmcHandler(t, `{"linksets": [{"linksetdbs": []}]}`, ""))

	_, err := client.FullText(context.Background(), "31622345")
	if !errors.Is(err, ErrFullTextUnavailable) {
		t.Fatalf("err = %v, want ErrFullTextUnavailable", err)
	}
}

func TestFullTextPMIDMismatch(t *testing.T) {
	wrong := strings.Replace(pmcFixture, "31622345", "99999999", 1)
	client := newTestPubMed(t, pmcHandler(t, elinkHit, wrong))

	_, err := client.FullText(context.Background(), "31622345")
	if !errors.Is(err, ErrFullTextUnavailable) {
		t.Fatalf("err = %v, want ErrFullTextUnavailable", err)
	}
}

func TestFullTextUnparsableDeposit(t *testing.T) {
	client := newTestPubMed(t, pmcHandler(t, elinkHit, "not xml at all"))

	_, err := client.FullText(context.Background(), "31622345")
	if !errors.Is(err, ErrFullTextUnavailable) {
		t.Fatalf("err = %v, want ErrFullTextUnavailable", err)
	}
}

func TestPMIDFromPMCXML(t *testing.T) {
	pmid, ok := pmidFromPMCXML([]byte(pmcFixture))
	if !ok {
		t.Fatal("expected a PMID")
	}
	if pmid != "31622345" {
		t.Fatalf("pmid = %q", pmid)
	}

	if _, ok := pmidFromPMCXML([]byte(`<article><article-id pub-id-type="pmc">PMC1</article-id></article>`)); ok {
		t.Fatal("pmc-typed id must not satisfy the cross-check")
	}
}
