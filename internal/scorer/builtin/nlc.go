package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/germanattanasio/answer-retrieval/internal/memory"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
	"github.com/germanattanasio/answer-retrieval/internal/upstream"
)

const (
	classifierService = "natural_language_classifier"
	statusAvailable   = "Available"
	validateTimeout   = 10 * time.Second
)

// classifierCredentials locate one trained text classifier.
type classifierCredentials struct {
	URL          string
	Username     string
	Password     string
	ClassifierID string
}

func credentialsFrom(get func(key string) string) (classifierCredentials, error) {
	c := classifierCredentials{
		URL:          strings.TrimSuffix(get("url"), "/"),
		Username:     get("username"),
		Password:     get("password"),
		ClassifierID: get("classifier_id"),
	}
	switch {
	case c.URL == "":
		return c, fmt.Errorf("classifier url is not set")
	case c.ClassifierID == "":
		return c, fmt.Errorf("classifier_id is not set")
	}
	return c, nil
}

type classifierStatus struct {
	Status            string `json:"status"`
	StatusDescription string `json:"status_description"`
}

type classification struct {
	Classes []struct {
		ClassName  string  `json:"class_name"`
		Confidence float64 `json:"confidence"`
	} `json:"classes"`
}

// classifier calls a remote text classifier and remembers its answers for
// the most recent questions.
type classifier struct {
	creds  classifierCredentials
	client *http.Client
	cache  *memory.Cache[string, classification]
}

// newClassifier checks that the classifier exists and is Available.
func newClassifier(creds classifierCredentials, client *http.Client, cacheSize int) (*classifier, error) {
	c := &classifier{
		creds:  creds,
		client: client,
		cache:  memory.NewCache[string, classification](cacheSize),
	}
	ctx, cancel := context.WithTimeout(context.Background(), validateTimeout)
	defer cancel()

	var st classifierStatus
	if err := c.get(ctx, "status", "", &st); err != nil {
		return nil, fmt.Errorf("checking classifier %s: %w", creds.ClassifierID, err)
	}
	if st.Status != statusAvailable {
		return nil, fmt.Errorf("classifier %s has status %q, not %q: %s",
			creds.ClassifierID, st.Status, statusAvailable, st.StatusDescription)
	}
	return c, nil
}

func (c *classifier) classify(ctx context.Context, question string) (classification, error) {
	return c.cache.GetOrLoad(question, func() (classification, error) {
		var out classification
		err := c.get(ctx, "classify", question, &out)
		return out, err
	})
}

func (c *classifier) get(ctx context.Context, op, question string, out any) error {
	endpoint := fmt.Sprintf("%s/v1/classifiers/%s", c.creds.URL, url.PathEscape(c.creds.ClassifierID))
	if op == "classify" {
		endpoint += "/classify?" + url.Values{"text": {question}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.creds.Username != "" {
		req.SetBasicAuth(c.creds.Username, c.creds.Password)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return upstream.NewUpstreamError(classifierService, op, resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", op, err)
	}
	return nil
}

// confidence returns the confidence the classifier gives class for question,
// or 0 when class is not among the returned classes.
func (c *classifier) confidence(ctx context.Context, question, class string) (float64, error) {
	res, err := c.classify(ctx, question)
	if err != nil {
		return 0, err
	}
	for _, cl := range res.Classes {
		if cl.ClassName == class {
			return cl.Confidence, nil
		}
	}
	return 0, nil
}

// NLCIntentScorer classifies the query and returns the confidence of the
// class named by the document id.
type NLCIntentScorer struct {
	scorer.Info
	classifier *classifier
}

func newNLCIntentScorer(args scorer.Args, deps scorer.Deps) (scorer.Scorer, error) {
	creds, err := credentialsFrom(func(key string) string { return args.String("service_"+key, args.String(key, "")) })
	if err != nil {
		return nil, err
	}
	size, err := args.Int("cache_size", memory.DefaultCapacity)
	if err != nil {
		return nil, err
	}
	cl, err := newClassifier(creds, httpClient(deps), size)
	if err != nil {
		return nil, err
	}
	return &NLCIntentScorer{Info: scorer.NewInfo(args, "NLCIntentScorer", "nlcis"), classifier: cl}, nil
}

func (s *NLCIntentScorer) RequiredFields() []string { return []string{"id"} }

func (s *NLCIntentScorer) ScoreQueryDocument(ctx context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	q, err := queryText(query)
	if err != nil {
		return 0, err
	}
	id := doc.ID()
	if id == "" {
		return 0, fmt.Errorf("document has no id")
	}
	return s.classifier.confidence(ctx, q, id)
}

// MultiNLCIntentScorer picks a classifier by the value of a document field
// and scores with it like NLCIntentScorer. Documents whose value has no
// classifier score 0.
type MultiNLCIntentScorer struct {
	scorer.Info
	field       string
	classifiers map[string]*classifier
}

func newMultiNLCIntentScorer(args scorer.Args, deps scorer.Deps) (scorer.Scorer, error) {
	field, err := args.RequireString("field_name")
	if err != nil {
		return nil, err
	}
	mapping, err := args.Map("field_to_nlc")
	if err != nil {
		return nil, err
	}
	size, err := args.Int("cache_size", memory.DefaultCapacity)
	if err != nil {
		return nil, err
	}

	s := &MultiNLCIntentScorer{
		Info:        scorer.NewInfo(args, "MultiNLCIntentScorer", "mnlcis"),
		field:       field,
		classifiers: make(map[string]*classifier, len(mapping)),
	}
	values := make([]string, 0, len(mapping))
	for v := range mapping {
		values = append(values, v)
	}
	sort.Strings(values)
	for _, v := range values {
		raw, ok := mapping[v].(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field_to_nlc[%q]: expected object, got %T", v, mapping[v])
		}
		sub := scorer.Args(raw)
		creds, err := credentialsFrom(func(key string) string { return sub.String(key, "") })
		if err != nil {
			return nil, fmt.Errorf("field_to_nlc[%q]: %w", v, err)
		}
		cl, err := newClassifier(creds, httpClient(deps), size)
		if err != nil {
			return nil, fmt.Errorf("field_to_nlc[%q]: %w", v, err)
		}
		s.classifiers[v] = cl
	}
	return s, nil
}

func (s *MultiNLCIntentScorer) RequiredFields() []string {
	if s.field == "id" {
		return []string{"id"}
	}
	return []string{"id", s.field}
}

func (s *MultiNLCIntentScorer) ScoreQueryDocument(ctx context.Context, query scorer.Query, doc scorer.Document) (float64, error) {
	value, ok := doc.String(s.field)
	if !ok {
		return 0, nil
	}
	cl, ok := s.classifiers[value]
	if !ok {
		return 0, nil
	}
	q, err := queryText(query)
	if err != nil {
		return 0, err
	}
	id := doc.ID()
	if id == "" {
		return 0, fmt.Errorf("document has no id")
	}
	return cl.confidence(ctx, q, id)
}

var (
	_ scorer.QueryDocumentScorer = (*NLCIntentScorer)(nil)
	_ scorer.QueryDocumentScorer = (*MultiNLCIntentScorer)(nil)
)
