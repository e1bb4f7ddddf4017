package service

import (
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/germanattanasio/answer-retrieval/internal/merge"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

// ErrMissingParameter is returned when a required request parameter is absent.
var ErrMissingParameter = errors.New("missing required parameter")

// param returns the first value of name, def when absent, or
// ErrMissingParameter when absent without a default.
func param(params url.Values, name, def string) (string, error) {
	if vals, ok := params[name]; ok && len(vals) > 0 {
		return vals[0], nil
	}
	if def != "" {
		return def, nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingParameter, name)
}

func optional(params url.Values, name string) (string, bool) {
	vals, ok := params[name]
	if !ok || len(vals) == 0 {
		return "", false
	}
	return vals[0], true
}

// splitFields parses a comma separated field list, dropping blanks and
// duplicates while keeping order.
func splitFields(fl string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, f := range strings.Split(fl, ",") {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

// fieldPlan describes which fields are fetched from the search service and
// which of them are removed again before results are returned.
type fieldPlan struct {
	// requested are the caller's fields.
	requested []string
	// scoring are the fields scorers see: requested plus required fields.
	scoring []string
	// suppressed are required fields the caller did not ask for.
	suppressed []string
}

func planFields(fl string, required []string) fieldPlan {
	requested := splitFields(fl)
	inRequested := make(map[string]struct{}, len(requested))
	for _, f := range requested {
		inRequested[f] = struct{}{}
	}

	p := fieldPlan{requested: requested}
	for _, f := range requested {
		if f != merge.FeatureVectorField {
			p.scoring = append(p.scoring, f)
		}
	}
	extra := make([]string, 0, len(required))
	for _, f := range required {
		if _, ok := inRequested[f]; ok || f == merge.FeatureVectorField {
			continue
		}
		extra = append(extra, f)
	}
	sort.Strings(extra)
	p.scoring = append(p.scoring, extra...)
	p.suppressed = extra
	return p
}

// fetchList is the fl sent upstream: every scoring field plus featureVector.
func (p fieldPlan) fetchList() string {
	return strings.Join(append(append([]string(nil), p.scoring...), merge.FeatureVectorField), ",")
}

// prepareDocuments projects docs onto the scoring fields for the scorers.
// List values are reduced to their first element.
func prepareDocuments(docs []scorer.Document, fields []string) []scorer.Document {
	out := make([]scorer.Document, len(docs))
	for i, doc := range docs {
		prepared := make(scorer.Document, len(fields))
		for _, f := range fields {
			v, ok := doc[f]
			if !ok {
				continue
			}
			if list, ok := v.([]any); ok {
				if len(list) == 0 {
					v = nil
				} else {
					v = list[0]
				}
			}
			prepared[f] = v
		}
		out[i] = prepared
	}
	return out
}

// toQuery flattens request parameters into the scorer query.
func toQuery(params url.Values) scorer.Query {
	q := make(scorer.Query, len(params))
	for k, v := range params {
		if len(v) > 0 {
			q[k] = v[0]
		}
	}
	return q
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
