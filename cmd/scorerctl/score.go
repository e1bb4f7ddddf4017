package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/germanattanasio/answer-retrieval/internal/engine"
	"github.com/germanattanasio/answer-retrieval/internal/merge"
	"github.com/germanattanasio/answer-retrieval/internal/scorer"
)

type scoreOptions struct {
	query   string
	doc     string
	docFile string
	asJSON  bool
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	so := &scoreOptions{}
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Score one query/document pair with every scorer",
		Long: `Score one query/document pair with the scorers of the scorer file and
print each feature with its formatted value.

The query is a JSON object of request parameters and must contain "q".
The document is a JSON object of fields, given inline or read from a file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			query, doc, err := so.parse()
			if err != nil {
				return err
			}
			registry, cleanup, err := opts.loadRegistry()
			if err != nil {
				return err
			}
			defer cleanup()

			eng := engine.New(registry, engine.Config{Workers: registry.Len(), Timeout: opts.timeout})
			vec, err := eng.Scores(cmd.Context(), query, doc)
			if err != nil {
				return err
			}
			return so.print(cmd, vec)
		},
	}
	cmd.Flags().StringVar(&so.query, "query", "", `query parameters as JSON, e.g. {"q":"what is rust"}`)
	cmd.Flags().StringVar(&so.doc, "doc", "", "document fields as JSON")
	cmd.Flags().StringVar(&so.docFile, "doc-file", "", "file holding the document JSON")
	cmd.Flags().BoolVar(&so.asJSON, "json", false, "output as JSON")
	_ = cmd.MarkFlagRequired("query")
	cmd.MarkFlagsMutuallyExclusive("doc", "doc-file")
	return cmd
}

func (so *scoreOptions) parse() (scorer.Query, scorer.Document, error) {
	var query scorer.Query
	if err := json.Unmarshal([]byte(so.query), &query); err != nil {
		return nil, nil, fmt.Errorf("parsing --query: %w", err)
	}
	if query.Text() == "" {
		return nil, nil, fmt.Errorf("--query must contain a non-empty \"q\"")
	}

	raw := []byte(so.doc)
	if so.docFile != "" {
		data, err := os.ReadFile(so.docFile)
		if err != nil {
			return nil, nil, fmt.Errorf("reading --doc-file: %w", err)
		}
		raw = data
	}
	doc := scorer.Document{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &doc); err != nil {
			return nil, nil, fmt.Errorf("parsing document: %w", err)
		}
	}
	return query, doc, nil
}

func (so *scoreOptions) print(cmd *cobra.Command, vec scorer.FeatureVector) error {
	out := cmd.OutOrStdout()
	if so.asJSON {
		features := make([]map[string]any, len(vec))
		for i, f := range vec {
			features[i] = map[string]any{"name": f.Name, "value": f.Value}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{"features": features})
	}
	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FEATURE\tVALUE")
	for _, f := range vec {
		fmt.Fprintf(w, "%s\t%s\n", f.Name, merge.FormatScore(f.Value))
	}
	return w.Flush()
}
