package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"kwrec/internal/autocomplete"
	"kwrec/internal/config"
	"kwrec/internal/model"
	"kwrec/internal/models"
	"kwrec/internal/recommend"
	"kwrec/internal/store"
	"kwrec/internal/validation"
)

var (
	queryModel   string
	queryLibrary string
	queryLimit   int
	queryFormat  string
	queryMode    string
)

var recommendCmd = &cobra.Command{
	Use:   "recommend <keyword>...",
	Short: "Recommend keywords likely to follow a sequence",
	Long: `Recommend keywords likely to follow the given keywords, most recent last.

Examples:
  kwrec recommend "Open Browser"
  kwrec recommend "Open Browser" "Input Text" --library SeleniumLibrary`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRecommend,
}

var suggestCmd = &cobra.Command{
	Use:   "suggest <partial>",
	Short: "Complete a partially typed keyword name",
	Args:  cobra.ExactArgs(1),
	RunE:  runSuggest,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Summarise the stored model",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var popularCmd = &cobra.Command{
	Use:   "popular",
	Short: "List the most used keywords",
	Args:  cobra.NoArgs,
	RunE:  runPopular,
}

func init() {
	for _, c := range []*cobra.Command{recommendCmd, suggestCmd, statsCmd, popularCmd} {
		c.Flags().StringVarP(&queryModel, "model", "m", "", "snapshot file to query (default: the configured store)")
		c.Flags().StringVar(&queryFormat, "format", "human", "output format (human, json)")
	}
	for _, c := range []*cobra.Command{recommendCmd, suggestCmd, popularCmd} {
		c.Flags().StringVarP(&queryLibrary, "library", "l", "", "only keywords from this library")
		c.Flags().IntVarP(&queryLimit, "limit", "n", 0, "maximum results (default from the tuning file)")
	}
	suggestCmd.Flags().StringVar(&queryMode, "mode", "", "fuzzy, substring or prefix (default autocomplete.mode)")
	rootCmd.AddCommand(recommendCmd, suggestCmd, statsCmd, popularCmd)
}

// loadQueryModel reads the model from --model or the configured store.
func loadQueryModel(ctx context.Context) (*model.Model, *config.Tuning, error) {
	cfg, tuning, err := loadSettings()
	if err != nil {
		return nil, nil, err
	}
	var m *model.Model
	if queryModel != "" {
		m, err = store.NewFileStore(queryModel).Load(ctx)
	} else {
		var be *backend
		be, err = openBackend(ctx, cfg, tuning)
		if err != nil {
			return nil, nil, err
		}
		defer be.Close()
		m, err = be.Load(ctx)
	}
	if errors.Is(err, store.ErrNoSnapshot) {
		return nil, nil, fmt.Errorf("no trained model found; run `kwrec train` first")
	}
	if err != nil {
		return nil, nil, err
	}
	return m, tuning, nil
}

func runRecommend(cmd *cobra.Command, args []string) error {
	m, tuning, err := loadQueryModel(cmd.Context())
	if err != nil {
		return err
	}
	ctxKeywords := validation.NormalizeContext(args)
	for _, k := range ctxKeywords {
		if !validation.ValidateKeyword(k) {
			return fmt.Errorf("invalid keyword %q", k)
		}
	}
	limit := queryLimit
	if limit == 0 {
		limit = tuning.Recommend.DefaultMaxResults
	}

	engine := recommend.New(tuning.RecommendOptions())
	res := engine.Recommend(m, recommend.Query{
		Context:    ctxKeywords,
		Library:    validation.NormalizeKeyword(queryLibrary),
		MaxResults: limit,
	})
	if queryFormat == "json" {
		return writeJSON(models.RecommendResponse{
			Context:         ctxKeywords,
			Library:         queryLibrary,
			Order:           res.Order,
			Outcome:         res.Outcome,
			Recommendations: res.Items,
		})
	}

	if len(res.Items) == 0 {
		fmt.Println("No recommendations.")
		return nil
	}
	fmt.Printf("After %s (%s):\n\n", strings.Join(ctxKeywords, " > "), res.Outcome)
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tLIBRARY\tCONFIDENCE\tUSAGE\tTHEN")
	for _, r := range res.Items {
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%d\t%s\n",
			r.Keyword, r.Library, r.Confidence, r.UsageCount, strings.Join(r.NextKeywords, ", "))
	}
	return w.Flush()
}

func runSuggest(cmd *cobra.Command, args []string) error {
	m, tuning, err := loadQueryModel(cmd.Context())
	if err != nil {
		return err
	}
	if queryMode != "" {
		tuning.Autocomplete.Mode = queryMode
		if err := tuning.Validate(); err != nil {
			return err
		}
	}
	limit := queryLimit
	if limit == 0 {
		limit = tuning.Autocomplete.DefaultMaxResults
	}

	engine := autocomplete.New(tuning.AutocompleteOptions())
	suggestions := engine.Suggest(m, autocomplete.Query{
		Partial:    args[0],
		Library:    validation.NormalizeKeyword(queryLibrary),
		MaxResults: limit,
	})
	if queryFormat == "json" {
		return writeJSON(models.AutocompleteResponse{
			Query:       args[0],
			Library:     queryLibrary,
			Mode:        string(engine.Mode()),
			Suggestions: suggestions,
		})
	}

	if len(suggestions) == 0 {
		fmt.Println("No matches.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tLIBRARY\tMATCH\tUSAGE\tSCORE")
	for _, s := range suggestions {
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.3f\n", s.Keyword, s.Library, s.Match, s.UsageCount, s.Score)
	}
	return w.Flush()
}

func runPopular(cmd *cobra.Command, args []string) error {
	m, tuning, err := loadQueryModel(cmd.Context())
	if err != nil {
		return err
	}
	limit := queryLimit
	if limit == 0 {
		limit = tuning.Recommend.DefaultMaxResults
	}
	popular := recommend.Popular(m, validation.NormalizeKeyword(queryLibrary), limit)
	if queryFormat == "json" {
		return writeJSON(popular)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "KEYWORD\tLIBRARY\tFREQUENCY")
	for _, p := range popular {
		fmt.Fprintf(w, "%s\t%s\t%d\n", p.Keyword, p.Library, p.Frequency)
	}
	return w.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	m, _, err := loadQueryModel(cmd.Context())
	if err != nil {
		return err
	}
	libs := recommend.Libraries(m)
	if queryFormat == "json" {
		return writeJSON(struct {
			Model     models.ModelInfo      `json:"model"`
			Libraries []models.LibraryStats `json:"libraries"`
		}{m.Info(), libs})
	}

	fmt.Printf("Model %s (order %d), built %s\n", m.ID(), m.Order(), m.BuiltAt().Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("  %d traces, %d events, %d keywords\n", m.Traces(), m.Events(), m.Size())
	for k := 1; k <= m.Order(); k++ {
		fmt.Printf("  order %d contexts: %d\n", k, m.Contexts(k))
	}
	if len(libs) == 0 {
		return nil
	}

	fmt.Println()
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LIBRARY\tKEYWORDS\tUSAGE\tTOP")
	for _, l := range libs {
		top := make([]string, len(l.TopKeywords))
		for i, k := range l.TopKeywords {
			top[i] = k.Keyword
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", l.Library, l.KeywordCount, l.TotalUsage, strings.Join(top, ", "))
	}
	return w.Flush()
}
