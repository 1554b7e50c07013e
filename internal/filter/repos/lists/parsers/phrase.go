package parsers

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// phraseLine is the tokenised form of `<a>,<b><10>`.
type phraseLine struct {
	phrases   []string
	weight    int
	hasWeight bool
}

// tokenizePhraseLine splits a phrase line into bracketed phrases joined by
// commas and an optional trailing bracketed weight.
func tokenizePhraseLine(s string) (phraseLine, error) {
	var pl phraseLine
	i := 0
	for {
		if i >= len(s) || s[i] != '<' {
			return pl, fmt.Errorf("expected '<' at column %d", i+1)
		}
		end := strings.IndexByte(s[i+1:], '>')
		if end < 0 {
			return pl, fmt.Errorf("unterminated phrase at column %d", i+1)
		}
		tok := s[i+1 : i+1+end]
		i += end + 2
		pl.phrases = append(pl.phrases, tok)

		if i < len(s) && s[i] == ',' {
			i++
			continue
		}
		if i < len(s) && s[i] == '<' {
			end := strings.IndexByte(s[i+1:], '>')
			if end < 0 {
				return pl, fmt.Errorf("unterminated weight at column %d", i+1)
			}
			raw := strings.TrimSpace(s[i+1 : i+1+end])
			w, err := strconv.Atoi(raw)
			if err != nil {
				return pl, fmt.Errorf("weight %q is not an integer", raw)
			}
			pl.weight, pl.hasWeight = w, true
			i += end + 2
		}
		break
	}
	if tail := strings.TrimSpace(stripInlineComment(s[i:])); tail != "" {
		return pl, fmt.Errorf("unexpected text after phrase: %q", tail)
	}
	for n, p := range pl.phrases {
		if strings.TrimSpace(p) == "" {
			return pl, fmt.Errorf("empty phrase in position %d", n+1)
		}
	}
	return pl, nil
}

// addPhraseLine turns one phrase line into entries. A combination line adds
// the combination entry followed by one component entry per phrase.
func (b *Builder) addPhraseLine(line string, opts Options, st fileState) error {
	pl, err := tokenizePhraseLine(line)
	if err != nil {
		return err
	}
	switch {
	case opts.Kind == domain.EntryWeighted && !pl.hasWeight:
		return fmt.Errorf("missing weight on weighted phrase")
	case opts.Kind != domain.EntryWeighted && pl.hasWeight:
		return fmt.Errorf("weight not allowed on %s phrase", opts.Kind)
	case pl.weight > math.MaxInt32 || pl.weight < math.MinInt32:
		return fmt.Errorf("weight %d out of range", pl.weight)
	}

	texts := make([]string, len(pl.phrases))
	for i, p := range pl.phrases {
		texts[i] = utils.NormalizePhrase(p, opts.PreserveCase)
	}

	entries := &b.table.Entries
	if len(texts) == 1 {
		e := domain.Entry{
			Text:     texts[0],
			Kind:     opts.Kind,
			Weight:   int32(pl.weight),
			Category: st.category,
			Window:   st.window,
			Parent:   domain.NoEntry,
		}
		if err := e.Validate(); err != nil {
			return err
		}
		*entries = append(*entries, e)
		opts.Logger.Debug(map[string]any{"phrase": e.Text, "kind": e.Kind.String(), "weight": e.Weight}, "emit_phrase")
		return nil
	}

	parent := domain.EntryID(len(*entries))
	combi := domain.Entry{
		Text:        strings.Join(texts, ","),
		Kind:        opts.Kind,
		Weight:      int32(pl.weight),
		Category:    st.category,
		Window:      st.window,
		Combination: make([]domain.EntryID, len(texts)),
		Parent:      domain.NoEntry,
	}
	for i := range texts {
		combi.Combination[i] = parent + domain.EntryID(i+1)
	}
	if err := combi.Validate(); err != nil {
		return err
	}
	*entries = append(*entries, combi)
	for _, t := range texts {
		*entries = append(*entries, domain.Entry{
			Text:     t,
			Kind:     opts.Kind,
			Category: st.category,
			Window:   st.window,
			Parent:   parent,
		})
	}
	opts.Logger.Debug(map[string]any{"combination": combi.Text, "kind": combi.Kind.String(), "parts": len(texts)}, "emit_combination")
	return nil
}
