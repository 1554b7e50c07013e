package parsers

import (
	"fmt"
	"strings"

	"github.com/haukened/rr-filter/internal/filter/common/utils"
	"github.com/haukened/rr-filter/internal/filter/domain"
)

// addItemLine turns one site or URL line into an entry. Duplicates are kept
// so the index tie-break can resolve them to the first listed.
func (b *Builder) addItemLine(line string, opts Options, st fileState) error {
	fields := strings.Fields(stripInlineComment(line))
	if len(fields) == 0 {
		return nil
	}
	if len(fields) > 1 {
		return fmt.Errorf("unexpected whitespace in item %q", strings.Join(fields, " "))
	}
	raw := fields[0]

	var text string
	switch opts.Type {
	case domain.SiteList:
		raw = strings.TrimPrefix(raw, "*.")
		raw = strings.TrimPrefix(raw, ".")
		text = utils.CanonicalSite(raw)
	case domain.URLList:
		text = utils.CanonicalURL(raw, opts.PreserveCase)
	default:
		return fmt.Errorf("list type %s does not hold items", opts.Type)
	}
	if text == "" {
		return fmt.Errorf("empty item after normalisation of %q", raw)
	}
	kind := opts.Kind
	if kind == domain.EntryWeighted {
		// items carry no weight; weighted item lists behave as banned
		kind = domain.EntryBanned
	}
	e := domain.Entry{
		Text:     text,
		Kind:     kind,
		Category: st.category,
		Window:   st.window,
		Parent:   domain.NoEntry,
	}
	if err := e.Validate(); err != nil {
		return err
	}
	b.table.Entries = append(b.table.Entries, e)
	opts.Logger.Debug(map[string]any{"item": e.Text, "kind": e.Kind.String()}, "emit_item")
	return nil
}
