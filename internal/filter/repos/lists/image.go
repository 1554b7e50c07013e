package lists

import (
	"fmt"

	"github.com/haukened/rr-filter/internal/filter/domain"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/graph"
	"github.com/haukened/rr-filter/internal/filter/repos/lists/index"
)

// Compiled is a list ready for matching. It is never modified after
// construction and may be shared by any number of concurrent readers.
type Compiled struct {
	Name      string
	Type      domain.ListType
	Table     *domain.EntryTable
	Index     *index.Index // item lists only
	Graph     *graph.Graph // phrase lists only
	Sources   []string
	FromCache bool
}

// Image is the persisted form of a Compiled list.
type Image struct {
	Tag         int64 // newest source mtime in UnixNano when built
	Fingerprint uint64
	Type        domain.ListType
	Sources     []string
	Table       *domain.EntryTable
	Quick       bool
	Forward     []uint32
	Reverse     []uint32
	Graph       graph.Parts
}

// compile builds the matching structure for a freshly loaded table.
func compile(spec Spec, tbl *domain.EntryTable, sources []string) *Compiled {
	c := &Compiled{Name: spec.Name, Type: spec.Type, Table: tbl, Sources: sources}
	if spec.Type == domain.PhraseList {
		b := graph.NewBuilder()
		for i, e := range tbl.Entries {
			if e.IsCombination() {
				continue
			}
			b.Add(e.Text, domain.EntryID(i))
		}
		c.Graph = b.Build()
		return c
	}
	c.Index = index.Build(itemTexts(tbl), spec.Policy)
	return c
}

func itemTexts(tbl *domain.EntryTable) []string {
	texts := make([]string, len(tbl.Entries))
	for i, e := range tbl.Entries {
		texts[i] = e.Text
	}
	return texts
}

// image captures c for persistence.
func (c *Compiled) image(tag int64, fp uint64) *Image {
	img := &Image{
		Tag:         tag,
		Fingerprint: fp,
		Type:        c.Type,
		Sources:     c.Sources,
		Table:       c.Table,
	}
	if c.Index != nil {
		img.Quick = c.Index.Quick()
		img.Forward = c.Index.Forward()
		img.Reverse = c.Index.Reverse()
	}
	if c.Graph != nil {
		img.Graph = c.Graph.Parts()
	}
	return img
}

// fromImage validates img and rebuilds the compiled list it describes.
func fromImage(spec Spec, img *Image) (*Compiled, error) {
	if img.Table == nil {
		return nil, fmt.Errorf("image has no entry table")
	}
	if err := img.Table.Validate(); err != nil {
		return nil, err
	}
	c := &Compiled{
		Name:      spec.Name,
		Type:      img.Type,
		Table:     img.Table,
		Sources:   img.Sources,
		FromCache: true,
	}
	if img.Type == domain.PhraseList {
		g, err := graph.FromParts(img.Graph, img.Table.Len())
		if err != nil {
			return nil, err
		}
		c.Graph = g
		return c, nil
	}
	ix, err := index.FromParts(itemTexts(img.Table), img.Forward, img.Reverse, img.Quick)
	if err != nil {
		return nil, err
	}
	c.Index = ix
	return c, nil
}
